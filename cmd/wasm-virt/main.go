// Command wasm-virt removes host capability families from WebAssembly
// core modules.
package main

func main() {
	Execute()
}
