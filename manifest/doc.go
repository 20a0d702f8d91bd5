// Package manifest describes capability families: versioned sets of host
// interface functions that are disabled together.
//
// A family is stored as YAML. Each function is listed once, under its
// interface, and both the import key and the export name are derived from
// that single entry:
//
//	family: wasi-sockets
//	version: 0.2.0
//	interfaces:
//	  - name: "wasi:sockets/tcp@0.2.0"
//	    functions:
//	      - name: "[method]tcp-socket.start-bind"
//	      - name: "[resource-drop]tcp-socket"     # exported as [dtor]tcp-socket
//	  - name: "wasi:sockets/instance-network@0.2.0"
//	    functions:
//	      - name: "instance-network"
//	        requirement: optional
//
// Documents are checked against an embedded JSON schema, and every interface
// must carry the family version exactly. The manifests under manifests/ are
// compiled in and served by Default.
package manifest
