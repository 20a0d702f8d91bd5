package virt_test

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-virt/errors"
	"github.com/wippyai/wasm-virt/manifest"
	"github.com/wippyai/wasm-virt/virt"
	"github.com/wippyai/wasm-virt/wasm"
)

func required(iface, fn string) manifest.ImportEntry {
	return manifest.ImportEntry{
		FuncRef:     manifest.FuncRef{Interface: iface, Function: fn},
		Requirement: manifest.Required,
	}
}

func optional(iface, fn string) manifest.ImportEntry {
	return manifest.ImportEntry{
		FuncRef:     manifest.FuncRef{Interface: iface, Function: fn},
		Requirement: manifest.Optional,
	}
}

// nsGuest imports ns/a.f, ns/a.h and ns/b.g and exports a function under
// "ns/a#f", "ns/a#h" and "other".
func nsGuest(t *testing.T) *wasm.Module {
	t.Helper()
	b := wasm.NewBuilder()
	void := b.Type(nil, nil)
	f := b.ImportFunc("ns/a", "f", void)
	h := b.ImportFunc("ns/a", "h", void)
	g := b.ImportFunc("ns/b", "g", void)
	impl := b.Func(void, wasm.OpCall, byte(f), wasm.OpCall, byte(h), wasm.OpCall, byte(g), wasm.OpEnd)
	b.Export("ns/a#f", impl).Export("ns/a#h", impl).Export("other", impl)

	m, err := wasm.Parse(b.Build())
	require.NoError(t, err)
	return m
}

func exportNames(m *wasm.Module) []string {
	var names []string
	for _, e := range m.Exports() {
		names = append(names, e.Name)
	}
	return names
}

func stubbed(t *testing.T, m *wasm.Module, iface, fn string) bool {
	t.Helper()
	id, ok := m.LookupImport(iface, fn)
	require.True(t, ok, "import %s#%s not found", iface, fn)
	return m.IsStubbed(id)
}

func TestStripCapabilityScenario(t *testing.T) {
	m := nsGuest(t)

	err := virt.StripCapability(m, []manifest.ImportEntry{required("ns/a", "f")}, []string{"ns/a#f"})
	require.NoError(t, err)

	id, ok := m.LookupImport("ns/a", "f")
	require.True(t, ok, "stubbed import must still be listed")
	body, ok := m.Body(id)
	require.True(t, ok)
	assert.True(t, body.IsTrap())

	_, ok = m.LookupExport("ns/a#f")
	assert.False(t, ok)
	assert.Equal(t, []string{"ns/a#h", "other"}, exportNames(m))
	assert.False(t, stubbed(t, m, "ns/a", "h"))
	assert.False(t, stubbed(t, m, "ns/b", "g"))
	assert.Len(t, m.Imports(), 3)
}

func TestStripCapabilityMissingImportLeavesExports(t *testing.T) {
	m := nsGuest(t)
	before := exportNames(m)

	err := virt.StripCapability(m, []manifest.ImportEntry{required("ns/a", "g")}, []string{"ns/a#f"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingRequiredImport)

	var e *errors.Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, []string{"ns/a", "g"}, e.Path)
	assert.Equal(t, before, exportNames(m))
}

func TestStubImportsStopsAtFirstMissing(t *testing.T) {
	m := nsGuest(t)

	err := virt.StubImports(m, []manifest.ImportEntry{
		required("ns/a", "f"),
		required("ns/a", "missing"),
		required("ns/a", "h"),
	})
	require.ErrorIs(t, err, errors.ErrMissingRequiredImport)
	assert.Contains(t, err.Error(), "ns/a#missing")

	assert.True(t, stubbed(t, m, "ns/a", "f"), "entries before the miss are applied")
	assert.False(t, stubbed(t, m, "ns/a", "h"), "entries after the miss are untouched")
}

func TestLookupIsExact(t *testing.T) {
	m := nsGuest(t)

	for _, entry := range []manifest.ImportEntry{
		required("ns/a@1.0.0", "f"),
		required("ns", "f"),
		required("ns/a", "F"),
	} {
		err := virt.StubImports(m, []manifest.ImportEntry{entry})
		assert.ErrorIs(t, err, errors.ErrMissingRequiredImport, entry.String())
	}
}

func TestPruneExportsRemovesExactlyTheList(t *testing.T) {
	m := nsGuest(t)

	require.NoError(t, virt.PruneExports(m, []string{"other", "ns/a#f"}))
	assert.Equal(t, []string{"ns/a#h"}, exportNames(m))

	// Bodies and imports are not affected.
	assert.Equal(t, uint32(4), m.NumFuncs())
	assert.False(t, stubbed(t, m, "ns/a", "f"))
}

func TestPruneExportsStopsAtFirstMissing(t *testing.T) {
	m := nsGuest(t)

	err := virt.PruneExports(m, []string{"ns/a#f", "nope", "other"})
	require.ErrorIs(t, err, errors.ErrMissingExpectedExport)

	var e *errors.Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, []string{"nope"}, e.Path)
	assert.Equal(t, []string{"ns/a#h", "other"}, exportNames(m))
}

func TestStripCapabilityTwice(t *testing.T) {
	m := nsGuest(t)
	imports := []manifest.ImportEntry{required("ns/a", "f")}
	exports := []string{"ns/a#f"}

	require.NoError(t, virt.StripCapability(m, imports, exports))

	err := virt.StripCapability(m, imports, exports)
	require.ErrorIs(t, err, errors.ErrMissingExpectedExport)
	assert.True(t, stubbed(t, m, "ns/a", "f"), "re-stubbing succeeds before pruning fails")
}

func TestOptionalEntries(t *testing.T) {
	m := nsGuest(t)

	err := virt.StubImports(m, []manifest.ImportEntry{
		optional("ns/a", "absent"),
		optional("ns/a", "h"),
	})
	require.NoError(t, err)
	assert.True(t, stubbed(t, m, "ns/a", "h"), "present optional import is stubbed")
}

func TestUnsupportedRequirementLevel(t *testing.T) {
	for _, level := range []manifest.Requirement{0, 3} {
		m := nsGuest(t)
		entry := required("ns/a", "f")
		entry.Requirement = level

		err := virt.StubImports(m, []manifest.ImportEntry{entry})
		require.ErrorIs(t, err, errors.ErrUnsupportedRequirementLevel)
		assert.False(t, stubbed(t, m, "ns/a", "f"))
	}
}

func TestStripCapabilityImportsOnly(t *testing.T) {
	m := nsGuest(t)

	require.NoError(t, virt.StripCapabilityImportsOnly(m, []manifest.ImportEntry{required("ns/a", "f")}))
	assert.True(t, stubbed(t, m, "ns/a", "f"))
	assert.Equal(t, []string{"ns/a#f", "ns/a#h", "other"}, exportNames(m))
}

func TestTransactDiscardsPartialStrip(t *testing.T) {
	m := nsGuest(t)

	err := m.Transact(func(w *wasm.Module) error {
		return virt.StripCapability(w,
			[]manifest.ImportEntry{required("ns/a", "f"), required("ns/a", "g")},
			[]string{"ns/a#f"})
	})
	require.ErrorIs(t, err, errors.ErrMissingRequiredImport)
	assert.False(t, stubbed(t, m, "ns/a", "f"))
}

type fakeModule struct {
	imports    map[manifest.FuncRef]wasm.FuncID
	exports    map[string]bool
	replaced   []wasm.FuncID
	replaceErr error
	removeErr  error
}

func (f *fakeModule) LookupImport(module, name string) (wasm.FuncID, bool) {
	id, ok := f.imports[manifest.FuncRef{Interface: module, Function: name}]
	return id, ok
}

func (f *fakeModule) ReplaceFunctionBody(id wasm.FuncID, body wasm.FuncBody) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	if !body.IsTrap() {
		return stderrors.New("not a trap body")
	}
	f.replaced = append(f.replaced, id)
	return nil
}

func (f *fakeModule) RemoveExport(name string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	if !f.exports[name] {
		return wasm.ErrExportNotFound
	}
	delete(f.exports, name)
	return nil
}

func TestCollaboratorErrorsAreAnnotated(t *testing.T) {
	cause := stderrors.New("malformed body")
	m := &fakeModule{
		imports:    map[manifest.FuncRef]wasm.FuncID{{Interface: "ns/a", Function: "f"}: 3},
		replaceErr: cause,
	}

	err := virt.StubImports(m, []manifest.ImportEntry{required("ns/a", "f")})
	require.ErrorIs(t, err, cause)

	var e *errors.Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, errors.KindCollaborator, e.Kind)
	assert.Equal(t, errors.PhaseStub, e.Phase)
	assert.Equal(t, []string{"ns/a", "f"}, e.Path)

	m = &fakeModule{exports: map[string]bool{"x": true}, removeErr: cause}
	err = virt.PruneExports(m, []string{"x"})
	require.ErrorIs(t, err, cause)
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, errors.PhasePrune, e.Phase)
	assert.Equal(t, []string{"x"}, e.Path)
}

func TestStubImportsUsesTrapBodies(t *testing.T) {
	m := &fakeModule{
		imports: map[manifest.FuncRef]wasm.FuncID{
			{Interface: "ns/a", Function: "f"}: 0,
			{Interface: "ns/a", Function: "h"}: 2,
		},
	}
	require.NoError(t, virt.StubImports(m, []manifest.ImportEntry{required("ns/a", "h"), required("ns/a", "f")}))
	assert.Equal(t, []wasm.FuncID{2, 0}, m.replaced)
}

func TestStubbedImportTraps(t *testing.T) {
	ctx := context.Background()

	b := wasm.NewBuilder()
	sig := b.Type([]api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32})
	f := b.ImportFunc("ns/a", "f", sig)
	call := b.Func(sig, wasm.OpLocalGet, 0, wasm.OpCall, byte(f), wasm.OpEnd)
	b.Export("ns/a#f", call).Export("call_f", call)
	bin := b.Build()

	// The original module needs the host function and calls it.
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)
	_, err := r.NewHostModuleBuilder("ns/a").
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, x uint32) uint32 { return x + 1 }).
		Export("f").
		Instantiate(ctx)
	require.NoError(t, err)
	orig, err := r.Instantiate(ctx, bin)
	require.NoError(t, err)
	res, err := orig.ExportedFunction("call_f").Call(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), res[0])

	m, err := wasm.Parse(bin)
	require.NoError(t, err)
	require.NoError(t, virt.StripCapability(m, []manifest.ImportEntry{required("ns/a", "f")}, []string{"ns/a#f"}))
	out, err := m.Encode()
	require.NoError(t, err)

	// The stripped module instantiates without the host and traps on use.
	r2 := wazero.NewRuntime(ctx)
	defer r2.Close(ctx)
	stripped, err := r2.Instantiate(ctx, out)
	require.NoError(t, err)
	assert.Nil(t, stripped.ExportedFunction("ns/a#f"))

	for _, arg := range []uint64{0, 1, 0xFFFFFFFF} {
		_, err := stripped.ExportedFunction("call_f").Call(ctx, arg)
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "unreachable"), err.Error())
	}
}
