package verify

import (
	"context"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-virt/errors"
	"github.com/wippyai/wasm-virt/manifest"
)

// Config controls how rewritten binaries are compiled.
type Config struct {
	// EnableThreads accepts modules that use the threads proposal
	// (shared memory and atomics).
	EnableThreads bool

	// ImportsOnly skips the export check, for modules stripped with
	// virt.StripFamilyImportsOnly.
	ImportsOnly bool
}

// Verifier compiles rewritten modules and checks that a capability family
// left no trace in their import and export tables.
type Verifier struct {
	cfg         wazero.RuntimeConfig
	importsOnly bool
}

// New creates a Verifier. A nil cfg uses the defaults.
func New(cfg *Config) *Verifier {
	rc := wazero.NewRuntimeConfigInterpreter()
	if cfg != nil && cfg.EnableThreads {
		rc = rc.WithCoreFeatures(api.CoreFeaturesV2 | experimental.CoreFeaturesThreads)
	}
	return &Verifier{cfg: rc, importsOnly: cfg != nil && cfg.ImportsOnly}
}

// Verify is New(nil).Verify.
func Verify(ctx context.Context, binary []byte, fam *manifest.Family) error {
	return New(nil).Verify(ctx, binary, fam)
}

// Verify compiles binary, which validates it, and reports the first import
// or export of fam still present.
func (v *Verifier) Verify(ctx context.Context, binary []byte, fam *manifest.Family) error {
	r := wazero.NewRuntimeWithConfig(ctx, v.cfg)
	defer r.Close(ctx)

	compiled, err := r.CompileModule(ctx, binary)
	if err != nil {
		return errors.New(errors.PhaseVerify, errors.KindInvalidData).
			Cause(err).
			Detail("rewritten module does not compile").
			Build()
	}
	defer compiled.Close(ctx)

	imports := make(map[manifest.FuncRef]bool, len(fam.Functions))
	for _, entry := range fam.Imports() {
		imports[entry.FuncRef] = true
	}
	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		ref := manifest.FuncRef{Interface: module, Function: name}
		if imports[ref] {
			return errors.CapabilityPresent("import", ref.String())
		}
	}

	exported := compiled.ExportedFunctions()
	names := make([]string, 0, len(exported))
	for name := range exported {
		names = append(names, name)
	}
	sort.Strings(names)
	exports := make(map[string]bool, len(fam.Functions))
	for _, name := range fam.Exports() {
		exports[name] = true
	}
	for _, name := range names {
		if exports[name] && !v.importsOnly {
			return errors.CapabilityPresent("export", name)
		}
	}

	Logger().Debug("verified module",
		zap.String("family", fam.Key()),
		zap.Int("imports", len(compiled.ImportedFunctions())),
		zap.Int("exports", len(names)))
	return nil
}
