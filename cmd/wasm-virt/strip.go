package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-virt/errors"
	"github.com/wippyai/wasm-virt/manifest"
	"github.com/wippyai/wasm-virt/verify"
	"github.com/wippyai/wasm-virt/virt"
	"github.com/wippyai/wasm-virt/wasm"
)

const defaultFamily = "wasi-sockets"

type stripOptions struct {
	input       string
	output      string
	family      string
	version     string
	importsOnly bool
	verify      bool
	threads     bool
}

var stripCmd = &cobra.Command{
	Use:   "strip <module.wasm>",
	Short: "Stub the imports and remove the exports of a capability family",
	Long: `Rewrite a core module so that it no longer imports a capability family.

Without --version the family version is detected from the module's imports.
The module is only written when every manifest entry could be applied.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return bindFlags(cmd, "family", "version", "output", "imports-only", "verify", "threads")
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := registry()
		if err != nil {
			return err
		}
		return runStrip(cmd.Context(), cmd.OutOrStdout(), reg, stripOptions{
			input:       args[0],
			output:      viper.GetString("output"),
			family:      viper.GetString("family"),
			version:     viper.GetString("version"),
			importsOnly: viper.GetBool("imports-only"),
			verify:      viper.GetBool("verify"),
			threads:     viper.GetBool("threads"),
		})
	},
}

func init() {
	rootCmd.AddCommand(stripCmd)

	stripCmd.Flags().StringP("output", "o", "", "output path (default: <module>.virt.wasm)")
	stripCmd.Flags().StringP("family", "f", defaultFamily, "capability family to remove")
	stripCmd.Flags().String("version", "", "family version (default: detected from the module)")
	stripCmd.Flags().Bool("imports-only", false, "stub imports but keep the exports")
	stripCmd.Flags().Bool("verify", true, "compile the result and check that no family entry remains")
	stripCmd.Flags().Bool("threads", false, "verify with the threads feature (always on for modules with shared memory)")
}

func runStrip(ctx context.Context, w io.Writer, reg *manifest.Registry, opts stripOptions) error {
	data, err := os.ReadFile(opts.input)
	if err != nil {
		return fmt.Errorf("read module: %w", err)
	}
	m, err := wasm.Parse(data)
	if err != nil {
		return errors.ParseFailed(opts.input, err)
	}

	fam, rep, err := resolveFamily(reg, m, opts.family, opts.version)
	if err != nil {
		return err
	}
	log.Info("stripping module",
		zap.String("input", opts.input),
		zap.String("family", fam.Key()),
		zap.Bool("imports_only", opts.importsOnly))

	err = m.Transact(func(work *wasm.Module) error {
		if opts.importsOnly {
			return virt.StripFamilyImportsOnly(work, fam)
		}
		return virt.StripFamily(work, fam)
	})
	if err != nil {
		return err
	}

	out, err := m.Encode()
	if err != nil {
		return errors.EncodeFailed(opts.input, err)
	}
	if opts.verify {
		v := verify.New(&verify.Config{
			EnableThreads: opts.threads || m.SharedMemory(),
			ImportsOnly:   opts.importsOnly,
		})
		if err := v.Verify(ctx, out, fam); err != nil {
			return err
		}
	}

	dest := opts.output
	if dest == "" {
		dest = strings.TrimSuffix(opts.input, ".wasm") + ".virt.wasm"
	}
	if err := os.WriteFile(dest, out, 0o644); err != nil {
		return fmt.Errorf("write module: %w", err)
	}

	renderStripSummary(w, rep, opts.importsOnly, dest, len(data), len(out))
	return nil
}

// resolveFamily picks the requested family version, or detects it when
// version is empty. The returned report describes the module before
// stripping.
func resolveFamily(reg *manifest.Registry, m *wasm.Module, family, version string) (*manifest.Family, *virt.Report, error) {
	if version != "" {
		fam, err := reg.Lookup(family, version)
		if err != nil {
			return nil, nil, err
		}
		return fam, virt.Check(m, fam), nil
	}

	var candidates []*manifest.Family
	for _, v := range reg.Versions(family) {
		fam, err := reg.Lookup(family, v)
		if err != nil {
			return nil, nil, err
		}
		candidates = append(candidates, fam)
	}
	if len(candidates) == 0 {
		return nil, nil, fmt.Errorf("unknown family %q", family)
	}

	fam, rep := virt.Detect(m, candidates)
	if fam == nil {
		return nil, nil, fmt.Errorf("module imports no version of %s", family)
	}
	log.Debug("detected family version",
		zap.String("family", fam.Key()),
		zap.Int("present_imports", rep.PresentImports()))
	return fam, rep, nil
}
