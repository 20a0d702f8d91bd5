package main

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wippyai/wasm-virt/errors"
	"github.com/wippyai/wasm-virt/manifest"
	"github.com/wippyai/wasm-virt/virt"
	"github.com/wippyai/wasm-virt/wasm"
)

type checkOptions struct {
	input   string
	family  string
	version string
	format  string
}

var checkCmd = &cobra.Command{
	Use:   "check <module.wasm>",
	Short: "Report which entries of a capability family a module uses",
	Long: `Audit a module against every version of a capability family without
modifying it. Missing required imports and missing exports are listed in full.

The command fails when no checked version could be stripped.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return bindFlags(cmd, "family", "version", "format")
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := registry()
		if err != nil {
			return err
		}
		return runCheck(cmd.OutOrStdout(), reg, checkOptions{
			input:   args[0],
			family:  viper.GetString("family"),
			version: viper.GetString("version"),
			format:  viper.GetString("format"),
		})
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringP("family", "f", defaultFamily, "capability family to check")
	checkCmd.Flags().String("version", "", "family version (default: every known version)")
	checkCmd.Flags().String("format", "text", "output format: text, yaml")
}

func runCheck(w io.Writer, reg *manifest.Registry, opts checkOptions) error {
	data, err := os.ReadFile(opts.input)
	if err != nil {
		return fmt.Errorf("read module: %w", err)
	}
	m, err := wasm.Parse(data)
	if err != nil {
		return errors.ParseFailed(opts.input, err)
	}

	versions := []string{opts.version}
	if opts.version == "" {
		versions = reg.Versions(opts.family)
		if len(versions) == 0 {
			return fmt.Errorf("unknown family %q", opts.family)
		}
	}

	var reports []*virt.Report
	for _, v := range versions {
		fam, err := reg.Lookup(opts.family, v)
		if err != nil {
			return err
		}
		reports = append(reports, virt.Check(m, fam))
	}

	switch opts.format {
	case "text", "":
		for _, rep := range reports {
			renderReport(w, rep)
		}
	case "yaml":
		out, err := yaml.Marshal(reportViews(reports))
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		if _, err := w.Write(out); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported format %q", opts.format)
	}

	for _, rep := range reports {
		if rep.Strippable() {
			return nil
		}
	}
	if len(reports) == 1 {
		return reports[0].Err()
	}
	return fmt.Errorf("no version of %s can be stripped from %s", opts.family, opts.input)
}

type reportView struct {
	Family         string   `yaml:"family"`
	Version        string   `yaml:"version"`
	Strippable     bool     `yaml:"strippable"`
	PresentImports int      `yaml:"present_imports"`
	PresentExports int      `yaml:"present_exports"`
	MissingImports []string `yaml:"missing_imports,omitempty"`
	MissingExports []string `yaml:"missing_exports,omitempty"`
}

func reportViews(reports []*virt.Report) []reportView {
	views := make([]reportView, 0, len(reports))
	for _, rep := range reports {
		v := reportView{
			Family:         rep.Family,
			Version:        rep.Version,
			Strippable:     rep.Strippable(),
			PresentImports: rep.PresentImports(),
			PresentExports: rep.PresentExports(),
			MissingExports: rep.MissingExports(),
		}
		for _, s := range rep.Imports {
			if !s.Present && s.Entry.Requirement == manifest.Required {
				v.MissingImports = append(v.MissingImports, s.Entry.String())
			}
		}
		views = append(views, v)
	}
	return views
}
