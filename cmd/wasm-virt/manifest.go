package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-virt/manifest"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Inspect and create capability family manifests",
}

var manifestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known families and versions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := registry()
		if err != nil {
			return err
		}
		return runManifestList(cmd.OutOrStdout(), reg)
	},
}

var manifestShowCmd = &cobra.Command{
	Use:   "show <family> [version]",
	Short: "Print a family manifest as YAML",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := registry()
		if err != nil {
			return err
		}
		version := ""
		if len(args) == 2 {
			version = args[1]
		}
		fam, err := reg.Resolve(args[0], version)
		if err != nil {
			return err
		}
		return manifest.Encode(cmd.OutOrStdout(), fam)
	},
}

var (
	witFamily  string
	witPackage string
	witOutput  string
)

var manifestFromWITCmd = &cobra.Command{
	Use:   "from-wit <package.wit.json>",
	Short: "Derive a family manifest from a WIT package in JSON form",
	Long: `Derive a family manifest from the JSON output of
"wasm-tools component wit --json". Every function of every interface in the
selected package becomes a required entry, and every resource adds a
[resource-drop] entry. Edit the result to mark optional entries.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFromWIT(cmd.OutOrStdout(), args[0], witFamily, witPackage, witOutput)
	},
}

func init() {
	rootCmd.AddCommand(manifestCmd)
	manifestCmd.AddCommand(manifestListCmd, manifestShowCmd, manifestFromWITCmd)

	manifestFromWITCmd.Flags().StringVar(&witFamily, "family", "", "family name for the manifest")
	manifestFromWITCmd.Flags().StringVar(&witPackage, "package", "", `WIT package, e.g. "wasi:sockets"`)
	manifestFromWITCmd.Flags().StringVarP(&witOutput, "output", "o", "", "output file (default: stdout)")
	_ = manifestFromWITCmd.MarkFlagRequired("family")
	_ = manifestFromWITCmd.MarkFlagRequired("package")
}

func runManifestList(w io.Writer, reg *manifest.Registry) error {
	for _, name := range reg.Families() {
		latest, err := reg.Latest(name)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, titleStyle.Render(name))
		for _, v := range reg.Versions(name) {
			fam, err := reg.Lookup(name, v)
			if err != nil {
				return err
			}
			line := fmt.Sprintf("  %s  %s", v, mutedStyle.Render(fmt.Sprintf("%d functions", len(fam.Functions))))
			if v == latest.Version {
				line += " " + okStyle.Render("(latest)")
			}
			fmt.Fprintln(w, line)
		}
	}
	return nil
}

func runFromWIT(w io.Writer, path, family, pkg, output string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open WIT JSON: %w", err)
	}
	defer f.Close()

	fam, err := manifest.FromWIT(f, family, pkg)
	if err != nil {
		return err
	}

	if output == "" {
		return manifest.Encode(w, fam)
	}
	out, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	if err := manifest.Encode(out, fam); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
