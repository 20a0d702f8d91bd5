package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-virt/manifest"
	"github.com/wippyai/wasm-virt/verify"
	"github.com/wippyai/wasm-virt/virt"
	"github.com/wippyai/wasm-virt/wasm"
)

var (
	cfgFile   string
	verbose   bool
	configErr error
	log       = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "wasm-virt",
	Short: "Disable host capabilities in WebAssembly modules",
	Long: `wasm-virt rewrites WebAssembly core modules so that they no longer
import a capability family such as wasi:sockets from the host. Every import
of the family gets a local body that traps when called, and every export that
re-exposes the family is removed.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if configErr != nil {
			return configErr
		}
		return setupLogging()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.wasm-virt.yaml or $HOME/.wasm-virt.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().String("manifests", "", "directory with additional family manifests (*.yaml)")
	_ = viper.BindPFlag("manifests", rootCmd.PersistentFlags().Lookup("manifests"))
}

func initConfig() {
	configErr = loadConfig(cfgFile)
}

// loadConfig loads configuration from path, or from .wasm-virt.yaml in the
// working or home directory when path is empty. Environment variables use
// the WASMVIRT_ prefix, e.g. WASMVIRT_FAMILY. A missing default config is
// not an error; a missing or unreadable explicit one is.
func loadConfig(path string) error {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName(".wasm-virt")
	}

	viper.SetEnvPrefix("WASMVIRT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && path == "" {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setupLogging() error {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	cfg.OutputPaths = []string{"stderr"}

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	log = l
	wasm.SetLogger(l.Named("wasm"))
	virt.SetLogger(l.Named("virt"))
	verify.SetLogger(l.Named("verify"))

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("using config file", zap.String("file", used))
	}
	return nil
}

// bindFlags binds the flags of the running command into viper. Binding at
// run time keeps commands that share a flag name from overriding each other.
func bindFlags(cmd *cobra.Command, names ...string) error {
	for _, name := range names {
		if err := viper.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

// registry returns the embedded families plus any loaded from the
// configured manifests directory.
func registry() (*manifest.Registry, error) {
	dir := viper.GetString("manifests")
	if dir == "" {
		return manifest.Default(), nil
	}
	extra, err := manifest.LoadFS(os.DirFS(dir), "*.yaml")
	if err != nil {
		return nil, fmt.Errorf("load manifests from %s: %w", filepath.Clean(dir), err)
	}
	log.Debug("loaded manifests", zap.String("dir", dir), zap.Strings("families", extra.Families()))
	return manifest.Default().With(extra.All()...)
}
