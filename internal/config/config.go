package config

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taxoclean/internal/dirs"
)

// DefaultAPIBase is the cleaning service address used when neither flag,
// environment, nor config file provide one.
const DefaultAPIBase = "http://localhost:8000"

// Init wires Viper with config paths, env, defaults, and flag bindings.
// It is non-fatal: any errors are returned for optional handling by caller.
func Init(root *cobra.Command) error {
	// Ensure base directories exist
	_ = dirs.EnsureAll()

	// Setup config search path
	if cfgDir, err := dirs.ConfigDir(); err == nil {
		_ = dirs.Ensure(cfgDir)
		viper.AddConfigPath(cfgDir)
	}
	viper.SetConfigName("config") // supports config.{yaml|yml|json|toml}

	// Environment variables: TAXOCLEAN_*
	viper.SetEnvPrefix("TAXOCLEAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("api_base", DefaultAPIBase)

	// Bind root persistent flags to Viper keys
	_ = viper.BindPFlag("api_base", root.PersistentFlags().Lookup("api-base"))
	_ = viper.BindPFlag("out_dir", root.PersistentFlags().Lookup("out-dir"))
	_ = viper.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("jobs", root.PersistentFlags().Lookup("jobs"))
	_ = viper.BindPFlag("publishable_key", root.PersistentFlags().Lookup("publishable-key"))

	// Read config file if present (ignore not found)
	_ = viper.ReadInConfig()

	return nil
}

// APIBase resolves the configured service address.
func APIBase() string {
	if v := viper.GetString("api_base"); v != "" {
		return v
	}
	return DefaultAPIBase
}

// PublishableKey resolves the payment gateway publishable key.
func PublishableKey() string {
	return viper.GetString("publishable_key")
}
