// Package cli wires the clerkd command tree: case intake, pipeline runs,
// single-stage reruns, draft export and configuration management.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "clerkd",
	Short: "Workplace-accident claim qualification pipeline",
	Long: `clerkd analyzes workplace-accident claims: it OCRs the uploaded
documents, detects cross-document discrepancies, evaluates the four statutory
criteria of a workplace accident, recommends missing documentation and
synthesizes a final legal opinion.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.accident-clerk/config.yaml)")

	rootCmd.AddCommand(caseCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(ocrCmd)
	rootCmd.AddCommand(discrepanciesCmd)
	rootCmd.AddCommand(formalCmd)
	rootCmd.AddCommand(gapsCmd)
	rootCmd.AddCommand(opinionCmd)
	rootCmd.AddCommand(draftCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".accident-clerk"))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CLERK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "using config:", viper.ConfigFileUsed())
	}
}

func setDefaults() {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".accident-clerk")
	viper.SetDefault("store_path", filepath.Join(base, "clerk.db"))
	viper.SetDefault("data_dir", filepath.Join(base, "documents"))
	viper.SetDefault("docintel.endpoint", "")
	viper.SetDefault("docintel.key", "")
	viper.SetDefault("docintel.model", "prebuilt-read")
	viper.SetDefault("llm.provider", "anthropic")
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.model", "")
	viper.SetDefault("llm.endpoint", "")
	viper.SetDefault("llm.deployment", "")
	viper.SetDefault("llm.api_version", "")
}
