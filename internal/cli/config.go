package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/pkruk/accident-clerk/internal/llm"
)

// Config is the effective clerkd configuration after merging defaults,
// the config file and CLERK_* environment variables.
type Config struct {
	StorePath string         `yaml:"store_path"`
	DataDir   string         `yaml:"data_dir"`
	DocIntel  DocIntelConfig `yaml:"docintel"`
	LLM       LLMConfig      `yaml:"llm"`
}

type DocIntelConfig struct {
	Endpoint string `yaml:"endpoint"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

type LLMConfig struct {
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Endpoint   string `yaml:"endpoint"`
	Deployment string `yaml:"deployment"`
	APIVersion string `yaml:"api_version"`
}

func loadConfig() Config {
	return Config{
		StorePath: viper.GetString("store_path"),
		DataDir:   viper.GetString("data_dir"),
		DocIntel: DocIntelConfig{
			Endpoint: viper.GetString("docintel.endpoint"),
			Key:      viper.GetString("docintel.key"),
			Model:    viper.GetString("docintel.model"),
		},
		LLM: LLMConfig{
			Provider:   viper.GetString("llm.provider"),
			APIKey:     viper.GetString("llm.api_key"),
			Model:      viper.GetString("llm.model"),
			Endpoint:   viper.GetString("llm.endpoint"),
			Deployment: viper.GetString("llm.deployment"),
			APIVersion: viper.GetString("llm.api_version"),
		},
	}
}

func (c Config) llmConfig() llm.Config {
	return llm.Config{
		Provider:   c.LLM.Provider,
		APIKey:     c.LLM.APIKey,
		Model:      c.LLM.Model,
		Endpoint:   c.LLM.Endpoint,
		Deployment: c.LLM.Deployment,
		APIVersion: c.LLM.APIVersion,
	}
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage clerkd configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dir := filepath.Join(home, ".accident-clerk")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		path := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}

		out, err := yaml.Marshal(loadConfig())
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, out, 0o600); err != nil {
			return err
		}
		fmt.Println("wrote", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if cfg.DocIntel.Key != "" {
			cfg.DocIntel.Key = "***"
		}
		if cfg.LLM.APIKey != "" {
			cfg.LLM.APIKey = "***"
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
