package llm

import (
	"fmt"
	"strings"
)

// NewCaller builds the configured provider.
func NewCaller(cfg Config) (Caller, error) {
	switch strings.ToLower(cfg.Provider) {
	case "anthropic", "claude":
		return NewAnthropicCaller(cfg)
	case "azure-openai", "azure", "openai":
		return NewAzureOpenAICaller(cfg)
	case "":
		return nil, fmt.Errorf("no llm provider configured")
	default:
		return nil, fmt.Errorf("unknown llm provider: %s (supported: anthropic, azure-openai)", cfg.Provider)
	}
}
