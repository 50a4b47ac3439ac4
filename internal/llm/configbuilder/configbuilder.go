package configbuilder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/GenLoc-2025/GenLoc/internal/config"
	"github.com/GenLoc-2025/GenLoc/internal/llm"
	llmanthropic "github.com/GenLoc-2025/GenLoc/internal/llm/providers/anthropic"
	llmollama "github.com/GenLoc-2025/GenLoc/internal/llm/providers/ollama"
	llmopenai "github.com/GenLoc-2025/GenLoc/internal/llm/providers/openai"
)

// BuildRegistryFromConfig constructs a registry and providers from config.
// When several models are marked default, the first by name wins. A
// localizer.model setting overrides the default.
func BuildRegistryFromConfig(cfg *config.Config) (*llm.Registry, error) {
	reg := llm.NewRegistry()

	for _, name := range sortedKeys(cfg.Providers) {
		p, err := buildProvider(name, cfg.Providers[name])
		if err != nil {
			return nil, err
		}
		reg.RegisterProvider(name, p)
	}

	defaultModel := strings.TrimSpace(cfg.Localizer.Model)
	if defaultModel == "" {
		for _, name := range sortedKeys(cfg.Models) {
			if cfg.Models[name].Default {
				defaultModel = name
				break
			}
		}
	}
	for _, name := range sortedKeys(cfg.Models) {
		mCfg := cfg.Models[name]
		reg.RegisterModel(name, llm.ModelRoute{
			Provider:    mCfg.Provider,
			Model:       mCfg.Model,
			Temperature: mCfg.Temperature,
			MaxTokens:   mCfg.MaxTokens,
		}, name == defaultModel)
	}

	if _, _, err := reg.Resolve(""); err != nil {
		return nil, err
	}

	return reg, nil
}

func buildProvider(name string, cfg config.ProviderConfig) (llm.Provider, error) {
	switch cfg.Type {
	case "openai", "openrouter", "vllm", "lmstudio", "custom":
		return llmopenai.NewProvider(name, cfg.BaseURL, cfg.APIKey, cfg.Timeout), nil
	case "anthropic":
		return llmanthropic.NewProvider(name, cfg.BaseURL, cfg.APIKey, cfg.Timeout, cfg.MaxTokens), nil
	case "ollama":
		return llmollama.NewProvider(name, cfg.BaseURL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q for provider %s", cfg.Type, name)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
