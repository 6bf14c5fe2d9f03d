package main

import (
	"fmt"
	"strings"

	"github.com/lumenforge/conduit/internal/agent"
	"github.com/lumenforge/conduit/internal/agent/providers"
	"github.com/lumenforge/conduit/internal/config"
)

// buildProvider constructs the LLMProvider named by providerName in cfg's
// provider table, dispatching on its Kind the way a deployment's providers
// section is expected to name one of the supported backends.
func buildProvider(cfg *config.Config, providerName string) (agent.LLMProvider, error) {
	spec, ok := cfg.Model.Providers[providerName]
	if !ok {
		return nil, fmt.Errorf("no provider named %q in model.providers", providerName)
	}

	switch strings.ToLower(spec.Kind) {
	case "anthropic":
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       spec.APIKey,
			BaseURL:      spec.BaseURL,
			DefaultModel: spec.Model,
		})
	case "openai":
		return providers.NewOpenAIProvider(spec.APIKey), nil
	case "azure", "azure-openai":
		return providers.NewAzureOpenAIProvider(providers.AzureOpenAIConfig{
			Endpoint:     spec.BaseURL,
			APIKey:       spec.APIKey,
			DefaultModel: spec.Model,
		})
	case "bedrock":
		return providers.NewBedrockProvider(providers.BedrockConfig{
			Region:       spec.Region,
			DefaultModel: spec.Model,
		})
	case "google", "gemini":
		return providers.NewGoogleProvider(providers.GoogleConfig{
			APIKey:       spec.APIKey,
			DefaultModel: spec.Model,
		})
	case "ollama":
		return providers.NewOllamaProvider(providers.OllamaConfig{
			BaseURL:      spec.BaseURL,
			DefaultModel: spec.Model,
		}), nil
	case "openrouter":
		return providers.NewOpenRouterProvider(providers.OpenRouterConfig{
			APIKey:       spec.APIKey,
			DefaultModel: spec.Model,
		})
	case "copilot-proxy", "copilot_proxy":
		return providers.NewCopilotProxyProvider(providers.CopilotProxyConfig{
			BaseURL: spec.BaseURL,
		})
	case "subprocess":
		return nil, fmt.Errorf("provider %q: kind %q requires a model hook plugin, not wired into agentctl directly", providerName, spec.Kind)
	default:
		return nil, fmt.Errorf("provider %q: unknown kind %q", providerName, spec.Kind)
	}
}
