package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Supported provider names.
const (
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"
	ProviderBedrock  = "bedrock"
	ProviderGemini   = "gemini"
	ProviderScripted = "scripted"
)

// ProviderConfig selects and configures a reasoning backend.
type ProviderConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	// BaseURL is the Ollama address or an OpenAI-compatible gateway.
	BaseURL string        `yaml:"base_url"`
	Bedrock BedrockConfig `yaml:"bedrock"`
	// ScriptedResponse is the default answer of the scripted provider.
	ScriptedResponse string `yaml:"scripted_response"`
}

// DefaultProviderConfig targets a local Ollama bridge.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Provider: ProviderOllama,
		Model:    "llama3.1",
		BaseURL:  "http://localhost:11434",
	}
}

// Providers returns the supported provider names.
func Providers() []string {
	return []string{ProviderOpenAI, ProviderOllama, ProviderBedrock, ProviderGemini, ProviderScripted}
}

// New builds the backend named by cfg.Provider.
func New(ctx context.Context, cfg ProviderConfig) (LLM, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		return NewOpenAICompatibleLLM(apiKey, cfg.Model, cfg.BaseURL), nil
	case ProviderOllama, "":
		return NewOllamaLLM(cfg.Model, cfg.BaseURL), nil
	case ProviderBedrock:
		bc := cfg.Bedrock
		if bc.ModelID == "" {
			bc.ModelID = cfg.Model
		}
		return NewBedrockLLM(ctx, bc)
	case ProviderGemini:
		return NewGeminiLLM(ctx, cfg.APIKey, cfg.Model)
	case ProviderScripted:
		s := NewScriptedLLM(cfg.Model)
		if cfg.ScriptedResponse != "" {
			s.Default(cfg.ScriptedResponse)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
