// Package factory picks the backend implementation named by the settings.
package factory

import (
	"github.com/go-go-golems/marionette/pkg/backend"
	"github.com/go-go-golems/marionette/pkg/backend/ollama"
	"github.com/go-go-golems/marionette/pkg/backend/openai"
	"github.com/go-go-golems/marionette/pkg/settings"
	"github.com/pkg/errors"
)

func New(s *settings.Settings) (backend.Backend, error) {
	if s == nil {
		return nil, errors.New("no settings")
	}
	switch s.Provider {
	case settings.ProviderOllama:
		return ollama.New(s.BaseURL), nil
	case settings.ProviderOpenAI:
		return openai.New(s.BaseURL, s.APIKey, openai.WithReasoningEffort(s.ReasoningEffort)), nil
	default:
		return nil, errors.Errorf("unknown provider %q", s.Provider)
	}
}
