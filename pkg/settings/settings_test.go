package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args ...string) (*Settings, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cmd := &cobra.Command{Use: "x"}
	AddFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	v, err := NewViper(cmd)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

func TestDefaults(t *testing.T) {
	s, err := load(t)
	require.NoError(t, err)
	require.Equal(t, ProviderOllama, s.Provider)
	require.Equal(t, DefaultOllamaBaseURL, s.BaseURL)
	require.Equal(t, DefaultModel, s.Model)
	require.Equal(t, DefaultModel, s.SupervisorModel)
	require.True(t, s.Think)
	require.Equal(t, ModeAsk, s.Mode)
	require.False(t, s.RenderMarkdown)
}

func TestFlagsOverride(t *testing.T) {
	s, err := load(t,
		"--provider", "openai",
		"--model", "gpt-4o-mini",
		"--supervisor-model", "gpt-4o",
		"--mode", "Interactive",
		"--think=false",
		"--reasoning-effort", "low",
	)
	require.NoError(t, err)
	require.Equal(t, ProviderOpenAI, s.Provider)
	require.Equal(t, DefaultOpenAIBaseURL, s.BaseURL)
	require.Equal(t, "gpt-4o-mini", s.Model)
	require.Equal(t, "gpt-4o", s.SupervisorModel)
	require.Equal(t, ModeInteractive, s.Mode)
	require.False(t, s.Think)
	require.Equal(t, "low", s.ReasoningEffort)
}

func TestEnvironment(t *testing.T) {
	t.Setenv("MARIONETTE_MODEL", "llama3.2")
	t.Setenv("MARIONETTE_BASE_URL", "http://10.0.0.2:11434")
	t.Setenv("OPENAI_API_KEY", "sk-fallback")
	s, err := load(t)
	require.NoError(t, err)
	require.Equal(t, "llama3.2", s.Model)
	require.Equal(t, "http://10.0.0.2:11434", s.BaseURL)
	require.Equal(t, "sk-fallback", s.APIKey)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: mistral\nmode: autonomous\n"), 0o600))

	s, err := load(t, "--config", path)
	require.NoError(t, err)
	require.Equal(t, "mistral", s.Model)
	require.Equal(t, ModeAutonomous, s.Mode)
}

func TestMissingExplicitConfigFile(t *testing.T) {
	_, err := load(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	_, err := load(t, "--provider", "anthropic")
	require.Error(t, err)

	_, err = load(t, "--mode", "sometimes")
	require.Error(t, err)

	_, err = load(t, "--reasoning-effort", "extreme")
	require.Error(t, err)

	_, err = load(t, "--base-url", "not a url")
	require.Error(t, err)
}
