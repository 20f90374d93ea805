package prompts

import (
	_ "embed"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Provider exposes the static prompt texts of a run. Implementations are read-only.
type Provider interface {
	MainPrompt() string
	TaskPrompt() string
	SupervisorPrompt() string
	// AutonomousPrompt is appended to the agent's system prompt in autonomous mode.
	AutonomousPrompt() string
	// Domain completes "an autonomous agent that is ..." in the supervisor framing.
	Domain() string
}

// FullPrompt is the agent's high-level task: the main prompt followed by the task prompt.
func FullPrompt(p Provider) string {
	return p.MainPrompt() + "\n\n" + p.TaskPrompt()
}

// Static is a Provider backed by fixed strings, usually loaded from YAML.
type Static struct {
	Main       string `yaml:"main"`
	Task       string `yaml:"task"`
	Supervisor string `yaml:"supervisor"`
	Autonomous string `yaml:"autonomous"`
	DomainText string `yaml:"domain"`
}

var _ Provider = Static{}

func (s Static) MainPrompt() string       { return s.Main }
func (s Static) TaskPrompt() string       { return s.Task }
func (s Static) SupervisorPrompt() string { return s.Supervisor }
func (s Static) AutonomousPrompt() string { return s.Autonomous }
func (s Static) Domain() string           { return s.DomainText }

// Default returns the embedded prompt set.
func Default() (Static, error) {
	var s Static
	if err := yaml.Unmarshal(defaultYAML, &s); err != nil {
		return Static{}, errors.Wrap(err, "parsing embedded prompts")
	}
	return s, nil
}

// Parse overlays the keys present in data on top of the embedded defaults.
func Parse(data []byte) (Static, error) {
	s, err := Default()
	if err != nil {
		return Static{}, err
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Static{}, errors.Wrap(err, "parsing prompts")
	}
	return s, nil
}

// Load reads a prompts file. An empty path yields the defaults.
func Load(path string) (Static, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Static{}, errors.Wrapf(err, "reading prompts file %s", path)
	}
	s, err := Parse(data)
	if err != nil {
		return Static{}, errors.Wrapf(err, "loading %s", path)
	}
	return s, nil
}

// ToYAML renders the effective prompt set.
func ToYAML(p Provider) ([]byte, error) {
	s := Static{
		Main:       p.MainPrompt(),
		Task:       p.TaskPrompt(),
		Supervisor: p.SupervisorPrompt(),
		Autonomous: p.AutonomousPrompt(),
		DomainText: p.Domain(),
	}
	b, err := yaml.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling prompts")
	}
	return b, nil
}
