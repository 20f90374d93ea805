package conversation

import (
	"encoding/json"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"
)

// Role tags a turn with the party that produced it.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ErrEmptyTurn is returned when a turn carries no content, reasoning or tool calls.
var ErrEmptyTurn = errors.New("turn has no content, reasoning or tool calls")

// ToolCall describes a single tool invocation requested by the model.
// Arguments are kept as the raw payload the backend sent. ID is only set by
// providers that correlate calls with results.
type ToolCall struct {
	ID        string          `json:"id,omitempty" yaml:"id,omitempty"`
	Name      string          `json:"name" yaml:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// Turn is one role-tagged entry of the conversation log.
// Empty strings and nil slices mean "unset".
type Turn struct {
	Role      Role       `json:"role" yaml:"role"`
	Content   string     `json:"content,omitempty" yaml:"content,omitempty"`
	Reasoning string     `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
	ToolName  string     `json:"tool_name,omitempty" yaml:"tool_name,omitempty"`
}

func NewSystemTurn(content string) Turn {
	return Turn{Role: RoleSystem, Content: content}
}

func NewUserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

func NewToolResultTurn(toolName string, content string) Turn {
	return Turn{Role: RoleTool, ToolName: toolName, Content: content}
}

// IsEmpty reports whether the turn has neither content, reasoning nor tool calls.
func (t Turn) IsEmpty() bool {
	return t.Content == "" && t.Reasoning == "" && len(t.ToolCalls) == 0
}

// Validate checks the role-scoped field rules: reasoning and tool calls only on
// assistant turns, a tool name only on tool turns, and a non-empty body.
// Tool calls are kept as the backend sent them, so a call may lack a name.
func (t Turn) Validate() error {
	err := validation.ValidateStruct(&t,
		validation.Field(&t.Role,
			validation.Required,
			validation.In(RoleSystem, RoleUser, RoleAssistant, RoleTool),
		),
		validation.Field(&t.Reasoning, validation.When(t.Role != RoleAssistant, validation.Empty)),
		validation.Field(&t.ToolCalls,
			validation.When(t.Role != RoleAssistant, validation.Empty),
		),
		validation.Field(&t.ToolName, validation.When(t.Role != RoleTool, validation.Empty)),
	)
	if err != nil {
		return errors.Wrapf(err, "invalid %s turn", t.Role)
	}
	if t.IsEmpty() {
		return errors.Wrapf(ErrEmptyTurn, "invalid %s turn", t.Role)
	}
	return nil
}
