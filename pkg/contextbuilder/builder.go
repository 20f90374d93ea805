// Package contextbuilder turns the conversation log into the message lists sent to
// the backend: the full history for the agent, a compact two-turn digest for the
// supervisor.
package contextbuilder

import (
	"fmt"
	"strings"

	"github.com/go-go-golems/marionette/pkg/conversation"
	"github.com/go-go-golems/marionette/pkg/prompts"
)

const (
	noTaskPlaceholder       = "(no extra task description provided)"
	emptyMessagePlaceholder = "(empty message)"

	labelTask       = "High-level task for the agent:\n"
	labelLastUser   = "\n\nLatest user message the agent responded to:\n"
	labelReasoning  = "\n\nAgent internal thinking (may be partial):\n"
	labelAnswer     = "\n\nAgent final answer to critique:\n"
	closingSentence = "\n\nNow perform your supervisor role from the system prompt: " +
		"judge the LAST answer only, point out concrete issues, and give numbered " +
		"actionable suggestions for the agent's next step."
)

// Builder holds the prompts and run mode, both fixed for the lifetime of a run.
type Builder struct {
	prompts    prompts.Provider
	autonomous bool
}

func New(p prompts.Provider, autonomous bool) *Builder {
	return &Builder{prompts: p, autonomous: autonomous}
}

// AgentSystemPrompt is the system prompt synthesized for the agent's first call.
func (b *Builder) AgentSystemPrompt() string {
	full := prompts.FullPrompt(b.prompts)
	if !b.autonomous {
		return full
	}
	extra := strings.TrimSpace(b.prompts.AutonomousPrompt())
	if extra == "" {
		return full
	}
	return strings.TrimRight(full, "\n") + "\n\n" + extra
}

// ForAgent returns the agent context. An empty log yields the synthesized system
// turn alone; otherwise the log is replayed verbatim.
func (b *Builder) ForAgent(log *conversation.Log) []conversation.Turn {
	if log.Len() == 0 {
		return []conversation.Turn{conversation.NewSystemTurn(b.AgentSystemPrompt())}
	}
	return log.Turns()
}

// ForSupervisor returns exactly two turns: the supervisor system prompt and a user
// turn summarizing the latest exchange of the given iteration.
func (b *Builder) ForSupervisor(log *conversation.Log, iteration int) []conversation.Turn {
	return []conversation.Turn{
		conversation.NewSystemTurn(b.prompts.SupervisorPrompt()),
		conversation.NewUserTurn(b.supervisorDigest(log, iteration)),
	}
}

func (b *Builder) supervisorDigest(log *conversation.Log, iteration int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are evaluating iteration %d of an autonomous agent that is %s.\n",
		iteration, strings.TrimSpace(b.prompts.Domain()))

	sb.WriteString(labelTask)
	task := strings.TrimSpace(prompts.FullPrompt(b.prompts))
	if task == "" {
		task = noTaskPlaceholder
	}
	sb.WriteString(task)

	if user, ok := log.LastWithRole(conversation.RoleUser); ok {
		sb.WriteString(labelLastUser)
		if user.Content != "" {
			sb.WriteString(user.Content)
		} else {
			sb.WriteString(emptyMessagePlaceholder)
		}
	}

	if assistant, ok := log.LastWithRole(conversation.RoleAssistant); ok {
		if assistant.Reasoning != "" {
			sb.WriteString(labelReasoning)
			sb.WriteString(assistant.Reasoning)
		}
		if assistant.Content != "" {
			sb.WriteString(labelAnswer)
			sb.WriteString(assistant.Content)
		}
	}

	sb.WriteString(closingSentence)
	return sb.String()
}
