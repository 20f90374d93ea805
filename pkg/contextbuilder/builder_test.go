package contextbuilder

import (
	"fmt"
	"strings"
	"testing"

	"github.com/go-go-golems/marionette/pkg/conversation"
	"github.com/go-go-golems/marionette/pkg/prompts"
	"github.com/stretchr/testify/require"
)

var testPrompts = prompts.Static{
	Main:       "Build a bot.",
	Task:       "Use Go.",
	Supervisor: "You supervise.",
	Autonomous: "Nobody is watching.",
	DomainText: "building a bot",
}

func logOfLength(t *testing.T, n int) *conversation.Log {
	t.Helper()
	l := conversation.NewLog()
	if n == 0 {
		return l
	}
	require.NoError(t, l.Append(conversation.NewSystemTurn("sys")))
	for i := 1; i < n; i++ {
		var turn conversation.Turn
		if i%2 == 1 {
			turn = conversation.Turn{Role: conversation.RoleAssistant, Content: fmt.Sprintf("answer %d", i), Reasoning: fmt.Sprintf("thought %d", i)}
		} else {
			turn = conversation.NewUserTurn(fmt.Sprintf("feedback %d", i))
		}
		require.NoError(t, l.Append(turn))
	}
	return l
}

func TestForAgent_EmptyLogSynthesizesSystemTurn(t *testing.T) {
	b := New(testPrompts, false)
	turns := b.ForAgent(conversation.NewLog())
	require.Len(t, turns, 1)
	require.Equal(t, conversation.RoleSystem, turns[0].Role)
	require.Equal(t, "Build a bot.\n\nUse Go.", turns[0].Content)
}

func TestForAgent_AutonomousPromptDiffers(t *testing.T) {
	interactive := New(testPrompts, false).ForAgent(conversation.NewLog())
	autonomous := New(testPrompts, true).ForAgent(conversation.NewLog())
	require.NotEqual(t, interactive[0].Content, autonomous[0].Content)
	require.True(t, strings.HasPrefix(autonomous[0].Content, "Build a bot.\n\nUse Go."))
	require.True(t, strings.HasSuffix(autonomous[0].Content, "Nobody is watching."))
}

func TestForAgent_ReplaysLogVerbatim(t *testing.T) {
	l := logOfLength(t, 4)
	turns := New(testPrompts, false).ForAgent(l)
	require.Equal(t, l.Turns(), turns)
}

func TestForSupervisor_AlwaysTwoTurns(t *testing.T) {
	b := New(testPrompts, true)
	for _, n := range []int{0, 1, 4, 20} {
		t.Run(fmt.Sprintf("len=%d", n), func(t *testing.T) {
			turns := b.ForSupervisor(logOfLength(t, n), 3)
			require.Len(t, turns, 2)
			require.Equal(t, conversation.RoleSystem, turns[0].Role)
			require.Equal(t, "You supervise.", turns[0].Content)
			require.Equal(t, conversation.RoleUser, turns[1].Role)
		})
	}
}

func TestForSupervisor_OmitsMissingExcerpts(t *testing.T) {
	b := New(testPrompts, true)
	turns := b.ForSupervisor(logOfLength(t, 1), 0)
	digest := turns[1].Content

	require.True(t, strings.HasPrefix(digest, "You are evaluating iteration 0 of an autonomous agent that is building a bot.\n"))
	require.Contains(t, digest, "High-level task for the agent:\nBuild a bot.\n\nUse Go.")
	require.NotContains(t, digest, "Latest user message")
	require.NotContains(t, digest, "Agent internal thinking")
	require.NotContains(t, digest, "Agent final answer")
	require.True(t, strings.HasSuffix(digest, "actionable suggestions for the agent's next step."))
}

func TestForSupervisor_IncludesLatestExchangeInOrder(t *testing.T) {
	l := conversation.NewLog()
	require.NoError(t, l.Append(conversation.NewSystemTurn("sys")))
	require.NoError(t, l.Append(conversation.Turn{Role: conversation.RoleAssistant, Content: "old answer"}))
	require.NoError(t, l.Append(conversation.NewUserTurn("please add tests")))
	require.NoError(t, l.Append(conversation.Turn{Role: conversation.RoleAssistant, Reasoning: "hmm", Content: "added tests"}))

	digest := New(testPrompts, true).ForSupervisor(l, 2)[1].Content

	require.NotContains(t, digest, "old answer")
	iUser := strings.Index(digest, "Latest user message the agent responded to:\nplease add tests")
	iThinking := strings.Index(digest, "Agent internal thinking (may be partial):\nhmm")
	iAnswer := strings.Index(digest, "Agent final answer to critique:\nadded tests")
	iClosing := strings.Index(digest, "Now perform your supervisor role")
	require.Greater(t, iUser, 0)
	require.Greater(t, iThinking, iUser)
	require.Greater(t, iAnswer, iThinking)
	require.Greater(t, iClosing, iAnswer)
}

func TestForSupervisor_SkipsEmptyReasoningAndContent(t *testing.T) {
	l := conversation.NewLog()
	require.NoError(t, l.Append(conversation.Turn{
		Role:      conversation.RoleAssistant,
		ToolCalls: []conversation.ToolCall{{Name: "lookup"}},
	}))

	digest := New(testPrompts, true).ForSupervisor(l, 1)[1].Content
	require.NotContains(t, digest, "Agent internal thinking")
	require.NotContains(t, digest, "Agent final answer")
}

func TestForSupervisor_TaskPlaceholder(t *testing.T) {
	b := New(prompts.Static{Supervisor: "s", DomainText: "doing things"}, true)
	digest := b.ForSupervisor(conversation.NewLog(), 0)[1].Content
	require.Contains(t, digest, "High-level task for the agent:\n(no extra task description provided)")
}

func TestForSupervisor_DoesNotTouchLog(t *testing.T) {
	l := logOfLength(t, 4)
	before := l.Turns()
	New(testPrompts, true).ForSupervisor(l, 1)
	require.Equal(t, before, l.Turns())
}
