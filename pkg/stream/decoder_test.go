package stream

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/marionette/pkg/conversation"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func plainStyle() lipgloss.Style {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.Ascii)
	return r.NewStyle().Background(lipgloss.Color("1"))
}

func TestDecode_ContentOnly(t *testing.T) {
	var buf bytes.Buffer
	s := NewSliceStream(
		Fragment{Content: "Hel"},
		Fragment{Content: "lo, "},
		Fragment{Content: "world"},
	)

	res, err := NewDecoder(&buf).Decode(s, plainStyle())
	require.NoError(t, err)
	require.Equal(t, "Hello, world", res.Content)
	require.Empty(t, res.Reasoning)
	require.Empty(t, res.ToolCalls)
	require.Equal(t, "Hello, world", buf.String())
	require.True(t, s.Closed())
}

func TestDecode_ReasoningThenContentHeaders(t *testing.T) {
	var buf bytes.Buffer
	s := NewSliceStream(
		Fragment{Reasoning: "let me "},
		Fragment{Reasoning: "think"},
		Fragment{Content: "done"},
		Fragment{Content: "!"},
	)

	res, err := NewDecoder(&buf).Decode(s, plainStyle())
	require.NoError(t, err)
	require.Equal(t, "let me think", res.Reasoning)
	require.Equal(t, "done!", res.Content)

	out := buf.String()
	require.Equal(t, 1, strings.Count(out, "Thinking:"))
	require.Equal(t, 1, strings.Count(out, "Answer:"))
	require.Less(t, strings.Index(out, "Thinking:"), strings.Index(out, "let me"))
	require.Less(t, strings.Index(out, "Answer:"), strings.Index(out, "done"))
	require.Equal(t, "Thinking:\nlet me think\n\nAnswer:\ndone!", out)
}

func TestDecode_NoAnswerHeaderWithoutReasoning(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewDecoder(&buf).Decode(NewSliceStream(Fragment{Content: "plain"}), plainStyle())
	require.NoError(t, err)
	require.NotContains(t, buf.String(), "Answer:")
	require.NotContains(t, buf.String(), "Thinking:")
}

func TestDecode_ToolCallsKeepArrivalOrder(t *testing.T) {
	var buf bytes.Buffer
	s := NewSliceStream(
		Fragment{ToolCalls: []conversation.ToolCall{{Name: "a", Arguments: json.RawMessage(`{"x":1}`)}}},
		Fragment{ToolCalls: []conversation.ToolCall{{Name: "b"}, {Name: "c"}}},
	)

	res, err := NewDecoder(&buf).Decode(s, plainStyle())
	require.NoError(t, err)
	require.Len(t, res.ToolCalls, 3)
	require.Equal(t, "a", res.ToolCalls[0].Name)
	require.Equal(t, "b", res.ToolCalls[1].Name)
	require.Equal(t, "c", res.ToolCalls[2].Name)
	require.Equal(t, "a({\"x\":1})\nb({})\nc({})\n", buf.String())
}

func TestDecode_SkipsEmptyFragments(t *testing.T) {
	var buf bytes.Buffer
	res, err := NewDecoder(&buf).Decode(NewSliceStream(Fragment{}, Fragment{Content: "x"}, Fragment{}), plainStyle())
	require.NoError(t, err)
	require.Equal(t, "x", res.Content)
}

func TestDecode_MalformedFragment(t *testing.T) {
	var buf bytes.Buffer
	s := NewSliceStream(Fragment{Reasoning: "r", Content: "c"})
	_, err := NewDecoder(&buf).Decode(s, plainStyle())
	require.ErrorIs(t, err, ErrMalformedFragment)
	require.True(t, s.Closed())
}

func TestDecode_PropagatesStreamError(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("connection reset")
	s := NewSliceStream(Fragment{Content: "partial"}).WithError(boom)
	_, err := NewDecoder(&buf).Decode(s, plainStyle())
	require.ErrorIs(t, err, boom)
	require.Equal(t, "partial", buf.String())
}

func TestDecode_EmptyStream(t *testing.T) {
	var buf bytes.Buffer
	res, err := NewDecoder(&buf).Decode(NewSliceStream(), plainStyle())
	require.NoError(t, err)
	require.True(t, res.Empty())
	require.Empty(t, buf.String())
}

func TestDecode_ColorWrapsEachLine(t *testing.T) {
	var buf bytes.Buffer
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.ANSI)
	style := r.NewStyle().Background(lipgloss.Color("1"))

	res, err := NewDecoder(&buf).Decode(NewSliceStream(Fragment{Content: "one\ntwo"}), style)
	require.NoError(t, err)
	require.Equal(t, "one\ntwo", res.Content)

	lines := strings.Split(buf.String(), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		require.True(t, strings.HasPrefix(line, "\x1b["), "line %q", line)
		require.True(t, strings.HasSuffix(line, "\x1b[0m"), "line %q", line)
	}
}

func TestDecode_EchoKeepsTabsAndSpacing(t *testing.T) {
	var buf bytes.Buffer
	code := "def f():\n\treturn 1  "
	res, err := NewDecoder(&buf).Decode(NewSliceStream(Fragment{Content: code}), plainStyle())
	require.NoError(t, err)
	require.Equal(t, code, res.Content)
	require.Equal(t, code, buf.String())
}
