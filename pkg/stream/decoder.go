package stream

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/marionette/pkg/conversation"
	"github.com/pkg/errors"
)

const (
	ThinkingHeader = "Thinking:\n"
	AnswerHeader   = "\n\nAnswer:\n"
)

// Decoder folds a fragment stream into a Result while echoing every delta to w.
type Decoder struct {
	w io.Writer
}

func NewDecoder(w io.Writer) *Decoder {
	return &Decoder{w: w}
}

// Decode reads s until io.EOF. Reasoning and content deltas are written as they
// arrive, wrapped in color, with a "Thinking:" header when reasoning starts and an
// "Answer:" header when content follows reasoning. The stream is closed on return.
func (d *Decoder) Decode(s Stream, color lipgloss.Style) (ret Result, err error) {
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "closing stream")
		}
	}()

	var reasoning, content strings.Builder
	var toolCalls []conversation.ToolCall
	inReasoning := false

	for {
		f, rerr := s.Recv()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return Result{}, errors.Wrap(rerr, "receiving fragment")
		}
		if f.kinds() > 1 {
			return Result{}, errors.Wrapf(ErrMalformedFragment, "fragment carries %d payload kinds", f.kinds())
		}

		switch {
		case f.Reasoning != "":
			if !inReasoning {
				inReasoning = true
				if err := d.write(ThinkingHeader); err != nil {
					return Result{}, err
				}
			}
			reasoning.WriteString(f.Reasoning)
			if err := d.writeStyled(f.Reasoning, color); err != nil {
				return Result{}, err
			}
		case f.Content != "":
			if inReasoning {
				inReasoning = false
				if err := d.write(AnswerHeader); err != nil {
					return Result{}, err
				}
			}
			content.WriteString(f.Content)
			if err := d.writeStyled(f.Content, color); err != nil {
				return Result{}, err
			}
		case len(f.ToolCalls) > 0:
			toolCalls = append(toolCalls, f.ToolCalls...)
			if err := d.writeStyled(FormatToolCalls(f.ToolCalls), color); err != nil {
				return Result{}, err
			}
			if err := d.write("\n"); err != nil {
				return Result{}, err
			}
		}
	}

	return Result{
		Reasoning: reasoning.String(),
		Content:   content.String(),
		ToolCalls: toolCalls,
	}, nil
}

func (d *Decoder) write(s string) error {
	if _, err := io.WriteString(d.w, s); err != nil {
		return errors.Wrap(err, "writing stream output")
	}
	return nil
}

// writeStyled renders each line separately so a background colour never spills
// over line breaks. Tabs are written as they arrived.
func (d *Decoder) writeStyled(text string, style lipgloss.Style) error {
	style = style.TabWidth(lipgloss.NoTabConversion)
	var b strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteByte('\n')
		}
		if line != "" {
			b.WriteString(style.Render(line))
		}
	}
	return d.write(b.String())
}

// FormatToolCalls renders a batch as one "name(arguments)" line per call.
func FormatToolCalls(calls []conversation.ToolCall) string {
	lines := make([]string, 0, len(calls))
	for _, c := range calls {
		args := strings.TrimSpace(string(c.Arguments))
		if args == "" {
			args = "{}"
		}
		lines = append(lines, fmt.Sprintf("%s(%s)", c.Name, args))
	}
	return strings.Join(lines, "\n")
}
