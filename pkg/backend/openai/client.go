// Package openai streams chat completions from any OpenAI-compatible endpoint.
// Reasoning arrives as reasoning_content deltas on servers that expose it.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-go-golems/marionette/pkg/backend"
	"github.com/go-go-golems/marionette/pkg/conversation"
	"github.com/go-go-golems/marionette/pkg/stream"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	goopenai "github.com/sashabaranov/go-openai"
)

const DefaultBaseURL = "https://api.openai.com/v1"

type Client struct {
	client          *goopenai.Client
	reasoningEffort string
}

var _ backend.Backend = (*Client)(nil)

type Option func(*Client)

// WithReasoningEffort sends reasoning_effort on calls that ask for reasoning.
// Servers that stream reasoning_content on their own need no effort, and
// models without reasoning reject the field, so it is off by default.
func WithReasoningEffort(effort string) Option {
	return func(c *Client) {
		c.reasoningEffort = strings.TrimSpace(effort)
	}
}

func New(baseURL string, apiKey string, opts ...Option) *Client {
	cfg := goopenai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
	c := &Client{client: goopenai.NewClientWithConfig(cfg)}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Invoke(ctx context.Context, req backend.Request) (stream.Stream, error) {
	r := goopenai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: toWire(req.Turns),
		Stream:   true,
	}
	if req.Think && c.reasoningEffort != "" {
		r.ReasoningEffort = c.reasoningEffort
	}
	log.Debug().Str("model", req.Model).Int("messages", len(req.Turns)).Msg("openai chat completion request")

	s, err := c.client.CreateChatCompletionStream(ctx, r)
	if err != nil {
		return nil, errors.Wrap(err, "openai chat completion stream")
	}
	return &completionStream{inner: s, calls: map[int]*pendingCall{}}, nil
}

// toWire maps turns to chat messages. Tool results are paired with the calls of
// the preceding assistant turn in order, minting ids for calls that have none.
func toWire(turns []conversation.Turn) []goopenai.ChatCompletionMessage {
	ret := make([]goopenai.ChatCompletionMessage, 0, len(turns))
	var openIDs []string
	for i, t := range turns {
		m := goopenai.ChatCompletionMessage{
			Role:    string(t.Role),
			Content: t.Content,
		}
		switch t.Role {
		case conversation.RoleAssistant:
			openIDs = openIDs[:0]
			for j, c := range t.ToolCalls {
				id := c.ID
				if id == "" {
					id = fmt.Sprintf("call_%d_%d", i, j)
				}
				openIDs = append(openIDs, id)
				args := strings.TrimSpace(string(c.Arguments))
				if args == "" {
					args = "{}"
				}
				m.ToolCalls = append(m.ToolCalls, goopenai.ToolCall{
					ID:   id,
					Type: goopenai.ToolTypeFunction,
					Function: goopenai.FunctionCall{
						Name:      c.Name,
						Arguments: args,
					},
				})
			}
		case conversation.RoleTool:
			if len(openIDs) > 0 {
				m.ToolCallID = openIDs[0]
				openIDs = openIDs[1:]
			}
			m.Name = t.ToolName
		}
		ret = append(ret, m)
	}
	return ret
}

type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

type completionStream struct {
	inner   *goopenai.ChatCompletionStream
	pending []stream.Fragment
	calls   map[int]*pendingCall
	done    bool
}

func (s *completionStream) Recv() (stream.Fragment, error) {
	for {
		if len(s.pending) > 0 {
			f := s.pending[0]
			s.pending = s.pending[1:]
			return f, nil
		}
		if s.done {
			return stream.Fragment{}, io.EOF
		}

		resp, err := s.inner.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			s.flushCalls()
			continue
		}
		if err != nil {
			return stream.Fragment{}, errors.Wrap(err, "reading openai stream")
		}
		if len(resp.Choices) == 0 {
			continue
		}

		choice := resp.Choices[0]
		delta := choice.Delta
		if delta.ReasoningContent != "" {
			s.pending = append(s.pending, stream.Fragment{Reasoning: delta.ReasoningContent})
		}
		if delta.Content != "" {
			s.pending = append(s.pending, stream.Fragment{Content: delta.Content})
		}
		for pos, tc := range delta.ToolCalls {
			idx := pos
			if tc.Index != nil {
				idx = *tc.Index
			}
			pc, ok := s.calls[idx]
			if !ok {
				pc = &pendingCall{}
				s.calls[idx] = pc
			}
			if tc.ID != "" {
				pc.id = tc.ID
			}
			if tc.Function.Name != "" {
				pc.name = tc.Function.Name
			}
			pc.args.WriteString(tc.Function.Arguments)
		}
		if choice.FinishReason != "" {
			s.flushCalls()
		}
	}
}

// flushCalls releases the assembled tool calls as a single batch.
func (s *completionStream) flushCalls() {
	if len(s.calls) == 0 {
		return
	}
	indices := make([]int, 0, len(s.calls))
	for idx := range s.calls {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	calls := make([]conversation.ToolCall, 0, len(indices))
	for _, idx := range indices {
		pc := s.calls[idx]
		calls = append(calls, conversation.ToolCall{
			ID:        pc.id,
			Name:      pc.name,
			Arguments: rawArguments(pc.args.String()),
		})
	}
	s.calls = map[int]*pendingCall{}
	s.pending = append(s.pending, stream.Fragment{ToolCalls: calls})
}

// rawArguments keeps valid JSON as-is and quotes anything else.
func rawArguments(args string) json.RawMessage {
	args = strings.TrimSpace(args)
	if args == "" {
		return nil
	}
	if json.Valid([]byte(args)) {
		return json.RawMessage(args)
	}
	quoted, _ := json.Marshal(args)
	return quoted
}

func (s *completionStream) Close() error {
	s.inner.Close()
	return nil
}
