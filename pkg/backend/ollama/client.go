// Package ollama talks to a local Ollama server through its native /api/chat
// endpoint, which streams newline-delimited JSON chunks.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-go-golems/marionette/pkg/backend"
	"github.com/go-go-golems/marionette/pkg/conversation"
	"github.com/go-go-golems/marionette/pkg/stream"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL = "http://127.0.0.1:11434"
	maxLineSize    = 4 * 1024 * 1024
	maxErrorBody   = 2048
)

type Client struct {
	baseURL string
	http    *http.Client
}

var _ backend.Backend = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

func New(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		// no timeout: a stream is read until the model is done
		http: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
	Think    bool      `json:"think,omitempty"`
}

type message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Thinking  string     `json:"thinking,omitempty"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
	ToolName  string     `json:"tool_name,omitempty"`
}

type toolCall struct {
	Function toolCallFunction `json:"function"`
}

type toolCallFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type chatChunk struct {
	Model   string  `json:"model"`
	Message message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

func toWire(turns []conversation.Turn) []message {
	ret := make([]message, 0, len(turns))
	for _, t := range turns {
		m := message{
			Role:     string(t.Role),
			Content:  t.Content,
			Thinking: t.Reasoning,
			ToolName: t.ToolName,
		}
		for _, c := range t.ToolCalls {
			args := c.Arguments
			if len(bytes.TrimSpace(args)) == 0 {
				args = json.RawMessage(`{}`)
			}
			m.ToolCalls = append(m.ToolCalls, toolCall{Function: toolCallFunction{Name: c.Name, Arguments: args}})
		}
		ret = append(ret, m)
	}
	return ret
}

func (c *Client) Invoke(ctx context.Context, req backend.Request) (stream.Stream, error) {
	body, err := json.Marshal(chatRequest{
		Model:    req.Model,
		Messages: toWire(req.Turns),
		Stream:   true,
		Think:    req.Think,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encoding ollama request")
	}

	endpoint := c.baseURL + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "building ollama request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	log.Debug().Str("endpoint", endpoint).Str("model", req.Model).Int("messages", len(req.Turns)).Msg("ollama chat request")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(err, "ollama request failed on %s", endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, errors.Errorf("ollama http %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &chunkStream{body: resp.Body, scanner: scanner}, nil
}

// chunkStream turns NDJSON chunks into fragments. A chunk carrying several kinds
// of payload is split so every fragment holds exactly one.
type chunkStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	pending []stream.Fragment
	done    bool
}

func (s *chunkStream) Recv() (stream.Fragment, error) {
	for {
		if len(s.pending) > 0 {
			f := s.pending[0]
			s.pending = s.pending[1:]
			return f, nil
		}
		if s.done {
			return stream.Fragment{}, io.EOF
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return stream.Fragment{}, errors.Wrap(err, "reading ollama stream")
			}
			return stream.Fragment{}, errors.Wrap(io.ErrUnexpectedEOF, "ollama stream ended before done")
		}
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk chatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return stream.Fragment{}, errors.Wrap(err, "decoding ollama chunk")
		}
		if chunk.Error != "" {
			return stream.Fragment{}, errors.Errorf("ollama: %s", chunk.Error)
		}
		s.pending = append(s.pending, fragmentsFromMessage(chunk.Message)...)
		s.done = chunk.Done
	}
}

func (s *chunkStream) Close() error {
	return s.body.Close()
}

func fragmentsFromMessage(m message) []stream.Fragment {
	var ret []stream.Fragment
	if m.Thinking != "" {
		ret = append(ret, stream.Fragment{Reasoning: m.Thinking})
	}
	if m.Content != "" {
		ret = append(ret, stream.Fragment{Content: m.Content})
	}
	if len(m.ToolCalls) > 0 {
		calls := make([]conversation.ToolCall, 0, len(m.ToolCalls))
		for _, c := range m.ToolCalls {
			calls = append(calls, conversation.ToolCall{Name: c.Function.Name, Arguments: c.Function.Arguments})
		}
		ret = append(ret, stream.Fragment{ToolCalls: calls})
	}
	return ret
}
