package stream

import (
	"io"

	"github.com/go-go-golems/marionette/pkg/conversation"
	"github.com/pkg/errors"
)

// ErrMalformedFragment is returned when a fragment carries more than one kind of payload.
var ErrMalformedFragment = errors.New("malformed fragment")

// Fragment is one incremental piece of a streamed response. Backends set at most
// one of the fields; a fragment with nothing set is skipped.
type Fragment struct {
	Reasoning string
	Content   string
	ToolCalls []conversation.ToolCall
}

func (f Fragment) kinds() int {
	n := 0
	if f.Reasoning != "" {
		n++
	}
	if f.Content != "" {
		n++
	}
	if len(f.ToolCalls) > 0 {
		n++
	}
	return n
}

// Stream is a lazily consumed sequence of fragments. Recv returns io.EOF once the
// backend signals the end of the response.
type Stream interface {
	Recv() (Fragment, error)
	Close() error
}

// Result is what a decoded response boils down to.
type Result struct {
	Reasoning string
	Content   string
	ToolCalls []conversation.ToolCall
}

func (r Result) Empty() bool {
	return r.Reasoning == "" && r.Content == "" && len(r.ToolCalls) == 0
}

// SliceStream replays a fixed list of fragments, optionally failing at the end.
type SliceStream struct {
	fragments []Fragment
	err       error
	pos       int
	closed    bool
}

var _ Stream = (*SliceStream)(nil)

func NewSliceStream(fragments ...Fragment) *SliceStream {
	return &SliceStream{fragments: fragments}
}

// WithError makes the stream return err instead of io.EOF after the last fragment.
func (s *SliceStream) WithError(err error) *SliceStream {
	s.err = err
	return s
}

func (s *SliceStream) Recv() (Fragment, error) {
	if s.closed {
		return Fragment{}, errors.New("stream closed")
	}
	if s.pos >= len(s.fragments) {
		if s.err != nil {
			return Fragment{}, s.err
		}
		return Fragment{}, io.EOF
	}
	f := s.fragments[s.pos]
	s.pos++
	return f, nil
}

func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}

func (s *SliceStream) Closed() bool {
	return s.closed
}
