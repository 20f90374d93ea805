package tokens

import (
	"github.com/go-go-golems/marionette/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/weaviate/tiktoken-go"
)

const DefaultEncoding = "cl100k_base"

// Counter estimates how many tokens a context costs. cl100k is not the tokenizer of
// every backend model, so the numbers are an approximation used for logging.
type Counter struct {
	enc *tiktoken.Tiktoken
}

func NewCounter(encoding string) (*Counter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s encoding", encoding)
	}
	return &Counter{enc: enc}, nil
}

func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// CountTurns sums the tokens of every text field of the given turns.
func (c *Counter) CountTurns(turns []conversation.Turn) int {
	n := 0
	for _, t := range turns {
		n += c.Count(t.Content)
		n += c.Count(t.Reasoning)
		for _, call := range t.ToolCalls {
			n += c.Count(call.Name)
			n += c.Count(string(call.Arguments))
		}
	}
	return n
}
