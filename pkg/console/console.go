package console

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	input "github.com/tcnksm/go-input"
)

const (
	AutoModeQuery = "Use autonomous mode? [Y/n]"
	MessageQuery  = "Enter a message or 'q' to quit"
	AckQuery      = "Press Enter to run the supervisor"
)

// ErrInputClosed is returned once the operator's input stream is exhausted.
var ErrInputClosed = errors.New("operator input closed")

// Console is the operator side of a run.
type Console interface {
	// AskAutoMode asks once at startup whether to run autonomously.
	AskAutoMode() (bool, error)
	// AskMessage reads the operator's next message, untrimmed.
	AskMessage() (string, error)
	// WaitForAck blocks until the operator acknowledges; the answer is discarded.
	WaitForAck() error
}

// ParseAutoMode answers yes on empty input or anything starting with y/Y.
func ParseAutoMode(answer string) bool {
	a := strings.TrimSpace(answer)
	return a == "" || a[0] == 'y' || a[0] == 'Y'
}

// Terminal is a Console reading line-prompted answers through go-input.
type Terminal struct {
	ui *input.UI
	in *eofReader
}

var _ Console = (*Terminal)(nil)

func NewTerminal(r io.Reader, w io.Writer) *Terminal {
	in := &eofReader{r: r}
	return &Terminal{
		ui: &input.UI{
			Writer: w,
			Reader: in,
		},
		in: in,
	}
}

func (t *Terminal) AskAutoMode() (bool, error) {
	answer, err := t.ask(AutoModeQuery, &input.Options{
		Default:     "y",
		HideDefault: true,
		HideOrder:   true,
	})
	if err != nil {
		return false, err
	}
	return ParseAutoMode(answer), nil
}

func (t *Terminal) AskMessage() (string, error) {
	_, _ = io.WriteString(t.ui.Writer, "\n\n")
	return t.ask(MessageQuery, &input.Options{HideOrder: true})
}

func (t *Terminal) WaitForAck() error {
	_, err := t.ask(AckQuery, &input.Options{HideOrder: true})
	return err
}

func (t *Terminal) ask(query string, opts *input.Options) (string, error) {
	answer, err := t.ui.Ask(query, opts)
	if err != nil {
		if errors.Is(err, input.ErrInterrupted) {
			return "", errors.Wrap(err, "operator interrupted")
		}
		if t.in.eof {
			return "", ErrInputClosed
		}
		return "", errors.Wrapf(err, "asking %q", query)
	}
	// go-input hides EOF, so an empty answer after the reader drained means
	// there is nobody left to answer.
	if answer == "" && t.in.eof {
		return "", ErrInputClosed
	}
	return answer, nil
}

type eofReader struct {
	r   io.Reader
	eof bool
}

func (e *eofReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err == io.EOF {
		e.eof = true
	}
	return n, err
}
