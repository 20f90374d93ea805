package chatrunner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/marionette/pkg/backend"
	"github.com/go-go-golems/marionette/pkg/console"
	"github.com/go-go-golems/marionette/pkg/contextbuilder"
	"github.com/go-go-golems/marionette/pkg/conversation"
	"github.com/go-go-golems/marionette/pkg/prompts"
	"github.com/go-go-golems/marionette/pkg/stream"
	"github.com/go-go-golems/marionette/pkg/tokens"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	input "github.com/tcnksm/go-input"
)

// RunMode defines who answers the agent between iterations.
type RunMode string

const (
	// RunModeAsk lets the operator pick the mode at startup.
	RunModeAsk         RunMode = ""
	RunModeAutonomous  RunMode = "autonomous"
	RunModeInteractive RunMode = "interactive"
)

// State is the phase the session is in.
type State int

const (
	StateAwaitingAgent State = iota
	StateAwaitingSupervisor
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingAgent:
		return "awaiting-agent"
	case StateAwaitingSupervisor:
		return "awaiting-supervisor"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	// FallbackMessage stands in for an empty operator or supervisor message.
	FallbackMessage = "You are an autonomous agent. Please decide how to proceed and continue."
	// ToolResultContent answers every tool call; tools are never executed.
	ToolResultContent = "Not implemented."
)

var (
	ErrMissingBackend = errors.New("backend is required (use WithBackend)")
	ErrMissingPrompts = errors.New("prompts are required (use WithPrompts)")
	ErrMissingConsole = errors.New("console is required (use WithConsole)")
	ErrMissingModel   = errors.New("agent model is required (use WithModels)")
	ErrSessionDone    = errors.New("session is done")
)

// MarkdownRenderer renders an agent answer for the recap printed after it streamed.
type MarkdownRenderer interface {
	Render(in string) (string, error)
}

// Styles colours the live output. Agent and supervisor streams use distinct styles.
type Styles struct {
	Agent      lipgloss.Style
	Supervisor lipgloss.Style
	Banner     lipgloss.Style
}

func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Agent:      r.NewStyle().Background(lipgloss.Color("1")),
		Supervisor: r.NewStyle().Background(lipgloss.Color("4")),
		Banner:     r.NewStyle().Background(lipgloss.Color("2")),
	}
}

// IsQuit reports whether trimmed operator input ends the run. Only the first
// character counts, so "queue the order" quits too.
func IsQuit(text string) bool {
	return text != "" && (text[0] == 'q' || text[0] == 'Q')
}

// AppendResult materializes a decoded response: one assistant turn holding the
// non-empty parts, then one tool turn per call in call order. An empty result
// appends nothing.
func AppendResult(l *conversation.Log, res stream.Result) error {
	if res.Empty() {
		return nil
	}
	err := l.Append(conversation.Turn{
		Role:      conversation.RoleAssistant,
		Content:   res.Content,
		Reasoning: res.Reasoning,
		ToolCalls: res.ToolCalls,
	})
	if err != nil {
		return errors.Wrap(err, "appending assistant turn")
	}
	for _, call := range res.ToolCalls {
		if err := l.Append(conversation.NewToolResultTurn(call.Name, ToolResultContent)); err != nil {
			return errors.Wrapf(err, "appending result of tool %s", call.Name)
		}
	}
	return nil
}

// ChatSession holds the validated configuration and the conversation of one run.
// It's typically created by the ChatBuilder.
type ChatSession struct {
	backend         backend.Backend
	prompts         prompts.Provider
	console         console.Console
	mode            RunMode
	outputWriter    io.Writer
	decoder         *stream.Decoder
	styles          Styles
	agentModel      string
	supervisorModel string
	think           bool
	counter         *tokens.Counter
	markdown        MarkdownRenderer

	contexts  *contextbuilder.Builder
	log       *conversation.Log
	state     State
	iteration int
	runID     string
	logger    zerolog.Logger
}

func (cs *ChatSession) Log() *conversation.Log { return cs.log }
func (cs *ChatSession) State() State           { return cs.state }
func (cs *ChatSession) Iteration() int         { return cs.iteration }
func (cs *ChatSession) Mode() RunMode          { return cs.mode }
func (cs *ChatSession) RunID() string          { return cs.runID }

// Run loops Step until the operator quits. Cancellation, an interrupted prompt
// or closed operator input end the run without error.
func (cs *ChatSession) Run(ctx context.Context) error {
	cs.logger.Info().Str("agent_model", cs.agentModel).Str("supervisor_model", cs.supervisorModel).Msg("Starting run")
	for cs.state != StateDone {
		if err := cs.Step(ctx); err != nil {
			if isCleanExit(ctx, err) {
				cs.logger.Info().Err(err).Int("iteration", cs.iteration).Msg("Run stopped")
				return nil
			}
			return err
		}
	}
	cs.logger.Info().Int("iteration", cs.iteration).Int("turns", cs.log.Len()).Msg("Run finished")
	return nil
}

func isCleanExit(ctx context.Context, err error) bool {
	switch {
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return true
	case errors.Is(err, input.ErrInterrupted):
		return true
	case errors.Is(err, console.ErrInputClosed):
		return true
	default:
		return false
	}
}

// Step runs one iteration: the agent call, then either the supervisor call or
// the operator's message.
func (cs *ChatSession) Step(ctx context.Context) error {
	if cs.state == StateDone {
		return ErrSessionDone
	}
	if err := cs.resolveMode(); err != nil {
		return err
	}

	if err := cs.printBanner(); err != nil {
		return err
	}

	if cs.log.Len() == 0 {
		if err := cs.log.Append(conversation.NewSystemTurn(cs.contexts.AgentSystemPrompt())); err != nil {
			return errors.Wrap(err, "appending system turn")
		}
	}

	res, err := cs.invoke(ctx, "agent", cs.agentModel, cs.contexts.ForAgent(cs.log), cs.styles.Agent)
	if err != nil {
		return err
	}
	if err := AppendResult(cs.log, res); err != nil {
		return err
	}
	if err := cs.printRecap(res.Content); err != nil {
		return err
	}

	if cs.mode == RunModeAutonomous {
		err = cs.supervise(ctx)
	} else {
		err = cs.askOperator()
	}
	if err != nil {
		return err
	}

	cs.iteration++
	if cs.state != StateDone {
		cs.state = StateAwaitingAgent
	}
	return nil
}

func (cs *ChatSession) resolveMode() error {
	if cs.contexts != nil {
		return nil
	}
	if cs.mode == RunModeAsk {
		auto, err := cs.console.AskAutoMode()
		if err != nil {
			return errors.Wrap(err, "asking for run mode")
		}
		cs.mode = RunModeInteractive
		if auto {
			cs.mode = RunModeAutonomous
		}
	}
	cs.contexts = contextbuilder.New(cs.prompts, cs.mode == RunModeAutonomous)
	cs.logger.Debug().Str("mode", string(cs.mode)).Msg("Run mode resolved")
	return nil
}

func (cs *ChatSession) supervise(ctx context.Context) error {
	cs.state = StateAwaitingSupervisor
	turns := cs.contexts.ForSupervisor(cs.log, cs.iteration)

	if err := cs.console.WaitForAck(); err != nil {
		return errors.Wrap(err, "waiting for operator")
	}

	res, err := cs.invoke(ctx, "supervisor", cs.supervisorModel, turns, cs.styles.Supervisor)
	if err != nil {
		return err
	}

	content := res.Content
	if content == "" {
		cs.logger.Warn().Int("iteration", cs.iteration).Msg("Supervisor returned no content, using fallback message")
		content = FallbackMessage
	}
	return errors.Wrap(cs.log.Append(conversation.NewUserTurn(content)), "appending supervisor feedback")
}

func (cs *ChatSession) askOperator() error {
	raw, err := cs.console.AskMessage()
	if err != nil {
		return errors.Wrap(err, "reading operator message")
	}
	text := strings.TrimSpace(raw)
	quit := IsQuit(text)
	if text == "" {
		text = FallbackMessage
	}
	if err := cs.log.Append(conversation.NewUserTurn(text)); err != nil {
		return errors.Wrap(err, "appending operator message")
	}
	if quit {
		cs.logger.Debug().Int("iteration", cs.iteration).Msg("Operator quit")
		cs.state = StateDone
	}
	return nil
}

// invoke checks for cancellation, then reads the whole stream. A stream that has
// started is never cut short.
func (cs *ChatSession) invoke(
	ctx context.Context,
	role string,
	model string,
	turns []conversation.Turn,
	style lipgloss.Style,
) (stream.Result, error) {
	if err := ctx.Err(); err != nil {
		return stream.Result{}, errors.Wrapf(err, "%s call cancelled", role)
	}

	ev := cs.logger.Debug().
		Str("role", role).
		Str("model", model).
		Int("iteration", cs.iteration).
		Int("turns", len(turns))
	if cs.counter != nil {
		ev = ev.Int("context_tokens", cs.counter.CountTurns(turns))
	}
	ev.Msg("Invoking backend")

	s, err := cs.backend.Invoke(context.WithoutCancel(ctx), backend.Request{
		Model: model,
		Turns: turns,
		Think: cs.think,
	})
	if err != nil {
		return stream.Result{}, errors.Wrapf(err, "%s backend call", role)
	}
	res, err := cs.decoder.Decode(s, style)
	if err != nil {
		return stream.Result{}, errors.Wrapf(err, "decoding %s response", role)
	}

	cs.logger.Debug().
		Str("role", role).
		Int("reasoning_len", len(res.Reasoning)).
		Int("content_len", len(res.Content)).
		Int("tool_calls", len(res.ToolCalls)).
		Msg("Response decoded")
	return res, nil
}

func (cs *ChatSession) printBanner() error {
	_, err := fmt.Fprintf(cs.outputWriter, "\n=-=-=-=-=\n%s %d\n=-=-=-=-=-\n\n",
		cs.styles.Banner.Render("iteration:"), cs.iteration)
	return errors.Wrap(err, "writing banner")
}

func (cs *ChatSession) printRecap(content string) error {
	if cs.markdown == nil || strings.TrimSpace(content) == "" {
		return nil
	}
	out, err := cs.markdown.Render(content)
	if err != nil {
		cs.logger.Warn().Err(err).Msg("Could not render markdown recap")
		return nil
	}
	_, err = fmt.Fprint(cs.outputWriter, "\n\n", out)
	return errors.Wrap(err, "writing markdown recap")
}

// --- ChatBuilder ---

// ChatBuilder provides a fluent API for configuring a chat session.
type ChatBuilder struct {
	err             error // To collect errors during build steps
	backend         backend.Backend
	prompts         prompts.Provider
	console         console.Console
	mode            RunMode
	outputWriter    io.Writer
	styles          *Styles
	agentModel      string
	supervisorModel string
	think           bool
	counter         *tokens.Counter
	markdown        MarkdownRenderer
}

// NewChatBuilder creates a new builder with default settings.
func NewChatBuilder() *ChatBuilder {
	return &ChatBuilder{
		outputWriter: os.Stdout,
		mode:         RunModeAsk,
		think:        true,
	}
}

// WithBackend sets the model provider. (Required)
func (b *ChatBuilder) WithBackend(be backend.Backend) *ChatBuilder {
	if b.err != nil {
		return b
	}
	if be == nil {
		b.err = errors.New("backend cannot be nil")
		return b
	}
	b.backend = be
	return b
}

// WithPrompts sets the prompt texts. (Required)
func (b *ChatBuilder) WithPrompts(p prompts.Provider) *ChatBuilder {
	if b.err != nil {
		return b
	}
	if p == nil {
		b.err = errors.New("prompts cannot be nil")
		return b
	}
	b.prompts = p
	return b
}

// WithConsole sets the operator console. (Required)
func (b *ChatBuilder) WithConsole(c console.Console) *ChatBuilder {
	if b.err != nil {
		return b
	}
	if c == nil {
		b.err = errors.New("console cannot be nil")
		return b
	}
	b.console = c
	return b
}

// WithMode forces the run mode. RunModeAsk asks the operator at startup.
func (b *ChatBuilder) WithMode(mode RunMode) *ChatBuilder {
	if b.err != nil {
		return b
	}
	switch mode {
	case RunModeAsk, RunModeAutonomous, RunModeInteractive:
		b.mode = mode
	default:
		b.err = errors.Errorf("invalid run mode: %s", mode)
	}
	return b
}

// WithOutputWriter sets the writer for the streamed output. Defaults to os.Stdout.
func (b *ChatBuilder) WithOutputWriter(w io.Writer) *ChatBuilder {
	if b.err != nil {
		return b
	}
	if w == nil {
		b.err = errors.New("output writer cannot be nil")
		return b
	}
	b.outputWriter = w
	return b
}

// WithStyles overrides the colours, e.g. with a renderer that has no colour profile.
func (b *ChatBuilder) WithStyles(s Styles) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.styles = &s
	return b
}

// WithModels sets the agent model and the supervisor model. An empty supervisor
// model falls back to the agent model.
func (b *ChatBuilder) WithModels(agent string, supervisor string) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.agentModel = agent
	b.supervisorModel = supervisor
	return b
}

func (b *ChatBuilder) WithThink(think bool) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.think = think
	return b
}

// WithTokenCounter adds context token counts to the debug logs.
func (b *ChatBuilder) WithTokenCounter(c *tokens.Counter) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.counter = c
	return b
}

// WithMarkdownRenderer prints a rendered recap of every agent answer.
func (b *ChatBuilder) WithMarkdownRenderer(r MarkdownRenderer) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.markdown = r
	return b
}

// Build validates the builder configuration and creates the session.
func (b *ChatBuilder) Build() (*ChatSession, error) {
	if b.err != nil {
		return nil, b.err
	}

	if b.backend == nil {
		return nil, ErrMissingBackend
	}
	if b.prompts == nil {
		return nil, ErrMissingPrompts
	}
	if b.console == nil {
		return nil, ErrMissingConsole
	}
	if strings.TrimSpace(b.agentModel) == "" {
		return nil, ErrMissingModel
	}

	supervisorModel := b.supervisorModel
	if strings.TrimSpace(supervisorModel) == "" {
		supervisorModel = b.agentModel
	}
	styles := NewStyles(lipgloss.DefaultRenderer())
	if b.styles != nil {
		styles = *b.styles
	}

	runID := uuid.NewString()
	session := &ChatSession{
		backend:         b.backend,
		prompts:         b.prompts,
		console:         b.console,
		mode:            b.mode,
		outputWriter:    b.outputWriter,
		decoder:         stream.NewDecoder(b.outputWriter),
		styles:          styles,
		agentModel:      b.agentModel,
		supervisorModel: supervisorModel,
		think:           b.think,
		counter:         b.counter,
		markdown:        b.markdown,
		log:             conversation.NewLog(),
		state:           StateAwaitingAgent,
		runID:           runID,
		logger:          log.With().Str("component", "chatrunner").Str("run_id", runID).Logger(),
	}

	return session, nil
}
