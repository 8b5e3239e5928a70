package chain

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/sweetpotato0/reasonchain/config"
	"github.com/sweetpotato0/reasonchain/history"
	"github.com/sweetpotato0/reasonchain/message"
	"github.com/sweetpotato0/reasonchain/pkg/logging"
	"github.com/sweetpotato0/reasonchain/pkg/telemetry"
	"github.com/sweetpotato0/reasonchain/prompt"
	"github.com/sweetpotato0/reasonchain/session"
	"github.com/sweetpotato0/reasonchain/tokenizer"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// State is the phase a turn is in. A turn moves
// AwaitingKeys -> Extracting -> Synthesizing -> Done, with Error absorbing
// from any of the first three.
type State string

const (
	StateAwaitingKeys State = "awaiting_keys"
	StateExtracting   State = "extracting"
	StateSynthesizing State = "synthesizing"
	StateDone         State = "done"
	StateError        State = "error"
)

// ReasonerFactory builds a reasoner bound to a resolved API key.
type ReasonerFactory func(apiKey string) Reasoner

// SynthesizerFactory builds a synthesizer bound to a resolved API key.
type SynthesizerFactory func(apiKey string) Synthesizer

// TurnRequest is one user message plus the optional UI-supplied credentials.
// Environment-level keys take precedence over these.
type TurnRequest struct {
	Message        string
	ReasonerKey    string
	SynthesizerKey string
}

// Orchestrator chains the reasoning extractor into the answer synthesizer.
// It holds no per-turn state; each user message starts a fresh Turn sharing
// only the caller-owned session.
type Orchestrator struct {
	envReasonerKey    string
	envSynthesizerKey string
	newReasoner       ReasonerFactory
	newSynthesizer    SynthesizerFactory
	prompts           *prompt.Manager
	tok               *tokenizer.Tokenizer
	logger            *slog.Logger
	tracer            trace.Tracer
}

// Option is a function that configures an Orchestrator
type Option func(*Orchestrator)

// WithReasonerFactory sets the reasoning-provider factory
func WithReasonerFactory(f ReasonerFactory) Option {
	return func(o *Orchestrator) {
		o.newReasoner = f
	}
}

// WithSynthesizerFactory sets the synthesis-provider factory
func WithSynthesizerFactory(f SynthesizerFactory) Option {
	return func(o *Orchestrator) {
		o.newSynthesizer = f
	}
}

// WithEnvironmentKeys sets the process-wide credentials resolved from the
// environment. They take precedence over per-request UI values.
func WithEnvironmentKeys(reasonerKey, synthesizerKey string) Option {
	return func(o *Orchestrator) {
		o.envReasonerKey = reasonerKey
		o.envSynthesizerKey = synthesizerKey
	}
}

// WithPromptManager overrides the prompt manager
func WithPromptManager(m *prompt.Manager) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.prompts = m
		}
	}
}

// WithTokenizer enables token counting on recorded traces
func WithTokenizer(t *tokenizer.Tokenizer) Option {
	return func(o *Orchestrator) {
		o.tok = t
	}
}

// WithLogger overrides the component logger
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an orchestrator
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		prompts: prompt.NewDefaultManager(),
		logger:  logging.WithComponent("chain"),
		tracer:  otel.Tracer("reasonchain/chain"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Turn is one user message moving through the state machine. Done and Error
// are terminal; the next message gets a fresh Turn.
type Turn struct {
	orch  *Orchestrator
	sess  *session.Session
	req   *TurnRequest
	state State
	err   error
}

// NewTurn starts a turn for the given session and request.
func (o *Orchestrator) NewTurn(sess *session.Session, req *TurnRequest) *Turn {
	return &Turn{
		orch:  o,
		sess:  sess,
		req:   req,
		state: StateAwaitingKeys,
	}
}

// State returns the turn's current state.
func (t *Turn) State() State {
	return t.state
}

// Err returns the fault that moved the turn to Error, if any. The chat reply
// only ever carries the human-readable message; callers that need the cause
// (logging, tests) read it here.
func (t *Turn) Err() error {
	return t.err
}

// Run executes the turn and yields answer snapshots: the FULL accumulated
// answer is re-emitted after every fragment, so the consumer always sees the
// complete answer so far. Faults are delivered as a single final snapshot
// carrying a human-readable message. Stopping the iterator cancels the turn.
func (t *Turn) Run(ctx context.Context) iter.Seq[*message.Message] {
	return func(yield func(*message.Message) bool) {
		o := t.orch

		ctx, span := o.tracer.Start(ctx, "chain.turn",
			trace.WithAttributes(attribute.String("session.id", t.sess.ID())))
		defer func() {
			span.SetAttributes(attribute.String("turn.state", string(t.state)))
			telemetry.End(span, t.err)
		}()

		// AwaitingKeys: resolve both credentials before anything touches
		// the network.
		reasonerKey := config.ResolveCredential(o.envReasonerKey, t.req.ReasonerKey)
		synthesizerKey := config.ResolveCredential(o.envSynthesizerKey, t.req.SynthesizerKey)

		reasoner := o.newReasoner(reasonerKey)
		synthesizer := o.newSynthesizer(synthesizerKey)

		var missing []string
		if reasonerKey == "" {
			missing = append(missing, reasoner.Name())
		}
		if synthesizerKey == "" {
			missing = append(missing, synthesizer.Name())
		}
		if len(missing) > 0 {
			t.fail(fmt.Errorf("missing API key(s) for: %s", strings.Join(missing, ", ")))
			yield(t.reply(fmt.Sprintf("Missing API key(s) for: %s. Please configure keys.",
				strings.Join(missing, ", "))))
			return
		}

		// Extracting: run the reasoner to completion.
		t.state = StateExtracting
		reasoning, err := reasoner.Reason(ctx, t.req.Message)
		if err != nil {
			t.fail(err)
			yield(t.reply(fmt.Sprintf("%s API Error: %v", reasoner.Name(), err)))
			return
		}

		rec := history.NewTrace(reasoning)
		if o.tok != nil {
			rec.TokenCount = o.tok.CountTokens(reasoning)
		}
		if err := t.sess.AppendTrace(ctx, rec); err != nil {
			t.fail(err)
			yield(t.reply(fmt.Sprintf("Failed to record reasoning: %v", err)))
			return
		}
		o.logger.Debug("reasoning extracted",
			"session_id", t.sess.ID(),
			"trace_id", rec.ID,
			"trace_tokens", rec.TokenCount,
		)

		// Synthesizing: stream the final answer, re-emitting the growing
		// accumulator as a snapshot after every fragment.
		t.state = StateSynthesizing
		promptText, err := o.prompts.Render(prompt.SynthesisTemplateName, map[string]any{
			"Query":     t.req.Message,
			"Reasoning": reasoning,
		})
		if err != nil {
			t.fail(err)
			yield(t.reply(fmt.Sprintf("%s API Error: %v", synthesizer.Name(), err)))
			return
		}

		streamSeq := synthesizer.SynthesizeStream(ctx, &SynthesizeRequest{
			Messages: []*message.Message{message.NewMessage(message.RoleUser, promptText)},
		})

		var accumulated strings.Builder
		for chunk, err := range streamSeq {
			if err != nil {
				t.fail(err)
				yield(t.reply(fmt.Sprintf("%s API Error: %v", synthesizer.Name(), err)))
				return
			}
			if chunk == nil || chunk.Completed {
				continue
			}
			accumulated.WriteString(chunk.Text())
			if !yield(t.reply(accumulated.String())) {
				return
			}
		}

		t.state = StateDone
		o.logger.Info("turn complete",
			"session_id", t.sess.ID(),
			"answer_len", accumulated.Len(),
		)
	}
}

func (t *Turn) fail(err error) {
	t.state = StateError
	t.err = err
	t.orch.logger.Error("turn failed", "session_id", t.sess.ID(), "error", err)
}

func (t *Turn) reply(content string) *message.Message {
	return message.NewMessage(message.RoleAssistant, content)
}
