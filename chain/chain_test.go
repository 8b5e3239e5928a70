package chain

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"testing"

	"github.com/sweetpotato0/reasonchain/history/store"
	"github.com/sweetpotato0/reasonchain/message"
	"github.com/sweetpotato0/reasonchain/session"
)

// mockReasoner implements Reasoner for testing
type mockReasoner struct {
	apiKey string
	trace  string
	err    error
	calls  int
}

func (m *mockReasoner) Name() string { return "DeepSeek" }

func (m *mockReasoner) Reason(ctx context.Context, question string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.trace, nil
}

// mockSynthesizer implements Synthesizer for testing
type mockSynthesizer struct {
	apiKey    string
	fragments []string
	err       error
	calls     int
}

func (m *mockSynthesizer) Name() string { return "Groq" }

func (m *mockSynthesizer) SynthesizeStream(ctx context.Context, req *SynthesizeRequest) iter.Seq2[*message.Message, error] {
	return func(yield func(*message.Message, error) bool) {
		m.calls++
		if m.err != nil {
			yield(nil, m.err)
			return
		}
		final := message.NewMessage(message.RoleAssistant, "")
		for _, fragment := range m.fragments {
			final.AppendText(fragment)
			if !yield(message.NewMessage(message.RoleAssistant, fragment), nil) {
				return
			}
		}
		final.Completed = true
		yield(final, nil)
	}
}

type fixture struct {
	orch     *Orchestrator
	sess     *session.Session
	reasoner *mockReasoner
	synth    *mockSynthesizer
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		reasoner: &mockReasoner{trace: "step one step two"},
		synth:    &mockSynthesizer{fragments: []string{"Hel", "lo"}},
	}
	base := []Option{
		WithReasonerFactory(func(apiKey string) Reasoner {
			f.reasoner.apiKey = apiKey
			return f.reasoner
		}),
		WithSynthesizerFactory(func(apiKey string) Synthesizer {
			f.synth.apiKey = apiKey
			return f.synth
		}),
		WithEnvironmentKeys("env-reasoner-key", "env-synth-key"),
	}
	f.orch = New(append(base, opts...)...)
	f.sess = session.New(store.NewInMemoryStore())
	return f
}

func collect(t *Turn) []string {
	var out []string
	for msg := range t.Run(context.Background()) {
		out = append(out, msg.Text())
	}
	return out
}

func TestTurnSnapshotsAreCumulative(t *testing.T) {
	f := newFixture()

	turn := f.orch.NewTurn(f.sess, &TurnRequest{Message: "hi"})
	snapshots := collect(turn)

	if len(snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d: %v", len(snapshots), snapshots)
	}
	if snapshots[0] != "Hel" || snapshots[1] != "Hello" {
		t.Errorf("expected cumulative snapshots [Hel Hello], got %v", snapshots)
	}
	if turn.State() != StateDone {
		t.Errorf("expected Done state, got %s", turn.State())
	}
}

func TestTurnRecordsTrace(t *testing.T) {
	f := newFixture()

	collect(f.orch.NewTurn(f.sess, &TurnRequest{Message: "hi"}))

	got, err := f.sess.LastTrace(context.Background())
	if err != nil {
		t.Fatalf("LastTrace returned error: %v", err)
	}
	if got != "step one step two" {
		t.Errorf("expected recorded trace, got %q", got)
	}
}

func TestTurnMissingBothKeys(t *testing.T) {
	f := newFixture(WithEnvironmentKeys("", ""))

	turn := f.orch.NewTurn(f.sess, &TurnRequest{Message: "hi"})
	snapshots := collect(turn)

	if turn.State() != StateError {
		t.Errorf("expected Error state, got %s", turn.State())
	}
	if len(snapshots) != 1 {
		t.Fatalf("expected a single error reply, got %v", snapshots)
	}
	want := "Missing API key(s) for: DeepSeek, Groq. Please configure keys."
	if snapshots[0] != want {
		t.Errorf("expected %q, got %q", want, snapshots[0])
	}
	if f.reasoner.calls != 0 || f.synth.calls != 0 {
		t.Errorf("no provider call may happen before keys resolve, got reasoner=%d synth=%d",
			f.reasoner.calls, f.synth.calls)
	}
}

func TestTurnMissingOneKeyNamesIt(t *testing.T) {
	f := newFixture(WithEnvironmentKeys("env-reasoner-key", ""))

	turn := f.orch.NewTurn(f.sess, &TurnRequest{Message: "hi"})
	snapshots := collect(turn)

	want := "Missing API key(s) for: Groq. Please configure keys."
	if len(snapshots) != 1 || snapshots[0] != want {
		t.Errorf("expected %q, got %v", want, snapshots)
	}
}

func TestCredentialPrecedenceEnvWins(t *testing.T) {
	f := newFixture()

	collect(f.orch.NewTurn(f.sess, &TurnRequest{
		Message:        "hi",
		ReasonerKey:    "ui-reasoner-key",
		SynthesizerKey: "ui-synth-key",
	}))

	if f.reasoner.apiKey != "env-reasoner-key" {
		t.Errorf("environment key must win, reasoner got %q", f.reasoner.apiKey)
	}
	if f.synth.apiKey != "env-synth-key" {
		t.Errorf("environment key must win, synthesizer got %q", f.synth.apiKey)
	}
}

func TestCredentialFallbackToUIKey(t *testing.T) {
	f := newFixture(WithEnvironmentKeys("", ""))

	collect(f.orch.NewTurn(f.sess, &TurnRequest{
		Message:        "hi",
		ReasonerKey:    "ui-reasoner-key",
		SynthesizerKey: "ui-synth-key",
	}))

	if f.reasoner.apiKey != "ui-reasoner-key" {
		t.Errorf("expected UI key fallback, reasoner got %q", f.reasoner.apiKey)
	}
}

func TestTurnExtractorFault(t *testing.T) {
	f := newFixture()
	f.reasoner.err = fmt.Errorf("boom")

	turn := f.orch.NewTurn(f.sess, &TurnRequest{Message: "hi"})
	snapshots := collect(turn)

	if turn.State() != StateError {
		t.Errorf("expected Error state, got %s", turn.State())
	}
	want := "DeepSeek API Error: boom"
	if len(snapshots) != 1 || snapshots[0] != want {
		t.Errorf("expected %q, got %v", want, snapshots)
	}
	if f.synth.calls != 0 {
		t.Errorf("synthesizer must not run after extraction fault")
	}
	if n, _ := f.sess.TraceCount(context.Background()); n != 0 {
		t.Errorf("failed extraction must not record a trace, history has %d", n)
	}
}

func TestTurnSynthesizerFault(t *testing.T) {
	f := newFixture()
	f.synth.err = fmt.Errorf("rate limited")

	turn := f.orch.NewTurn(f.sess, &TurnRequest{Message: "hi"})
	snapshots := collect(turn)

	if turn.State() != StateError {
		t.Errorf("expected Error state, got %s", turn.State())
	}
	want := "Groq API Error: rate limited"
	if len(snapshots) != 1 || snapshots[0] != want {
		t.Errorf("expected %q, got %v", want, snapshots)
	}
	// The trace was extracted before synthesis failed; it stays recorded.
	if n, _ := f.sess.TraceCount(context.Background()); n != 1 {
		t.Errorf("expected 1 recorded trace, got %d", n)
	}
}

func TestHistoryPreservesTurnOrder(t *testing.T) {
	f := newFixture()

	for i := 0; i < 3; i++ {
		f.reasoner.trace = fmt.Sprintf("trace %d", i)
		turn := f.orch.NewTurn(f.sess, &TurnRequest{Message: fmt.Sprintf("q%d", i)})
		collect(turn)
	}

	n, err := f.sess.TraceCount(context.Background())
	if err != nil {
		t.Fatalf("TraceCount returned error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 traces after 3 turns, got %d", n)
	}

	traces, err := f.sess.Traces(context.Background())
	if err != nil {
		t.Fatalf("Traces returned error: %v", err)
	}
	for i, trace := range traces {
		want := fmt.Sprintf("trace %d", i)
		if trace.Content != want {
			t.Errorf("trace %d: expected %q, got %q", i, want, trace.Content)
		}
	}
}

func TestSynthesisPromptEmbedsQueryAndReasoning(t *testing.T) {
	var captured []*message.Message
	f := &fixture{
		reasoner: &mockReasoner{trace: "the reasoning"},
	}
	orch := New(
		WithEnvironmentKeys("k1", "k2"),
		WithReasonerFactory(func(string) Reasoner { return f.reasoner }),
		WithSynthesizerFactory(func(string) Synthesizer {
			return synthesizerFunc(func(ctx context.Context, req *SynthesizeRequest) iter.Seq2[*message.Message, error] {
				captured = req.Messages
				return func(yield func(*message.Message, error) bool) {
					final := message.NewMessage(message.RoleAssistant, "ok")
					final.Completed = true
					yield(final, nil)
				}
			})
		}),
	)
	sess := session.New(store.NewInMemoryStore())

	collect(orch.NewTurn(sess, &TurnRequest{Message: "the question"}))

	if len(captured) != 1 {
		t.Fatalf("expected a single prompt message, got %d", len(captured))
	}
	prompt := captured[0].Text()
	if want := "<user_query>the question</user_query>"; !strings.Contains(prompt, want) {
		t.Errorf("prompt missing %q:\n%s", want, prompt)
	}
	if want := "<reasoning>the reasoning</reasoning>"; !strings.Contains(prompt, want) {
		t.Errorf("prompt missing %q:\n%s", want, prompt)
	}
}

type synthesizerFunc func(context.Context, *SynthesizeRequest) iter.Seq2[*message.Message, error]

func (f synthesizerFunc) Name() string { return "Groq" }

func (f synthesizerFunc) SynthesizeStream(ctx context.Context, req *SynthesizeRequest) iter.Seq2[*message.Message, error] {
	return f(ctx, req)
}
