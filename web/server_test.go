package web

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sweetpotato0/reasonchain/chain"
	"github.com/sweetpotato0/reasonchain/history/store"
	"github.com/sweetpotato0/reasonchain/message"
	"github.com/sweetpotato0/reasonchain/session"
)

type stubReasoner struct{}

func (stubReasoner) Name() string { return "DeepSeek" }

func (stubReasoner) Reason(ctx context.Context, question string) (string, error) {
	return "stub reasoning", nil
}

type stubSynthesizer struct {
	fragments []string
}

func (stubSynthesizer) Name() string { return "Groq" }

func (s stubSynthesizer) SynthesizeStream(ctx context.Context, req *chain.SynthesizeRequest) iter.Seq2[*message.Message, error] {
	return func(yield func(*message.Message, error) bool) {
		final := message.NewMessage(message.RoleAssistant, "")
		for _, fragment := range s.fragments {
			final.AppendText(fragment)
			if !yield(message.NewMessage(message.RoleAssistant, fragment), nil) {
				return
			}
		}
		final.Completed = true
		yield(final, nil)
	}
}

func newTestServer(t *testing.T) (*Server, *session.Session) {
	t.Helper()
	orch := chain.New(
		chain.WithEnvironmentKeys("env-reasoner-key", "env-synth-key"),
		chain.WithReasonerFactory(func(string) chain.Reasoner { return stubReasoner{} }),
		chain.WithSynthesizerFactory(func(string) chain.Synthesizer {
			return stubSynthesizer{fragments: []string{"Hel", "lo"}}
		}),
	)
	sess := session.New(store.NewInMemoryStore())
	srv := NewServer(Config{Listen: ":0"}, orch, sess, slog.Default())
	return srv, sess
}

func TestPing(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/ping", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestIndexServesWidget(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Reasonchain") {
		t.Error("expected the chat widget page")
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("expected html content type, got %q", ct)
	}
}

func TestExamples(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/examples", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	var body struct {
		Examples []string `json:"examples"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(body.Examples) != 3 {
		t.Fatalf("expected 3 example prompts, got %d", len(body.Examples))
	}
	if body.Examples[0] != "How many r's are in strawberry" {
		t.Errorf("unexpected first example: %q", body.Examples[0])
	}
}

func TestReasoningPlaceholderBeforeAnyTurn(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/reasoning", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	var body struct {
		Reasoning string `json:"reasoning"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Reasoning != session.Placeholder {
		t.Errorf("expected placeholder %q, got %q", session.Placeholder, body.Reasoning)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("POST", "/chat", strings.NewReader(`{"message":""}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.App().Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 for empty message, got %d", resp.StatusCode)
	}
}

func TestChatStreamsSnapshots(t *testing.T) {
	srv, sess := newTestServer(t)

	req := httptest.NewRequest("POST", "/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("expected SSE content type, got %q", ct)
	}

	raw, _ := io.ReadAll(resp.Body)
	var snapshots []string
	sawDone := false
	for _, event := range strings.Split(string(raw), "\n\n") {
		line := strings.TrimPrefix(strings.TrimSpace(event), "data: ")
		if line == "" {
			continue
		}
		if line == "[DONE]" {
			sawDone = true
			continue
		}
		var payload struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal([]byte(line), &payload); err != nil {
			t.Fatalf("malformed event %q: %v", line, err)
		}
		snapshots = append(snapshots, payload.Content)
	}

	if !sawDone {
		t.Error("stream must end with a [DONE] sentinel")
	}
	if len(snapshots) != 2 || snapshots[0] != "Hel" || snapshots[1] != "Hello" {
		t.Errorf("expected cumulative snapshots [Hel Hello], got %v", snapshots)
	}

	// The turn also records the trace the reasoning view reads.
	last, err := sess.LastTrace(context.Background())
	if err != nil {
		t.Fatalf("LastTrace returned error: %v", err)
	}
	if last != "stub reasoning" {
		t.Errorf("expected recorded trace, got %q", last)
	}
}

func TestChatMissingKeysStreamsErrorReply(t *testing.T) {
	orch := chain.New(
		chain.WithEnvironmentKeys("", ""),
		chain.WithReasonerFactory(func(string) chain.Reasoner { return stubReasoner{} }),
		chain.WithSynthesizerFactory(func(string) chain.Synthesizer { return stubSynthesizer{} }),
	)
	sess := session.New(store.NewInMemoryStore())
	srv := NewServer(Config{Listen: ":0"}, orch, sess, slog.Default())

	req := httptest.NewRequest("POST", "/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "Missing API key(s) for: DeepSeek, Groq.") {
		t.Errorf("expected missing-key reply in stream, got:\n%s", raw)
	}
}
