package chain

import (
	"context"
	"iter"

	"github.com/sweetpotato0/reasonchain/message"
)

// Reasoner extracts a reasoning trace for a question. Implementations must
// check their credential before any network I/O and return
// errors.ErrMissingCredential when it is empty.
type Reasoner interface {
	// Name identifies the provider in user-facing error messages.
	Name() string

	// Reason returns the accumulated reasoning trace for the question.
	Reason(ctx context.Context, question string) (string, error)
}

// SynthesizeRequest bundles inputs for a streaming synthesis invocation.
type SynthesizeRequest struct {
	Messages []*message.Message
}

// Synthesizer produces the final answer as a stream of incremental delta
// fragments. Chunk messages carry Completed=false; the final accumulated
// message carries Completed=true.
type Synthesizer interface {
	// Name identifies the provider in user-facing error messages.
	Name() string

	// SynthesizeStream generates a response with token streaming.
	SynthesizeStream(ctx context.Context, req *SynthesizeRequest) iter.Seq2[*message.Message, error]
}
