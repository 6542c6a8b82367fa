package notify

import (
	"context"
	"sync"
)

// Sent is one recorded dispatch.
type Sent struct {
	Channels []string
	Payload  Payload
}

// Recorder is an in-memory Notifier for tests. It can also be told to
// fail, to exercise the callers' fire-and-forget handling.
type Recorder struct {
	mu      sync.Mutex
	sent    []Sent
	failErr error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(ctx context.Context, channels []string, payload Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	r.sent = append(r.sent, Sent{Channels: channels, Payload: payload})
	return nil
}

// FailWith makes every subsequent Send return err; pass nil to recover.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failErr = err
}

// All returns a copy of everything recorded so far.
func (r *Recorder) All() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sent, len(r.sent))
	copy(out, r.sent)
	return out
}

// OfType filters recorded dispatches by payload type.
func (r *Recorder) OfType(payloadType string) []Sent {
	var out []Sent
	for _, s := range r.All() {
		if s.Payload.Type == payloadType {
			out = append(out, s)
		}
	}
	return out
}

// Reset clears the recording.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
