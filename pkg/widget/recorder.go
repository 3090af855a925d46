package widget

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vango-dev/flix/pkg/diff"
	"github.com/vango-dev/flix/pkg/node"
)

// ErrDisplayMismatch is returned by Recorder when replaying a batch does not
// produce the update's snapshot.
var ErrDisplayMismatch = errors.New("widget: batch result does not match snapshot")

// Recorder is an in-memory widget. It keeps the displayed structure by
// replaying each batch with diff.Apply.
type Recorder struct {
	mu        sync.Mutex
	displayed node.Snapshot
	updates   []*Update
	failNext  error
}

// NewRecorder creates a recorder showing an empty list.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// ApplyBatch implements Widget.
func (r *Recorder) ApplyBatch(_ context.Context, u *Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.failNext; err != nil {
		r.failNext = nil
		return err
	}

	next, err := diff.Apply(r.displayed, u.Script)
	if err != nil {
		return fmt.Errorf("recorder: batch %d: %w", u.Seq, err)
	}
	if !next.Equal(u.Snapshot) {
		return fmt.Errorf("recorder: batch %d: %w", u.Seq, ErrDisplayMismatch)
	}
	r.displayed = next
	r.updates = append(r.updates, u)
	return nil
}

// FailNext makes the next ApplyBatch return err without applying anything.
func (r *Recorder) FailNext(err error) {
	r.mu.Lock()
	r.failNext = err
	r.mu.Unlock()
}

// Displayed returns the displayed structure.
func (r *Recorder) Displayed() node.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.displayed
}

// Updates returns every applied update in order.
func (r *Recorder) Updates() []*Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Update, len(r.updates))
	copy(out, r.updates)
	return out
}

// Len returns the number of applied batches.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

// Last returns the last applied update, or nil.
func (r *Recorder) Last() *Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return nil
	}
	return r.updates[len(r.updates)-1]
}
