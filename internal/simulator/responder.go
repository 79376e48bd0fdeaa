package simulator

import (
	"context"
	"sync"

	"github.com/zhouzirui/pulse-hr/backend/internal/model/chat"
)

// Rand is the random source driving reply selection and the score walk.
// *rand.Rand from math/rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// lockedRand serialises access to a Rand shared by the responder and the score walk.
type lockedRand struct {
	mu sync.Mutex
	r  Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// Responder produces the assistant text for the user message at the head of the queue.
// history holds the transcript up to and including prompt.
type Responder interface {
	Reply(ctx context.Context, history []chat.Message, prompt chat.Message) (string, error)
}

// CannedResponder picks uniformly from a fixed catalog.
type CannedResponder struct {
	replies []string
	rand    Rand
}

// NewCannedResponder returns a responder over replies. replies must be non-empty.
func NewCannedResponder(replies []string, r Rand) *CannedResponder {
	return &CannedResponder{replies: append([]string(nil), replies...), rand: r}
}

// Reply implements Responder.
func (c *CannedResponder) Reply(_ context.Context, _ []chat.Message, _ chat.Message) (string, error) {
	return c.replies[c.rand.Intn(len(c.replies))], nil
}
