package roomclient

import (
	"sync"

	"github.com/meshvoice/roomclient/protocol"
)

// candidateBuffer accumulates remote ICE candidates that arrive before the
// handle's remote description is set. Arrival order is preserved; a drain
// leaves the buffer empty.
//
// Each session handle owns its own buffer: candidates for handle B can arrive
// while handle A is still mid-negotiation, so a global buffer would misfile
// them.
type candidateBuffer struct {
	mu   sync.Mutex
	list []protocol.Candidate
}

func (b *candidateBuffer) add(c protocol.Candidate) {
	b.mu.Lock()
	b.list = append(b.list, c)
	b.mu.Unlock()
}

func (b *candidateBuffer) drain() []protocol.Candidate {
	b.mu.Lock()
	out := b.list
	b.list = nil
	b.mu.Unlock()
	return out
}

func (b *candidateBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.list)
}
