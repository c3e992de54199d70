package peer

import "github.com/dkeye/MeshCall/internal/protocol"

// candidateQueue holds remote ICE candidates that arrived before the remote description.
type candidateQueue struct {
	items []protocol.Payload
}

func (q *candidateQueue) push(c protocol.Payload) {
	q.items = append(q.items, c)
}

// drain returns the candidates in arrival order and empties the queue.
func (q *candidateQueue) drain() []protocol.Payload {
	out := q.items
	q.items = nil
	return out
}

func (q *candidateQueue) len() int { return len(q.items) }
