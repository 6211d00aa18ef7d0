package session

import "github.com/pion/webrtc/v4"

// candidateQueue holds remote ICE candidates that arrived before the remote
// description. Drain hands them out in arrival order and empties the queue,
// so each candidate is applied at most once.
type candidateQueue struct {
	items []webrtc.ICECandidateInit
}

func (q *candidateQueue) Push(c webrtc.ICECandidateInit) {
	q.items = append(q.items, c)
}

func (q *candidateQueue) Drain() []webrtc.ICECandidateInit {
	items := q.items
	q.items = nil
	return items
}

func (q *candidateQueue) Len() int { return len(q.items) }

func (q *candidateQueue) Clear() { q.items = nil }
