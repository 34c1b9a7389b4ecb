// Package batch splits queued envelopes into request-sized chunks.
package batch

import "github.com/bft-labs/traceship/internal/domain"

// Split partitions envs into chunks of at most maxEvents envelopes and at
// most maxBytes cumulative size. Chunks are filled greedily and input order
// is preserved. An envelope that is larger than maxBytes on its own gets a
// chunk to itself rather than being dropped.
// A non-positive limit disables that bound.
func Split(envs []*domain.Envelope, maxBytes, maxEvents int) [][]*domain.Envelope {
	if len(envs) == 0 {
		return nil
	}

	var (
		chunks  [][]*domain.Envelope
		current []*domain.Envelope
		size    int
	)

	for _, env := range envs {
		full := maxEvents > 0 && len(current) >= maxEvents
		tooBig := maxBytes > 0 && size+env.Size > maxBytes
		if len(current) > 0 && (full || tooBig) {
			chunks = append(chunks, current)
			current = nil
			size = 0
		}

		current = append(current, env)
		size += env.Size
	}

	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// Halve splits chunk into two halves for resending after the server rejected
// the request as too large. The first half gets the smaller share when the
// length is odd. Chunks with fewer than two envelopes cannot be halved and
// ok is false.
func Halve(chunk []*domain.Envelope) (first, second []*domain.Envelope, ok bool) {
	if len(chunk) < 2 {
		return nil, nil, false
	}
	mid := len(chunk) / 2
	return chunk[:mid:mid], chunk[mid:], true
}

// Pending is an ordered work list of chunks awaiting transmission.
// Replacing the head with its halves keeps bisecting in place without
// advancing past the offending data.
type Pending struct {
	chunks [][]*domain.Envelope
}

// NewPending creates a work list from chunks.
func NewPending(chunks [][]*domain.Envelope) *Pending {
	return &Pending{chunks: chunks}
}

// Len returns the number of chunks left.
func (p *Pending) Len() int {
	return len(p.chunks)
}

// Next removes and returns the head chunk.
func (p *Pending) Next() ([]*domain.Envelope, bool) {
	if len(p.chunks) == 0 {
		return nil, false
	}
	c := p.chunks[0]
	p.chunks = p.chunks[1:]
	return c, true
}

// PushFront re-inserts chunks at the head, in order.
func (p *Pending) PushFront(chunks ...[]*domain.Envelope) {
	p.chunks = append(append([][]*domain.Envelope{}, chunks...), p.chunks...)
}

// Drain removes and returns every remaining envelope in order.
func (p *Pending) Drain() []*domain.Envelope {
	var out []*domain.Envelope
	for _, c := range p.chunks {
		out = append(out, c...)
	}
	p.chunks = nil
	return out
}
