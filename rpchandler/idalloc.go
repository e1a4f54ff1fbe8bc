package rpchandler

import "sync/atomic"

// firstRequestID and maxRequestID bound the request ids a handler hands
// out to its own outbound requests (spec section 4.4.3): 1..3 are
// reserved for the login handshake (hello=1, login=2), and ids wrap back
// to firstRequestID once they'd exceed the single-byte compact-int
// budget (the 0x40..0x7F compact INT range tops out at 63, spec section
// 6.1) so a request id always packs to one wire byte.
const (
	firstRequestID = 4
	maxRequestID   = 63
)

// IDAllocator hands out request ids from a monotonic counter, safe under
// concurrent use via a compare-and-swap loop (sync/atomic is exactly
// what this primitive is for — no third-party CAS wrapper is idiomatic
// here).
type IDAllocator struct {
	next uint64
}

// NewIDAllocator returns an allocator starting at firstRequestID.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{next: firstRequestID}
}

// Next returns the next request id, wrapping at maxRequestID. Collisions
// after wraparound are acceptable: the responses stage keys on the ids
// it is currently awaiting, not on absolute uniqueness over all time.
func (a *IDAllocator) Next() int64 {
	for {
		cur := atomic.LoadUint64(&a.next)
		nxt := cur + 1
		if nxt > maxRequestID {
			nxt = firstRequestID
		}
		if atomic.CompareAndSwapUint64(&a.next, cur, nxt) {
			return int64(cur)
		}
	}
}
