package kafka

import (
	"context"
	"sync"
)

// semaphore is a counting semaphore whose capacity can change while
// permits are checked out, the primitive transport/kafka uses to emulate
// RDY credit over a protocol with no native flow-control frame: SetRdy(n)
// resizes the capacity, and the fetch loop only calls FetchMessage while
// holding a permit, acquired before the call and released once the
// delivered message is finished or requeued.
type semaphore struct {
	mu       sync.Mutex
	capacity int64
	inUse    int64
	waiters  []chan struct{}
}

func newSemaphore() *semaphore {
	return &semaphore{}
}

// resize sets the number of permits available for concurrent checkout.
// Shrinking below the current in-use count does not revoke outstanding
// permits; it only blocks new acquires until enough are released.
func (s *semaphore) resize(n int64) {
	s.mu.Lock()
	s.capacity = n
	s.wakeLocked()
	s.mu.Unlock()
}

// acquire blocks until a permit is available or ctx is done.
func (s *semaphore) acquire(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.inUse < s.capacity {
			s.inUse++
			s.mu.Unlock()
			return nil
		}
		wake := make(chan struct{})
		s.waiters = append(s.waiters, wake)
		s.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// release returns a permit to the pool.
func (s *semaphore) release() {
	s.mu.Lock()
	if s.inUse > 0 {
		s.inUse--
	}
	s.wakeLocked()
	s.mu.Unlock()
}

func (s *semaphore) wakeLocked() {
	for _, w := range s.waiters {
		close(w)
	}
	s.waiters = nil
}
