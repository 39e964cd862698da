package ratelimiter

import (
	"sync"
	"time"
)

// SlidingWindowCounter approximates a sliding window by splitting it into
// fixed-size buckets. Cheaper than keeping a log of timestamps, and much
// less bursty at window boundaries than a single fixed counter.
type SlidingWindowCounter struct {
	limit      int
	window     time.Duration
	bucketSize time.Duration
	buckets    []int
	current    int
	lastSlide  time.Time
	mu         sync.Mutex
}

// NewSlidingWindowCounter limits requests to limit per window, tracked
// across numBuckets sub-intervals.
func NewSlidingWindowCounter(limit int, window time.Duration, numBuckets int) *SlidingWindowCounter {
	if numBuckets <= 0 {
		numBuckets = 10
	}
	return &SlidingWindowCounter{
		limit:      limit,
		window:     window,
		bucketSize: window / time.Duration(numBuckets),
		buckets:    make([]int, numBuckets),
		lastSlide:  time.Now(),
	}
}

// slide advances the window, zeroing buckets that fell out of it.
func (s *SlidingWindowCounter) slide() {
	now := time.Now()
	steps := int(now.Sub(s.lastSlide) / s.bucketSize)
	if steps <= 0 {
		return
	}
	if steps >= len(s.buckets) {
		for i := range s.buckets {
			s.buckets[i] = 0
		}
	} else {
		for i := 1; i <= steps; i++ {
			s.buckets[(s.current+i)%len(s.buckets)] = 0
		}
	}
	s.current = (s.current + steps) % len(s.buckets)
	s.lastSlide = now
}

// Allow counts the request against the current bucket if the window total
// is still under the limit.
func (s *SlidingWindowCounter) Allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.slide()

	total := 0
	for _, n := range s.buckets {
		total += n
	}
	if total >= s.limit {
		return false
	}
	s.buckets[s.current]++
	return true
}
