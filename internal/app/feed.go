package app

import (
	"sync"

	"color-quiz-service/internal/domain"
)

// FeedRepository abstracts where per-attempt progress feeds live.
type FeedRepository interface {
	GetOrCreate(attemptID string) *Feed
	Get(attemptID string) (*Feed, bool)
	DeleteIfIdle(attemptID string)
}

// Feed fans progress updates of one attempt out to its subscribers.
type Feed struct {
	attemptID   string
	mu          sync.Mutex
	last        *domain.Progress
	subscribers map[chan domain.Progress]struct{}
}

// NewFeed is exported for infrastructure layers that keep feeds.
func NewFeed(attemptID string) *Feed {
	return &Feed{
		attemptID:   attemptID,
		subscribers: make(map[chan domain.Progress]struct{}),
	}
}

// Subscribe registers a subscriber seeded with initial. The caller must invoke the returned
// cancel function to avoid leaks.
func (f *Feed) Subscribe(initial domain.Progress) (<-chan domain.Progress, func()) {
	ch := make(chan domain.Progress, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	if f.last != nil && f.last.Answered > initial.Answered {
		initial = *f.last
	}
	// seed under the lock so a concurrent Publish cannot overtake it
	ch <- initial
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers p to every subscriber. A full subscriber loses its oldest pending update.
func (f *Feed) Publish(p domain.Progress) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = &p
	for ch := range f.subscribers {
		select {
		case ch <- p:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- p
		}
	}
}

// IsIdle reports whether the feed has no subscribers.
func (f *Feed) IsIdle() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers) == 0
}
