package quiz

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dl369/quiz-backend/internal/domain"
)

// Cache is a TTL read-through cache in front of a Provider. Concurrent
// misses for the same quiz collapse into one load, and expirations get up
// to 10% jitter so a hot quiz does not reload in lockstep.
type Cache struct {
	next  Provider
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewCache(next Provider, ttl time.Duration) *Cache {
	return &Cache{
		next:    next,
		ttl:     ttl,
		clock:   time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cache) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	now := c.clock()

	c.mu.RLock()
	if e, ok := c.entries[quizID]; ok && e.expiresAt.After(now) {
		c.mu.RUnlock()
		return e.quiz, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(quizID, func() (any, error) {
		now := c.clock()

		c.mu.RLock()
		if e, ok := c.entries[quizID]; ok && e.expiresAt.After(now) {
			c.mu.RUnlock()
			return e.quiz, nil
		}
		c.mu.RUnlock()

		q, err := c.next.GetQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		c.mu.Lock()
		c.entries[quizID] = cacheEntry{
			quiz:      q,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()

		return q, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}

	return result.(domain.Quiz), nil
}

func (c *Cache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	return c.ttl + time.Duration(rand.Int63n(int64(c.ttl)/10+1))
}
