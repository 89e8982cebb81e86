package quiz

import (
	"context"
	"sync"

	"github.com/dl369/quiz-backend/internal/domain"
	"github.com/dl369/quiz-backend/internal/errors"
)

// StaticProvider serves quizzes from an in-memory map, for local wiring
// and tests.
type StaticProvider struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
}

func NewStaticProvider(quizzes ...domain.Quiz) *StaticProvider {
	p := &StaticProvider{quizzes: make(map[string]domain.Quiz, len(quizzes))}
	for _, q := range quizzes {
		p.quizzes[q.QuizID] = q.Clone()
	}
	return p
}

func (p *StaticProvider) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	q, ok := p.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, errors.NotFoundf("quiz %s does not exist", quizID)
	}

	return q.Clone(), nil
}

// PutQuiz inserts or replaces a quiz. Running sessions are unaffected;
// they hold their own snapshot.
func (p *StaticProvider) PutQuiz(q domain.Quiz) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.quizzes[q.QuizID] = q.Clone()
}
