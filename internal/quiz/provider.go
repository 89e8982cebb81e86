// Package quiz supplies quiz content to the session engine. Quiz authoring
// and validation are owned by another service; the engine only ever reads,
// and it deep-copies whatever it reads before a session starts.
package quiz

import (
	"context"

	"github.com/dl369/quiz-backend/internal/domain"
)

// Provider loads a quiz by id. Implementations return a NotFound coded
// error for unknown ids. Callers must not mutate the returned quiz; the
// session engine clones it into a snapshot before use.
type Provider interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}
