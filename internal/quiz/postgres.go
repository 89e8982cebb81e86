package quiz

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dl369/quiz-backend/internal/domain"
	"github.com/dl369/quiz-backend/internal/errors"
)

// Store loads quizzes from postgres. It is read-only: the authoring
// service owns the schema and the writes.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	q, err := s.getQuizRow(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}

	questions, err := s.getQuestions(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}

	if err := s.attachAnswers(ctx, quizID, questions); err != nil {
		return domain.Quiz{}, fmt.Errorf("load answers: %w", err)
	}

	q.Questions = questions
	q.NumQuestions = len(questions)
	for _, qn := range questions {
		q.Duration += qn.Duration
	}

	return q, nil
}

func (s *Store) getQuizRow(ctx context.Context, quizID string) (domain.Quiz, error) {
	const stmt = `
SELECT quiz_id, owner_id, name, archived, COALESCE(thumbnail_url, '')
FROM quizzes
WHERE quiz_id = $1;`

	var q domain.Quiz
	err := s.db.QueryRow(ctx, stmt, quizID).
		Scan(&q.QuizID, &q.OwnerID, &q.Name, &q.Archived, &q.ThumbnailURL)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, errors.NotFoundf("quiz %s does not exist", quizID)
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	return q, nil
}

func (s *Store) getQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	const stmt = `
SELECT question_id, question, duration, points, COALESCE(thumbnail_url, '')
FROM questions
WHERE quiz_id = $1
ORDER BY position;`

	rows, err := s.db.Query(ctx, stmt, quizID)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Question, error) {
		var q domain.Question
		err := r.Scan(&q.QuestionID, &q.Question, &q.Duration, &q.Points, &q.ThumbnailURL)
		return q, err
	})
}

func (s *Store) attachAnswers(ctx context.Context, quizID string, questions []domain.Question) error {
	const stmt = `
SELECT a.question_id, a.answer_id, a.answer, a.colour, a.correct
FROM answers a
JOIN questions q ON q.question_id = a.question_id
WHERE q.quiz_id = $1
ORDER BY a.question_id, a.position;`

	rows, err := s.db.Query(ctx, stmt, quizID)
	if err != nil {
		return err
	}

	byQuestion := make(map[string][]domain.Answer)
	type answerRow struct {
		questionID string
		answer     domain.Answer
	}
	collected, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (answerRow, error) {
		var ar answerRow
		err := r.Scan(&ar.questionID, &ar.answer.AnswerID, &ar.answer.Answer, &ar.answer.Colour, &ar.answer.Correct)
		return ar, err
	})
	if err != nil {
		return err
	}
	for _, ar := range collected {
		byQuestion[ar.questionID] = append(byQuestion[ar.questionID], ar.answer)
	}

	for i := range questions {
		questions[i].Answers = byQuestion[questions[i].QuestionID]
	}

	return nil
}
