package session

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dl369/quiz-backend/internal/domain"
)

// session holds all mutable state for one running quiz. Every field below
// the mutex is guarded by it; timer callbacks and administrator actions
// for the same session are serialized through this lock.
type session struct {
	mu sync.Mutex

	id       string
	snapshot domain.Quiz

	state      domain.GameState
	atQuestion int // 0 = not started, otherwise 1-based into snapshot.Questions
	// generation increments on every transition. A timer captures it when
	// armed and fires into nothing if the session has since moved on.
	generation    uint64
	questionStart time.Time

	autoStartNum int
	players      []*domain.Player
	// ledger has exactly one slot per snapshot question for the session's
	// whole lifetime.
	ledger   []ledgerSlot
	messages []domain.Message
}

type ledgerSlot struct {
	submissions []domain.Submission
}

func (sl *ledgerSlot) indexOf(playerID string) int {
	for i, sub := range sl.submissions {
		if sub.PlayerID == playerID {
			return i
		}
	}
	return -1
}

func (s *session) currentQuestionLocked() domain.Question {
	return s.snapshot.Questions[s.atQuestion-1]
}

func (s *session) hasPlayerNameLocked(name string) bool {
	for _, p := range s.players {
		if p.Name == name {
			return true
		}
	}
	return false
}

func (s *session) playerLocked(playerID string) *domain.Player {
	for _, p := range s.players {
		if p.PlayerID == playerID {
			return p
		}
	}
	return nil
}

func (s *session) playerNameLocked(playerID string) string {
	if p := s.playerLocked(playerID); p != nil {
		return p.Name
	}
	return ""
}

// totalScoreLocked sums a player's recorded correct-submission scores
// across every ledger slot.
func (s *session) totalScoreLocked(playerID string) decimal.Decimal {
	total := decimal.Zero
	for _, slot := range s.ledger {
		for _, sub := range slot.submissions {
			if sub.PlayerID == playerID && sub.Correct {
				total = total.Add(sub.Score)
			}
		}
	}
	return total
}

// questionResultLocked aggregates one ledger slot. A slot with no
// submissions averages to zero rather than dividing by it.
func (s *session) questionResultLocked(position int) domain.QuestionResult {
	slot := s.ledger[position-1]

	correct := make([]string, 0, len(slot.submissions))
	var totalTime float64
	for _, sub := range slot.submissions {
		if sub.Correct {
			correct = append(correct, s.playerNameLocked(sub.PlayerID))
		}
		totalTime += sub.TimeTaken
	}

	var percent, avg int
	if len(s.players) > 0 {
		percent = int(math.Round(100 * float64(len(correct)) / float64(len(s.players))))
	}
	if len(slot.submissions) > 0 {
		avg = int(math.Round(totalTime / float64(len(slot.submissions))))
	}

	return domain.QuestionResult{
		QuestionID:        s.snapshot.Questions[position-1].QuestionID,
		PlayersCorrect:    correct,
		PercentCorrect:    percent,
		AverageAnswerTime: avg,
	}
}

// finalResultsLocked builds the whole-session report. Every player starts
// at zero; equal totals keep join order.
func (s *session) finalResultsLocked() domain.FinalResults {
	results := domain.FinalResults{
		UsersRankedByScore: make([]domain.RankedPlayer, 0, len(s.players)),
		QuestionResults:    make([]domain.QuestionResult, 0, s.snapshot.NumQuestions),
	}

	for pos := 1; pos <= s.snapshot.NumQuestions; pos++ {
		results.QuestionResults = append(results.QuestionResults, s.questionResultLocked(pos))
	}

	for _, p := range s.players {
		results.UsersRankedByScore = append(results.UsersRankedByScore, domain.RankedPlayer{
			Name:  p.Name,
			Score: s.totalScoreLocked(p.PlayerID),
		})
	}
	sort.SliceStable(results.UsersRankedByScore, func(i, j int) bool {
		return results.UsersRankedByScore[i].Score.GreaterThan(results.UsersRankedByScore[j].Score)
	})

	return results
}

func (s *session) statusLocked() domain.SessionStatus {
	players := make([]string, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, p.Name)
	}

	return domain.SessionStatus{
		State:      s.state,
		AtQuestion: s.atQuestion,
		Players:    players,
		Metadata:   s.snapshot.Clone(),
	}
}
