package domain

import (
	"github.com/shopspring/decimal"
)

// AdminID identifies a quiz administrator. It is an identity, never the
// credential used to prove it; see internal/auth for the latter.
type AdminID string

// GameState is the lifecycle state of a running session.
type GameState string

const (
	StateLobby             GameState = "LOBBY"
	StateQuestionCountdown GameState = "QUESTION_COUNTDOWN"
	StateQuestionOpen      GameState = "QUESTION_OPEN"
	StateQuestionClose     GameState = "QUESTION_CLOSE"
	StateAnswerShow        GameState = "ANSWER_SHOW"
	StateFinalResults      GameState = "FINAL_RESULTS"
	StateEnd               GameState = "END"
)

// Action is an administrator command against a session's state machine.
type Action string

const (
	ActionNextQuestion     Action = "NEXT_QUESTION"
	ActionSkipCountdown    Action = "SKIP_COUNTDOWN"
	ActionGoToAnswer       Action = "GO_TO_ANSWER"
	ActionGoToFinalResults Action = "GO_TO_FINAL_RESULTS"
	ActionEnd              Action = "END"
)

// Quiz is quiz content as supplied by the snapshot provider. A session
// keeps its own Clone so that later edits to the live quiz never reach a
// running session.
type Quiz struct {
	QuizID       string
	OwnerID      AdminID
	Name         string
	Archived     bool
	NumQuestions int
	// Duration is the total of all question durations, in seconds.
	Duration     int
	ThumbnailURL string
	Questions    []Question
}

type Question struct {
	QuestionID string
	Question   string
	// Duration is how long the question stays open, in seconds.
	Duration     int
	Points       int64
	ThumbnailURL string
	Answers      []Answer
}

type Answer struct {
	AnswerID string
	Answer   string
	Colour   string
	Correct  bool
}

// Clone deep-copies the quiz, including questions and answers.
func (q Quiz) Clone() Quiz {
	c := q
	c.Questions = make([]Question, len(q.Questions))
	for i, qn := range q.Questions {
		c.Questions[i] = qn
		c.Questions[i].Answers = append([]Answer(nil), qn.Answers...)
	}
	return c
}

// HasAnswer reports whether id belongs to this question's answer set.
func (q Question) HasAnswer(id string) bool {
	for _, a := range q.Answers {
		if a.AnswerID == id {
			return true
		}
	}
	return false
}

// CorrectAnsweredBy reports whether picked covers every answer flagged
// correct. Picking extra incorrect answers does not affect the outcome.
func (q Question) CorrectAnsweredBy(picked map[string]struct{}) bool {
	for _, a := range q.Answers {
		if !a.Correct {
			continue
		}
		if _, ok := picked[a.AnswerID]; !ok {
			return false
		}
	}
	return true
}

// Player is a guest that joined a session. Players are never removed once
// created, so result lookups keep working after the session ends.
type Player struct {
	PlayerID  string
	SessionID string
	Name      string
}

// Submission is one player's recorded answer for one question.
type Submission struct {
	PlayerID string
	Correct  bool
	// TimeTaken is seconds between the question opening and the submission.
	TimeTaken float64
	Score     decimal.Decimal
}

// Message is a session-scoped chat message.
type Message struct {
	PlayerID   string
	PlayerName string
	Body       string
	// SentAt is a unix timestamp in seconds.
	SentAt int64
}

// QuestionResult aggregates one ledger slot once answers are shown.
type QuestionResult struct {
	QuestionID string
	// PlayersCorrect lists names of correct submitters in submission order.
	PlayersCorrect    []string
	PercentCorrect    int
	AverageAnswerTime int
}

// RankedPlayer is one row of the final standings.
type RankedPlayer struct {
	Name  string
	Score decimal.Decimal
}

// FinalResults is the whole-session report, only available once the
// session reaches FINAL_RESULTS.
type FinalResults struct {
	UsersRankedByScore []RankedPlayer
	QuestionResults    []QuestionResult
}

// SessionStatus is the administrator view of a session.
type SessionStatus struct {
	State      GameState
	AtQuestion int
	Players    []string
	Metadata   Quiz
}

// PlayerStatus is the guest view of where their session is up to.
type PlayerStatus struct {
	State        GameState
	NumQuestions int
	AtQuestion   int
}

// AnswerView is an answer with the correct flag stripped, safe to show to
// guests while the question is live.
type AnswerView struct {
	AnswerID string
	Answer   string
	Colour   string
}

// QuestionView is the question a guest is currently on.
type QuestionView struct {
	QuestionID   string
	Question     string
	Duration     int
	Points       int64
	ThumbnailURL string
	Answers      []AnswerView
}

// View strips correctness information from a question.
func (q Question) View() QuestionView {
	v := QuestionView{
		QuestionID:   q.QuestionID,
		Question:     q.Question,
		Duration:     q.Duration,
		Points:       q.Points,
		ThumbnailURL: q.ThumbnailURL,
		Answers:      make([]AnswerView, 0, len(q.Answers)),
	}
	for _, a := range q.Answers {
		v.Answers = append(v.Answers, AnswerView{
			AnswerID: a.AnswerID,
			Answer:   a.Answer,
			Colour:   a.Colour,
		})
	}
	return v
}

// Score is a player's running total within a session, published on every
// accepted submission.
type Score struct {
	SessionID string
	PlayerID  string
	Name      string
	Total     decimal.Decimal
}

// Leaderboard is the live, redis-backed view of a session's standings.
// The authoritative final ranking always comes from the answer ledger.
type Leaderboard struct {
	SessionID string
	Entries   []LeaderboardEntry
}

type LeaderboardEntry struct {
	Name  string
	Score float64
}
