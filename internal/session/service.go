// Package session implements the live-quiz session engine: a registry of
// per-session state machines advanced by administrator actions and by
// delayed timer transitions, with player joins, answer scoring and result
// aggregation hanging off the same per-session lock.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dl369/quiz-backend/internal/domain"
	"github.com/dl369/quiz-backend/internal/errors"
	"github.com/dl369/quiz-backend/internal/event"
	"github.com/dl369/quiz-backend/internal/quiz"
)

const (
	defaultCountdown = 3 * time.Second

	maxAutoStart      = 50
	maxActiveSessions = 10
	maxMessageLength  = 100
)

type Config struct {
	Quizzes  quiz.Provider
	EventBus *event.Bus

	// Countdown is the delay between QUESTION_COUNTDOWN and QUESTION_OPEN.
	// Zero means the default 3 seconds; tests shrink it.
	Countdown time.Duration

	// Clock defaults to time.Now.
	Clock func() time.Time
}

type Service struct {
	quizzes   quiz.Provider
	eb        *event.Bus
	countdown time.Duration
	clock     func() time.Time
	timers    *timerSet

	mu       sync.RWMutex
	sessions map[string]*session
	players  map[string]string // player id -> session id
}

func NewService(c Config) *Service {
	s := &Service{
		quizzes:   c.Quizzes,
		eb:        c.EventBus,
		countdown: c.Countdown,
		clock:     c.Clock,
		timers:    newTimerSet(),
		sessions:  make(map[string]*session),
		players:   make(map[string]string),
	}
	if s.countdown <= 0 {
		s.countdown = defaultCountdown
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	return s
}

type StartSessionRequest struct {
	AdminID      domain.AdminID
	QuizID       string
	AutoStartNum int
}

type StartSessionResponse struct {
	SessionID string
}

// StartSession snapshots the quiz and creates a session in LOBBY. The
// snapshot is a deep copy: edits to the live quiz never reach a running
// session.
func (s *Service) StartSession(ctx context.Context, req StartSessionRequest) (*StartSessionResponse, error) {
	q, err := s.ownedQuiz(ctx, req.AdminID, req.QuizID)
	if err != nil {
		return nil, err
	}

	if q.Archived {
		return nil, errors.Validationf("quiz %s is archived", req.QuizID)
	}
	if req.AutoStartNum > maxAutoStart {
		return nil, errors.Validationf("autoStartNum %d exceeds the maximum of %d", req.AutoStartNum, maxAutoStart)
	}
	if q.NumQuestions == 0 {
		return nil, errors.Validationf("quiz %s has no questions", req.QuizID)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	sess := &session{
		id:           id.String(),
		snapshot:     q.Clone(),
		state:        domain.StateLobby,
		autoStartNum: req.AutoStartNum,
		ledger:       make([]ledgerSlot, q.NumQuestions),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	active := 0
	for _, other := range s.sessions {
		other.mu.Lock()
		if other.snapshot.QuizID == req.QuizID && other.state != domain.StateEnd {
			active++
		}
		other.mu.Unlock()
	}
	if active >= maxActiveSessions {
		return nil, errors.Validationf("quiz %s already has %d active sessions", req.QuizID, maxActiveSessions)
	}

	s.sessions[sess.id] = sess

	slog.InfoContext(ctx, "session: started", "session_id", sess.id, "quiz_id", req.QuizID, "auto_start", req.AutoStartNum)
	return &StartSessionResponse{SessionID: sess.id}, nil
}

type ListSessionsRequest struct {
	AdminID domain.AdminID
	QuizID  string
}

type ListSessionsResponse struct {
	Active   []string
	Inactive []string
}

// ListSessions splits a quiz's sessions into active (not END) and
// inactive (END), each sorted ascending.
func (s *Service) ListSessions(ctx context.Context, req ListSessionsRequest) (*ListSessionsResponse, error) {
	if _, err := s.ownedQuiz(ctx, req.AdminID, req.QuizID); err != nil {
		return nil, err
	}

	resp := &ListSessionsResponse{
		Active:   []string{},
		Inactive: []string{},
	}

	s.mu.RLock()
	for _, sess := range s.sessions {
		sess.mu.Lock()
		if sess.snapshot.QuizID == req.QuizID {
			if sess.state == domain.StateEnd {
				resp.Inactive = append(resp.Inactive, sess.id)
			} else {
				resp.Active = append(resp.Active, sess.id)
			}
		}
		sess.mu.Unlock()
	}
	s.mu.RUnlock()

	sort.Strings(resp.Active)
	sort.Strings(resp.Inactive)
	return resp, nil
}

type UpdateSessionRequest struct {
	AdminID   domain.AdminID
	QuizID    string
	SessionID string
	Action    domain.Action
}

// UpdateSession applies an administrator action to the session's state
// machine, scheduling any delayed transitions the new state calls for.
func (s *Service) UpdateSession(ctx context.Context, req UpdateSessionRequest) error {
	if _, err := s.ownedQuiz(ctx, req.AdminID, req.QuizID); err != nil {
		return err
	}

	sess, err := s.lookup(req.SessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.snapshot.QuizID != req.QuizID {
		return errors.Validationf("session %s does not belong to quiz %s", req.SessionID, req.QuizID)
	}

	next, err := nextState(sess.state, req.Action)
	if err != nil {
		return err
	}

	if req.Action == domain.ActionNextQuestion {
		return s.advanceLocked(ctx, sess)
	}

	s.enterLocked(ctx, sess, next)
	return nil
}

type SessionStatusRequest struct {
	AdminID   domain.AdminID
	QuizID    string
	SessionID string
}

func (s *Service) SessionStatus(ctx context.Context, req SessionStatusRequest) (*domain.SessionStatus, error) {
	if _, err := s.ownedQuiz(ctx, req.AdminID, req.QuizID); err != nil {
		return nil, err
	}

	sess, err := s.lookup(req.SessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.snapshot.QuizID != req.QuizID {
		return nil, errors.Validationf("session %s does not belong to quiz %s", req.SessionID, req.QuizID)
	}

	st := sess.statusLocked()
	return &st, nil
}

type SessionResultsRequest struct {
	AdminID   domain.AdminID
	QuizID    string
	SessionID string
}

// SessionResults is the administrator's copy of the final report,
// computed straight from the ledger.
func (s *Service) SessionResults(ctx context.Context, req SessionResultsRequest) (*domain.FinalResults, error) {
	if _, err := s.ownedQuiz(ctx, req.AdminID, req.QuizID); err != nil {
		return nil, err
	}

	sess, err := s.lookup(req.SessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.snapshot.QuizID != req.QuizID {
		return nil, errors.Validationf("session %s does not belong to quiz %s", req.SessionID, req.QuizID)
	}
	if sess.state != domain.StateFinalResults {
		return nil, errors.Validationf("session %s is not in the final results state", req.SessionID)
	}

	results := sess.finalResultsLocked()
	return &results, nil
}

type JoinRequest struct {
	SessionID string
	Name      string
}

type JoinResponse struct {
	PlayerID string
	Name     string
}

// Join adds a guest to a lobby. An empty name gets a generated one; a
// duplicate name is rejected. Reaching autoStartNum players force-starts
// the session exactly as an explicit NEXT_QUESTION would.
func (s *Service) Join(ctx context.Context, req JoinRequest) (*JoinResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[req.SessionID]
	if !ok {
		return nil, errors.Validationf("session %s does not exist", req.SessionID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state != domain.StateLobby {
		return nil, errors.Validationf("session %s is not in the lobby", req.SessionID)
	}

	name := req.Name
	if name == "" {
		for name = randomPlayerName(); sess.hasPlayerNameLocked(name); name = randomPlayerName() {
		}
	} else if sess.hasPlayerNameLocked(name) {
		return nil, errors.Validationf("name %q is already in use", name)
	}

	p := &domain.Player{
		PlayerID:  uuid.NewString(),
		SessionID: sess.id,
		Name:      name,
	}
	sess.players = append(sess.players, p)
	s.players[p.PlayerID] = sess.id

	s.eb.Publish(ctx, domain.EventPlayerJoined{Player: *p})

	// autoStartNum zero means the session only starts on an explicit
	// NEXT_QUESTION.
	if sess.autoStartNum > 0 && len(sess.players) >= sess.autoStartNum {
		// Auto-start takes the NEXT_QUESTION path, countdown timer included.
		if err := s.advanceLocked(ctx, sess); err != nil {
			return nil, err
		}
	}

	return &JoinResponse{PlayerID: p.PlayerID, Name: name}, nil
}

type PlayerStatusRequest struct {
	PlayerID string
}

func (s *Service) PlayerStatus(_ context.Context, req PlayerStatusRequest) (*domain.PlayerStatus, error) {
	sess, err := s.lookupPlayer(req.PlayerID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	return &domain.PlayerStatus{
		State:        sess.state,
		NumQuestions: sess.snapshot.NumQuestions,
		AtQuestion:   sess.atQuestion,
	}, nil
}

type QuestionInfoRequest struct {
	PlayerID string
	Position int
}

// QuestionInfo returns the question a player is on, with correctness
// flags stripped.
func (s *Service) QuestionInfo(_ context.Context, req QuestionInfoRequest) (*domain.QuestionView, error) {
	sess, err := s.lookupPlayer(req.PlayerID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.checkPositionLocked(req.Position); err != nil {
		return nil, err
	}
	switch sess.state {
	case domain.StateLobby, domain.StateQuestionCountdown, domain.StateEnd:
		return nil, errors.Validationf("question info is not available in state %s", sess.state)
	}
	if sess.atQuestion != req.Position {
		return nil, errors.Validationf("session is not up to question %d", req.Position)
	}

	v := sess.snapshot.Questions[req.Position-1].View()
	return &v, nil
}

type SubmitAnswerRequest struct {
	PlayerID  string
	Position  int
	AnswerIDs []string
}

// SubmitAnswer records a player's answer for the open question. A correct
// submission earns points divided by one plus the number of correct
// submissions already in the slot; resubmitting overwrites the previous
// entry and recomputes against the current scaling factor.
func (s *Service) SubmitAnswer(ctx context.Context, req SubmitAnswerRequest) error {
	sess, err := s.lookupPlayer(req.PlayerID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.checkPositionLocked(req.Position); err != nil {
		return err
	}
	if sess.state != domain.StateQuestionOpen {
		return errors.Validationf("question %d is not open for answers", req.Position)
	}
	if sess.atQuestion != req.Position {
		return errors.Validationf("session is not up to question %d", req.Position)
	}

	if len(req.AnswerIDs) == 0 {
		return errors.Validationf("at least one answer is required")
	}

	question := sess.snapshot.Questions[req.Position-1]
	picked := make(map[string]struct{}, len(req.AnswerIDs))
	for _, id := range req.AnswerIDs {
		if _, dup := picked[id]; dup {
			return errors.Validationf("duplicate answer id %s", id)
		}
		if !question.HasAnswer(id) {
			return errors.Validationf("answer %s does not belong to question %d", id, req.Position)
		}
		picked[id] = struct{}{}
	}

	correct := question.CorrectAnsweredBy(picked)

	slot := &sess.ledger[req.Position-1]
	score := decimal.Zero
	if correct {
		factor := int64(1)
		for _, sub := range slot.submissions {
			if sub.Correct {
				factor++
			}
		}
		score = decimal.NewFromInt(question.Points).Div(decimal.NewFromInt(factor))
	}

	sub := domain.Submission{
		PlayerID:  req.PlayerID,
		Correct:   correct,
		TimeTaken: s.clock().Sub(sess.questionStart).Seconds(),
		Score:     score,
	}
	if i := slot.indexOf(req.PlayerID); i >= 0 {
		slot.submissions[i] = sub
	} else {
		slot.submissions = append(slot.submissions, sub)
	}

	s.eb.Publish(ctx, domain.EventScoreUpdated{Score: domain.Score{
		SessionID: sess.id,
		PlayerID:  req.PlayerID,
		Name:      sess.playerNameLocked(req.PlayerID),
		Total:     sess.totalScoreLocked(req.PlayerID),
	}})

	return nil
}

type QuestionResultRequest struct {
	PlayerID string
	Position int
}

// QuestionResult reports one question's aggregate once answers are shown.
func (s *Service) QuestionResult(_ context.Context, req QuestionResultRequest) (*domain.QuestionResult, error) {
	sess, err := s.lookupPlayer(req.PlayerID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.checkPositionLocked(req.Position); err != nil {
		return nil, err
	}
	if sess.state != domain.StateAnswerShow && sess.state != domain.StateFinalResults {
		return nil, errors.Validationf("question results are not available in state %s", sess.state)
	}
	if sess.atQuestion < req.Position {
		return nil, errors.Validationf("session is not up to question %d", req.Position)
	}

	result := sess.questionResultLocked(req.Position)
	return &result, nil
}

type FinalResultsRequest struct {
	PlayerID string
}

func (s *Service) FinalResults(_ context.Context, req FinalResultsRequest) (*domain.FinalResults, error) {
	sess, err := s.lookupPlayer(req.PlayerID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state != domain.StateFinalResults {
		return nil, errors.Validationf("session is not in the final results state")
	}

	results := sess.finalResultsLocked()
	return &results, nil
}

type MessagesRequest struct {
	PlayerID string
}

// Messages returns the session's chat in arrival order.
func (s *Service) Messages(_ context.Context, req MessagesRequest) ([]domain.Message, error) {
	sess, err := s.lookupPlayer(req.PlayerID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	return append([]domain.Message{}, sess.messages...), nil
}

type SendMessageRequest struct {
	PlayerID string
	Body     string
}

// SendMessage appends a chat message. The trimmed body must be between 1
// and 100 characters; the stored body keeps its original whitespace.
func (s *Service) SendMessage(ctx context.Context, req SendMessageRequest) error {
	sess, err := s.lookupPlayer(req.PlayerID)
	if err != nil {
		return err
	}

	// Length limits count characters, not bytes.
	trimmed := strings.TrimSpace(req.Body)
	if utf8.RuneCountInString(trimmed) < 1 {
		return errors.Validationf("message body is too short")
	}
	if utf8.RuneCountInString(trimmed) > maxMessageLength {
		return errors.Validationf("message body is too long")
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	m := domain.Message{
		PlayerID:   req.PlayerID,
		PlayerName: sess.playerNameLocked(req.PlayerID),
		Body:       req.Body,
		SentAt:     s.clock().Unix(),
	}
	sess.messages = append(sess.messages, m)

	s.eb.Publish(ctx, domain.EventChatMessage{SessionID: sess.id, Message: m})
	return nil
}

// Reset drops every session and player and cancels all outstanding
// timers, so no stale callback can fire against the cleared registry.
func (s *Service) Reset(ctx context.Context) {
	s.timers.cancelAll()

	s.mu.Lock()
	s.sessions = make(map[string]*session)
	s.players = make(map[string]string)
	s.mu.Unlock()

	slog.InfoContext(ctx, "session: registry reset")
}

func (s *Service) ownedQuiz(ctx context.Context, admin domain.AdminID, quizID string) (domain.Quiz, error) {
	q, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}

	if q.OwnerID != admin {
		return domain.Quiz{}, errors.PermissionDeniedf("quiz %s belongs to another user", quizID)
	}

	return q, nil
}

func (s *Service) lookup(sessionID string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, errors.Validationf("session %s does not exist", sessionID)
	}
	return sess, nil
}

func (s *Service) lookupPlayer(playerID string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sid, ok := s.players[playerID]
	if !ok {
		return nil, errors.Validationf("player %s does not exist", playerID)
	}
	sess, ok := s.sessions[sid]
	if !ok {
		return nil, errors.Validationf("player %s does not exist", playerID)
	}
	return sess, nil
}

// advanceLocked moves the session to the next question's countdown,
// failing if the snapshot has no question left.
func (s *Service) advanceLocked(ctx context.Context, sess *session) error {
	if sess.atQuestion+1 > sess.snapshot.NumQuestions {
		return errors.Validationf("quiz has no question %d", sess.atQuestion+1)
	}
	sess.atQuestion++
	s.enterLocked(ctx, sess, domain.StateQuestionCountdown)
	return nil
}

// enterLocked commits a transition and performs the new state's entry
// effects: QUESTION_COUNTDOWN arms the countdown timer, QUESTION_OPEN
// stamps the question start time and arms the close timer.
func (s *Service) enterLocked(ctx context.Context, sess *session, next domain.GameState) {
	sess.state = next
	sess.generation++

	switch next {
	case domain.StateQuestionCountdown:
		s.armTimerLocked(ctx, sess, s.countdown, domain.StateQuestionOpen)
	case domain.StateQuestionOpen:
		sess.questionStart = s.clock()
		d := time.Duration(sess.currentQuestionLocked().Duration) * time.Second
		s.armTimerLocked(ctx, sess, d, domain.StateQuestionClose)
	}

	s.eb.Publish(ctx, domain.EventSessionStateChanged{
		SessionID:  sess.id,
		State:      next,
		AtQuestion: sess.atQuestion,
	})
}

func (s *Service) armTimerLocked(ctx context.Context, sess *session, d time.Duration, target domain.GameState) {
	gen := sess.generation
	ctx = context.WithoutCancel(ctx)
	s.timers.schedule(d, func() {
		s.fire(ctx, sess, gen, target)
	})
}

// fire applies a timer-driven transition. A session that has transitioned
// since the timer was armed is left alone; that is not an error.
func (s *Service) fire(ctx context.Context, sess *session, gen uint64, target domain.GameState) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.generation != gen {
		return
	}
	s.enterLocked(ctx, sess, target)
}

func (sess *session) checkPositionLocked(position int) error {
	if position < 1 || position > sess.snapshot.NumQuestions {
		return errors.Validationf("question position %d is out of range", position)
	}
	return nil
}
