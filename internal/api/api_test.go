package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dl369/quiz-backend/internal/api"
	"github.com/dl369/quiz-backend/internal/auth"
	"github.com/dl369/quiz-backend/internal/domain"
	"github.com/dl369/quiz-backend/internal/event"
	"github.com/dl369/quiz-backend/internal/leaderboard"
	"github.com/dl369/quiz-backend/internal/quiz"
	"github.com/dl369/quiz-backend/internal/session"
)

const adminToken = "token-alice"

func fixtureQuiz() domain.Quiz {
	return domain.Quiz{
		QuizID:       "q1",
		OwnerID:      "alice",
		Name:         "capitals",
		NumQuestions: 1,
		Duration:     60,
		Questions: []domain.Question{
			{
				QuestionID: "q1-1",
				Question:   "capital of france?",
				Duration:   60,
				Points:     5,
				Answers: []domain.Answer{
					{AnswerID: "a1", Answer: "paris", Correct: true},
					{AnswerID: "a2", Answer: "lyon"},
				},
			},
		},
	}
}

type fixture struct {
	router *gin.Engine
	redis  redis.UniversalClient
}

func makeAPI(t *testing.T) *fixture {
	t.Helper()

	gin.SetMode(gin.TestMode)

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})

	eb := event.NewBus()
	qss := session.NewService(session.Config{
		Quizzes:   quiz.NewStaticProvider(fixtureQuiz()),
		EventBus:  eb,
		Countdown: time.Hour,
	})
	ls := leaderboard.NewService(leaderboard.Config{
		EventBus: eb,
		Redis:    rc,
		Prefix:   "test",
	})

	r := gin.New()
	api.New(api.Config{
		Router:       r,
		EventBus:     eb,
		Auth:         auth.NewStaticVerifier(map[string]string{adminToken: "alice"}),
		Session:      qss,
		Leaderboard:  ls,
		Redis:        rc,
		PubsubPrefix: "test",
	})

	return &fixture{router: r, redis: rc}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *strings.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(b))
	} else {
		reader = strings.NewReader("{}")
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("token", token)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestAuthentication(t *testing.T) {
	f := makeAPI(t)

	tests := map[string]struct {
		token    string
		wantCode int
	}{
		"should reject a missing token":  {token: "", wantCode: http.StatusUnauthorized},
		"should reject an invalid token": {token: "bogus", wantCode: http.StatusUnauthorized},
		"should accept a valid token":    {token: adminToken, wantCode: http.StatusOK},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			w, _ := f.do(t, http.MethodGet, "/v1/admin/quiz/q1/sessions", tt.token, nil)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestSessionFlow(t *testing.T) {
	f := makeAPI(t)

	// Start a session.
	w, body := f.do(t, http.MethodPost, "/v1/admin/quiz/q1/session/start", adminToken, gin.H{"autoStartNum": 0})
	require.Equal(t, http.StatusOK, w.Code)
	sid := body["sessionId"].(string)
	require.NotEmpty(t, sid)

	// Join a player.
	w, body = f.do(t, http.MethodPost, "/v1/player/join", "", gin.H{"sessionId": sid, "name": "hayden"})
	require.Equal(t, http.StatusOK, w.Code)
	pid := body["playerId"].(string)
	require.NotEmpty(t, pid)

	// Advance into the open question.
	sessionPath := "/v1/admin/quiz/q1/session/" + sid
	for _, action := range []domain.Action{domain.ActionNextQuestion, domain.ActionSkipCountdown} {
		w, _ = f.do(t, http.MethodPut, sessionPath, adminToken, gin.H{"action": action})
		require.Equal(t, http.StatusOK, w.Code)
	}

	// The guest view hides correctness.
	w, body = f.do(t, http.MethodGet, "/v1/player/"+pid+"/question/1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	answers := body["answers"].([]any)
	require.Len(t, answers, 2)
	_, leaks := answers[0].(map[string]any)["correct"]
	assert.False(t, leaks, "correct flag must not reach players")

	// Answer, reveal, finish.
	w, _ = f.do(t, http.MethodPut, "/v1/player/"+pid+"/question/1/answer", "", gin.H{"answerIds": []string{"a1"}})
	require.Equal(t, http.StatusOK, w.Code)

	for _, action := range []domain.Action{domain.ActionGoToAnswer, domain.ActionGoToFinalResults} {
		w, _ = f.do(t, http.MethodPut, sessionPath, adminToken, gin.H{"action": action})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, body = f.do(t, http.MethodGet, "/v1/player/"+pid+"/results", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ranked := body["usersRankedByScore"].([]any)
	require.Len(t, ranked, 1)
	assert.Equal(t, "hayden", ranked[0].(map[string]any)["name"])
	assert.Equal(t, float64(5), ranked[0].(map[string]any)["score"])

	// Admin sees the same report.
	w, adminBody := f.do(t, http.MethodGet, sessionPath+"/results", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, adminBody)
}

func TestSessionFlow_Errors(t *testing.T) {
	f := makeAPI(t)

	w, body := f.do(t, http.MethodPost, "/v1/admin/quiz/q1/session/start", adminToken, gin.H{"autoStartNum": 0})
	require.Equal(t, http.StatusOK, w.Code)
	sid := body["sessionId"].(string)

	t.Run("should map an illegal action to 400", func(t *testing.T) {
		w, body := f.do(t, http.MethodPut, "/v1/admin/quiz/q1/session/"+sid, adminToken, gin.H{"action": "SKIP_COUNTDOWN"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NotEmpty(t, body["error"])
	})

	t.Run("should map a foreign quiz to 404", func(t *testing.T) {
		w, _ := f.do(t, http.MethodGet, "/v1/admin/quiz/missing/sessions", adminToken, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("should reject a non-numeric question position", func(t *testing.T) {
		w, _ := f.do(t, http.MethodGet, "/v1/player/p1/question/one", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should clear everything", func(t *testing.T) {
		w, _ := f.do(t, http.MethodDelete, "/v1/clear", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w, _ = f.do(t, http.MethodGet, "/v1/admin/quiz/q1/session/"+sid, adminToken, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestChatOverHTTP(t *testing.T) {
	f := makeAPI(t)

	_, body := f.do(t, http.MethodPost, "/v1/admin/quiz/q1/session/start", adminToken, gin.H{"autoStartNum": 0})
	sid := body["sessionId"].(string)
	_, body = f.do(t, http.MethodPost, "/v1/player/join", "", gin.H{"sessionId": sid, "name": "hayden"})
	pid := body["playerId"].(string)

	w, _ := f.do(t, http.MethodPost, "/v1/player/"+pid+"/chat", "", gin.H{"message": gin.H{"messageBody": "hello"}})
	require.Equal(t, http.StatusOK, w.Code)

	w, body = f.do(t, http.MethodGet, "/v1/player/"+pid+"/chat", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	m := msgs[0].(map[string]any)
	assert.Equal(t, "hello", m["messageBody"])
	assert.Equal(t, "hayden", m["playerName"])
}

func TestPubsubNotifications(t *testing.T) {
	f := makeAPI(t)

	_, body := f.do(t, http.MethodPost, "/v1/admin/quiz/q1/session/start", adminToken, gin.H{"autoStartNum": 0})
	sid := body["sessionId"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub := f.redis.Subscribe(ctx, fmt.Sprintf("test:session:%s", sid))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	w, _ := f.do(t, http.MethodPut, "/v1/admin/quiz/q1/session/"+sid, adminToken, gin.H{"action": "NEXT_QUESTION"})
	require.Equal(t, http.StatusOK, w.Code)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var n api.Notification
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
	assert.Equal(t, domain.EventNameSessionStateChanged, n.Event)
}
