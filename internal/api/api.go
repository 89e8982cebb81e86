package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/dl369/quiz-backend/internal/auth"
	"github.com/dl369/quiz-backend/internal/domain"
	"github.com/dl369/quiz-backend/internal/errors"
	"github.com/dl369/quiz-backend/internal/event"
	"github.com/dl369/quiz-backend/internal/leaderboard"
	"github.com/dl369/quiz-backend/internal/session"
)

type Config struct {
	Router       gin.IRouter
	EventBus     *event.Bus
	Auth         auth.Verifier
	Session      *session.Service
	Leaderboard  *leaderboard.Service
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	auth auth.Verifier
	qss  *session.Service
	ls   *leaderboard.Service

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		auth:   c.Auth,
		qss:    c.Session,
		ls:     c.Leaderboard,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	a.registerRoutes(c.Router)
	a.registerPubsub(c.EventBus)

	return a
}

func (a *API) registerRoutes(r gin.IRouter) {
	v1 := r.Group("/v1")

	admin := v1.Group("/admin", a.authenticate)
	admin.POST("/quiz/:quizid/session/start", a.startSession)
	admin.GET("/quiz/:quizid/sessions", a.listSessions)
	admin.PUT("/quiz/:quizid/session/:sessionid", a.updateSession)
	admin.GET("/quiz/:quizid/session/:sessionid", a.sessionStatus)
	admin.GET("/quiz/:quizid/session/:sessionid/results", a.sessionResults)

	player := v1.Group("/player")
	player.POST("/join", a.join)
	player.GET("/:playerid", a.playerStatus)
	player.GET("/:playerid/question/:questionposition", a.questionInfo)
	player.PUT("/:playerid/question/:questionposition/answer", a.submitAnswer)
	player.GET("/:playerid/question/:questionposition/results", a.questionResults)
	player.GET("/:playerid/results", a.finalResults)
	player.GET("/:playerid/chat", a.messages)
	player.POST("/:playerid/chat", a.sendMessage)

	v1.GET("/session/:sessionid/leaderboard", a.getLeaderboard)
	v1.DELETE("/clear", a.clear)
}

const adminIDKey = "adminID"

// authenticate resolves the token header to an admin identity; handlers
// behind it read the identity from the request context.
func (a *API) authenticate(c *gin.Context) {
	token := auth.Token(c.GetHeader("token"))
	if token == "" {
		abortError(c, errors.Unauthenticatedf("token header is required"))
		return
	}

	id, err := a.auth.Verify(c.Request.Context(), token)
	if err != nil {
		abortError(c, err)
		return
	}

	c.Set(adminIDKey, id)
}

func adminID(c *gin.Context) domain.AdminID {
	return c.MustGet(adminIDKey).(domain.AdminID)
}

func abortError(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{"error": e.Message})
}

type startSessionBody struct {
	AutoStartNum int `json:"autoStartNum"`
}

func (a *API) startSession(c *gin.Context) {
	var body startSessionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortError(c, errors.Validationf("invalid request body: %v", err))
		return
	}

	resp, err := a.qss.StartSession(c.Request.Context(), session.StartSessionRequest{
		AdminID:      adminID(c),
		QuizID:       c.Param("quizid"),
		AutoStartNum: body.AutoStartNum,
	})
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessionId": resp.SessionID})
}

func (a *API) listSessions(c *gin.Context) {
	resp, err := a.qss.ListSessions(c.Request.Context(), session.ListSessionsRequest{
		AdminID: adminID(c),
		QuizID:  c.Param("quizid"),
	})
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"activeSessions":   resp.Active,
		"inactiveSessions": resp.Inactive,
	})
}

type updateSessionBody struct {
	Action string `json:"action"`
}

func (a *API) updateSession(c *gin.Context) {
	var body updateSessionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortError(c, errors.Validationf("invalid request body: %v", err))
		return
	}

	err := a.qss.UpdateSession(c.Request.Context(), session.UpdateSessionRequest{
		AdminID:   adminID(c),
		QuizID:    c.Param("quizid"),
		SessionID: c.Param("sessionid"),
		Action:    domain.Action(body.Action),
	})
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

func (a *API) sessionStatus(c *gin.Context) {
	st, err := a.qss.SessionStatus(c.Request.Context(), session.SessionStatusRequest{
		AdminID:   adminID(c),
		QuizID:    c.Param("quizid"),
		SessionID: c.Param("sessionid"),
	})
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionStatusDTO(st))
}

func (a *API) sessionResults(c *gin.Context) {
	results, err := a.qss.SessionResults(c.Request.Context(), session.SessionResultsRequest{
		AdminID:   adminID(c),
		QuizID:    c.Param("quizid"),
		SessionID: c.Param("sessionid"),
	})
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, finalResultsDTO(results))
}

type joinBody struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
}

func (a *API) join(c *gin.Context) {
	var body joinBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortError(c, errors.Validationf("invalid request body: %v", err))
		return
	}

	resp, err := a.qss.Join(c.Request.Context(), session.JoinRequest{
		SessionID: body.SessionID,
		Name:      body.Name,
	})
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"playerId": resp.PlayerID,
		"name":     resp.Name,
	})
}

func (a *API) playerStatus(c *gin.Context) {
	st, err := a.qss.PlayerStatus(c.Request.Context(), session.PlayerStatusRequest{
		PlayerID: c.Param("playerid"),
	})
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"state":        st.State,
		"numQuestions": st.NumQuestions,
		"atQuestion":   st.AtQuestion,
	})
}

func (a *API) questionInfo(c *gin.Context) {
	pos, err := positionParam(c)
	if err != nil {
		abortError(c, err)
		return
	}

	info, err := a.qss.QuestionInfo(c.Request.Context(), session.QuestionInfoRequest{
		PlayerID: c.Param("playerid"),
		Position: pos,
	})
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, questionViewDTO(info))
}

type submitAnswerBody struct {
	AnswerIDs []string `json:"answerIds"`
}

func (a *API) submitAnswer(c *gin.Context) {
	pos, err := positionParam(c)
	if err != nil {
		abortError(c, err)
		return
	}

	var body submitAnswerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortError(c, errors.Validationf("invalid request body: %v", err))
		return
	}

	err = a.qss.SubmitAnswer(c.Request.Context(), session.SubmitAnswerRequest{
		PlayerID:  c.Param("playerid"),
		Position:  pos,
		AnswerIDs: body.AnswerIDs,
	})
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

func (a *API) questionResults(c *gin.Context) {
	pos, err := positionParam(c)
	if err != nil {
		abortError(c, err)
		return
	}

	result, err := a.qss.QuestionResult(c.Request.Context(), session.QuestionResultRequest{
		PlayerID: c.Param("playerid"),
		Position: pos,
	})
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, questionResultDTO(*result))
}

func (a *API) finalResults(c *gin.Context) {
	results, err := a.qss.FinalResults(c.Request.Context(), session.FinalResultsRequest{
		PlayerID: c.Param("playerid"),
	})
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, finalResultsDTO(results))
}

func (a *API) messages(c *gin.Context) {
	msgs, err := a.qss.Messages(c.Request.Context(), session.MessagesRequest{
		PlayerID: c.Param("playerid"),
	})
	if err != nil {
		abortError(c, err)
		return
	}

	out := make([]gin.H, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageDTO(m))
	}

	c.JSON(http.StatusOK, gin.H{"messages": out})
}

type sendMessageBody struct {
	Message struct {
		MessageBody string `json:"messageBody"`
	} `json:"message"`
}

func (a *API) sendMessage(c *gin.Context) {
	var body sendMessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortError(c, errors.Validationf("invalid request body: %v", err))
		return
	}

	err := a.qss.SendMessage(c.Request.Context(), session.SendMessageRequest{
		PlayerID: c.Param("playerid"),
		Body:     body.Message.MessageBody,
	})
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

func (a *API) getLeaderboard(c *gin.Context) {
	l, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		SessionID: c.Param("sessionid"),
	})
	if err != nil {
		abortError(c, err)
		return
	}

	entries := make([]gin.H, 0, len(l.Entries))
	for _, e := range l.Entries {
		entries = append(entries, gin.H{
			"name":  e.Name,
			"score": e.Score,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId": l.SessionID,
		"entries":   entries,
	})
}

// clear wipes all sessions, players and outstanding timers.
func (a *API) clear(c *gin.Context) {
	a.qss.Reset(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{})
}
