package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dl369/quiz-backend/internal/domain"
	"github.com/dl369/quiz-backend/internal/event"
)

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	StateChanged struct {
		SessionID  string `json:"session_id"`
		State      string `json:"state"`
		AtQuestion int    `json:"at_question"`
	}

	Leaderboard struct {
		SessionID string             `json:"session_id"`
		Entries   []LeaderboardEntry `json:"entries"`
	}

	LeaderboardEntry struct {
		Name  string `json:"name"`
		Score string `json:"score"`
	}

	ChatMessage struct {
		SessionID  string `json:"session_id"`
		PlayerID   string `json:"player_id"`
		PlayerName string `json:"player_name"`
		Body       string `json:"body"`
		SentAt     int64  `json:"sent_at"`
	}
)

// registerPubsub forwards session-scoped events to redis channels so
// connected clients can follow a session without polling.
func (a *API) registerPubsub(eb *event.Bus) {
	eb.Subscribe(domain.EventNameSessionStateChanged, func(ctx context.Context, e event.Event) error {
		return a.PublishStateChanged(ctx, e.(domain.EventSessionStateChanged))
	})

	eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})

	eb.Subscribe(domain.EventNameChatMessage, func(ctx context.Context, e event.Event) error {
		return a.PublishChatMessage(ctx, e.(domain.EventChatMessage))
	})
}

func (a *API) PublishStateChanged(ctx context.Context, e domain.EventSessionStateChanged) error {
	return a.publishNotification(ctx, e.SessionID, e.Name(), StateChanged{
		SessionID:  e.SessionID,
		State:      string(e.State),
		AtQuestion: e.AtQuestion,
	})
}

func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	l := e.Leaderboard

	data := Leaderboard{
		SessionID: l.SessionID,
		Entries:   make([]LeaderboardEntry, 0, len(l.Entries)),
	}

	for _, entry := range l.Entries {
		data.Entries = append(data.Entries, LeaderboardEntry{
			Name:  entry.Name,
			Score: strconv.FormatFloat(entry.Score, 'f', -1, 64),
		})
	}

	return a.publishNotification(ctx, l.SessionID, e.Name(), data)
}

func (a *API) PublishChatMessage(ctx context.Context, e domain.EventChatMessage) error {
	m := e.Message

	return a.publishNotification(ctx, e.SessionID, e.Name(), ChatMessage{
		SessionID:  e.SessionID,
		PlayerID:   m.PlayerID,
		PlayerName: m.PlayerName,
		Body:       m.Body,
		SentAt:     m.SentAt,
	})
}

func (a *API) publishNotification(ctx context.Context, sessionID, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, fmt.Sprintf("%s:session:%s", a.prefix, sessionID), b).Err()
}
