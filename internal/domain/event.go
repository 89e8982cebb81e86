package domain

const (
	EventNameSessionStateChanged = "session.state_changed"
	EventNamePlayerJoined        = "player.joined"
	EventNameScoreUpdated        = "score.updated"
	EventNameLeaderboardUpdated  = "leaderboard.updated"
	EventNameChatMessage         = "chat.message"
)

type EventSessionStateChanged struct {
	SessionID  string
	State      GameState
	AtQuestion int
}

func (EventSessionStateChanged) Name() string { return EventNameSessionStateChanged }

type EventPlayerJoined struct {
	Player Player
}

func (EventPlayerJoined) Name() string { return EventNamePlayerJoined }

type EventScoreUpdated struct {
	Score Score
}

func (EventScoreUpdated) Name() string { return EventNameScoreUpdated }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }

type EventChatMessage struct {
	SessionID string
	Message   Message
}

func (EventChatMessage) Name() string { return EventNameChatMessage }
