package session

import (
	"github.com/dl369/quiz-backend/internal/domain"
	"github.com/dl369/quiz-backend/internal/errors"
)

// transitions is the complete legal-transition table. Any (state, action)
// pair absent from it is an invalid transition. END has no outgoing edges.
var transitions = map[domain.GameState]map[domain.Action]domain.GameState{
	domain.StateLobby: {
		domain.ActionNextQuestion: domain.StateQuestionCountdown,
		domain.ActionEnd:          domain.StateEnd,
	},
	domain.StateQuestionCountdown: {
		domain.ActionSkipCountdown: domain.StateQuestionOpen,
		domain.ActionEnd:           domain.StateEnd,
	},
	domain.StateQuestionOpen: {
		domain.ActionGoToAnswer: domain.StateAnswerShow,
		domain.ActionEnd:        domain.StateEnd,
	},
	domain.StateQuestionClose: {
		domain.ActionGoToAnswer:       domain.StateAnswerShow,
		domain.ActionGoToFinalResults: domain.StateFinalResults,
		domain.ActionNextQuestion:     domain.StateQuestionCountdown,
		domain.ActionEnd:              domain.StateEnd,
	},
	domain.StateAnswerShow: {
		domain.ActionNextQuestion:     domain.StateQuestionCountdown,
		domain.ActionGoToFinalResults: domain.StateFinalResults,
		domain.ActionEnd:              domain.StateEnd,
	},
	domain.StateFinalResults: {
		domain.ActionEnd: domain.StateEnd,
	},
	domain.StateEnd: {},
}

func nextState(from domain.GameState, action domain.Action) (domain.GameState, error) {
	to, ok := transitions[from][action]
	if !ok {
		return from, errors.InvalidTransitionf("state %s cannot perform action %s", from, action)
	}
	return to, nil
}
