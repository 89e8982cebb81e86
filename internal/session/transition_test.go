package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dl369/quiz-backend/internal/domain"
	"github.com/dl369/quiz-backend/internal/errors"
)

func TestNextState(t *testing.T) {
	allStates := []domain.GameState{
		domain.StateLobby,
		domain.StateQuestionCountdown,
		domain.StateQuestionOpen,
		domain.StateQuestionClose,
		domain.StateAnswerShow,
		domain.StateFinalResults,
		domain.StateEnd,
	}
	allActions := []domain.Action{
		domain.ActionNextQuestion,
		domain.ActionSkipCountdown,
		domain.ActionGoToAnswer,
		domain.ActionGoToFinalResults,
		domain.ActionEnd,
	}

	legal := map[domain.GameState]map[domain.Action]domain.GameState{
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
	}

	// Walk the whole (state, action) grid: every pair is either the single
	// expected target or a FAILED_PRECONDITION error.
	for _, from := range allStates {
		for _, action := range allActions {
			t.Run(string(from)+"/"+string(action), func(t *testing.T) {
				got, err := nextState(from, action)

				want, ok := legal[from][action]
				if !ok {
					require.Error(t, err)
					assert.True(t, errors.IsCode(err, errors.CodeFailedPrecondition))
					return
				}

				require.NoError(t, err)
				assert.Equal(t, want, got)
			})
		}
	}
}

func TestEndIsTerminal(t *testing.T) {
	require.Empty(t, transitions[domain.StateEnd])
}
