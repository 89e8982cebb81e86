package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dl369/quiz-backend/internal/domain"
	"github.com/dl369/quiz-backend/internal/errors"
)

func positionParam(c *gin.Context) (int, error) {
	raw := c.Param("questionposition")
	pos, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Validationf("question position %q is not a number", raw)
	}
	return pos, nil
}

func sessionStatusDTO(st *domain.SessionStatus) gin.H {
	q := st.Metadata

	questions := make([]gin.H, 0, len(q.Questions))
	for _, qn := range q.Questions {
		answers := make([]gin.H, 0, len(qn.Answers))
		for _, a := range qn.Answers {
			answers = append(answers, gin.H{
				"answerId": a.AnswerID,
				"answer":   a.Answer,
				"colour":   a.Colour,
				"correct":  a.Correct,
			})
		}
		questions = append(questions, gin.H{
			"questionId":   qn.QuestionID,
			"question":     qn.Question,
			"duration":     qn.Duration,
			"points":       qn.Points,
			"thumbnailUrl": qn.ThumbnailURL,
			"answers":      answers,
		})
	}

	return gin.H{
		"state":      st.State,
		"atQuestion": st.AtQuestion,
		"players":    st.Players,
		"metadata": gin.H{
			"quizId":       q.QuizID,
			"name":         q.Name,
			"numQuestions": q.NumQuestions,
			"duration":     q.Duration,
			"thumbnailUrl": q.ThumbnailURL,
			"questions":    questions,
		},
	}
}

func questionViewDTO(v *domain.QuestionView) gin.H {
	answers := make([]gin.H, 0, len(v.Answers))
	for _, a := range v.Answers {
		answers = append(answers, gin.H{
			"answerId": a.AnswerID,
			"answer":   a.Answer,
			"colour":   a.Colour,
		})
	}

	return gin.H{
		"questionId":   v.QuestionID,
		"question":     v.Question,
		"duration":     v.Duration,
		"points":       v.Points,
		"thumbnailUrl": v.ThumbnailURL,
		"answers":      answers,
	}
}

func questionResultDTO(r domain.QuestionResult) gin.H {
	return gin.H{
		"questionId":         r.QuestionID,
		"playersCorrectList": r.PlayersCorrect,
		"percentCorrect":     r.PercentCorrect,
		"averageAnswerTime":  r.AverageAnswerTime,
	}
}

func finalResultsDTO(results *domain.FinalResults) gin.H {
	ranked := make([]gin.H, 0, len(results.UsersRankedByScore))
	for _, p := range results.UsersRankedByScore {
		ranked = append(ranked, gin.H{
			"name":  p.Name,
			"score": p.Score.InexactFloat64(),
		})
	}

	questions := make([]gin.H, 0, len(results.QuestionResults))
	for _, r := range results.QuestionResults {
		questions = append(questions, questionResultDTO(r))
	}

	return gin.H{
		"usersRankedByScore": ranked,
		"questionResults":    questions,
	}
}

func messageDTO(m domain.Message) gin.H {
	return gin.H{
		"messageBody": m.Body,
		"playerId":    m.PlayerID,
		"playerName":  m.PlayerName,
		"timeSent":    m.SentAt,
	}
}
