package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/victornm/edusync/internal/domain"
)

type (
	Result struct {
		ID           uuid.UUID `json:"id"`
		AssessmentID uuid.UUID `json:"assessmentId"`
		UserID       uuid.UUID `json:"userId"`
		Score        float64   `json:"score"`
		AttemptDate  time.Time `json:"attemptDate"`
	}

	// ResultInput is the body of create and update requests.
	ResultInput struct {
		AssessmentID uuid.UUID        `json:"assessmentId" binding:"required"`
		UserID       uuid.UUID        `json:"userId" binding:"required"`
		Score        *decimal.Decimal `json:"score" binding:"required"`
		AttemptDate  time.Time        `json:"attemptDate" binding:"required"`
	}

	InstructorResult struct {
		StudentName     string    `json:"studentName"`
		StudentEmail    string    `json:"studentEmail"`
		AssessmentTitle string    `json:"assessmentTitle"`
		CourseTitle     string    `json:"courseTitle"`
		Score           float64   `json:"score"`
		MaxScore        float64   `json:"maxScore"`
		AttemptDate     time.Time `json:"attemptDate"`
	}

	Leaderboard struct {
		AssessmentID uuid.UUID          `json:"assessmentId"`
		Entries      []LeaderboardEntry `json:"entries"`
	}

	LeaderboardEntry struct {
		ResultID uuid.UUID `json:"resultId"`
		UserID   uuid.UUID `json:"userId"`
		Score    float64   `json:"score"`
	}
)

func fromResult(r domain.Result) Result {
	return Result{
		ID:           r.ResultID,
		AssessmentID: r.AssessmentID,
		UserID:       r.UserID,
		Score:        r.Score.InexactFloat64(),
		AttemptDate:  r.AttemptDate,
	}
}
