package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Result represents one student's attempt at one assessment.
type Result struct {
	ResultID     uuid.UUID
	AssessmentID uuid.UUID
	UserID       uuid.UUID
	Score        decimal.Decimal
	AttemptDate  time.Time
}

// Assessment is a gradable unit belonging to a course.
// Course is nil when the course could not be resolved.
type Assessment struct {
	AssessmentID uuid.UUID
	CourseID     uuid.UUID
	Title        string
	MaxScore     decimal.Decimal
	Course       *Course
}

type Course struct {
	CourseID     uuid.UUID
	Title        string
	InstructorID uuid.UUID
}

type User struct {
	UserID uuid.UUID
	Name   string
	Email  string
}

// InstructorResult is a result joined with its student, assessment and course,
// as seen by the instructor owning the course.
type InstructorResult struct {
	StudentName     string
	StudentEmail    string
	AssessmentTitle string
	CourseTitle     string
	Score           decimal.Decimal
	MaxScore        decimal.Decimal
	AttemptDate     time.Time
}

var hundred = decimal.NewFromInt(100)

// Percentage returns score*100/maxScore, or zero when maxScore is not positive.
func Percentage(score, maxScore decimal.Decimal) decimal.Decimal {
	if !maxScore.IsPositive() {
		return decimal.Zero
	}

	return score.Mul(hundred).Div(maxScore)
}

// Leaderboard ranks every attempt at an assessment by score in descending order.
type Leaderboard struct {
	AssessmentID uuid.UUID
	Entries      []LeaderboardEntry
}

type LeaderboardEntry struct {
	ResultID uuid.UUID
	UserID   uuid.UUID
	Score    float64
}
