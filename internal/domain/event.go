package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event types sent to the external notification stream.
const (
	EventTypeResultCreated = "ResultCreated"
	EventTypeResultUpdated = "ResultUpdated"
)

// Event names dispatched on the in-process event bus.
const (
	EventNameResultSaved   = "result.saved"
	EventNameResultDeleted = "result.deleted"
)

type EventResultSaved struct {
	Result Result
}

func (EventResultSaved) Name() string { return EventNameResultSaved }

type EventResultDeleted struct {
	Result Result
}

func (EventResultDeleted) Name() string { return EventNameResultDeleted }

// ResultEvent is the payload describing a result change on the notification stream.
// Pointer fields are nil when the related record could not be resolved.
type ResultEvent struct {
	ResultID        uuid.UUID `json:"resultId"`
	StudentID       uuid.UUID `json:"studentId"`
	StudentName     *string   `json:"studentName"`
	AssessmentID    uuid.UUID `json:"assessmentId"`
	AssessmentTitle *string   `json:"assessmentTitle"`
	CourseTitle     *string   `json:"courseTitle"`
	Score           float64   `json:"score"`
	MaxScore        *float64  `json:"maxScore"`
	AttemptDate     time.Time `json:"attemptDate"`
	Percentage      float64   `json:"percentage"`
}

// NewResultEvent builds the notification payload for r. The assessment and user may be nil.
func NewResultEvent(r Result, a *Assessment, u *User) ResultEvent {
	e := ResultEvent{
		ResultID:     r.ResultID,
		StudentID:    r.UserID,
		AssessmentID: r.AssessmentID,
		Score:        r.Score.InexactFloat64(),
		AttemptDate:  r.AttemptDate,
	}

	if u != nil {
		e.StudentName = &u.Name
	}

	if a != nil {
		maxScore := a.MaxScore.InexactFloat64()
		e.AssessmentTitle = &a.Title
		e.MaxScore = &maxScore
		e.Percentage = Percentage(r.Score, a.MaxScore).InexactFloat64()

		if a.Course != nil {
			e.CourseTitle = &a.Course.Title
		}
	}

	return e
}
