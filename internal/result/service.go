package result

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/victornm/edusync/internal/domain"
	"github.com/victornm/edusync/internal/errors"
	"github.com/victornm/edusync/internal/event"
	"github.com/victornm/edusync/internal/telemetry"
)

const defaultNotifyTimeout = 10 * time.Second

// Store persists results and resolves the records related to them.
// Missing records are reported as errors with errors.CodeNotFound.
type Store interface {
	ListResults(ctx context.Context) ([]domain.Result, error)
	GetResult(ctx context.Context, id uuid.UUID) (*domain.Result, error)
	InsertResult(ctx context.Context, r domain.Result) error
	UpdateResult(ctx context.Context, r domain.Result) error
	DeleteResult(ctx context.Context, id uuid.UUID) (*domain.Result, error)
	ListResultsByInstructor(ctx context.Context, instructorID uuid.UUID) ([]domain.InstructorResult, error)
	GetAssessment(ctx context.Context, id uuid.UUID) (*domain.Assessment, error)
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// Publisher sends a notification to the external event stream.
type Publisher interface {
	Publish(ctx context.Context, payload any, eventType string) error
}

type Config struct {
	Store     Store
	Publisher Publisher
	EventBus  *event.Bus
	// NotifyTimeout bounds the whole notification step of a single write.
	NotifyTimeout time.Duration
	// NewID generates result IDs, defaults to uuid.NewV7.
	NewID func() (uuid.UUID, error)
}

type Service struct {
	store         Store
	publisher     Publisher
	eb            *event.Bus
	notifyTimeout time.Duration
	newID         func() (uuid.UUID, error)
}

func NewService(c Config) *Service {
	s := &Service{
		store:         c.Store,
		publisher:     c.Publisher,
		eb:            c.EventBus,
		notifyTimeout: c.NotifyTimeout,
		newID:         c.NewID,
	}

	if s.notifyTimeout <= 0 {
		s.notifyTimeout = defaultNotifyTimeout
	}
	if s.newID == nil {
		s.newID = uuid.NewV7
	}

	return s
}

// CreateResultRequest represents a student's attempt to record.
type CreateResultRequest struct {
	AssessmentID uuid.UUID
	UserID       uuid.UUID
	Score        decimal.Decimal
	AttemptDate  time.Time
}

// CreateResult stores a new result and then notifies the event stream.
// Only a storage failure fails the call, a failed notification is logged and dropped.
func (s *Service) CreateResult(ctx context.Context, req CreateResultRequest) (*domain.Result, error) {
	if err := validate(req.AssessmentID, req.UserID, req.AttemptDate); err != nil {
		return nil, err
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate result ID: %w", err)
	}

	r := domain.Result{
		ResultID:     id,
		AssessmentID: req.AssessmentID,
		UserID:       req.UserID,
		Score:        req.Score,
		AttemptDate:  req.AttemptDate.UTC(),
	}

	if err := s.store.InsertResult(ctx, r); err != nil {
		return nil, err
	}

	s.saved(ctx, domain.EventTypeResultCreated, r)
	return &r, nil
}

type UpdateResultRequest struct {
	ResultID     uuid.UUID
	AssessmentID uuid.UUID
	UserID       uuid.UUID
	Score        decimal.Decimal
	AttemptDate  time.Time
}

// UpdateResult overwrites every field of an existing result and then notifies the event stream.
func (s *Service) UpdateResult(ctx context.Context, req UpdateResultRequest) error {
	if req.ResultID == uuid.Nil {
		return errors.InvalidArgument("result ID is required")
	}
	if err := validate(req.AssessmentID, req.UserID, req.AttemptDate); err != nil {
		return err
	}

	r := domain.Result{
		ResultID:     req.ResultID,
		AssessmentID: req.AssessmentID,
		UserID:       req.UserID,
		Score:        req.Score,
		AttemptDate:  req.AttemptDate.UTC(),
	}

	if err := s.store.UpdateResult(ctx, r); err != nil {
		return err
	}

	s.saved(ctx, domain.EventTypeResultUpdated, r)
	return nil
}

type DeleteResultRequest struct {
	ResultID uuid.UUID
}

// DeleteResult removes a result. Deletions are not sent to the event stream.
func (s *Service) DeleteResult(ctx context.Context, req DeleteResultRequest) error {
	r, err := s.store.DeleteResult(ctx, req.ResultID)
	if err != nil {
		return err
	}

	s.eb.Publish(ctx, domain.EventResultDeleted{Result: *r})
	return nil
}

type GetResultRequest struct {
	ResultID uuid.UUID
}

func (s *Service) GetResult(ctx context.Context, req GetResultRequest) (*domain.Result, error) {
	return s.store.GetResult(ctx, req.ResultID)
}

func (s *Service) ListResults(ctx context.Context) ([]domain.Result, error) {
	return s.store.ListResults(ctx)
}

type ListByInstructorRequest struct {
	InstructorID uuid.UUID
}

// ListByInstructor returns the results of all assessments in courses owned by the instructor.
func (s *Service) ListByInstructor(ctx context.Context, req ListByInstructorRequest) ([]domain.InstructorResult, error) {
	return s.store.ListResultsByInstructor(ctx, req.InstructorID)
}

func validate(assessmentID, userID uuid.UUID, attemptDate time.Time) error {
	switch {
	case assessmentID == uuid.Nil:
		return errors.InvalidArgument("assessment ID is required")
	case userID == uuid.Nil:
		return errors.InvalidArgument("user ID is required")
	case attemptDate.IsZero():
		return errors.InvalidArgument("attempt date is required")
	}

	return nil
}

// saved runs after a committed write. Nothing here may fail the caller.
func (s *Service) saved(ctx context.Context, eventType string, r domain.Result) {
	s.eb.Publish(ctx, domain.EventResultSaved{Result: r})

	e, err := s.notify(ctx, eventType, r)
	if err != nil {
		telemetry.ObserveSwallowedNotification(eventType)
		slog.ErrorContext(ctx, "result: send notification failed",
			"event_type", eventType,
			"result_id", r.ResultID,
			"student", deref(e.StudentName),
			"assessment", deref(e.AssessmentTitle),
			"error", err,
		)
		return
	}

	slog.InfoContext(ctx, "result: notification sent",
		"event_type", eventType,
		"result_id", r.ResultID,
		"student", deref(e.StudentName),
		"assessment", deref(e.AssessmentTitle),
	)
}

// notify enriches r with its assessment, course and student, then publishes it.
// Related records that are not found are left empty in the event.
func (s *Service) notify(ctx context.Context, eventType string, r domain.Result) (e domain.ResultEvent, err error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	e = domain.NewResultEvent(r, nil, nil)

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("notify panic: %v, stack: %s", rec, debug.Stack())
		}
	}()

	a, err := s.store.GetAssessment(ctx, r.AssessmentID)
	if err != nil && !isNotFound(err) {
		return e, fmt.Errorf("get assessment %s: %w", r.AssessmentID, err)
	}

	u, err := s.store.GetUser(ctx, r.UserID)
	if err != nil && !isNotFound(err) {
		return e, fmt.Errorf("get user %s: %w", r.UserID, err)
	}

	e = domain.NewResultEvent(r, a, u)

	if err := s.publisher.Publish(ctx, e, eventType); err != nil {
		return e, err
	}

	return e, nil
}

func isNotFound(err error) bool {
	return errors.HasCode(err, errors.CodeNotFound)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
