package store

import (
	"context"
	_ "embed"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/edusync/internal/domain"
	"github.com/victornm/edusync/internal/errors"
)

//go:embed schema.sql
var schema string

// Postgres stores results and reads their related records from PostgreSQL.
// Every method runs in its own implicit transaction.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the tables if they do not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	return nil
}

func (p *Postgres) ListResults(ctx context.Context) ([]domain.Result, error) {
	const stmt = `
SELECT result_id, assessment_id, user_id, score, attempt_date
FROM results
ORDER BY attempt_date, result_id;`

	rows, err := p.db.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	results, err := pgx.CollectRows(rows, scanResult)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	return results, nil
}

func (p *Postgres) GetResult(ctx context.Context, id uuid.UUID) (*domain.Result, error) {
	const stmt = `
SELECT result_id, assessment_id, user_id, score, attempt_date
FROM results
WHERE result_id = $1;`

	rows, err := p.db.Query(ctx, stmt, id)
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}

	r, err := pgx.CollectExactlyOneRow(rows, scanResult)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, resultNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}

	return &r, nil
}

func (p *Postgres) InsertResult(ctx context.Context, r domain.Result) error {
	const stmt = `
INSERT INTO results (result_id, assessment_id, user_id, score, attempt_date)
VALUES ($1, $2, $3, $4, $5);`

	if _, err := p.db.Exec(ctx, stmt, r.ResultID, r.AssessmentID, r.UserID, r.Score, r.AttemptDate); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	return nil
}

func (p *Postgres) UpdateResult(ctx context.Context, r domain.Result) error {
	const stmt = `
UPDATE results
SET assessment_id = $2, user_id = $3, score = $4, attempt_date = $5
WHERE result_id = $1;`

	tag, err := p.db.Exec(ctx, stmt, r.ResultID, r.AssessmentID, r.UserID, r.Score, r.AttemptDate)
	if err != nil {
		return fmt.Errorf("update result: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return resultNotFound(r.ResultID)
	}

	return nil
}

func (p *Postgres) DeleteResult(ctx context.Context, id uuid.UUID) (*domain.Result, error) {
	const stmt = `
DELETE FROM results
WHERE result_id = $1
RETURNING result_id, assessment_id, user_id, score, attempt_date;`

	rows, err := p.db.Query(ctx, stmt, id)
	if err != nil {
		return nil, fmt.Errorf("delete result: %w", err)
	}

	r, err := pgx.CollectExactlyOneRow(rows, scanResult)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, resultNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("delete result: %w", err)
	}

	return &r, nil
}

func (p *Postgres) ListResultsByInstructor(ctx context.Context, instructorID uuid.UUID) ([]domain.InstructorResult, error) {
	const stmt = `
SELECT u.name, u.email, a.title, c.title, r.score, a.max_score, r.attempt_date
FROM results r
JOIN assessments a ON a.assessment_id = r.assessment_id
JOIN courses c ON c.course_id = a.course_id
JOIN users u ON u.user_id = r.user_id
WHERE c.instructor_id = $1
ORDER BY r.attempt_date, r.result_id;`

	rows, err := p.db.Query(ctx, stmt, instructorID)
	if err != nil {
		return nil, fmt.Errorf("list results by instructor: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.InstructorResult, error) {
		var ir domain.InstructorResult
		err := r.Scan(&ir.StudentName, &ir.StudentEmail, &ir.AssessmentTitle, &ir.CourseTitle,
			&ir.Score, &ir.MaxScore, &ir.AttemptDate)
		return ir, err
	})
	if err != nil {
		return nil, fmt.Errorf("list results by instructor: %w", err)
	}

	return results, nil
}

// GetAssessment returns the assessment with its course. Course is nil when the course row is missing.
func (p *Postgres) GetAssessment(ctx context.Context, id uuid.UUID) (*domain.Assessment, error) {
	const stmt = `
SELECT a.assessment_id, a.course_id, a.title, a.max_score, c.course_id, c.title, c.instructor_id
FROM assessments a
LEFT JOIN courses c ON c.course_id = a.course_id
WHERE a.assessment_id = $1;`

	var (
		a            domain.Assessment
		courseID     *uuid.UUID
		courseTitle  *string
		instructorID *uuid.UUID
	)

	err := p.db.QueryRow(ctx, stmt, id).Scan(&a.AssessmentID, &a.CourseID, &a.Title, &a.MaxScore,
		&courseID, &courseTitle, &instructorID)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("assessment not found: id=%s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}

	if courseID != nil {
		a.Course = &domain.Course{CourseID: *courseID}
		if courseTitle != nil {
			a.Course.Title = *courseTitle
		}
		if instructorID != nil {
			a.Course.InstructorID = *instructorID
		}
	}

	return &a, nil
}

func (p *Postgres) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const stmt = `SELECT user_id, name, email FROM users WHERE user_id = $1;`

	var u domain.User
	err := p.db.QueryRow(ctx, stmt, id).Scan(&u.UserID, &u.Name, &u.Email)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("user not found: id=%s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

func scanResult(row pgx.CollectableRow) (domain.Result, error) {
	var r domain.Result
	err := row.Scan(&r.ResultID, &r.AssessmentID, &r.UserID, &r.Score, &r.AttemptDate)
	return r, err
}

func resultNotFound(id uuid.UUID) error {
	return errors.NotFound("result not found: id=%s", id)
}
