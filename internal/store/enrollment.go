package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/course-pilot/apiserver/internal/errs"
	"github.com/course-pilot/apiserver/types"
	"github.com/lib/pq"
)

// EnrollmentRepository persists the per-user enrollment ledger.
// Completed lecture ids are stored as a text[] that is only ever appended to
// by a conditional single-row update.
type EnrollmentRepository struct {
	db *sql.DB
}

func NewEnrollmentRepository(db *sql.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Enroll inserts the (user, course) ledger entry. A second enrollment for the
// same pair inserts nothing and reports ErrAlreadyEnrolled.
func (r *EnrollmentRepository) Enroll(ctx context.Context, userID, courseID string, at time.Time) (types.EnrollmentRecord, error) {
	const query = `
		INSERT INTO enrollments (user_id, course_id, enrolled_at, completed_lecture_ids)
		VALUES ($1, $2, $3, '{}')
		ON CONFLICT (user_id, course_id) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, userID, courseID, at)
	if err != nil {
		if isForeignKeyViolation(err) {
			return types.EnrollmentRecord{}, errs.NotFoundf("user not found")
		}
		return types.EnrollmentRecord{}, fmt.Errorf("enroll %s in %s: %w", userID, courseID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.EnrollmentRecord{}, err
	}
	if affected == 0 {
		return types.EnrollmentRecord{}, errs.ErrAlreadyEnrolled
	}
	return types.EnrollmentRecord{
		CourseID:            courseID,
		EnrolledAt:          at,
		CompletedLectureIDs: []string{},
	}, nil
}

// AddCompletedLecture adds lectureID to the completed set with set-union
// semantics. It reports ErrNotEnrolled when no ledger entry exists.
func (r *EnrollmentRepository) AddCompletedLecture(ctx context.Context, userID, courseID, lectureID string) (types.EnrollmentRecord, error) {
	const query = `
		UPDATE enrollments
		SET completed_lecture_ids = CASE
			WHEN $3 = ANY(completed_lecture_ids) THEN completed_lecture_ids
			ELSE array_append(completed_lecture_ids, $3::text)
		END
		WHERE user_id = $1 AND course_id = $2
		RETURNING course_id, enrolled_at, completed_lecture_ids`
	rec, err := scanEnrollment(r.db.QueryRowContext(ctx, query, userID, courseID, lectureID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.EnrollmentRecord{}, errs.ErrNotEnrolled
		}
		return types.EnrollmentRecord{}, fmt.Errorf("complete lecture %s for %s: %w", lectureID, userID, err)
	}
	return rec, nil
}

func (r *EnrollmentRepository) Get(ctx context.Context, userID, courseID string) (types.EnrollmentRecord, error) {
	const query = `
		SELECT course_id, enrolled_at, completed_lecture_ids
		FROM enrollments
		WHERE user_id = $1 AND course_id = $2`
	rec, err := scanEnrollment(r.db.QueryRowContext(ctx, query, userID, courseID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.EnrollmentRecord{}, errs.NotFoundf("enrollment not found")
		}
		return types.EnrollmentRecord{}, fmt.Errorf("get enrollment %s/%s: %w", userID, courseID, err)
	}
	return rec, nil
}

func (r *EnrollmentRepository) ListByUser(ctx context.Context, userID string) ([]types.EnrollmentRecord, error) {
	const query = `
		SELECT course_id, enrolled_at, completed_lecture_ids
		FROM enrollments
		WHERE user_id = $1
		ORDER BY enrolled_at, course_id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments of %s: %w", userID, err)
	}
	defer rows.Close()

	records := []types.EnrollmentRecord{}
	for rows.Next() {
		rec, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func scanEnrollment(row interface{ Scan(...any) error }) (types.EnrollmentRecord, error) {
	var rec types.EnrollmentRecord
	var completed []string
	if err := row.Scan(&rec.CourseID, &rec.EnrolledAt, pq.Array(&completed)); err != nil {
		return types.EnrollmentRecord{}, err
	}
	if completed == nil {
		completed = []string{}
	}
	rec.CompletedLectureIDs = completed
	return rec, nil
}
