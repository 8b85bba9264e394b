package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/course-pilot/apiserver/internal/errs"
	"github.com/course-pilot/apiserver/types"
)

// EnrollmentRepository stores one ledger entry per (user, course) pair.
type EnrollmentRepository struct {
	s *Store
}

func (r *EnrollmentRepository) Enroll(_ context.Context, userID, courseID string, at time.Time) (types.EnrollmentRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[userID]; !ok {
		return types.EnrollmentRecord{}, errs.NotFoundf("user not found")
	}
	key := enrollmentKey{userID: userID, courseID: courseID}
	if _, exists := r.s.enrollments[key]; exists {
		return types.EnrollmentRecord{}, errs.ErrAlreadyEnrolled
	}
	rec := &types.EnrollmentRecord{
		CourseID:            courseID,
		EnrolledAt:          at,
		CompletedLectureIDs: []string{},
	}
	r.s.enrollments[key] = rec
	r.s.byUser[userID] = append(r.s.byUser[userID], courseID)
	return copyRecord(rec), nil
}

func (r *EnrollmentRepository) AddCompletedLecture(_ context.Context, userID, courseID, lectureID string) (types.EnrollmentRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.enrollments[enrollmentKey{userID: userID, courseID: courseID}]
	if !ok {
		return types.EnrollmentRecord{}, errs.ErrNotEnrolled
	}
	for _, id := range rec.CompletedLectureIDs {
		if id == lectureID {
			return copyRecord(rec), nil
		}
	}
	rec.CompletedLectureIDs = append(rec.CompletedLectureIDs, lectureID)
	return copyRecord(rec), nil
}

func (r *EnrollmentRepository) Get(_ context.Context, userID, courseID string) (types.EnrollmentRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.enrollments[enrollmentKey{userID: userID, courseID: courseID}]
	if !ok {
		return types.EnrollmentRecord{}, errs.NotFoundf("enrollment not found")
	}
	return copyRecord(rec), nil
}

func (r *EnrollmentRepository) ListByUser(_ context.Context, userID string) ([]types.EnrollmentRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	records := []types.EnrollmentRecord{}
	for _, courseID := range r.s.byUser[userID] {
		records = append(records, copyRecord(r.s.enrollments[enrollmentKey{userID: userID, courseID: courseID}]))
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].EnrolledAt.Before(records[j].EnrolledAt)
	})
	return records, nil
}
