package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/course-pilot/apiserver/internal/auth"
	"github.com/course-pilot/apiserver/internal/errs"
	"github.com/course-pilot/apiserver/internal/events"
	"github.com/course-pilot/apiserver/types"
)

// EnrollmentRepository defines persistence operations for the ledger.
// Enroll reports errs.ErrAlreadyEnrolled for an existing pair and
// AddCompletedLecture reports errs.ErrNotEnrolled when no entry exists.
type EnrollmentRepository interface {
	Enroll(ctx context.Context, userID, courseID string, at time.Time) (types.EnrollmentRecord, error)
	AddCompletedLecture(ctx context.Context, userID, courseID, lectureID string) (types.EnrollmentRecord, error)
	Get(ctx context.Context, userID, courseID string) (types.EnrollmentRecord, error)
	ListByUser(ctx context.Context, userID string) ([]types.EnrollmentRecord, error)
}

// CourseReader resolves courses for the ledger.
type CourseReader interface {
	Get(ctx context.Context, id string) (types.Course, error)
	GetTree(ctx context.Context, id string) (types.Course, error)
}

// Refresher mints a credential from the live user state.
type Refresher interface {
	Refresh(ctx context.Context, userID string) (auth.Credential, types.Principal, error)
}

// ErrCredentialNotRefreshed is returned by Enroll when the ledger entry
// was committed but no new credential could be minted. The returned
// EnrollResult still carries the record.
var ErrCredentialNotRefreshed = errors.New("enrolled but credential not refreshed")

// EnrollResult carries the new ledger entry and the credential that
// replaces the caller's now stale one.
type EnrollResult struct {
	Record     types.EnrollmentRecord `json:"enrollment"`
	Credential auth.Credential        `json:"credential"`
	Principal  types.Principal        `json:"user"`
}

// EnrollmentService encapsulates enrollment and progress use-cases.
type EnrollmentService struct {
	repo    EnrollmentRepository
	courses CourseReader
	session Refresher
	events  events.Publisher
	now     func() time.Time
}

func NewEnrollmentService(repo EnrollmentRepository, courses CourseReader, session Refresher, publisher events.Publisher) *EnrollmentService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &EnrollmentService{
		repo:    repo,
		courses: courses,
		session: session,
		events:  publisher,
		now:     time.Now,
	}
}

// Enroll creates the ledger entry and returns a refreshed credential whose
// enrolled set includes courseID. See ErrCredentialNotRefreshed.
func (s *EnrollmentService) Enroll(ctx context.Context, userID, courseID string) (EnrollResult, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return EnrollResult{}, errs.Validationf("courseId is required")
	}
	if _, err := s.courses.Get(ctx, courseID); err != nil {
		return EnrollResult{}, err
	}

	rec, err := s.repo.Enroll(ctx, userID, courseID, s.now().UTC())
	if err != nil {
		return EnrollResult{}, err
	}
	s.events.Publish(ctx, events.Event{Type: events.EnrollmentCreated, UserID: userID, CourseID: courseID})

	cred, principal, err := s.session.Refresh(ctx, userID)
	if err != nil {
		return EnrollResult{Record: rec}, fmt.Errorf("%w: enrolling %s in %s: %w", ErrCredentialNotRefreshed, userID, courseID, err)
	}
	return EnrollResult{Record: rec, Credential: cred, Principal: principal}, nil
}

// MarkLectureComplete adds lectureID to the completed set. Repeating it is
// a no-op. The id is not checked against the content tree.
func (s *EnrollmentService) MarkLectureComplete(ctx context.Context, userID, courseID, lectureID string) (types.EnrollmentRecord, error) {
	courseID = strings.TrimSpace(courseID)
	lectureID = strings.TrimSpace(lectureID)
	if courseID == "" || lectureID == "" {
		return types.EnrollmentRecord{}, errs.Validationf("courseId and lectureId are required")
	}

	rec, err := s.repo.AddCompletedLecture(ctx, userID, courseID, lectureID)
	if err != nil {
		return types.EnrollmentRecord{}, err
	}
	s.events.Publish(ctx, events.Event{
		Type:      events.LectureCompleted,
		UserID:    userID,
		CourseID:  courseID,
		LectureID: lectureID,
	})
	return rec, nil
}

// GetProgress reports the caller's progress in courseID. A missing ledger
// entry yields Progress{Enrolled: false} rather than an error. Completed
// ids whose lecture no longer exists are filtered out here; the stored set
// keeps them.
func (s *EnrollmentService) GetProgress(ctx context.Context, userID, courseID string) (types.Progress, error) {
	rec, err := s.repo.Get(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return types.Progress{Enrolled: false, CourseID: courseID, CompletedLectureIDs: []string{}}, nil
		}
		return types.Progress{}, err
	}

	enrolledAt := rec.EnrolledAt
	progress := types.Progress{
		Enrolled:            true,
		CourseID:            courseID,
		EnrolledAt:          &enrolledAt,
		CompletedLectureIDs: []string{},
	}

	course, err := s.courses.GetTree(ctx, courseID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return progress, nil
		}
		return types.Progress{}, err
	}
	progress.CourseAvailable = true

	live := course.LectureIDs()
	for _, id := range rec.CompletedLectureIDs {
		if _, ok := live[id]; ok {
			progress.CompletedLectureIDs = append(progress.CompletedLectureIDs, id)
		}
	}
	progress.TotalLectures = len(live)
	progress.CompletedCount = len(progress.CompletedLectureIDs)
	if progress.TotalLectures > 0 {
		progress.Percent = float64(progress.CompletedCount) * 100 / float64(progress.TotalLectures)
	}
	return progress, nil
}

// ListEnrollments returns every ledger entry of userID as stored.
func (s *EnrollmentService) ListEnrollments(ctx context.Context, userID string) ([]types.EnrollmentRecord, error) {
	return s.repo.ListByUser(ctx, userID)
}
