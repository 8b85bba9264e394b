// Package memstore is an in-process implementation of the repositories with
// the same matched-path semantics as the PostgreSQL store. One mutex guards
// all state; each operation locks, resolves its id chain and applies its
// delta, and reads hand out deep copies.
package memstore

import (
	"sync"

	"github.com/course-pilot/apiserver/types"
)

type enrollmentKey struct {
	userID   string
	courseID string
}

// Store holds users, the content tree and the enrollment ledger.
type Store struct {
	mu sync.Mutex

	users      map[string]types.User
	emails     map[string]string
	courses    map[string]*types.Course
	courseList []string

	enrollments map[enrollmentKey]*types.EnrollmentRecord
	byUser      map[string][]string
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:       make(map[string]types.User),
		emails:      make(map[string]string),
		courses:     make(map[string]*types.Course),
		enrollments: make(map[enrollmentKey]*types.EnrollmentRecord),
		byUser:      make(map[string][]string),
	}
}

// Users returns the user repository view of s.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Courses returns the content tree repository view of s.
func (s *Store) Courses() *CourseRepository { return &CourseRepository{s: s} }

// Enrollments returns the ledger repository view of s.
func (s *Store) Enrollments() *EnrollmentRepository { return &EnrollmentRepository{s: s} }

func removeString(list []string, v string) []string {
	for i, item := range list {
		if item == v {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

func copyCourse(c *types.Course, withTree bool) types.Course {
	out := *c
	out.Modules = []types.Module{}
	if !withTree {
		return out
	}
	for _, m := range c.Modules {
		out.Modules = append(out.Modules, copyModule(m))
	}
	return out
}

func copyModule(m types.Module) types.Module {
	out := types.Module{ID: m.ID, Title: m.Title, Lectures: make([]types.Lecture, 0, len(m.Lectures))}
	for _, l := range m.Lectures {
		out.Lectures = append(out.Lectures, copyLecture(l))
	}
	return out
}

func copyLecture(l types.Lecture) types.Lecture {
	out := l
	out.Resources = append([]types.ResourceRef{}, l.Resources...)
	return out
}

func copyRecord(r *types.EnrollmentRecord) types.EnrollmentRecord {
	out := *r
	out.CompletedLectureIDs = append([]string{}, r.CompletedLectureIDs...)
	return out
}
