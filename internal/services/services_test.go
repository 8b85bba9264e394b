package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/course-pilot/apiserver/internal/auth"
	"github.com/course-pilot/apiserver/internal/events"
	"github.com/course-pilot/apiserver/internal/store/memstore"
	"github.com/course-pilot/apiserver/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store       *memstore.Store
	codec       *auth.Codec
	events      *recordingPublisher
	courses     *CourseService
	sessions    *SessionService
	enrollments *EnrollmentService
	accounts    *AccountService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := memstore.New()
	codec, err := auth.NewCodec("service-test-secret", time.Hour)
	require.NoError(t, err)
	pub := &recordingPublisher{}

	sessions := NewSessionService(st.Users(), st.Enrollments(), codec)
	accounts := NewAccountService(st.Users(), sessions)
	accounts.cost = bcrypt.MinCost

	return &fixture{
		store:       st,
		codec:       codec,
		events:      pub,
		courses:     NewCourseService(st.Courses(), pub),
		sessions:    sessions,
		enrollments: NewEnrollmentService(st.Enrollments(), st.Courses(), sessions, pub),
		accounts:    accounts,
	}
}

func price(v float64) *float64 { return &v }

func str(v string) *string { return &v }

func (f *fixture) createCourse(t *testing.T, title string, p float64) types.Course {
	t.Helper()
	course, err := f.courses.Create(context.Background(), CourseInput{
		Title:       title,
		Description: "about " + title,
		Price:       price(p),
		Thumbnail:   "https://cdn.example.com/" + title + ".png",
	})
	require.NoError(t, err)
	return course
}

func (f *fixture) addModule(t *testing.T, courseID, title string) types.Module {
	t.Helper()
	module, err := f.courses.AddModule(context.Background(), courseID, title)
	require.NoError(t, err)
	return module
}

func (f *fixture) addLecture(t *testing.T, courseID, moduleID, title string) types.Lecture {
	t.Helper()
	lecture, err := f.courses.AddLecture(context.Background(), courseID, moduleID, LectureInput{
		Title:    title,
		VideoURL: "https://video.example.com/" + title,
	})
	require.NoError(t, err)
	return lecture
}

func (f *fixture) register(t *testing.T, email string) Session {
	t.Helper()
	sess, err := f.accounts.Register(context.Background(), RegisterInput{
		Name:     "Learner",
		Email:    email,
		Password: "secret123",
	})
	require.NoError(t, err)
	return sess
}
