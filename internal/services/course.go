package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/course-pilot/apiserver/internal/errs"
	"github.com/course-pilot/apiserver/internal/events"
	"github.com/course-pilot/apiserver/types"
	"github.com/google/uuid"
)

// CourseRepository defines persistence operations for the content tree.
// Every operation below the course root is matched by its full id chain and
// reports errs.ErrNotFound when the chain does not resolve.
type CourseRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Course, int, error)
	Get(ctx context.Context, id string) (types.Course, error)
	GetTree(ctx context.Context, id string) (types.Course, error)
	Create(ctx context.Context, course types.Course) (types.Course, error)
	Update(ctx context.Context, id string, update types.CourseUpdate) (types.Course, error)
	Delete(ctx context.Context, id string) error
	AddModule(ctx context.Context, courseID string, module types.Module) (types.Module, error)
	RenameModule(ctx context.Context, courseID, moduleID, title string) error
	RemoveModule(ctx context.Context, courseID, moduleID string) error
	AddLecture(ctx context.Context, courseID, moduleID string, lecture types.Lecture) (types.Lecture, error)
	UpdateLecture(ctx context.Context, courseID, moduleID, lectureID string, update types.LectureUpdate) (types.Lecture, error)
	RemoveLecture(ctx context.Context, courseID, moduleID, lectureID string) error
}

// CourseInput is the payload for a new course.
type CourseInput struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Price       *float64 `json:"price" validate:"required,gte=0,lt=1e10"`
	Thumbnail   string   `json:"thumbnail" validate:"required"`
}

// LectureInput is the payload for a new lecture.
type LectureInput struct {
	Title     string              `json:"title" validate:"required"`
	VideoURL  string              `json:"videoUrl" validate:"required,url"`
	Resources []types.ResourceRef `json:"resources" validate:"dive"`
}

// CourseService encapsulates content tree use-cases.
type CourseService struct {
	repo   CourseRepository
	events events.Publisher
}

func NewCourseService(repo CourseRepository, publisher events.Publisher) *CourseService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &CourseService{repo: repo, events: publisher}
}

func (s *CourseService) List(ctx context.Context, offset, limit int) ([]types.Course, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, offset, limit)
}

// Get returns the course summary without modules.
func (s *CourseService) Get(ctx context.Context, id string) (types.Course, error) {
	return s.repo.Get(ctx, id)
}

// GetContent returns the full course tree.
func (s *CourseService) GetContent(ctx context.Context, id string) (types.Course, error) {
	return s.repo.GetTree(ctx, id)
}

func (s *CourseService) Create(ctx context.Context, in CourseInput) (types.Course, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Thumbnail = strings.TrimSpace(in.Thumbnail)
	if err := validateInput(in); err != nil {
		return types.Course{}, err
	}
	return s.repo.Create(ctx, types.Course{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Price:       *in.Price,
		Thumbnail:   in.Thumbnail,
	})
}

// Update merges the provided scalar fields. Modules are never touched.
func (s *CourseService) Update(ctx context.Context, id string, update types.CourseUpdate) (types.Course, error) {
	update.Title = trimPtr(update.Title)
	update.Description = trimPtr(update.Description)
	update.Thumbnail = trimPtr(update.Thumbnail)
	if update.Empty() {
		return types.Course{}, errs.Validationf("no fields to update")
	}
	if err := validateInput(update); err != nil {
		return types.Course{}, err
	}
	return s.repo.Update(ctx, id, update)
}

func (s *CourseService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.events.Publish(ctx, events.Event{Type: events.CourseDeleted, CourseID: id})
	return nil
}

func (s *CourseService) AddModule(ctx context.Context, courseID, title string) (types.Module, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return types.Module{}, errs.Validationf("title is required")
	}
	module, err := s.repo.AddModule(ctx, courseID, types.Module{ID: uuid.NewString(), Title: title})
	if err != nil {
		return types.Module{}, fmt.Errorf("add module to %s: %w", courseID, err)
	}
	return module, nil
}

func (s *CourseService) RenameModule(ctx context.Context, courseID, moduleID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errs.Validationf("title is required")
	}
	if err := s.repo.RenameModule(ctx, courseID, moduleID, title); err != nil {
		return fmt.Errorf("rename module %s/%s: %w", courseID, moduleID, err)
	}
	return nil
}

func (s *CourseService) RemoveModule(ctx context.Context, courseID, moduleID string) error {
	if err := s.repo.RemoveModule(ctx, courseID, moduleID); err != nil {
		return fmt.Errorf("remove module %s/%s: %w", courseID, moduleID, err)
	}
	s.events.Publish(ctx, events.Event{Type: events.ModuleRemoved, CourseID: courseID, ModuleID: moduleID})
	return nil
}

func (s *CourseService) AddLecture(ctx context.Context, courseID, moduleID string, in LectureInput) (types.Lecture, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.VideoURL = strings.TrimSpace(in.VideoURL)
	if err := validateInput(in); err != nil {
		return types.Lecture{}, err
	}
	resources := in.Resources
	if resources == nil {
		resources = []types.ResourceRef{}
	}
	lecture, err := s.repo.AddLecture(ctx, courseID, moduleID, types.Lecture{
		ID:        uuid.NewString(),
		Title:     in.Title,
		VideoURL:  in.VideoURL,
		Resources: resources,
	})
	if err != nil {
		return types.Lecture{}, fmt.Errorf("add lecture to %s/%s: %w", courseID, moduleID, err)
	}
	return lecture, nil
}

func (s *CourseService) UpdateLecture(ctx context.Context, courseID, moduleID, lectureID string, update types.LectureUpdate) (types.Lecture, error) {
	update.Title = trimPtr(update.Title)
	update.VideoURL = trimPtr(update.VideoURL)
	if update.Empty() {
		return types.Lecture{}, errs.Validationf("no fields to update")
	}
	if err := validateInput(update); err != nil {
		return types.Lecture{}, err
	}
	lecture, err := s.repo.UpdateLecture(ctx, courseID, moduleID, lectureID, update)
	if err != nil {
		return types.Lecture{}, fmt.Errorf("update lecture %s/%s/%s: %w", courseID, moduleID, lectureID, err)
	}
	return lecture, nil
}

func (s *CourseService) RemoveLecture(ctx context.Context, courseID, moduleID, lectureID string) error {
	if err := s.repo.RemoveLecture(ctx, courseID, moduleID, lectureID); err != nil {
		return fmt.Errorf("remove lecture %s/%s/%s: %w", courseID, moduleID, lectureID, err)
	}
	s.events.Publish(ctx, events.Event{
		Type:      events.LectureRemoved,
		CourseID:  courseID,
		ModuleID:  moduleID,
		LectureID: lectureID,
	})
	return nil
}
