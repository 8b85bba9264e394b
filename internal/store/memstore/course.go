package memstore

import (
	"context"
	"time"

	"github.com/course-pilot/apiserver/internal/errs"
	"github.com/course-pilot/apiserver/types"
)

// CourseRepository stores the content tree. Operations below the course
// root resolve their id chain under the store lock and touch only the
// matched node.
type CourseRepository struct {
	s *Store
}

func (r *CourseRepository) List(_ context.Context, offset, limit int) ([]types.Course, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	total := len(r.s.courseList)
	courses := []types.Course{}
	for i := offset; i < total && len(courses) < limit; i++ {
		courses = append(courses, copyCourse(r.s.courses[r.s.courseList[i]], false))
	}
	return courses, total, nil
}

func (r *CourseRepository) Get(_ context.Context, id string) (types.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	course, ok := r.s.courses[id]
	if !ok {
		return types.Course{}, errs.NotFoundf("course not found")
	}
	return copyCourse(course, false), nil
}

func (r *CourseRepository) GetTree(_ context.Context, id string) (types.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	course, ok := r.s.courses[id]
	if !ok {
		return types.Course{}, errs.NotFoundf("course not found")
	}
	return copyCourse(course, true), nil
}

func (r *CourseRepository) Create(_ context.Context, course types.Course) (types.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, taken := r.s.courses[course.ID]; taken {
		return types.Course{}, errs.Conflictf("course already exists")
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	course.Modules = []types.Module{}

	stored := course
	r.s.courses[course.ID] = &stored
	r.s.courseList = append(r.s.courseList, course.ID)
	return course, nil
}

func (r *CourseRepository) Update(_ context.Context, id string, update types.CourseUpdate) (types.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	course, ok := r.s.courses[id]
	if !ok {
		return types.Course{}, errs.NotFoundf("course not found")
	}
	if update.Title != nil {
		course.Title = *update.Title
	}
	if update.Description != nil {
		course.Description = *update.Description
	}
	if update.Price != nil {
		course.Price = *update.Price
	}
	if update.Thumbnail != nil {
		course.Thumbnail = *update.Thumbnail
	}
	course.UpdatedAt = time.Now().UTC()
	return copyCourse(course, false), nil
}

// Delete drops the course and its subtree. Enrollments are left in place.
func (r *CourseRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.courses[id]; !ok {
		return errs.NotFoundf("course not found")
	}
	delete(r.s.courses, id)
	r.s.courseList = removeString(r.s.courseList, id)
	return nil
}

func (r *CourseRepository) AddModule(_ context.Context, courseID string, module types.Module) (types.Module, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	course, ok := r.s.courses[courseID]
	if !ok {
		return types.Module{}, errs.NotFoundf("course not found")
	}
	if _, found := findModule(course, module.ID); found {
		return types.Module{}, errs.Conflictf("id already in use")
	}
	module.Lectures = []types.Lecture{}
	course.Modules = append(course.Modules, module)
	return copyModule(module), nil
}

func (r *CourseRepository) RenameModule(_ context.Context, courseID, moduleID, title string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	course, i, err := r.matchModule(courseID, moduleID)
	if err != nil {
		return err
	}
	course.Modules[i].Title = title
	return nil
}

func (r *CourseRepository) RemoveModule(_ context.Context, courseID, moduleID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	course, i, err := r.matchModule(courseID, moduleID)
	if err != nil {
		return err
	}
	course.Modules = append(course.Modules[:i:i], course.Modules[i+1:]...)
	return nil
}

func (r *CourseRepository) AddLecture(_ context.Context, courseID, moduleID string, lecture types.Lecture) (types.Lecture, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	course, i, err := r.matchModule(courseID, moduleID)
	if err != nil {
		return types.Lecture{}, err
	}
	if _, found := findLecture(course.Modules[i], lecture.ID); found {
		return types.Lecture{}, errs.Conflictf("id already in use")
	}
	lecture = copyLecture(lecture)
	course.Modules[i].Lectures = append(course.Modules[i].Lectures, lecture)
	return copyLecture(lecture), nil
}

func (r *CourseRepository) UpdateLecture(_ context.Context, courseID, moduleID, lectureID string, update types.LectureUpdate) (types.Lecture, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	course, mi, li, err := r.matchLecture(courseID, moduleID, lectureID)
	if err != nil {
		return types.Lecture{}, err
	}
	lecture := &course.Modules[mi].Lectures[li]
	if update.Title != nil {
		lecture.Title = *update.Title
	}
	if update.VideoURL != nil {
		lecture.VideoURL = *update.VideoURL
	}
	if update.Resources != nil {
		lecture.Resources = append([]types.ResourceRef{}, (*update.Resources)...)
	}
	return copyLecture(*lecture), nil
}

func (r *CourseRepository) RemoveLecture(_ context.Context, courseID, moduleID, lectureID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	course, mi, li, err := r.matchLecture(courseID, moduleID, lectureID)
	if err != nil {
		return err
	}
	lectures := course.Modules[mi].Lectures
	course.Modules[mi].Lectures = append(lectures[:li:li], lectures[li+1:]...)
	return nil
}

// matchModule resolves (courseID, moduleID). Callers hold the lock.
func (r *CourseRepository) matchModule(courseID, moduleID string) (*types.Course, int, error) {
	course, ok := r.s.courses[courseID]
	if !ok {
		return nil, 0, errs.NotFoundf("module not found in course")
	}
	i, found := findModule(course, moduleID)
	if !found {
		return nil, 0, errs.NotFoundf("module not found in course")
	}
	return course, i, nil
}

// matchLecture resolves the full id chain. Callers hold the lock.
func (r *CourseRepository) matchLecture(courseID, moduleID, lectureID string) (*types.Course, int, int, error) {
	course, mi, err := r.matchModule(courseID, moduleID)
	if err != nil {
		return nil, 0, 0, errs.NotFoundf("lecture not found in module")
	}
	li, found := findLecture(course.Modules[mi], lectureID)
	if !found {
		return nil, 0, 0, errs.NotFoundf("lecture not found in module")
	}
	return course, mi, li, nil
}

func findModule(course *types.Course, moduleID string) (int, bool) {
	for i, m := range course.Modules {
		if m.ID == moduleID {
			return i, true
		}
	}
	return 0, false
}

func findLecture(module types.Module, lectureID string) (int, bool) {
	for i, l := range module.Lectures {
		if l.ID == lectureID {
			return i, true
		}
	}
	return 0, false
}
