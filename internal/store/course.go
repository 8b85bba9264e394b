package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/course-pilot/apiserver/internal/errs"
	"github.com/course-pilot/apiserver/types"
)

// CourseRepository persists the Course -> Module -> Lecture tree.
//
// Every mutation below the course row is a single statement whose WHERE
// clause names the full id chain, so concurrent writers touching sibling
// nodes never overwrite each other. A statement that matched no row reports
// NotFound.
type CourseRepository struct {
	db *sql.DB
}

func NewCourseRepository(db *sql.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseColumns = `id, title, description, price, thumbnail, created_at, updated_at`

func scanCourse(row interface{ Scan(...any) error }) (types.Course, error) {
	var course types.Course
	err := row.Scan(
		&course.ID,
		&course.Title,
		&course.Description,
		&course.Price,
		&course.Thumbnail,
		&course.CreatedAt,
		&course.UpdatedAt,
	)
	course.Modules = []types.Module{}
	return course, err
}

func (r *CourseRepository) List(ctx context.Context, offset, limit int) ([]types.Course, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM courses`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}

	listQuery := `
		SELECT ` + courseColumns + `
		FROM courses
		ORDER BY created_at, id
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	courses := make([]types.Course, 0, limit)
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, 0, err
		}
		courses = append(courses, course)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return courses, total, nil
}

// Get returns the course row without its modules.
func (r *CourseRepository) Get(ctx context.Context, id string) (types.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	course, err := scanCourse(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Course{}, errs.NotFoundf("course not found")
		}
		return types.Course{}, fmt.Errorf("get course %s: %w", id, err)
	}
	return course, nil
}

// GetTree returns the course with every module and lecture, read from one
// snapshot.
func (r *CourseRepository) GetTree(ctx context.Context, id string) (types.Course, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return types.Course{}, fmt.Errorf("begin tree read: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	course, err := scanCourse(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Course{}, errs.NotFoundf("course not found")
		}
		return types.Course{}, fmt.Errorf("get course %s: %w", id, err)
	}

	const modulesQuery = `SELECT id, title FROM modules WHERE course_id = $1 ORDER BY seq`
	rows, err := tx.QueryContext(ctx, modulesQuery, id)
	if err != nil {
		return types.Course{}, fmt.Errorf("list modules of %s: %w", id, err)
	}
	index := make(map[string]int)
	for rows.Next() {
		module := types.Module{Lectures: []types.Lecture{}}
		if err := rows.Scan(&module.ID, &module.Title); err != nil {
			rows.Close()
			return types.Course{}, err
		}
		index[module.ID] = len(course.Modules)
		course.Modules = append(course.Modules, module)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return types.Course{}, err
	}

	const lecturesQuery = `
		SELECT module_id, id, title, video_url, resources
		FROM lectures
		WHERE course_id = $1
		ORDER BY seq`
	rows, err = tx.QueryContext(ctx, lecturesQuery, id)
	if err != nil {
		return types.Course{}, fmt.Errorf("list lectures of %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var moduleID string
		var lecture types.Lecture
		var resourcesJSON []byte
		if err := rows.Scan(&moduleID, &lecture.ID, &lecture.Title, &lecture.VideoURL, &resourcesJSON); err != nil {
			return types.Course{}, err
		}
		lecture.Resources = decodeResources(resourcesJSON)
		if i, ok := index[moduleID]; ok {
			course.Modules[i].Lectures = append(course.Modules[i].Lectures, lecture)
		}
	}
	if err := rows.Err(); err != nil {
		return types.Course{}, err
	}

	return course, tx.Commit()
}

func (r *CourseRepository) Create(ctx context.Context, course types.Course) (types.Course, error) {
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	course.Modules = []types.Module{}

	const query = `
		INSERT INTO courses (id, title, description, price, thumbnail, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		course.ID,
		course.Title,
		course.Description,
		course.Price,
		course.Thumbnail,
		course.CreatedAt,
		course.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return types.Course{}, errs.Conflictf("course already exists")
		}
		return types.Course{}, fmt.Errorf("create course: %w", err)
	}
	return course, nil
}

// Update merges the provided scalar fields into the course row.
func (r *CourseRepository) Update(ctx context.Context, id string, update types.CourseUpdate) (types.Course, error) {
	query := `
		UPDATE courses
		SET title = COALESCE($2::text, title),
			description = COALESCE($3::text, description),
			price = COALESCE($4::numeric, price),
			thumbnail = COALESCE($5::text, thumbnail),
			updated_at = $6
		WHERE id = $1
		RETURNING ` + courseColumns
	course, err := scanCourse(r.db.QueryRowContext(
		ctx,
		query,
		id,
		update.Title,
		update.Description,
		update.Price,
		update.Thumbnail,
		time.Now().UTC(),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Course{}, errs.NotFoundf("course not found")
		}
		return types.Course{}, fmt.Errorf("update course %s: %w", id, err)
	}
	return course, nil
}

// Delete removes the course; modules and lectures cascade. Enrollments are
// not touched.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM courses WHERE id = $1`
	return execMatched(ctx, r.db, "course not found", query, id)
}

// AddModule appends module to the course. The insert selects from the
// course row so a missing course inserts nothing.
func (r *CourseRepository) AddModule(ctx context.Context, courseID string, module types.Module) (types.Module, error) {
	const query = `
		INSERT INTO modules (course_id, id, title)
		SELECT id, $2, $3 FROM courses WHERE id = $1`
	if err := execMatched(ctx, r.db, "course not found", query, courseID, module.ID, module.Title); err != nil {
		return types.Module{}, err
	}
	module.Lectures = []types.Lecture{}
	return module, nil
}

func (r *CourseRepository) RenameModule(ctx context.Context, courseID, moduleID, title string) error {
	const query = `UPDATE modules SET title = $3 WHERE course_id = $1 AND id = $2`
	return execMatched(ctx, r.db, "module not found in course", query, courseID, moduleID, title)
}

func (r *CourseRepository) RemoveModule(ctx context.Context, courseID, moduleID string) error {
	const query = `DELETE FROM modules WHERE course_id = $1 AND id = $2`
	return execMatched(ctx, r.db, "module not found in course", query, courseID, moduleID)
}

func (r *CourseRepository) AddLecture(ctx context.Context, courseID, moduleID string, lecture types.Lecture) (types.Lecture, error) {
	if lecture.Resources == nil {
		lecture.Resources = []types.ResourceRef{}
	}
	resourcesJSON, err := json.Marshal(lecture.Resources)
	if err != nil {
		return types.Lecture{}, err
	}

	const query = `
		INSERT INTO lectures (course_id, module_id, id, title, video_url, resources)
		SELECT course_id, id, $3, $4, $5, $6::jsonb
		FROM modules
		WHERE course_id = $1 AND id = $2`
	if err := execMatched(
		ctx, r.db, "module not found in course", query,
		courseID, moduleID, lecture.ID, lecture.Title, lecture.VideoURL, string(resourcesJSON),
	); err != nil {
		return types.Lecture{}, err
	}
	return lecture, nil
}

func (r *CourseRepository) UpdateLecture(ctx context.Context, courseID, moduleID, lectureID string, update types.LectureUpdate) (types.Lecture, error) {
	var resources any
	if update.Resources != nil {
		list := *update.Resources
		if list == nil {
			list = []types.ResourceRef{}
		}
		raw, err := json.Marshal(list)
		if err != nil {
			return types.Lecture{}, err
		}
		resources = string(raw)
	}

	const query = `
		UPDATE lectures
		SET title = COALESCE($4::text, title),
			video_url = COALESCE($5::text, video_url),
			resources = COALESCE($6::jsonb, resources)
		WHERE course_id = $1 AND module_id = $2 AND id = $3
		RETURNING id, title, video_url, resources`
	var lecture types.Lecture
	var resourcesJSON []byte
	err := r.db.QueryRowContext(
		ctx, query,
		courseID, moduleID, lectureID, update.Title, update.VideoURL, resources,
	).Scan(&lecture.ID, &lecture.Title, &lecture.VideoURL, &resourcesJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Lecture{}, errs.NotFoundf("lecture not found in module")
		}
		return types.Lecture{}, fmt.Errorf("update lecture %s/%s/%s: %w", courseID, moduleID, lectureID, err)
	}
	lecture.Resources = decodeResources(resourcesJSON)
	return lecture, nil
}

func (r *CourseRepository) RemoveLecture(ctx context.Context, courseID, moduleID, lectureID string) error {
	const query = `DELETE FROM lectures WHERE course_id = $1 AND module_id = $2 AND id = $3`
	return execMatched(ctx, r.db, "lecture not found in module", query, courseID, moduleID, lectureID)
}

// execMatched runs a single-statement mutation and reports NotFound with
// notFoundMsg when it touched no row.
func execMatched(ctx context.Context, db *sql.DB, notFoundMsg, query string, args ...any) error {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.Conflictf("id already in use")
		}
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.NotFoundf("%s", notFoundMsg)
	}
	return nil
}

func decodeResources(raw []byte) []types.ResourceRef {
	resources := []types.ResourceRef{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &resources)
	}
	if resources == nil {
		resources = []types.ResourceRef{}
	}
	return resources
}
