package types

import "time"

// Course is the root of the content tree. It owns its modules exclusively;
// removing a course removes every module and lecture below it.
type Course struct {
	// ID is the stable identifier of the course.
	ID string `json:"_id" db:"id"`

	// Title is the human-readable name of the course.
	Title string `json:"title" db:"title"`

	// Description is the full course description.
	Description string `json:"description" db:"description"`

	// Price is the non-negative list price of the course.
	Price float64 `json:"price" db:"price"`

	// Thumbnail is the object storage URL of the course image.
	Thumbnail string `json:"thumbnail" db:"thumbnail"`

	// Modules is the ordered module list. Catalog and summary views
	// leave it empty.
	Modules []Module `json:"modules" db:"-"`

	// CreatedAt is the timestamp at which the course was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent change to the course
	// scalar fields.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Module is a titled, ordered group of lectures inside one course.
// Its ID is unique within the owning course.
type Module struct {
	ID       string    `json:"_id" db:"id"`
	Title    string    `json:"title" db:"title"`
	Lectures []Lecture `json:"lectures" db:"-"`
}

// Lecture is a single video lesson inside one module.
// Its ID is unique within the owning module.
type Lecture struct {
	ID        string        `json:"_id" db:"id"`
	Title     string        `json:"title" db:"title"`
	VideoURL  string        `json:"videoUrl" db:"video_url"`
	Resources []ResourceRef `json:"resources" db:"resources"`
}

// ResourceRef points at a downloadable lecture resource such as a PDF.
type ResourceRef struct {
	Name string `json:"name" validate:"required"`
	URL  string `json:"url" validate:"required,url"`
}

// LectureIDs returns the ids of every lecture currently in the tree.
func (c Course) LectureIDs() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, m := range c.Modules {
		for _, l := range m.Lectures {
			ids[l.ID] = struct{}{}
		}
	}
	return ids
}

// CourseUpdate carries the scalar course fields to change. Nil fields are
// left untouched; the module list is never part of an update.
type CourseUpdate struct {
	Title       *string  `json:"title,omitempty" validate:"omitnil,min=1"`
	Description *string  `json:"description,omitempty" validate:"omitnil,min=1"`
	Price       *float64 `json:"price,omitempty" validate:"omitnil,gte=0,lt=1e10"`
	Thumbnail   *string  `json:"thumbnail,omitempty" validate:"omitnil,min=1"`
}

// Empty reports whether u changes nothing.
func (u CourseUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Price == nil && u.Thumbnail == nil
}

// LectureUpdate carries the lecture fields to change. Nil fields are left
// untouched; a non-nil Resources replaces the whole resource list.
type LectureUpdate struct {
	Title     *string        `json:"title,omitempty" validate:"omitnil,min=1"`
	VideoURL  *string        `json:"videoUrl,omitempty" validate:"omitnil,url"`
	Resources *[]ResourceRef `json:"resources,omitempty" validate:"omitnil,dive"`
}

// Empty reports whether u changes nothing.
func (u LectureUpdate) Empty() bool {
	return u.Title == nil && u.VideoURL == nil && u.Resources == nil
}
