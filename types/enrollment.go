package types

import "time"

// EnrollmentRecord is the ledger entry for one (user, course) pair.
//
// CompletedLectureIDs holds weak references: ids are not validated against
// the content tree when written, and a lecture removed later leaves its id in
// the stored set. Readers that need the live view use Progress.
type EnrollmentRecord struct {
	// CourseID identifies the enrolled course.
	CourseID string `json:"courseId" db:"course_id"`

	// EnrolledAt is the time the enrollment was created.
	EnrolledAt time.Time `json:"enrolledAt" db:"enrolled_at"`

	// CompletedLectureIDs is the set of completed lecture ids, kept in
	// completion order without duplicates.
	CompletedLectureIDs []string `json:"completedLectures" db:"completed_lecture_ids"`
}

// Progress is the read model returned for a (user, course) pair.
// Enrolled is false when no ledger entry exists; this is a normal result,
// not an error.
type Progress struct {
	Enrolled   bool       `json:"enrolled"`
	CourseID   string     `json:"courseId"`
	EnrolledAt *time.Time `json:"enrolledAt,omitempty"`

	// CompletedLectureIDs only lists lectures that still exist in the course.
	CompletedLectureIDs []string `json:"completedLectures"`

	TotalLectures  int     `json:"totalLectures"`
	CompletedCount int     `json:"completedCount"`
	Percent        float64 `json:"percent"`

	// CourseAvailable is false when the enrolled course has been deleted.
	CourseAvailable bool `json:"courseAvailable"`
}
