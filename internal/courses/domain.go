package courses

import "time"

// Course is a unit of teaching owned by one instructor.
type Course struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	InstructorID string    `json:"instructorId"`
	Published    bool      `json:"published"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewCourse carries the fields accepted on creation.
type NewCourse struct {
	Title        string
	Description  string
	InstructorID string
	Published    bool
}

// Changes is a partial update; nil fields are left untouched.
type Changes struct {
	Title       *string
	Description *string
	Published   *bool
}

// Empty reports whether no field is set.
func (c Changes) Empty() bool {
	return c.Title == nil && c.Description == nil && c.Published == nil
}

// View is the read model returned to callers. Enrollments is only filled for the
// owner or an admin; Enrolled only for other principals.
type View struct {
	Course
	Enrollments *int  `json:"enrollments,omitempty"`
	Enrolled    *bool `json:"enrolled,omitempty"`
}
