package model

import "time"

// Degree groups courses; its slug is a notification topic.
type Degree struct {
	ID          int64     `db:"id"`
	Name        string    `db:"name"`
	Slug        string    `db:"slug"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// Course belongs to exactly one degree; its slug is a notification topic.
type Course struct {
	ID          int64     `db:"id"`
	DegreeID    int64     `db:"degree_id"`
	Name        string    `db:"name"`
	Slug        string    `db:"slug"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// CourseWithDegree is a course joined with its parent degree's topic data.
type CourseWithDegree struct {
	Course
	DegreeName string `db:"degree_name"`
	DegreeSlug string `db:"degree_slug"`
}

type Article struct {
	ID          int64      `db:"id"`
	CourseID    int64      `db:"course_id"`
	AuthorID    int64      `db:"author_id"`
	Title       string     `db:"title"`
	Slug        string     `db:"slug"`
	Content     string     `db:"content"`
	Published   bool       `db:"published"`
	PublishedAt *time.Time `db:"published_at"` // nullable
	CreatedAt   time.Time  `db:"created_at"`
}
