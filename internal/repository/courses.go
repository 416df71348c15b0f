package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmehdipour/topic-notifier/internal/model"
	"github.com/jmoiron/sqlx"
)

// CoursesRepository resolves course and degree topics by slug.
type CoursesRepository interface {
	CourseBySlug(ctx context.Context, slug string) (*model.CourseWithDegree, error)
	DegreeBySlug(ctx context.Context, slug string) (*model.Degree, error)
}

type CoursesRepositoryImpl struct {
	db *sqlx.DB
}

func NewCoursesRepository(db *sqlx.DB) *CoursesRepositoryImpl {
	return &CoursesRepositoryImpl{db: db}
}

var _ CoursesRepository = (*CoursesRepositoryImpl)(nil)

func (r *CoursesRepositoryImpl) CourseBySlug(ctx context.Context, slug string) (*model.CourseWithDegree, error) {
	var c model.CourseWithDegree
	err := r.db.GetContext(ctx, &c, `
		SELECT c.id, c.degree_id, c.name, c.slug, c.description, c.created_at,
		       d.name AS degree_name, d.slug AS degree_slug
		  FROM courses c
		  JOIN degrees d ON d.id = c.degree_id
		 WHERE c.slug = ? LIMIT 1
	`, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CoursesRepositoryImpl) DegreeBySlug(ctx context.Context, slug string) (*model.Degree, error) {
	var d model.Degree
	err := r.db.GetContext(ctx, &d, `
		SELECT id, name, slug, description, created_at FROM degrees WHERE slug = ? LIMIT 1
	`, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// EnsureDegree inserts d unless its slug is taken; the slug is never regenerated.
func (r *CoursesRepositoryImpl) EnsureDegree(ctx context.Context, tx *sqlx.Tx, d model.Degree) (model.Degree, error) {
	var existing model.Degree
	err := tx.GetContext(ctx, &existing, `
		SELECT id, name, slug, description, created_at FROM degrees WHERE slug = ? LIMIT 1
	`, d.Slug)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Degree{}, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO degrees (name, slug, description, created_at) VALUES (?, ?, ?, ?)
	`, d.Name, d.Slug, d.Description, d.CreatedAt)
	if err != nil {
		return model.Degree{}, err
	}
	d.ID, err = res.LastInsertId()
	return d, err
}

// EnsureCourse inserts c unless its slug is taken.
func (r *CoursesRepositoryImpl) EnsureCourse(ctx context.Context, tx *sqlx.Tx, c model.Course) (model.Course, error) {
	var existing model.Course
	err := tx.GetContext(ctx, &existing, `
		SELECT id, degree_id, name, slug, description, created_at FROM courses WHERE slug = ? LIMIT 1
	`, c.Slug)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Course{}, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO courses (degree_id, name, slug, description, created_at) VALUES (?, ?, ?, ?, ?)
	`, c.DegreeID, c.Name, c.Slug, c.Description, c.CreatedAt)
	if err != nil {
		return model.Course{}, err
	}
	c.ID, err = res.LastInsertId()
	return c, err
}
