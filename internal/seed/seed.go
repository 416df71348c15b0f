// Package seed loads deterministic demo data: users with API keys, degrees and their courses.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/topic-notifier/internal/model"
	"github.com/jmehdipour/topic-notifier/internal/repository"
	"github.com/jmehdipour/topic-notifier/internal/util"
	"github.com/jmoiron/sqlx"
)

type User struct {
	Name   string
	Email  string
	APIKey string
}

type Degree struct {
	Name        string
	Description string
	Courses     []string
}

type Data struct {
	Users   []User
	Degrees []Degree
}

var Demo = Data{
	Users: []User{
		{Name: "Ada Admin", Email: "ada@example.com", APIKey: "11111111111111111111111111111111"},
		{Name: "Ben Student", Email: "ben@example.com", APIKey: "22222222222222222222222222222222"},
		{Name: "Cleo NoMail", Email: "", APIKey: "33333333333333333333333333333333"},
	},
	Degrees: []Degree{
		{Name: "B.Sc. Computer Science", Description: "Bachelor in computer science", Courses: []string{"Mathematics 1", "Programming in Go", "Databases"}},
		{Name: "B.Sc. Wirtschaftsinformatik", Description: "Business informatics", Courses: []string{"Accounting", "Business Processes"}},
	},
}

type Result struct {
	Users, Degrees, Courses int
}

// Run inserts d in one transaction. Rows whose api key or slug already exist are left as they are.
func Run(ctx context.Context, db *sqlx.DB, d Data) (Result, error) {
	users := repository.NewUsersRepository(db)
	courses := repository.NewCoursesRepository(db)
	now := time.Now().UTC()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var res Result
	for _, u := range d.Users {
		if _, err := users.Upsert(ctx, tx, model.User{Name: u.Name, Email: u.Email, APIKey: u.APIKey, CreatedAt: now}); err != nil {
			return Result{}, fmt.Errorf("user %q: %w", u.Name, err)
		}
		res.Users++
	}

	for _, dg := range d.Degrees {
		degree, err := courses.EnsureDegree(ctx, tx, model.Degree{
			Name:        dg.Name,
			Slug:        util.Slugify(dg.Name),
			Description: dg.Description,
			CreatedAt:   now,
		})
		if err != nil {
			return Result{}, fmt.Errorf("degree %q: %w", dg.Name, err)
		}
		res.Degrees++

		for _, name := range dg.Courses {
			if _, err := courses.EnsureCourse(ctx, tx, model.Course{
				DegreeID:  degree.ID,
				Name:      name,
				Slug:      util.Slugify(name),
				CreatedAt: now,
			}); err != nil {
				return Result{}, fmt.Errorf("course %q: %w", name, err)
			}
			res.Courses++
		}
	}

	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("commit seed: %w", err)
	}
	return res, nil
}
