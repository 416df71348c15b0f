// Package testutil provides an on-disk SQLite database with the relational
// schema, so repositories and services can be tested without MySQL.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jmehdipour/topic-notifier/internal/model"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE users (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    email      TEXT     NOT NULL DEFAULT '',
    name       TEXT     NOT NULL UNIQUE,
    api_key    TEXT     NOT NULL UNIQUE,
    created_at DATETIME NOT NULL
);
CREATE TABLE degrees (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT     NOT NULL,
    slug        TEXT     NOT NULL UNIQUE,
    description TEXT     NOT NULL,
    created_at  DATETIME NOT NULL
);
CREATE TABLE courses (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    degree_id   INTEGER  NOT NULL REFERENCES degrees (id),
    name        TEXT     NOT NULL,
    slug        TEXT     NOT NULL UNIQUE,
    description TEXT     NOT NULL,
    created_at  DATETIME NOT NULL
);
CREATE TABLE articles (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    course_id    INTEGER  NOT NULL REFERENCES courses (id),
    author_id    INTEGER  NOT NULL REFERENCES users (id),
    title        TEXT     NOT NULL,
    slug         TEXT     NOT NULL UNIQUE,
    content      TEXT     NOT NULL,
    published    BOOLEAN  NOT NULL DEFAULT 0,
    published_at DATETIME NULL,
    created_at   DATETIME NOT NULL
);
CREATE TABLE subscriptions (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id    INTEGER  NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    topic      TEXT     NOT NULL,
    created_at DATETIME NOT NULL
);
CREATE TABLE outbox (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    aggregate    TEXT     NOT NULL,
    aggregate_id TEXT     NOT NULL,
    topic        TEXT     NOT NULL,
    msg_key      TEXT     NOT NULL,
    payload      BLOB     NOT NULL,
    created_at   DATETIME NOT NULL,
    published_at DATETIME NULL
);
`

// NewDB opens a fresh database in t.TempDir() and creates the schema.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

// InsertUser adds a user row and returns it with its id.
func InsertUser(t testing.TB, db *sqlx.DB, name, email string) model.User {
	t.Helper()

	u := model.User{Name: name, Email: email, APIKey: name + "-key", CreatedAt: time.Now().UTC()}
	res, err := db.Exec(`INSERT INTO users (email, name, api_key, created_at) VALUES (?, ?, ?, ?)`,
		u.Email, u.Name, u.APIKey, u.CreatedAt)
	if err != nil {
		t.Fatalf("insert user %q: %v", name, err)
	}
	u.ID, _ = res.LastInsertId()
	return u
}

// InsertCourse adds a degree and one course under it.
func InsertCourse(t testing.TB, db *sqlx.DB, degreeName, degreeSlug, courseName, courseSlug string) model.CourseWithDegree {
	t.Helper()

	now := time.Now().UTC()
	res, err := db.Exec(`INSERT INTO degrees (name, slug, description, created_at) VALUES (?, ?, '', ?)`,
		degreeName, degreeSlug, now)
	if err != nil {
		t.Fatalf("insert degree: %v", err)
	}
	degreeID, _ := res.LastInsertId()

	res, err = db.Exec(`INSERT INTO courses (degree_id, name, slug, description, created_at) VALUES (?, ?, ?, '', ?)`,
		degreeID, courseName, courseSlug, now)
	if err != nil {
		t.Fatalf("insert course: %v", err)
	}
	courseID, _ := res.LastInsertId()

	return model.CourseWithDegree{
		Course:     model.Course{ID: courseID, DegreeID: degreeID, Name: courseName, Slug: courseSlug, CreatedAt: now},
		DegreeName: degreeName,
		DegreeSlug: degreeSlug,
	}
}
