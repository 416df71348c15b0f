package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmehdipour/topic-notifier/internal/model"
	"github.com/jmoiron/sqlx"
)

// ErrSlugTaken is returned by Insert when another article already holds the slug.
var ErrSlugTaken = errors.New("article slug taken")

type ArticlesRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, a *model.Article) error
	SlugExists(ctx context.Context, tx *sqlx.Tx, slug string) (bool, error)
}

type articlesRepo struct{}

func NewArticlesRepository() ArticlesRepository { return &articlesRepo{} }

// Insert writes a in tx and sets a.ID.
func (r *articlesRepo) Insert(ctx context.Context, tx *sqlx.Tx, a *model.Article) error {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO articles
		    (course_id, author_id, title, slug, content, published, published_at, created_at)
		VALUES
		    (?,         ?,         ?,     ?,    ?,       ?,         ?,            ?)
	`, a.CourseID, a.AuthorID, a.Title, a.Slug, a.Content, a.Published, a.PublishedAt, a.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %q", ErrSlugTaken, a.Slug)
		}
		return err
	}
	a.ID, err = res.LastInsertId()
	return err
}

func (r *articlesRepo) SlugExists(ctx context.Context, tx *sqlx.Tx, slug string) (bool, error) {
	var n int
	if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM articles WHERE slug = ?`, slug); err != nil {
		return false, err
	}
	return n > 0, nil
}

// isDuplicateKey matches unique-index violations from MySQL (1062) and sqlite.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
