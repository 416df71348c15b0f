package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmehdipour/topic-notifier/internal/model"
	"github.com/jmoiron/sqlx"
)

// UsersRepository looks users up. Missing rows yield (nil, nil).
type UsersRepository interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*model.User, error)
}

type UsersRepositoryImpl struct {
	db *sqlx.DB
}

func NewUsersRepository(db *sqlx.DB) *UsersRepositoryImpl {
	return &UsersRepositoryImpl{db: db}
}

var _ UsersRepository = (*UsersRepositoryImpl)(nil)

func (r *UsersRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, `
		SELECT id, email, name, api_key, created_at
		  FROM users
		 WHERE id = ? LIMIT 1
	`, id)
}

func (r *UsersRepositoryImpl) GetByAPIKey(ctx context.Context, apiKey string) (*model.User, error) {
	return r.getOne(ctx, `
		SELECT id, email, name, api_key, created_at
		  FROM users
		 WHERE api_key = ? LIMIT 1
	`, apiKey)
}

// Upsert inserts u unless a user with the same api key exists, and returns the stored row.
func (r *UsersRepositoryImpl) Upsert(ctx context.Context, tx *sqlx.Tx, u model.User) (model.User, error) {
	var existing model.User
	err := tx.GetContext(ctx, &existing, `
		SELECT id, email, name, api_key, created_at FROM users WHERE api_key = ? LIMIT 1
	`, u.APIKey)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.User{}, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO users (email, name, api_key, created_at) VALUES (?, ?, ?, ?)
	`, u.Email, u.Name, u.APIKey, u.CreatedAt)
	if err != nil {
		return model.User{}, err
	}
	u.ID, err = res.LastInsertId()
	return u, err
}

func (r *UsersRepositoryImpl) getOne(ctx context.Context, q string, arg any) (*model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u, q, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
