package repository

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/service/engagement"
)

type UserRepository struct {
	db     Querier
	logger *zap.Logger
}

func NewUserRepository(db Querier, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	err := r.db.QueryRow(ctx, `
        INSERT INTO users (email, password_hash, role)
        VALUES ($1, $2, $3)
        RETURNING id, created_at
    `, u.Email, u.PasswordHash, u.Role).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		err = translate(err)
		if !errors.Is(err, engagement.ErrDuplicateRecord) {
			r.logger.Error("Failed to insert user", zap.String("email", u.Email), zap.Error(err))
		}
		return err
	}
	r.logger.Info("User created", zap.Int64("id", u.ID), zap.String("role", u.Role))
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User
	err := r.db.QueryRow(ctx, `
        SELECT id, email, password_hash, role, rating, rating_count, created_at
        FROM users WHERE `+where+` = $1
    `, arg).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.Rating,
		&u.RatingCount,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, "id", id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, "email", email)
}

func (r *UserRepository) UpdateRating(ctx context.Context, userID int64, rating float64, count int) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE users SET rating = $1, rating_count = $2 WHERE id = $3
    `, rating, count, userID)
	if err != nil {
		r.logger.Error("Failed to update rating", zap.Int64("user_id", userID), zap.Error(err))
		return translate(err)
	}
	return mustAffect(tag)
}
