package repository

import (
	"context"
	"errors"

	"shop/internal/domain/model"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	FindByID(ctx context.Context, userID int64) (*model.User, error)
}
