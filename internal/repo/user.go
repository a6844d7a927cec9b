package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/Skotchmaster/cartify/internal/models"
)

func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	return r.DB.WithContext(ctx).Create(u).Error
}

func (r *GormRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByLogin matches either the username or the email.
func (r *GormRepo) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).
		Where("username = ? OR email = ?", login, login).
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
