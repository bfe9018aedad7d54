package repository

import (
	"bizops_backend/internal/model"
	"context"
	"strings"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// FindIDsByEmails maps lower-cased email to user id for the active users
// among emails.
func (r *UserRepository) FindIDsByEmails(ctx context.Context, emails []string) (map[string]uint, error) {
	out := make(map[string]uint)
	if len(emails) == 0 {
		return out, nil
	}
	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		normalized = append(normalized, strings.ToLower(e))
	}

	var rows []struct {
		ID    uint
		Email string
	}
	err := r.DB.WithContext(ctx).Model(&model.User{}).
		Select("id, email").
		Where("LOWER(email) IN ? AND disabled = ?", normalized, false).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[strings.ToLower(row.Email)] = row.ID
	}
	return out, nil
}
