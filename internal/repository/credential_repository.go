package repository

import (
	"bizops_backend/internal/model"
	"bizops_backend/internal/util"
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CredentialRepository persists one delegated credential per user. Token
// columns are sealed with the configured cipher on the way in and opened on
// the way out.
type CredentialRepository struct {
	DB     *gorm.DB
	Cipher *util.TokenCipher
}

func NewCredentialRepository(db *gorm.DB, cipher *util.TokenCipher) *CredentialRepository {
	return &CredentialRepository{DB: db, Cipher: cipher}
}

func (r *CredentialRepository) FindByUser(ctx context.Context, userID uint) (*model.GoogleCredential, error) {
	var c model.GoogleCredential
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&c).Error; err != nil {
		return nil, err
	}
	var err error
	if c.AccessToken, err = r.Cipher.Open(c.AccessToken); err != nil {
		return nil, err
	}
	if c.RefreshToken, err = r.Cipher.Open(c.RefreshToken); err != nil {
		return nil, err
	}
	return &c, nil
}

// Upsert replaces the user's credential. An empty refresh token keeps the
// stored one, since refresh grants usually omit it.
func (r *CredentialRepository) Upsert(ctx context.Context, c *model.GoogleCredential) error {
	access, err := r.Cipher.Seal(c.AccessToken)
	if err != nil {
		return err
	}
	refresh, err := r.Cipher.Seal(c.RefreshToken)
	if err != nil {
		return err
	}
	row := &model.GoogleCredential{
		UserID:       c.UserID,
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}

	updates := []string{"access_token", "token_type", "expiry", "updated_at"}
	if c.RefreshToken != "" {
		updates = append(updates, "refresh_token")
	}

	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(row).Error
}

// MarkExpired moves the expiry into the past so the next call goes straight
// to re-authorization.
func (r *CredentialRepository) MarkExpired(ctx context.Context, userID uint, at time.Time) error {
	return r.DB.WithContext(ctx).Model(&model.GoogleCredential{}).
		Where("user_id = ?", userID).
		Update("expiry", at).Error
}

func (r *CredentialRepository) Delete(ctx context.Context, userID uint) error {
	return r.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.GoogleCredential{}).Error
}
