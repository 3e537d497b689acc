package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AnTengye/creditreport/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type userRecord struct {
	ID           string `gorm:"primaryKey;size:36"`
	Name         string `gorm:"size:255;not null"`
	Email        string `gorm:"size:255;not null;uniqueIndex"`
	PasswordHash string `gorm:"size:255;not null"`
	Role         string `gorm:"size:20;not null;default:user"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userRecord) TableName() string {
	return "users"
}

func (r *userRecord) toModel() *model.User {
	return &model.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// GormUserStore stores users in a SQL database through gorm
type GormUserStore struct {
	db *gorm.DB
}

func NewGormUserStore(db *gorm.DB) *GormUserStore {
	return &GormUserStore{db: db}
}

func (s *GormUserStore) Create(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = normalizeEmail(user.Email)
	if err := s.checkEmailFree(ctx, user.Email, user.ID); err != nil {
		return err
	}

	rec := &userRecord{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
	}
	err := s.db.WithContext(ctx).Create(rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	user.CreatedAt = rec.CreatedAt
	user.UpdatedAt = rec.UpdatedAt
	return nil
}

// checkEmailFree fails with ErrEmailTaken when another user owns email. The
// unique index still guards concurrent writers.
func (s *GormUserStore) checkEmailFree(ctx context.Context, email, ownerID string) error {
	existing, err := s.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != ownerID {
		return ErrEmailTaken
	}
	return nil
}

func (s *GormUserStore) find(ctx context.Context, query string, arg string) (*model.User, error) {
	var rec userRecord
	err := s.db.WithContext(ctx).First(&rec, query, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return rec.toModel(), nil
}

func (s *GormUserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	return s.find(ctx, "id = ?", id)
}

func (s *GormUserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.find(ctx, "email = ?", normalizeEmail(email))
}

func (s *GormUserStore) Update(ctx context.Context, user *model.User) error {
	user.Email = normalizeEmail(user.Email)
	if err := s.checkEmailFree(ctx, user.Email, user.ID); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&userRecord{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"name":          user.Name,
			"email":         user.Email,
			"password_hash": user.PasswordHash,
			"updated_at":    time.Now(),
		})
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return ErrEmailTaken
	}
	if res.Error != nil {
		return fmt.Errorf("update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
