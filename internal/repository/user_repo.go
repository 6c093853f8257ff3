package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"frozen-pos/internal/model"
)

type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindAll(ctx context.Context) ([]model.User, error)
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id uuid.UUID, deletedBy string) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, hashedPassword, tokenVersion string) error
	UpdatePrivileges(ctx context.Context, userID uuid.UUID, privileges []model.Privilege) error
	StartSession(ctx context.Context, userID uuid.UUID, tokenVersion string, at time.Time) error
	UpdateLastSeen(ctx context.Context, userID uuid.UUID, at time.Time) error
}

type userRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db}
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Preload("Role").Preload("Privileges").Where("email = ?", email).First(&user).Error; err != nil {
		return nil, dbErr(err, "user %q", email)
	}
	return &user, nil
}

func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Preload("Role").Preload("Privileges").First(&user, "id = ?", id).Error; err != nil {
		return nil, dbErr(err, "user %s", id)
	}
	return &user, nil
}

func (r *userRepo) FindAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Preload("Role").Preload("Privileges").Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, dbErr(err, "users")
	}
	return users, nil
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return dbErr(r.db.WithContext(ctx).Omit("Role").Create(user).Error, "user %q", user.Email)
}

func (r *userRepo) Update(ctx context.Context, user *model.User) error {
	return dbErr(r.db.WithContext(ctx).Omit("Role", "Privileges").Save(user).Error, "user %q", user.Email)
}

func (r *userRepo) Delete(ctx context.Context, id uuid.UUID, deletedBy string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.User{}).Where("id = ?", id).Update("deleted_by", deletedBy).Error; err != nil {
			return dbErr(err, "user %s", id)
		}
		res := tx.Delete(&model.User{}, "id = ?", id)
		if res.Error != nil {
			return dbErr(res.Error, "user %s", id)
		}
		if res.RowsAffected == 0 {
			return dbErr(gorm.ErrRecordNotFound, "user %s", id)
		}
		return nil
	})
}

// UpdatePassword also rotates the token version, ending existing sessions.
func (r *userRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, hashedPassword, tokenVersion string) error {
	return dbErr(r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"password":      hashedPassword,
			"token_version": tokenVersion,
		}).Error, "user %s", userID)
}

func (r *userRepo) UpdatePrivileges(ctx context.Context, userID uuid.UUID, privileges []model.Privilege) error {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return dbErr(err, "user %s", userID)
	}
	return dbErr(r.db.WithContext(ctx).Model(&user).Association("Privileges").Replace(privileges),
		"privileges of user %s", userID)
}

func (r *userRepo) StartSession(ctx context.Context, userID uuid.UUID, tokenVersion string, at time.Time) error {
	return dbErr(r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"token_version": tokenVersion,
			"last_seen_at":  at,
		}).Error, "user %s", userID)
}

func (r *userRepo) UpdateLastSeen(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return dbErr(r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).
		Update("last_seen_at", at).Error, "user %s", userID)
}
