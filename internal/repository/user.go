package repository

import (
	"context"
	"errors"
	"staffdesk/internal/model"

	"gorm.io/gorm"
)

// ErrDuplicateEmail reports a violation of the users.email unique index.
// The executor relies on this classification to decide how a failed
// create/update behaves across retries.
var ErrDuplicateEmail = errors.New("email already in use")

// UserInterface defines the interface for user record persistence
type UserInterface interface {
	Insert(ctx context.Context, user *model.User) error
	Update(ctx context.Context, id int64, fields map[string]any) error
	FindByID(ctx context.Context, id int64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, search string) ([]model.User, error)
	PingContext(ctx context.Context) error
	WithTx(tx *gorm.DB) any
}

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Insert(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, id int64, fields map[string]any) error {
	err := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) List(ctx context.Context, search string) ([]model.User, error) {
	var users []model.User
	query := r.db.WithContext(ctx)
	if search != "" {
		pattern := "%" + search + "%"
		query = query.Where("email LIKE ? OR first_name LIKE ? OR last_name LIKE ?", pattern, pattern, pattern)
	}
	err := query.Order("created_at DESC").Find(&users).Error
	return users, err
}

func (r *UserRepository) PingContext(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *UserRepository) WithTx(tx *gorm.DB) any {
	return &UserRepository{db: tx}
}
