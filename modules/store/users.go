package store

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/example/chat-relay/domain/chat"
	"gorm.io/gorm"
)

// UserRepository provides access to user storage.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create saves a new user. It returns ErrDuplicateKey when the username is taken.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	rec := User{ID: user.ID, Username: user.Username, CreatedAt: user.CreatedAt}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: username %q", ErrDuplicateKey, user.Username)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.CreatedAt = rec.CreatedAt
	return nil
}

// FindByUsername retrieves a user by username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	var rec User
	if err := r.db.WithContext(ctx).First(&rec, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	user := rec.toDomain()
	return &user, nil
}

// FindByIDs retrieves the users with the given IDs. Unknown IDs are skipped.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var recs []User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}

	users := make([]domain.User, 0, len(recs))
	for _, rec := range recs {
		users = append(users, rec.toDomain())
	}
	return users, nil
}
