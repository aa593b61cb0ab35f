package auth

import (
	"errors"
	"fmt"

	"github.com/zulandar/testyard/internal/apperr"
	"github.com/zulandar/testyard/internal/db"
	"github.com/zulandar/testyard/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CreateUser stores a new user with a bcrypt password hash.
func CreateUser(gormDB *gorm.DB, username, password string, scopes map[string]string) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("auth: username is required: %w", apperr.ErrMissingField)
	}
	for project, right := range scopes {
		if project == "" {
			return nil, fmt.Errorf("auth: empty scope key: %w", apperr.ErrMalformedInput)
		}
		if err := ValidateRight(right); err != nil {
			return nil, err
		}
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", err, apperr.ErrMissingField)
	}
	if scopes == nil {
		scopes = map[string]string{}
	}

	var count int64
	if err := gormDB.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("auth: check user %s: %w", username, err)
	}
	if count > 0 {
		return nil, fmt.Errorf("auth: user %s: %w", username, apperr.ErrDuplicateUser)
	}

	user := models.User{
		Username:     username,
		PasswordHash: hash,
		Scopes:       datatypes.NewJSONType(scopes),
	}
	if err := gormDB.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("auth: create user %s: %w", username, err)
	}
	return &user, nil
}

// GetUser loads a user by name.
func GetUser(gormDB *gorm.DB, username string) (*models.User, error) {
	var user models.User
	if err := gormDB.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("auth: user %s: %w", username, apperr.ErrUserNotFound)
		}
		return nil, fmt.Errorf("auth: get user %s: %w", username, err)
	}
	return &user, nil
}

// SetScope grants right on project to username; an empty right revokes it.
// Tokens already issued keep the scopes they were signed with.
func SetScope(gormDB *gorm.DB, username, project, right string) (*models.User, error) {
	if project == "" {
		return nil, fmt.Errorf("auth: project is required: %w", apperr.ErrMissingField)
	}
	if right != "" {
		if err := ValidateRight(right); err != nil {
			return nil, err
		}
	}

	var user *models.User
	err := gormDB.Transaction(func(tx *gorm.DB) error {
		u, err := GetUser(tx, username)
		if err != nil {
			return err
		}
		scopes := map[string]string{}
		for k, v := range u.Scopes.Data() {
			scopes[k] = v
		}
		if right == "" {
			delete(scopes, project)
		} else {
			scopes[project] = right
		}
		u.Scopes = datatypes.NewJSONType(scopes)
		if err := tx.Model(u).Update("scopes", u.Scopes).Error; err != nil {
			return fmt.Errorf("auth: update scopes of %s: %w", username, err)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SeedAdmin creates the bootstrap global admin once; later calls are no-ops
// even if the user was since renamed or deleted.
func SeedAdmin(gormDB *gorm.DB, username, password string) (bool, error) {
	return db.RunOnce(gormDB, db.Step{
		Type:        db.OpSetup,
		Order:       1,
		Description: "seed global admin " + username,
		Apply: func(tx *gorm.DB) error {
			_, err := CreateUser(tx, username, password, map[string]string{Wildcard: RightAdmin})
			if errors.Is(err, apperr.ErrDuplicateUser) {
				return nil
			}
			return err
		},
	})
}
