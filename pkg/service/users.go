package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/surrealdb/dualstore/pkg/constants"
	"github.com/surrealdb/dualstore/pkg/models"
	"github.com/surrealdb/dualstore/pkg/router"
)

const defaultRole = "USER"

type UserService struct {
	repo *router.Repository[models.User, string]
}

func NewUserService(repo *router.Repository[models.User, string]) *UserService {
	return &UserService{repo: repo}
}

// Register creates a user with a unique email address.
func (s *UserService) Register(ctx context.Context, email, name string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return models.User{}, fmt.Errorf("%w: invalid email address", constants.ErrInvalidInput)
	}
	if strings.TrimSpace(name) == "" {
		return models.User{}, fmt.Errorf("%w: name is required", constants.ErrInvalidInput)
	}

	users, err := s.repo.FindAll(ctx, constants.SystemCaller)
	if err != nil {
		return models.User{}, err
	}
	for _, u := range users {
		if u.Email == email {
			return models.User{}, fmt.Errorf("user %s: %w", email, constants.ErrConflict)
		}
	}

	ts := now()
	u := models.User{
		ID:        models.NewID(),
		Email:     email,
		Name:      name,
		Role:      defaultRole,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	return s.repo.Save(ctx, u.ID, u)
}

func (s *UserService) Get(ctx context.Context, callerID, id string) (models.User, error) {
	u, found, err := s.repo.FindByID(ctx, callerID, id)
	if err != nil {
		return models.User{}, err
	}
	if !found {
		return models.User{}, fmt.Errorf("user %s: %w", id, constants.ErrNotFound)
	}
	return u, nil
}
