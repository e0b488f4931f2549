package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/prode-predictions/internal/model"
	"github.com/iliyamo/prode-predictions/internal/repository"
)

// UserService covers the admin user-management screen.
type UserService struct {
	users *repository.UserRepo
	cache CacheInvalidator
	log   *zap.Logger
}

// NewUserService wires the service.  cache is purged whenever a change
// alters who is listed on the ranking; nil disables that.
func NewUserService(users *repository.UserRepo, cache CacheInvalidator, log *zap.Logger) *UserService {
	if cache == nil {
		cache = nopInvalidator{}
	}
	return &UserService{users: users, cache: cache, log: log.Named("users")}
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	out, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

// ChangeRole sets the role of target on behalf of actor.  Nobody changes
// their own role, and only a Dev grants or revokes Dev.
func (s *UserService) ChangeRole(ctx context.Context, actorID uint64, actorRole model.Role, targetID uint64, role model.Role) (model.User, error) {
	if _, ok := model.ParseRole(string(role)); !ok {
		return model.User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if targetID == 0 {
		return model.User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if actorID == targetID {
		return model.User{}, fmt.Errorf("%w: cannot change your own role", ErrForbidden)
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return model.User{}, err
	}
	if (role == model.RoleDev || target.Role == model.RoleDev) && actorRole != model.RoleDev {
		return model.User{}, fmt.Errorf("%w: only Dev can manage Dev accounts", ErrForbidden)
	}
	if target.Role == role {
		return target, nil
	}

	if err := s.users.UpdateRole(ctx, targetID, role); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Error("update role failed", zap.Uint64("user_id", targetID), zap.Error(err))
		}
		return model.User{}, err
	}
	s.log.Info("role changed",
		zap.Uint64("actor_id", actorID), zap.Uint64("user_id", targetID),
		zap.String("from", string(target.Role)), zap.String("to", string(role)))
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("ranking cache purge failed", zap.Error(err))
	}
	target.Role = role
	return target, nil
}
