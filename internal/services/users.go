package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/assessment-session-service/internal/cache"
	"github.com/SAP-F-2025/assessment-session-service/internal/models"
	"github.com/SAP-F-2025/assessment-session-service/internal/portal"
	"github.com/SAP-F-2025/assessment-session-service/internal/validator"
)

const userCacheTTL = time.Minute

// userResolver turns a bearer token into the portal user, caching the answer
// briefly under a hash of the token.
type userResolver struct {
	portal    portal.Client
	cache     cache.CacheService
	validator *validator.Validator
	logger    *slog.Logger
}

func newUserResolver(portalClient portal.Client, cacheService cache.CacheService, validator *validator.Validator, logger *slog.Logger) *userResolver {
	return &userResolver{
		portal:    portalClient,
		cache:     cacheService,
		validator: validator,
		logger:    logger,
	}
}

func (r *userResolver) resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	key := cache.UserKey(token)
	if r.cache != nil {
		var user models.User
		err := r.cache.Get(ctx, key, &user)
		if err == nil {
			return &user, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Warn("User cache unavailable", "error", err)
		}
	}

	user, err := r.portal.GetCurrentUser(ctx, token)
	if err != nil {
		return nil, wrapPortalError(err, ErrUserNotFound, ErrPortalUnavailable)
	}
	if err := r.validator.Validate(user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRole, err)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, user, userCacheTTL); err != nil {
			r.logger.Warn("Failed to cache user", "error", err)
		}
	}
	return user, nil
}
