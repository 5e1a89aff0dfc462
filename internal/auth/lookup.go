package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/zapflow/zapflow/internal/observability"
	"github.com/zapflow/zapflow/internal/shared"
)

const lookupTimeout = 5 * time.Second

// UserStore loads users from the system of record.
type UserStore interface {
	FindActiveByID(ctx context.Context, id int64) (*User, error)
}

// UserLookup resolves token subjects to active users, cache first.
type UserLookup struct {
	store   UserStore
	cache   IdentityCache
	logger  *slog.Logger
	metrics *observability.Metrics
	group   singleflight.Group
}

// NewUserLookup wires the lookup. cache may be nil.
func NewUserLookup(store UserStore, cache IdentityCache, logger *slog.Logger, metrics *observability.Metrics) *UserLookup {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserLookup{store: store, cache: cache, logger: logger, metrics: metrics}
}

// ActiveUser returns the active user with id. Missing or inactive users yield
// ErrUserUnavailable; any other error is infrastructure.
func (l *UserLookup) ActiveUser(ctx context.Context, id int64) (*User, error) {
	if l.cache != nil {
		user, err := l.cache.Get(ctx, id)
		switch {
		case err == nil && user.IsActive:
			l.metrics.RecordIdentityCache("hit")
			return user, nil
		case err == nil, errors.Is(err, ErrCacheMiss):
			l.metrics.RecordIdentityCache("miss")
		default:
			l.metrics.RecordIdentityCache("error")
			l.logger.Warn("identity cache read failed", slog.Int64("user_id", id), slog.Any("error", err))
		}
	}

	resultChan := l.group.DoChan(strconv.FormatInt(id, 10), func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		return l.load(loadCtx, id)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*User), nil
	}
}

func (l *UserLookup) load(ctx context.Context, id int64) (*User, error) {
	// The fence is read before the store so a revocation committed after
	// this point always moves it.
	cacheable := false
	var generation int64
	if l.cache != nil {
		gen, err := l.cache.Generation(ctx, id)
		if err != nil {
			l.logger.Warn("identity cache fence read failed", slog.Int64("user_id", id), slog.Any("error", err))
		} else {
			cacheable, generation = true, gen
		}
	}

	user, err := l.store.FindActiveByID(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, ErrUserUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("auth: load user %d: %w", id, err)
	}
	if !user.IsActive {
		return nil, ErrUserUnavailable
	}
	if cacheable {
		if err := l.cache.Set(ctx, user, generation); err != nil {
			l.logger.Warn("identity cache write failed", slog.Int64("user_id", id), slog.Any("error", err))
		}
	}
	return user, nil
}

// Invalidate drops any cached identity for id.
func (l *UserLookup) Invalidate(ctx context.Context, id int64) error {
	if l.cache == nil {
		return nil
	}
	return l.cache.Invalidate(ctx, id)
}
