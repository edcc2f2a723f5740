package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"user-profile/internal/cache"
	"user-profile/internal/domain"
	"user-profile/internal/executor"
	"user-profile/internal/live"
	"user-profile/internal/metrics"
	"user-profile/internal/repository"
	"user-profile/internal/webservice"
)

// ErrInvalidUserID is returned for blank user ids.
var ErrInvalidUserID = errors.New("user id is required")

// UserService decides, per user id, whether to serve from memory, the local
// store or the remote service.
type UserService interface {
	// GetUser returns a container that is filled once the remote fetch
	// completes. A remote without the user fills it with nil; any other
	// failure leaves it empty.
	GetUser(userID string) *live.Data[*domain.User]
	// RefreshUser schedules a background refetch unless the stored copy is
	// still fresh.
	RefreshUser(userID string) error
	// LoadUser serves the stored copy and refetches it when missing or stale,
	// publishing every step as a Resource.
	LoadUser(userID string) *live.Data[domain.Resource[*domain.User]]
	ListRecent(ctx context.Context, since time.Time) ([]domain.User, error)
}

type Config struct {
	FreshTimeout time.Duration
	Logger       *logrus.Logger
	Metrics      *metrics.Metrics
	Now          func() time.Time
}

type userService struct {
	remote   webservice.Service
	executor executor.Executor
	store    repository.UserStore
	cache    *cache.UserCache
	cfg      Config
}

func NewUserService(remote webservice.Service, exec executor.Executor, store repository.UserStore, userCache *cache.UserCache, cfg Config) UserService {
	if cfg.FreshTimeout <= 0 {
		cfg.FreshTimeout = domain.FreshTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if userCache == nil {
		userCache = cache.NewUserCache(cfg.FreshTimeout, 0)
	}
	return &userService{
		remote:   remote,
		executor: exec,
		store:    store,
		cache:    userCache,
		cfg:      cfg,
	}
}

func (s *userService) GetUser(userID string) *live.Data[*domain.User] {
	logger := s.cfg.Logger.WithField("user_id", userID)
	if strings.TrimSpace(userID) == "" {
		logger.Warn("get user: blank id, nothing fetched")
		return live.NewData[*domain.User]()
	}

	data, loaded := s.cache.LoadOrStore(userID, live.NewData[*domain.User])
	if loaded {
		s.cfg.Metrics.CacheHit()
		return data
	}
	s.cfg.Metrics.CacheMiss()
	s.cfg.Metrics.SetCached(s.cache.Len())

	// the container goes into the cache while still empty; it is filled
	// when the call completes
	s.remote.GetUser(userID).Enqueue(webservice.Callback{
		OnResponse: func(user *domain.User) {
			s.cfg.Metrics.ObserveFetch("get_user", metrics.OutcomeSuccess)
			data.Set(user)
		},
		OnFailure: func(err error) {
			// drop the entry so the next caller refetches
			s.cache.RemoveIf(userID, data)
			s.cfg.Metrics.SetCached(s.cache.Len())
			s.cfg.Metrics.ObserveFetch("get_user", fetchOutcome(err))
			if errors.Is(err, webservice.ErrUserNotFound) {
				// the remote answered without a user
				logger.Debug("get user: remote has no such user")
				data.Set(nil)
				return
			}
			// transport failures leave the container empty
			logger.Warnf("get user: remote fetch failed: %v", err)
		},
	})
	return data
}

func (s *userService) RefreshUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUserID
	}
	if err := s.executor.Execute(func(ctx context.Context) {
		if err := s.refresh(ctx, userID); err != nil {
			s.cfg.Logger.WithField("user_id", userID).Warnf("refresh user: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}
	return nil
}

// refresh runs on the executor.
func (s *userService) refresh(ctx context.Context, userID string) error {
	fresh, err := s.store.HasFreshUser(ctx, userID, s.cfg.FreshTimeout)
	if err != nil {
		return err
	}
	if fresh {
		s.cfg.Metrics.ObserveFetch("refresh", metrics.OutcomeSkipped)
		return nil
	}

	user, err := s.remote.GetUser(userID).Execute(ctx)
	if err != nil {
		s.cfg.Metrics.ObserveFetch("refresh", fetchOutcome(err))
		return fmt.Errorf("fetch: %w", err)
	}
	s.cfg.Metrics.ObserveFetch("refresh", metrics.OutcomeSuccess)

	if err := s.save(ctx, user); err != nil {
		return err
	}
	s.publish(userID, user)
	s.cfg.Logger.WithField("user_id", userID).Debug("user refreshed")
	return nil
}

func (s *userService) LoadUser(userID string) *live.Data[domain.Resource[*domain.User]] {
	result := live.NewData[domain.Resource[*domain.User]]()
	result.Set(domain.Loading[*domain.User](nil))

	if strings.TrimSpace(userID) == "" {
		result.Set(domain.Failure[*domain.User](ErrInvalidUserID, nil))
		return result
	}

	if err := s.executor.Execute(func(ctx context.Context) {
		s.loadBound(ctx, userID, result)
	}); err != nil {
		result.Set(domain.Failure[*domain.User](fmt.Errorf("schedule load: %w", err), nil))
	}
	return result
}

func (s *userService) loadBound(ctx context.Context, userID string, result *live.Data[domain.Resource[*domain.User]]) {
	logger := s.cfg.Logger.WithField("user_id", userID)

	local, err := s.store.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Warnf("load user: read local copy: %v", err)
		}
		local = nil
	}

	if local != nil && local.IsFresh(s.cfg.Now(), s.cfg.FreshTimeout) {
		s.cfg.Metrics.ObserveFetch("load", metrics.OutcomeSkipped)
		result.Set(domain.Success(local))
		return
	}
	result.Set(domain.Loading(local))

	remote, err := s.remote.GetUser(userID).Execute(ctx)
	if err != nil {
		s.cfg.Metrics.ObserveFetch("load", fetchOutcome(err))
		logger.Warnf("load user: remote fetch failed: %v", err)
		result.Set(domain.Failure(err, local))
		return
	}
	s.cfg.Metrics.ObserveFetch("load", metrics.OutcomeSuccess)

	if err := s.save(ctx, remote); err != nil {
		// the fetched copy is still good to serve
		logger.Warnf("load user: %v", err)
		s.publish(userID, remote)
		result.Set(domain.Success(remote))
		return
	}

	saved, err := s.store.Get(ctx, userID)
	if err != nil {
		logger.Warnf("load user: reload saved copy: %v", err)
		saved = remote
	}
	s.publish(userID, saved)
	result.Set(domain.Success(saved))
}

func (s *userService) ListRecent(ctx context.Context, since time.Time) ([]domain.User, error) {
	return s.store.ListRecent(ctx, since)
}

func (s *userService) save(ctx context.Context, user *domain.User) error {
	user.FetchedAt = s.cfg.Now().UTC()
	err := s.store.Save(ctx, user)
	s.cfg.Metrics.ObserveSave(err)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// publish pushes a newly stored user into the cached GetUser container, if any.
func (s *userService) publish(userID string, user *domain.User) {
	if data, ok := s.cache.Load(userID); ok {
		data.Set(user)
	}
}

func fetchOutcome(err error) string {
	if errors.Is(err, webservice.ErrUserNotFound) {
		return metrics.OutcomeNotFound
	}
	return metrics.OutcomeError
}
