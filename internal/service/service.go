package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"liquorstock/backend/internal/apperror"
	"liquorstock/backend/internal/cache"
	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/ledger"
	"liquorstock/backend/internal/pricing"
	"liquorstock/backend/internal/store"
	"liquorstock/backend/internal/xid"
)

const (
	sellReportLockKey = "sell-report"
	financeLockKey    = "sell-finance"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Principal) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Principal, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Principal)
	return actor, ok
}

func actorOrSystem(ctx context.Context) domain.Principal {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor
	}
	return domain.Principal{Username: "system", Role: domain.RoleSystem}
}

type Options struct {
	RetailerCode string
	Prices       *pricing.Reference
	Locker       cache.Locker
	// Now overrides the wall clock in tests.
	Now func() time.Time
}

type Service struct {
	repo         store.Repository
	prices       *pricing.Reference
	locker       cache.Locker
	retailerCode string
	clock        *clock
	startedAt    time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.RetailerCode == "" {
		opts.RetailerCode = "2500552"
	}
	if opts.Prices == nil {
		opts.Prices = pricing.NewReference(cache.NoopPriceCache{}, 0)
	}
	if opts.Locker == nil {
		opts.Locker = cache.NewLocalLocker()
	}
	c := &clock{source: opts.Now}
	return &Service{
		repo:         repo,
		prices:       opts.Prices,
		locker:       opts.Locker,
		retailerCode: opts.RetailerCode,
		clock:        c,
		startedAt:    c.Now(),
	}
}

// clock never returns the same instant twice. Invoice additions are counted
// by comparing creation times, so two records written back to back must not
// share a timestamp.
type clock struct {
	mu     sync.Mutex
	source func() time.Time
	last   time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if c.source != nil {
		now = c.source()
	}
	now = now.UTC().Truncate(time.Microsecond)
	if !now.After(c.last) {
		now = c.last.Add(time.Microsecond)
	}
	c.last = now
	return now
}

func (s *Service) now() time.Time {
	return s.clock.Now()
}

func (s *Service) mrpMap(ctx context.Context) (pricing.MRPMap, error) {
	return s.prices.MRPMap(ctx, func(ctx context.Context) ([]domain.PriceListItem, error) {
		var items []domain.PriceListItem
		err := s.repo.View(ctx, func(r store.Reader) error {
			var err error
			items, err = r.ListPriceList(ctx)
			return err
		})
		return items, err
	})
}

// withLock runs fn while holding the named submission lock.
func (s *Service) withLock(ctx context.Context, key string, fn func() error) error {
	release, err := s.locker.Obtain(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrLockNotObtained) {
			return apperror.NewConflict("another submission is in progress, try again")
		}
		return fmt.Errorf("obtain %s lock: %w", key, err)
	}
	defer release()
	return fn()
}

func (s *Service) audit(ctx context.Context, w store.Writer, action string, entityType string, entityID string, details string) error {
	actor := actorOrSystem(ctx)
	if err := w.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		Username:   actor.Username,
		Role:       actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		CreatedAt:  s.now(),
	}); err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}

// refreshSummary recomputes the stock summary from every line and stores it.
func (s *Service) refreshSummary(ctx context.Context, tx store.Tx) (domain.StockSummary, error) {
	lines, err := tx.ListStockLines(ctx)
	if err != nil {
		return domain.StockSummary{}, err
	}
	summary := ledger.ComputeSummary(lines, s.now())
	if err := tx.SaveStockSummary(ctx, summary); err != nil {
		return domain.StockSummary{}, err
	}
	return summary, nil
}

// notFound turns a store miss into a 404 carrying message.
func notFound(err error, message string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperror.NewNotFound(message)
	}
	return err
}
