package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fastygo/entitycache/domain"
	"github.com/fastygo/entitycache/repository"
	"github.com/fastygo/entitycache/usecase"
)

// Tier is one storage layer in read order.
type Tier struct {
	Name string
	Repo repository.RecordRepository
}

// TierHealth reports whether a named tier should be consulted.
type TierHealth interface {
	TierOnline(name string) bool
}

type TieredFetcherConfig struct {
	// Backfill copies records found on a lower tier into the online tiers above it.
	Backfill bool
	Logger   *zap.Logger
}

// TieredFetcher reads through tiers in order, fastest first. The last tier is the
// primary store: writes go there and are then mirrored into the tiers above it.
type TieredFetcher struct {
	tiers    []Tier
	health   TierHealth
	backfill bool
	logger   *zap.Logger
}

var errNoTier = domain.NewError(domain.ErrCodeInternal, "no storage tier available")

func NewTieredFetcher(health TierHealth, cfg TieredFetcherConfig, tiers ...Tier) *TieredFetcher {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	active := make([]Tier, 0, len(tiers))
	for _, t := range tiers {
		if t.Repo != nil {
			active = append(active, t)
		}
	}
	return &TieredFetcher{
		tiers:    active,
		health:   health,
		backfill: cfg.Backfill,
		logger:   cfg.Logger,
	}
}

// Tiers returns the configured tier names in read order.
func (f *TieredFetcher) Tiers() []string {
	names := make([]string, len(f.tiers))
	for i, t := range f.tiers {
		names[i] = t.Name
	}
	return names
}

// FetchOne returns the first hit. A nil record with a nil error means every online
// tier reported a miss; an error is returned only when no tier answered.
func (f *TieredFetcher) FetchOne(ctx context.Context, id, typeTag string, _ usecase.Params) (domain.Record, error) {
	var (
		answered bool
		lastErr  error
	)
	for i, t := range f.tiers {
		if !f.online(t) {
			continue
		}
		rec, err := t.Repo.Get(ctx, typeTag, id)
		switch {
		case errors.Is(err, domain.ErrObjectNotFound):
			answered = true
			continue
		case err != nil:
			f.logger.Warn("tier read failed", zap.String("tier", t.Name), zap.String("id", id), zap.Error(err))
			lastErr = err
			continue
		}
		if f.backfill && i > 0 {
			f.fill(ctx, i, []domain.Record{rec})
		}
		return rec, nil
	}
	if answered {
		return nil, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errNoTier
}

// FetchMany returns records aligned with ids; ids no tier holds are nil entries.
func (f *TieredFetcher) FetchMany(ctx context.Context, ids []string, typeTag string, _ usecase.Params) ([]domain.Record, error) {
	out := make([]domain.Record, len(ids))
	pending := make([]int, len(ids))
	for i := range ids {
		pending[i] = i
	}

	var (
		answered bool
		lastErr  error
	)
	for ti, t := range f.tiers {
		if len(pending) == 0 {
			break
		}
		if !f.online(t) {
			continue
		}
		want := make([]string, len(pending))
		for j, idx := range pending {
			want[j] = ids[idx]
		}
		recs, err := t.Repo.GetMany(ctx, typeTag, want)
		if err != nil {
			f.logger.Warn("tier batch read failed", zap.String("tier", t.Name), zap.Int("ids", len(want)), zap.Error(err))
			lastErr = err
			continue
		}
		answered = true

		var (
			still []int
			found []domain.Record
		)
		for j, idx := range pending {
			if j < len(recs) && recs[j] != nil {
				out[idx] = recs[j]
				found = append(found, recs[j])
				continue
			}
			still = append(still, idx)
		}
		if f.backfill && ti > 0 && len(found) > 0 {
			f.fill(ctx, ti, found)
		}
		pending = still
	}

	if !answered && len(ids) > 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, errNoTier
	}
	return out, nil
}

// Save writes rec to the primary tier and mirrors it upward.
func (f *TieredFetcher) Save(ctx context.Context, rec domain.Record) error {
	primary, ok := f.primary()
	if !ok {
		return errNoTier
	}
	if !f.online(primary) {
		return domain.NewError(domain.ErrCodeInternal, primary.Name+" is offline")
	}
	if err := primary.Repo.Save(ctx, rec); err != nil {
		return err
	}
	f.fill(ctx, len(f.tiers)-1, []domain.Record{rec})
	return nil
}

// Delete removes the record from the primary tier and evicts it from the others.
func (f *TieredFetcher) Delete(ctx context.Context, typeTag, id string) error {
	primary, ok := f.primary()
	if !ok {
		return errNoTier
	}
	if !f.online(primary) {
		return domain.NewError(domain.ErrCodeInternal, primary.Name+" is offline")
	}
	if err := primary.Repo.Delete(ctx, typeTag, id); err != nil {
		return err
	}
	for _, t := range f.tiers[:len(f.tiers)-1] {
		if !f.online(t) {
			continue
		}
		if err := t.Repo.Delete(ctx, typeTag, id); err != nil && !errors.Is(err, domain.ErrObjectNotFound) {
			f.logger.Warn("tier evict failed", zap.String("tier", t.Name), zap.String("id", id), zap.Error(err))
		}
	}
	return nil
}

// List serves from the primary tier, falling back to any other tier that can list.
func (f *TieredFetcher) List(ctx context.Context, filter repository.RecordFilter) ([]domain.Record, error) {
	lastErr := error(errNoTier)
	for i := len(f.tiers) - 1; i >= 0; i-- {
		t := f.tiers[i]
		lister, ok := t.Repo.(repository.RecordLister)
		if !ok || !f.online(t) {
			continue
		}
		recs, err := lister.List(ctx, filter)
		if err == nil {
			return recs, nil
		}
		f.logger.Warn("tier list failed", zap.String("tier", t.Name), zap.Error(err))
		lastErr = err
	}
	return nil, lastErr
}

func (f *TieredFetcher) fill(ctx context.Context, below int, recs []domain.Record) {
	for _, t := range f.tiers[:below] {
		if !f.online(t) {
			continue
		}
		for _, rec := range recs {
			if err := t.Repo.Save(ctx, rec); err != nil {
				f.logger.Warn("tier backfill failed", zap.String("tier", t.Name), zap.String("id", rec.ID()), zap.Error(err))
			}
		}
	}
}

func (f *TieredFetcher) primary() (Tier, bool) {
	if len(f.tiers) == 0 {
		return Tier{}, false
	}
	return f.tiers[len(f.tiers)-1], true
}

func (f *TieredFetcher) online(t Tier) bool {
	return f.health == nil || f.health.TierOnline(t.Name)
}

var (
	_ usecase.Fetcher         = (*TieredFetcher)(nil)
	_ usecase.Store           = (*TieredFetcher)(nil)
	_ repository.RecordLister = (*TieredFetcher)(nil)
)
