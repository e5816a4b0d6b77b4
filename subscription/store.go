// Package subscription keeps the ordered list of clocks the user follows.
//
// The list is unique on timezone, holds between 1 and Max entries, and
// always carries exactly one Local entry for the device's own zone. Every
// mutation is written to storage before it becomes visible in memory, so a
// failed write leaves the list as it was.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/philtim/multiclock/apperror"
	"github.com/philtim/multiclock/catalog"
	"github.com/philtim/multiclock/storage"
	"github.com/philtim/multiclock/tzresolve"
)

// DefaultMax is the clock limit when Options.Max is unset
const DefaultMax = 8

// Subscription is one clock on screen
type Subscription struct {
	Timezone string `json:"timezone"`
	Local    bool   `json:"isLocal"`
}

// Options configures a Store
type Options struct {
	Storage     storage.Store
	Resolver    *tzresolve.Resolver
	Catalog     *catalog.Catalog
	Max         int
	AmbientZone string
	DefaultZone string
	Logger      *slog.Logger
}

// Store owns the subscription sequence
type Store struct {
	kv          storage.Store
	resolver    *tzresolve.Resolver
	catalog     *catalog.Catalog
	max         int
	ambientZone string
	defaultZone string
	logger      *slog.Logger
	subs        []Subscription
}

// New creates a Store. Call Load before using it.
func New(opts Options) *Store {
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Max <= 0 {
		opts.Max = DefaultMax
	}
	if opts.AmbientZone == "" {
		opts.AmbientZone = catalog.UTCZone
	}
	if opts.DefaultZone == "" {
		opts.DefaultZone = catalog.DefaultZone
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Resolver == nil {
		opts.Resolver = tzresolve.New(opts.Logger)
	}
	return &Store{
		kv:          opts.Storage,
		resolver:    opts.Resolver,
		catalog:     opts.Catalog,
		max:         opts.Max,
		ambientZone: opts.AmbientZone,
		defaultZone: opts.DefaultZone,
		logger:      opts.Logger,
	}
}

// Load reads the persisted sequence, repairs it, and writes the repaired
// sequence back. If that write fails the repaired sequence is still used
// and a StorageFailure is returned.
func (s *Store) Load(ctx context.Context) error {
	var persisted []Subscription
	found, err := storage.GetJSON(ctx, s.kv, storage.KeyClocks, &persisted)
	if err != nil {
		s.logger.Warn("discarding unreadable clock list", "error", err)
		found, persisted = false, nil
	}

	var subs []Subscription
	if found && len(persisted) > 0 {
		subs = s.reconcile(persisted)
	} else {
		subs = s.seed()
	}

	s.subs = subs
	s.logger.Debug("clock list loaded", "count", len(subs), "persisted", found, "local", s.Local().Timezone)

	return s.persist(ctx, subs)
}

func (s *Store) seed() []Subscription {
	subs := []Subscription{{Timezone: s.ambientZone, Local: true}}
	if s.defaultZone != s.ambientZone && s.max > 1 {
		subs = append(subs, Subscription{Timezone: s.defaultZone})
	}
	return subs
}

// reconcile drops blanks and duplicates (first wins), keeps the first Local
// entry, synthesizes one from the ambient zone if none exists, and trims to
// the limit without ever dropping the Local entry.
func (s *Store) reconcile(persisted []Subscription) []Subscription {
	subs := lo.Filter(persisted, func(sub Subscription, _ int) bool {
		return sub.Timezone != ""
	})
	subs = lo.UniqBy(subs, func(sub Subscription) string {
		return sub.Timezone
	})

	localSeen := false
	for i := range subs {
		if subs[i].Local && localSeen {
			subs[i].Local = false
		}
		localSeen = localSeen || subs[i].Local
	}

	if !localSeen {
		if _, idx, ok := lo.FindIndexOf(subs, func(sub Subscription) bool {
			return sub.Timezone == s.ambientZone
		}); ok {
			subs[idx].Local = true
		} else {
			subs = append([]Subscription{{Timezone: s.ambientZone, Local: true}}, subs...)
		}
	}

	for len(subs) > s.max {
		last := len(subs) - 1
		if subs[last].Local {
			last--
		}
		subs = slices.Delete(subs, last, last+1)
	}
	return subs
}

// Add appends tz as a Standard subscription
func (s *Store) Add(ctx context.Context, tz string) error {
	if len(s.subs) >= s.max {
		return apperror.New(apperror.KindCapacityExceeded, fmt.Sprintf("max %d clocks allowed", s.max))
	}
	if s.Contains(tz) {
		return apperror.New(apperror.KindDuplicateSubscription, fmt.Sprintf("%s is already on the board", s.catalog.DisplayLabel(tz)))
	}
	if !s.catalog.Contains(tz) {
		return apperror.New(apperror.KindInvalidOperation, fmt.Sprintf("'%s' is not a supported timezone", tz))
	}

	next := append(slices.Clone(s.subs), Subscription{Timezone: tz})
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.subs = next
	s.logger.Info("clock added", "timezone", tz, "count", len(next))
	return nil
}

// Remove drops the Standard subscription for tz. The Local clock cannot
// be removed.
func (s *Store) Remove(ctx context.Context, tz string) error {
	return s.RemoveAll(ctx, []string{tz})
}

// RemoveAll drops every zone in tzs with a single write. If any zone is
// missing or Local, or the write fails, nothing is removed.
func (s *Store) RemoveAll(ctx context.Context, tzs []string) error {
	for _, tz := range tzs {
		sub, ok := lo.Find(s.subs, func(sub Subscription) bool {
			return sub.Timezone == tz
		})
		if !ok {
			return apperror.New(apperror.KindInvalidOperation, fmt.Sprintf("'%s' is not on the board", tz))
		}
		if sub.Local {
			return apperror.New(apperror.KindInvalidOperation, "the local clock cannot be removed")
		}
	}

	next := lo.Reject(s.subs, func(sub Subscription, _ int) bool {
		return slices.Contains(tzs, sub.Timezone)
	})
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.subs = next
	s.logger.Info("clocks removed", "timezones", tzs, "count", len(next))
	return nil
}

// Reset replaces the whole collection with the first-run seed
func (s *Store) Reset(ctx context.Context) error {
	next := s.seed()
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.subs = next
	s.logger.Info("clock list reset", "count", len(next))
	return nil
}

// ReorderByOffset stable-sorts the sequence by UTC offset at instant,
// west to east. Equal offsets keep their relative order.
func (s *Store) ReorderByOffset(instant time.Time) {
	type keyed struct {
		sub    Subscription
		offset int
	}
	keys := make([]keyed, len(s.subs))
	for i, sub := range s.subs {
		keys[i] = keyed{sub: sub, offset: s.resolver.OffsetMinutes(sub.Timezone, instant)}
	}
	slices.SortStableFunc(keys, func(a, b keyed) int {
		return a.offset - b.offset
	})
	for i, k := range keys {
		s.subs[i] = k.sub
	}
}

// List returns a copy of the current sequence
func (s *Store) List() []Subscription {
	return slices.Clone(s.subs)
}

// Len returns the number of subscriptions
func (s *Store) Len() int {
	return len(s.subs)
}

// Max returns the subscription limit
func (s *Store) Max() int {
	return s.max
}

// Full reports whether Add would fail with CapacityExceeded
func (s *Store) Full() bool {
	return len(s.subs) >= s.max
}

// Contains reports whether tz is subscribed
func (s *Store) Contains(tz string) bool {
	return lo.ContainsBy(s.subs, func(sub Subscription) bool {
		return sub.Timezone == tz
	})
}

// Local returns the Local subscription
func (s *Store) Local() Subscription {
	sub, _ := lo.Find(s.subs, func(sub Subscription) bool {
		return sub.Local
	})
	return sub
}

func (s *Store) persist(ctx context.Context, subs []Subscription) error {
	if err := storage.SetJSON(ctx, s.kv, storage.KeyClocks, subs); err != nil {
		s.logger.Error("failed to save clock list", "error", err)
		return apperror.Wrap(apperror.KindStorageFailure, "failed to save clocks", err)
	}
	return nil
}
