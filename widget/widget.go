// Package widget is the application state behind the clock board: the
// subscription store, the reference clock and the display preferences,
// owned by one struct and driven from one event loop.
package widget

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/philtim/multiclock/apperror"
	"github.com/philtim/multiclock/catalog"
	"github.com/philtim/multiclock/clock"
	"github.com/philtim/multiclock/refclock"
	"github.com/philtim/multiclock/snippet"
	"github.com/philtim/multiclock/storage"
	"github.com/philtim/multiclock/subscription"
	"github.com/philtim/multiclock/tzresolve"
)

// Theme is the color scheme
type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// DisplayMode selects the clock face style
type DisplayMode string

const (
	Analog  DisplayMode = "analog"
	Digital DisplayMode = "digital"
)

// Preferences are the persisted display settings
type Preferences struct {
	Theme       Theme
	DisplayMode DisplayMode
}

// Card is one clock face ready to render
type Card struct {
	clock.Projection
	Label        string
	City         string
	ExternalName string
	Local        bool
}

// Options configures a State
type Options struct {
	Storage     storage.Store
	Catalog     *catalog.Catalog
	Resolver    *tzresolve.Resolver
	Now         func() time.Time
	MaxClocks   int
	AmbientZone string
	DefaultZone string
	Logger      *slog.Logger
}

// State is the whole widget
type State struct {
	kv        storage.Store
	catalog   *catalog.Catalog
	resolver  *tzresolve.Resolver
	projector *clock.Projector
	snippets  *snippet.Generator
	store     *subscription.Store
	ref       *refclock.Clock
	prefs     Preferences
	logger    *slog.Logger
}

// New creates a State. Call Init before the first Frame.
func New(opts Options) *State {
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Resolver == nil {
		opts.Resolver = tzresolve.New(opts.Logger)
	}
	return &State{
		kv:        opts.Storage,
		catalog:   opts.Catalog,
		resolver:  opts.Resolver,
		projector: clock.NewProjector(opts.Resolver, opts.Catalog),
		snippets:  snippet.NewGenerator(opts.Resolver, opts.Catalog),
		store: subscription.New(subscription.Options{
			Storage:     opts.Storage,
			Resolver:    opts.Resolver,
			Catalog:     opts.Catalog,
			Max:         opts.MaxClocks,
			AmbientZone: opts.AmbientZone,
			DefaultZone: opts.DefaultZone,
			Logger:      opts.Logger,
		}),
		ref:    refclock.New(opts.Now),
		prefs:  Preferences{Theme: Light, DisplayMode: Analog},
		logger: opts.Logger,
	}
}

// Init loads subscriptions and preferences. A StorageFailure means the
// repaired clock list could not be written back; the widget is still usable.
func (s *State) Init(ctx context.Context) error {
	err := s.store.Load(ctx)

	var theme Theme
	if found, gerr := storage.GetJSON(ctx, s.kv, storage.KeyTheme, &theme); gerr != nil {
		s.logger.Warn("ignoring unreadable theme", "error", gerr)
	} else if found && (theme == Light || theme == Dark) {
		s.prefs.Theme = theme
	}

	var mode DisplayMode
	if found, gerr := storage.GetJSON(ctx, s.kv, storage.KeyDisplayMode, &mode); gerr != nil {
		s.logger.Warn("ignoring unreadable display mode", "error", gerr)
	} else if found && (mode == Analog || mode == Digital) {
		s.prefs.DisplayMode = mode
	}

	return err
}

// Frame reads the reference instant once, orders the clocks west to east
// and projects each of them.
func (s *State) Frame() []Card {
	now := s.ref.Now()
	s.store.ReorderByOffset(now)
	return lo.Map(s.store.List(), func(sub subscription.Subscription, _ int) Card {
		return s.card(sub, now)
	})
}

func (s *State) card(sub subscription.Subscription, now time.Time) Card {
	d, _ := s.catalog.Lookup(sub.Timezone)
	return Card{
		Projection:   s.projector.Project(sub.Timezone, now),
		Label:        s.catalog.DisplayLabel(sub.Timezone),
		City:         catalog.City(sub.Timezone),
		ExternalName: d.ExternalName,
		Local:        sub.Local,
	}
}

// KeepTicking reports whether the renderer should schedule another frame.
// A pinned instant never changes, so one final frame is enough.
func (s *State) KeepTicking() bool {
	return s.ref.Mode() == refclock.Live
}

// Now returns the reference instant
func (s *State) Now() time.Time {
	return s.ref.Now()
}

// Mode returns the reference clock mode
func (s *State) Mode() refclock.Mode {
	return s.ref.Mode()
}

// Pinned returns the override instant when one is active
func (s *State) Pinned() (time.Time, bool) {
	return s.ref.Pinned()
}

// AddClock subscribes tz
func (s *State) AddClock(ctx context.Context, tz string) error {
	return s.store.Add(ctx, tz)
}

// RemoveClock unsubscribes tz
func (s *State) RemoveClock(ctx context.Context, tz string) error {
	return s.store.Remove(ctx, tz)
}

// RemoveClocks unsubscribes every zone in tzs as one change
func (s *State) RemoveClocks(ctx context.Context, tzs []string) error {
	return s.store.RemoveAll(ctx, tzs)
}

// ResetClocks restores the first-run clock list
func (s *State) ResetClocks(ctx context.Context) error {
	return s.store.Reset(ctx)
}

// Subscriptions returns the current clock list
func (s *State) Subscriptions() []subscription.Subscription {
	return s.store.List()
}

// Full reports whether the clock limit is reached
func (s *State) Full() bool {
	return s.store.Full()
}

// MaxClocks returns the clock limit
func (s *State) MaxClocks() int {
	return s.store.Max()
}

// ApplyOverride pins the reference instant to input, read as SFMC time
func (s *State) ApplyOverride(input string) error {
	if err := s.ref.SetOverride(input); err != nil {
		return err
	}
	t, _ := s.ref.Pinned()
	s.logger.Info("time override applied", "instant", t.Format(time.RFC3339))
	return nil
}

// ResetOverride returns to live time
func (s *State) ResetOverride() {
	if s.ref.Mode() == refclock.Pinned {
		s.logger.Info("time override cleared")
	}
	s.ref.Clear()
}

// Preferences returns the display settings
func (s *State) Preferences() Preferences {
	return s.prefs
}

// ToggleTheme switches between light and dark and persists the choice
func (s *State) ToggleTheme(ctx context.Context) error {
	next := Dark
	if s.prefs.Theme == Dark {
		next = Light
	}
	if err := s.savePreference(ctx, storage.KeyTheme, next); err != nil {
		return err
	}
	s.prefs.Theme = next
	return nil
}

// ToggleDisplayMode switches between analog and digital faces and persists
// the choice
func (s *State) ToggleDisplayMode(ctx context.Context) error {
	next := Digital
	if s.prefs.DisplayMode == Digital {
		next = Analog
	}
	if err := s.savePreference(ctx, storage.KeyDisplayMode, next); err != nil {
		return err
	}
	s.prefs.DisplayMode = next
	return nil
}

func (s *State) savePreference(ctx context.Context, key string, v any) error {
	if err := storage.SetJSON(ctx, s.kv, key, v); err != nil {
		s.logger.Error("failed to save preference", "key", key, "error", err)
		return apperror.Wrap(apperror.KindStorageFailure, "failed to save preference", err)
	}
	return nil
}

// Snippets generates the SFMC conversion code for a subscribed zone at the
// reference instant
func (s *State) Snippets(tz string) ([]snippet.Snippet, error) {
	sub, ok := lo.Find(s.store.List(), func(sub subscription.Subscription) bool {
		return sub.Timezone == tz
	})
	if !ok {
		return nil, apperror.New(apperror.KindInvalidOperation, fmt.Sprintf("'%s' is not on the board", tz))
	}
	return s.snippets.Generate(sub.Timezone, sub.Local, s.ref.Now())
}

// Catalog returns every catalog zone ordered west to east at the reference
// instant
func (s *State) Catalog() []catalog.Descriptor {
	return s.byOffset(s.catalog.All())
}

// Available returns catalog zones matching query that are not yet
// subscribed, ordered west to east
func (s *State) Available(query string) []catalog.Descriptor {
	matches := lo.Reject(s.catalog.Search(query, s.catalog.Len()), func(d catalog.Descriptor, _ int) bool {
		return s.store.Contains(d.ID)
	})
	if query != "" {
		return matches
	}
	return s.byOffset(matches)
}

// Offset returns the UTC offset label of tz at the reference instant
func (s *State) Offset(tz string) string {
	return s.resolver.OffsetLabel(tz, s.ref.Now())
}

func (s *State) byOffset(zones []catalog.Descriptor) []catalog.Descriptor {
	now := s.ref.Now()
	out := slices.Clone(zones)
	slices.SortStableFunc(out, func(a, b catalog.Descriptor) int {
		return s.resolver.OffsetMinutes(a.ID, now) - s.resolver.OffsetMinutes(b.ID, now)
	})
	return out
}
