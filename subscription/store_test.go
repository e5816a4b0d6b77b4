package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philtim/multiclock/apperror"
	"github.com/philtim/multiclock/catalog"
	"github.com/philtim/multiclock/storage"
	"github.com/philtim/multiclock/tzresolve"
)

// flakyStore fails every Set while failing is true
type flakyStore struct {
	*storage.MemoryStore
	failing bool
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	if f.failing {
		return errors.New("disk on fire")
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func newStore(t *testing.T, kv storage.Store, ambient string) *Store {
	t.Helper()
	return New(Options{
		Storage:     kv,
		Resolver:    tzresolve.New(nil),
		AmbientZone: ambient,
	})
}

func persisted(t *testing.T, kv storage.Store) []Subscription {
	t.Helper()
	var subs []Subscription
	found, err := storage.GetJSON(context.Background(), kv, storage.KeyClocks, &subs)
	require.NoError(t, err)
	require.True(t, found)
	return subs
}

func seedStore(t *testing.T, kv storage.Store, subs []Subscription) {
	t.Helper()
	require.NoError(t, storage.SetJSON(context.Background(), kv, storage.KeyClocks, subs))
}

func assertInvariants(t *testing.T, s *Store) {
	t.Helper()
	subs := s.List()
	require.GreaterOrEqual(t, len(subs), 1)
	require.LessOrEqual(t, len(subs), s.Max())

	seen := map[string]bool{}
	locals := 0
	for _, sub := range subs {
		assert.False(t, seen[sub.Timezone], "duplicate %s", sub.Timezone)
		seen[sub.Timezone] = true
		if sub.Local {
			locals++
		}
	}
	assert.Equal(t, 1, locals, "exactly one local subscription")
}

func TestLoadEmptySeedsTwo(t *testing.T) {
	kv := storage.NewMemory()
	s := newStore(t, kv, "Europe/Paris")

	require.NoError(t, s.Load(context.Background()))

	want := []Subscription{
		{Timezone: "Europe/Paris", Local: true},
		{Timezone: catalog.DefaultZone},
	}
	assert.Equal(t, want, s.List())
	assert.Equal(t, want, persisted(t, kv))
	assertInvariants(t, s)
}

func TestLoadAmbientIsDefaultZone(t *testing.T) {
	s := newStore(t, storage.NewMemory(), catalog.DefaultZone)
	require.NoError(t, s.Load(context.Background()))

	assert.Equal(t, []Subscription{{Timezone: catalog.DefaultZone, Local: true}}, s.List())
}

func TestLoadReconciles(t *testing.T) {
	tests := []struct {
		name    string
		stored  []Subscription
		ambient string
		want    []Subscription
	}{
		{
			name: "duplicates first wins",
			stored: []Subscription{
				{Timezone: "Europe/Paris", Local: true},
				{Timezone: "Asia/Tokyo"},
				{Timezone: "Asia/Tokyo"},
				{Timezone: "Europe/Paris"},
			},
			ambient: "Europe/Paris",
			want: []Subscription{
				{Timezone: "Europe/Paris", Local: true},
				{Timezone: "Asia/Tokyo"},
			},
		},
		{
			name:    "missing local is prepended",
			stored:  []Subscription{{Timezone: "Asia/Tokyo"}},
			ambient: "Europe/Paris",
			want: []Subscription{
				{Timezone: "Europe/Paris", Local: true},
				{Timezone: "Asia/Tokyo"},
			},
		},
		{
			name:    "existing ambient entry is promoted",
			stored:  []Subscription{{Timezone: "Asia/Tokyo"}, {Timezone: "Europe/Paris"}},
			ambient: "Europe/Paris",
			want: []Subscription{
				{Timezone: "Asia/Tokyo"},
				{Timezone: "Europe/Paris", Local: true},
			},
		},
		{
			name:    "stale local survives ambient change",
			stored:  []Subscription{{Timezone: "America/Chicago", Local: true}, {Timezone: "UTC"}},
			ambient: "Europe/Paris",
			want: []Subscription{
				{Timezone: "America/Chicago", Local: true},
				{Timezone: "UTC"},
			},
		},
		{
			name: "second local is demoted",
			stored: []Subscription{
				{Timezone: "Asia/Tokyo", Local: true},
				{Timezone: "Europe/Paris", Local: true},
			},
			ambient: "Europe/Paris",
			want: []Subscription{
				{Timezone: "Asia/Tokyo", Local: true},
				{Timezone: "Europe/Paris"},
			},
		},
		{
			name:    "blank timezones are dropped",
			stored:  []Subscription{{Timezone: ""}, {Timezone: "UTC", Local: true}},
			ambient: "UTC",
			want:    []Subscription{{Timezone: "UTC", Local: true}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := storage.NewMemory()
			seedStore(t, kv, tt.stored)
			s := newStore(t, kv, tt.ambient)

			require.NoError(t, s.Load(context.Background()))
			assert.Equal(t, tt.want, s.List())
			assert.Equal(t, tt.want, persisted(t, kv))
			assertInvariants(t, s)
		})
	}
}

func TestLoadTrimsToMaxKeepingLocal(t *testing.T) {
	kv := storage.NewMemory()
	var stored []Subscription
	for _, z := range catalog.Default().All()[:9] {
		stored = append(stored, Subscription{Timezone: z.ID})
	}
	stored = append(stored, Subscription{Timezone: "Europe/Amsterdam", Local: true})
	seedStore(t, kv, stored)

	s := newStore(t, kv, "Europe/Amsterdam")
	require.NoError(t, s.Load(context.Background()))

	assert.Equal(t, DefaultMax, s.Len())
	assert.Equal(t, "Europe/Amsterdam", s.Local().Timezone)
	assertInvariants(t, s)
}

func TestLoadUnreadableClocksReseeds(t *testing.T) {
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(context.Background(), storage.KeyClocks, []byte(`{"oops":1}`)))

	s := newStore(t, kv, "UTC")
	require.NoError(t, s.Load(context.Background()))
	assert.Len(t, s.List(), 2)
}

func TestLoadPersistFailureStillUsable(t *testing.T) {
	kv := &flakyStore{MemoryStore: storage.NewMemory(), failing: true}
	s := newStore(t, kv, "UTC")

	err := s.Load(context.Background())
	assert.ErrorIs(t, err, apperror.ErrStorageFailure)
	assert.Len(t, s.List(), 2)
}

func TestAddUntilFull(t *testing.T) {
	kv := storage.NewMemory()
	seedStore(t, kv, []Subscription{{Timezone: "UTC", Local: true}})
	s := newStore(t, kv, "UTC")
	require.NoError(t, s.Load(context.Background()))
	require.Equal(t, 1, s.Len())

	var candidates []string
	for _, z := range catalog.Default().All() {
		if z.ID != "UTC" {
			candidates = append(candidates, z.ID)
		}
	}

	ctx := context.Background()
	for i := 0; i < DefaultMax-1; i++ {
		require.NoError(t, s.Add(ctx, candidates[i]), "add #%d", i+1)
		assertInvariants(t, s)
	}
	assert.True(t, s.Full())

	before := s.List()
	err := s.Add(ctx, candidates[DefaultMax])
	assert.ErrorIs(t, err, apperror.ErrCapacityExceeded)
	assert.Equal(t, before, s.List())
	assert.Equal(t, before, persisted(t, kv))
}

func TestAddDuplicate(t *testing.T) {
	kv := storage.NewMemory()
	s := newStore(t, kv, "Europe/Paris")
	require.NoError(t, s.Load(context.Background()))
	before := s.List()

	err := s.Add(context.Background(), catalog.DefaultZone)
	assert.ErrorIs(t, err, apperror.ErrDuplicateSubscription)

	err = s.Add(context.Background(), "Europe/Paris")
	assert.ErrorIs(t, err, apperror.ErrDuplicateSubscription)

	assert.Equal(t, before, s.List())
}

func TestAddUnsupportedZone(t *testing.T) {
	s := newStore(t, storage.NewMemory(), "UTC")
	require.NoError(t, s.Load(context.Background()))

	err := s.Add(context.Background(), "Europe/Amsterdam")
	assert.ErrorIs(t, err, apperror.ErrInvalidOperation)
	assert.Equal(t, 2, s.Len())
}

func TestAddPersists(t *testing.T) {
	kv := storage.NewMemory()
	s := newStore(t, kv, "UTC")
	require.NoError(t, s.Load(context.Background()))

	require.NoError(t, s.Add(context.Background(), "Asia/Tokyo"))
	assert.Equal(t, s.List(), persisted(t, kv))

	reloaded := newStore(t, kv, "UTC")
	require.NoError(t, reloaded.Load(context.Background()))
	assert.True(t, reloaded.Contains("Asia/Tokyo"))
}

func TestMutationsAreAtomicOnStorageFailure(t *testing.T) {
	kv := &flakyStore{MemoryStore: storage.NewMemory()}
	s := newStore(t, kv, "UTC")
	require.NoError(t, s.Load(context.Background()))
	require.NoError(t, s.Add(context.Background(), "Asia/Tokyo"))
	before := s.List()

	kv.failing = true
	ctx := context.Background()

	assert.ErrorIs(t, s.Add(ctx, "Europe/London"), apperror.ErrStorageFailure)
	assert.ErrorIs(t, s.Remove(ctx, "Asia/Tokyo"), apperror.ErrStorageFailure)
	assert.ErrorIs(t, s.Reset(ctx), apperror.ErrStorageFailure)
	assert.Equal(t, before, s.List())

	kv.failing = false
	assert.Equal(t, before, persisted(t, kv))
}

func TestRemove(t *testing.T) {
	kv := storage.NewMemory()
	s := newStore(t, kv, "UTC")
	require.NoError(t, s.Load(context.Background()))
	require.NoError(t, s.Add(context.Background(), "Asia/Tokyo"))

	require.NoError(t, s.Remove(context.Background(), catalog.DefaultZone))
	assert.Equal(t, []Subscription{{Timezone: "UTC", Local: true}, {Timezone: "Asia/Tokyo"}}, s.List())
	assert.Equal(t, s.List(), persisted(t, kv))

	err := s.Remove(context.Background(), "Europe/Berlin")
	assert.ErrorIs(t, err, apperror.ErrInvalidOperation)
}

func TestRemoveAllIsAtomic(t *testing.T) {
	kv := &flakyStore{MemoryStore: storage.NewMemory()}
	s := newStore(t, kv, "UTC")
	require.NoError(t, s.Load(context.Background()))
	require.NoError(t, s.Add(context.Background(), "Asia/Tokyo"))
	require.NoError(t, s.Add(context.Background(), "Asia/Dubai"))
	before := s.List()

	err := s.RemoveAll(context.Background(), []string{"Asia/Tokyo", "UTC"})
	assert.ErrorIs(t, err, apperror.ErrInvalidOperation)
	assert.Equal(t, before, s.List())

	kv.failing = true
	err = s.RemoveAll(context.Background(), []string{"Asia/Tokyo", "Asia/Dubai"})
	assert.Error(t, err)
	assert.Equal(t, before, s.List())

	kv.failing = false
	assert.Equal(t, before, persisted(t, kv))
	require.NoError(t, s.RemoveAll(context.Background(), []string{"Asia/Tokyo", "Asia/Dubai"}))
	assert.Equal(t, []Subscription{{Timezone: "UTC", Local: true}, {Timezone: catalog.DefaultZone}}, s.List())
	assert.Equal(t, s.List(), persisted(t, kv))
}

func TestRemoveLocalRefused(t *testing.T) {
	s := newStore(t, storage.NewMemory(), "Europe/Paris")
	require.NoError(t, s.Load(context.Background()))
	before := s.List()

	err := s.Remove(context.Background(), "Europe/Paris")
	assert.ErrorIs(t, err, apperror.ErrInvalidOperation)
	assert.Equal(t, before, s.List())
	assertInvariants(t, s)
}

func TestSeedRespectsMaxOfOne(t *testing.T) {
	kv := storage.NewMemory()
	s := New(Options{
		Storage:     kv,
		Resolver:    tzresolve.New(nil),
		AmbientZone: "Europe/Paris",
		Max:         1,
	})

	require.NoError(t, s.Load(context.Background()))
	assertInvariants(t, s)
	assert.Equal(t, []Subscription{{Timezone: "Europe/Paris", Local: true}}, s.List())

	require.NoError(t, s.Reset(context.Background()))
	assertInvariants(t, s)
	assert.Equal(t, []Subscription{{Timezone: "Europe/Paris", Local: true}}, persisted(t, kv))
}

func TestReset(t *testing.T) {
	kv := storage.NewMemory()
	s := newStore(t, kv, "UTC")
	require.NoError(t, s.Load(context.Background()))
	require.NoError(t, s.Add(context.Background(), "Asia/Tokyo"))
	require.NoError(t, s.Remove(context.Background(), catalog.DefaultZone))

	require.NoError(t, s.Reset(context.Background()))
	assert.Equal(t, []Subscription{{Timezone: "UTC", Local: true}, {Timezone: catalog.DefaultZone}}, s.List())
}

func TestReorderByOffset(t *testing.T) {
	kv := storage.NewMemory()
	seedStore(t, kv, []Subscription{
		{Timezone: "Asia/Tokyo"},
		{Timezone: "UTC", Local: true},
		{Timezone: "America/New_York"},
		{Timezone: "Europe/London"},
		{Timezone: "Asia/Kolkata"},
	})
	s := newStore(t, kv, "UTC")
	require.NoError(t, s.Load(context.Background()))

	winter := time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC)
	s.ReorderByOffset(winter)
	first := zones(s.List())
	// UTC and London tie at +00:00 in winter and keep their prior order.
	assert.Equal(t, []string{"America/New_York", "UTC", "Europe/London", "Asia/Kolkata", "Asia/Tokyo"}, first)

	s.ReorderByOffset(winter)
	assert.Equal(t, first, zones(s.List()))

	summer := time.Date(2024, time.July, 10, 12, 0, 0, 0, time.UTC)
	s.ReorderByOffset(summer)
	assert.Equal(t, []string{"America/New_York", "UTC", "Europe/London", "Asia/Kolkata", "Asia/Tokyo"}, zones(s.List()))
}

func TestReorderAcrossDST(t *testing.T) {
	kv := storage.NewMemory()
	seedStore(t, kv, []Subscription{
		{Timezone: "Europe/London", Local: true},
		{Timezone: "Africa/Johannesburg"},
		{Timezone: "Europe/Berlin"},
	})
	s := newStore(t, kv, "Europe/London")
	require.NoError(t, s.Load(context.Background()))

	// Winter: Berlin +1, Johannesburg +2.
	s.ReorderByOffset(time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"Europe/London", "Europe/Berlin", "Africa/Johannesburg"}, zones(s.List()))

	// Summer: Berlin +2 ties Johannesburg and stays ahead of it.
	s.ReorderByOffset(time.Date(2024, time.July, 10, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"Europe/London", "Europe/Berlin", "Africa/Johannesburg"}, zones(s.List()))
}

func zones(subs []Subscription) []string {
	out := make([]string, len(subs))
	for i, s := range subs {
		out[i] = s.Timezone
	}
	return out
}
