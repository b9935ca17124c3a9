package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/shared"
)

type memoryStore struct {
	data      []byte
	loadCalls int
	loadErr   error
	saveErr   error
}

func (s *memoryStore) Load(ctx context.Context) ([]byte, error) {
	s.loadCalls++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.data == nil {
		return nil, shared.ErrNotFound
	}
	return s.data, nil
}

func (s *memoryStore) Save(ctx context.Context, data []byte) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data = append([]byte(nil), data...)
	return nil
}

func TestSettingsDefaultsWhenUnset(t *testing.T) {
	svc := NewService(&memoryStore{}, nil, 0, Defaults(), nil)

	current, err := svc.Get(context.Background())
	require.NoError(t, err)
	require.True(t, current.RegistrationEnabled)
	require.Equal(t, "subscriber", current.DefaultRole)
	require.Equal(t, 125, current.GuestPreviewLengths["instagram"])
}

func TestSettingsUpdateRoundTrip(t *testing.T) {
	store := &memoryStore{}
	svc := NewService(store, nil, 0, Defaults(), nil)
	ctx := context.Background()

	updated := Defaults()
	updated.RegistrationEnabled = false
	updated.DefaultRole = "contributor"
	require.NoError(t, svc.Update(ctx, updated))

	current, err := svc.Get(ctx)
	require.NoError(t, err)
	require.False(t, current.RegistrationEnabled)
	require.Equal(t, "contributor", current.DefaultRole)
	require.False(t, svc.RegistrationEnabled(ctx))
	require.Equal(t, "contributor", svc.DefaultRole(ctx))
}

func TestSettingsCacheHit(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := &memoryStore{}
	svc := NewService(store, cache, time.Minute, Defaults(), nil)
	ctx := context.Background()

	updated := Defaults()
	updated.RegistrationEnabled = false
	require.NoError(t, svc.Update(ctx, updated))

	// Update filled the cache; reads never touch the store.
	current, err := svc.Get(ctx)
	require.NoError(t, err)
	require.False(t, current.RegistrationEnabled)
	require.Equal(t, 0, store.loadCalls)

	// After the cache expires the store backs the next read.
	mr.FastForward(2 * time.Minute)
	current, err = svc.Get(ctx)
	require.NoError(t, err)
	require.False(t, current.RegistrationEnabled)
	require.Equal(t, 1, store.loadCalls)
}

func TestSettingsDefaultsAreCached(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := &memoryStore{}
	svc := NewService(store, cache, time.Minute, Defaults(), nil)
	ctx := context.Background()

	// Nothing saved yet: the first read falls through to the store, the
	// second is served from the cached defaults.
	current, err := svc.Get(ctx)
	require.NoError(t, err)
	require.True(t, current.RegistrationEnabled)
	require.Equal(t, 1, store.loadCalls)

	current, err = svc.Get(ctx)
	require.NoError(t, err)
	require.True(t, current.RegistrationEnabled)
	require.Equal(t, 1, store.loadCalls)
}

func TestSettingsStorageFailureKeepsDefaults(t *testing.T) {
	store := &memoryStore{loadErr: errors.New("connection refused")}
	svc := NewService(store, nil, 0, Defaults(), nil)
	ctx := context.Background()

	require.True(t, svc.RegistrationEnabled(ctx), "an outage must not close registration")
	require.Equal(t, "subscriber", svc.DefaultRole(ctx))
}
