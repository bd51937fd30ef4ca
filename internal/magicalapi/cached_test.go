package magicalapi

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/adherence-scorer/internal/cache"
	domainerrors "github.com/spigell/adherence-scorer/internal/errors"
	"github.com/spigell/adherence-scorer/internal/profile"
)

type countingResolver struct {
	calls   int
	profile *profile.Profile
	err     error
}

func (r *countingResolver) Resolve(context.Context, string) (*profile.Profile, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.profile.Clone(), nil
}

func newRedisCache(t *testing.T) (*cache.Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	c := cache.NewRedis(cache.Options{Addr: mr.Addr(), Prefix: "test:", DefaultTTL: time.Hour})
	t.Cleanup(func() { _ = c.Close() })

	return c, mr
}

func TestCachedResolverServesRepeatedSlugsFromCache(t *testing.T) {
	c, mr := newRedisCache(t)
	next := &countingResolver{profile: &profile.Profile{
		Headline: "Go developer",
		Extra:    map[string]any{"location": "Lisbon"},
	}}
	r := NewCachedResolver(next, c, zap.NewNop())

	first, err := r.Resolve(context.Background(), "jdoe")
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "jdoe")
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.True(t, mr.Exists("test:profile:jdoe"))
	assert.Equal(t, first.Headline, second.Headline)
	assert.Equal(t, "Lisbon", second.Extra["location"])
}

func TestCachedResolverDoesNotStoreFailures(t *testing.T) {
	c, mr := newRedisCache(t)
	next := &countingResolver{err: domainerrors.ResolutionFailed("nothing found", nil)}
	r := NewCachedResolver(next, c, zap.NewNop())

	_, err := r.Resolve(context.Background(), "jdoe")
	require.Error(t, err)
	_, err = r.Resolve(context.Background(), "jdoe")
	require.Error(t, err)

	assert.Equal(t, 2, next.calls)
	assert.False(t, mr.Exists("test:profile:jdoe"))
}

func TestCachedResolverFallsBackWhenCacheIsDown(t *testing.T) {
	c, mr := newRedisCache(t)
	mr.Close()

	next := &countingResolver{profile: &profile.Profile{Headline: "Go developer"}}
	r := NewCachedResolver(next, c, zap.NewNop())

	p, err := r.Resolve(context.Background(), "jdoe")
	require.NoError(t, err)
	assert.Equal(t, "Go developer", p.Headline)
}

func TestStaticResolverReturnsIndependentCopies(t *testing.T) {
	r := NewStaticResolver()

	first, err := r.Resolve(context.Background(), "jdoe")
	require.NoError(t, err)
	first.Skills[0].Name = "changed"

	second, err := r.Resolve(context.Background(), "jdoe")
	require.NoError(t, err)
	assert.Equal(t, "React", second.Skills[0].Name)
	assert.Equal(t, SampleProfile.Name, second.Name)
}
