// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admin-assistant/pkg/config"
	"admin-assistant/pkg/errors"
	"admin-assistant/pkg/log"
)

func configFor(typ string) config.CacheConfig { return config.CacheConfig{Type: typ} }

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(client, ""), mr
}

func TestRedisStore_SetGetTTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "k", "bonjour", time.Hour))
	assert.True(t, mr.Exists(DefaultRedisPrefix+"k"))

	var v string
	require.NoError(t, s.Get(ctx, "k", &v))
	assert.Equal(t, "bonjour", v)

	mr.FastForward(time.Hour + time.Second)
	err := s.Get(ctx, "k", &v)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRedisStore_ClearOnlyOwnPrefix(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)
	defer s.Close()

	require.NoError(t, mr.Set("agent_state:s1", "{}"))
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, s.Set(ctx, k, k, 0))
	}
	require.NoError(t, s.Clear(ctx))

	ok, err := s.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, mr.Exists("agent_state:s1"))
}

func TestResponseCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)
	rc := NewResponseCache(s, WithTTL(time.Hour))

	_, ok := rc.Get(ctx, "q", "fr", "s1")
	assert.False(t, ok)

	rc.Set(ctx, "q", "fr", "s1", "réponse")
	got, ok := rc.Get(ctx, "q", "fr", "s1")
	require.True(t, ok)
	assert.Equal(t, "réponse", got)

	_, ok = rc.Get(ctx, "q", "en", "s1")
	assert.False(t, ok, "language hint is part of the key")
	_, ok = rc.Get(ctx, "q", "fr", "s2")
	assert.False(t, ok, "session id is part of the key")

	mr.FastForward(2 * time.Hour)
	_, ok = rc.Get(ctx, "q", "fr", "s1")
	assert.False(t, ok, "entry expires after ttl")
}

func TestResponseCache_FailuresAreMissesAndLogged(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	rc := NewResponseCache(failingStore{}, WithLogger(log.NewWithWriter(nil, &buf)))

	rc.Set(ctx, "q", "fr", "s1", "x")
	assert.Contains(t, buf.String(), "response cache set failed")

	buf.Reset()
	_, ok := rc.Get(ctx, "q", "fr", "s1")
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "response cache get failed")
	assert.Contains(t, buf.String(), `"session_id":"s1"`)
}

func TestResponseCache_PlainMissIsQuiet(t *testing.T) {
	var buf bytes.Buffer
	rc := NewResponseCache(NewMemoryStore(), WithLogger(log.NewWithWriter(nil, &buf)))

	_, ok := rc.Get(context.Background(), "q", "fr", "s1")
	assert.False(t, ok)
	assert.Empty(t, buf.String())
}

func TestResponseCache_Bypass(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	rc := NewResponseCache(store, WithBypass(true))
	rc.Set(ctx, "q", "", "s", "x")
	_, ok := rc.Get(ctx, "q", "", "s")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())

	assert.True(t, NewResponseCache(nil).Bypass())
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("a", "b", "c"), Key("a", "b", "c"))
	assert.NotEqual(t, Key("ab", "", "c"), Key("a", "b", "c"))
	assert.Len(t, Key("", "", ""), 64)
}

type failingStore struct{}

func (failingStore) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.ErrUnavailable
}
func (failingStore) Get(context.Context, string, interface{}) error { return errors.ErrUnavailable }
func (failingStore) Delete(context.Context, string) error           { return errors.ErrUnavailable }
func (failingStore) Exists(context.Context, string) (bool, error)   { return false, errors.ErrUnavailable }
func (failingStore) Clear(context.Context) error                    { return errors.ErrUnavailable }
func (failingStore) Close() error                                   { return nil }
