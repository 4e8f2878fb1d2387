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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admin-assistant/pkg/config"
	"admin-assistant/pkg/errors"
)

func TestMemoryStore_Set_Get_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "k1", "v1", 0))

	var v string
	require.NoError(t, s.Get(ctx, "k1", &v))
	assert.Equal(t, "v1", v)

	require.NoError(t, s.Delete(ctx, "k1"))
	err := s.Get(ctx, "k1", &v)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestMemoryStore_Expiration(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "k", "v", 10*time.Millisecond))
	ok, _ := s.Exists(ctx, "k")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	ok, _ = s.Exists(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryStore_Clear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Set(ctx, "k1", "v1", 0)
	_ = s.Set(ctx, "k2", map[string]int{"a": 1}, 0)
	assert.Equal(t, 2, s.Len())

	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_MaxEntries(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(WithMaxEntries(2))
	require.NoError(t, s.Set(ctx, "k1", "v1", 0))
	require.NoError(t, s.Set(ctx, "k2", "v2", 5*time.Millisecond))

	// 已存在的键可以覆盖
	require.NoError(t, s.Set(ctx, "k1", "v1b", 0))

	err := s.Set(ctx, "k3", "v3", 0)
	assert.ErrorIs(t, err, ErrFull)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Set(ctx, "k3", "v3", 0), "expired entries are reclaimed")
}

func TestNewCache(t *testing.T) {
	ctx := context.Background()
	s, err := NewCache(ctx, configFor("memory"))
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = NewCache(ctx, configFor("memcached"))
	assert.Error(t, err)

	_, err = NewCache(ctx, config.CacheConfig{Type: "redis", Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
