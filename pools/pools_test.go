// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pools

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cogentcore.org/vframe/base/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sizesYAML = `pools:
  - name: RENDERER_VERTICES
    size: 100
  - name: TEXTURES
    size: 8
`

func TestPoolFillEmpty(t *testing.T) {
	p := &Pool{Name: "test", size: 10}
	assert.True(t, p.IsEmpty())
	assert.True(t, p.Fill(4))
	assert.True(t, p.Fill(6))
	assert.True(t, p.IsFull())
	assert.Equal(t, float32(1), p.Usage())
	assert.True(t, p.Empty(5))
	assert.Equal(t, uint64(5), p.Used())
	assert.Equal(t, float32(0.5), p.Usage())
	assert.False(t, p.IsFull())
	assert.False(t, p.IsEmpty())
}

func TestPoolOverflow(t *testing.T) {
	p := &Pool{Name: "test", size: 10}
	require.True(t, p.Fill(8))
	if errors.AssertionsEnabled {
		assert.Panics(t, func() { p.Fill(3) })
		assert.Panics(t, func() { p.Empty(9) })
	} else {
		assert.False(t, p.Fill(3))
		assert.False(t, p.Empty(9))
	}
	// rejected reservations change nothing
	assert.Equal(t, uint64(8), p.Used())
}

func TestManagerDefaults(t *testing.T) {
	m := NewManager()
	assert.Equal(t, []string{RendererIndices, RendererVertices}, m.Names())
	assert.Equal(t, DefaultSizes[RendererVertices], m.Get(RendererVertices).Size())
	assert.Nil(t, m.Get("missing"))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool_sizes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sizesYAML), 0o666))
	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Count())
	assert.Equal(t, uint64(100), m.Get(RendererVertices).Size())
	assert.Equal(t, uint64(8), m.Get("TEXTURES").Size())
	assert.Equal(t, DefaultSizes[RendererIndices], m.Get(RendererIndices).Size())
	assert.Equal(t, path, m.Path)

	data, err := m.Marshal()
	require.NoError(t, err)
	m2 := NewManager()
	require.NoError(t, m2.LoadBytes(data))
	assert.Equal(t, uint64(8), m2.Get("TEXTURES").Size())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadBytesErrors(t *testing.T) {
	m := NewManager()
	assert.Error(t, m.LoadBytes([]byte("pools: [")))
	assert.Error(t, m.LoadBytes([]byte("pools:\n  - size: 3\n")))
	assert.Error(t, m.LoadBytes([]byte("pools:\n  - name: A\n    size: 1\n  - name: A\n    size: 2\n")))
}

func TestResizeKeepsReservations(t *testing.T) {
	m := NewManager()
	p := m.Get(RendererVertices)
	require.True(t, p.Fill(50))
	require.NoError(t, m.LoadBytes([]byte("pools:\n  - name: RENDERER_VERTICES\n    size: 20\n")))
	assert.Same(t, p, m.Get(RendererVertices))
	assert.Equal(t, uint64(50), p.Used())
	assert.Equal(t, uint64(50), p.Size())
	assert.True(t, p.IsFull())
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool_sizes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sizesYAML), 0o666))
	m, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, m.Watch(nil))
	require.NoError(t, m.Watch(nil))
	defer m.Close()

	updated := sizesYAML + "  - name: MESHES\n    size: 4\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o666))
	assert.Eventually(t, func() bool {
		p := m.Get("MESHES")
		return p != nil && p.Size() == 4
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

func TestWatchWithoutFile(t *testing.T) {
	assert.Error(t, NewManager().Watch(nil))
}
