// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pools provides named fixed-capacity counters, used to bound
// allocations in shared GPU buffers. Capacities are loaded from a
// YAML file of the form:
//
//	pools:
//	  - name: RENDERER_VERTICES
//	    size: 65536
package pools

import (
	"log/slog"
	"maps"
	"os"
	"slices"
	"sync"

	"cogentcore.org/vframe/base/errors"
	"gopkg.in/yaml.v3"
)

// Names of the pools used by the renderer.
const (
	RendererVertices = "RENDERER_VERTICES"
	RendererIndices  = "RENDERER_INDICES"
)

// DefaultSizes are used for pools missing from the file.
var DefaultSizes = map[string]uint64{
	RendererVertices: 1 << 16,
	RendererIndices:  1 << 18,
}

// Pool is a named counter that never exceeds its capacity.
type Pool struct {
	Name string

	mu   sync.Mutex
	size uint64
	used uint64
}

// Fill reserves amount from the pool. Overfilling is a contract
// violation; in release builds it is logged and rejected.
func (p *Pool) Fill(amount uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.used+amount > p.size {
		errors.Assert(false, "pools: pool %s is full: %d used + %d > %d", p.Name, p.used, amount, p.size)
		slog.Error("pools: pool is full", "pool", p.Name, "used", p.used, "amount", amount, "size", p.size)
		return false
	}
	p.used += amount
	return true
}

// Empty returns amount to the pool.
func (p *Pool) Empty(amount uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.used < amount {
		errors.Assert(false, "pools: pool %s is empty: %d used - %d", p.Name, p.used, amount)
		slog.Error("pools: pool is empty", "pool", p.Name, "used", p.used, "amount", amount)
		return false
	}
	p.used -= amount
	return true
}

// Used returns the amount reserved.
func (p *Pool) Used() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.used
}

// Size returns the capacity.
func (p *Pool) Size() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// Usage returns used / size, in 0-1.
func (p *Pool) Usage() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.size == 0 {
		return 1
	}
	return float32(p.used) / float32(p.size)
}

func (p *Pool) IsFull() bool  { return p.Used() == p.Size() }
func (p *Pool) IsEmpty() bool { return p.Used() == 0 }

// setSize changes the capacity; a capacity below the amount used
// keeps the reservations, and the pool stays full until emptied.
func (p *Pool) setSize(size uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if size < p.used {
		slog.Warn("pools: new size is below the amount used", "pool", p.Name, "size", size, "used", p.used)
		size = p.used
	}
	p.size = size
}

// File is the YAML pool configuration.
type File struct {
	Pools []Entry `yaml:"pools"`
}

// Entry is one pool in a [File].
type Entry struct {
	Name string `yaml:"name"`
	Size uint64 `yaml:"size"`
}

// Manager holds the pools by name.
type Manager struct {
	mu    sync.Mutex
	pools map[string]*Pool

	// Path is the file loaded by [Manager.LoadFile], if any.
	Path string

	watch *watcher
}

// NewManager returns a manager with the [DefaultSizes] pools.
func NewManager() *Manager {
	m := &Manager{pools: make(map[string]*Pool)}
	m.apply(DefaultSizes)
	return m
}

// Load returns a manager with the pools of the file at path, plus
// the defaults for any it does not list.
func Load(path string) (*Manager, error) {
	m := NewManager()
	if err := m.LoadFile(path); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadFile reads the pool sizes from the YAML file at path.
func (m *Manager) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "pools: reading pool sizes")
	}
	if err := m.LoadBytes(data); err != nil {
		return errors.Wrapf(err, "pools: %s", path)
	}
	m.mu.Lock()
	m.Path = path
	m.mu.Unlock()
	return nil
}

// LoadBytes parses YAML pool sizes, creating new pools and resizing
// existing ones. Reservations are kept.
func (m *Manager) LoadBytes(data []byte) error {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return errors.Wrap(err, "pools: parsing pool sizes")
	}
	sizes := make(map[string]uint64, len(f.Pools))
	for _, p := range f.Pools {
		if p.Name == "" {
			return errors.New("pools: pool without a name")
		}
		if _, dup := sizes[p.Name]; dup {
			return errors.Newf("pools: pool %s is listed twice", p.Name)
		}
		sizes[p.Name] = p.Size
	}
	m.apply(sizes)
	return nil
}

func (m *Manager) apply(sizes map[string]uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range slices.Sorted(maps.Keys(sizes)) {
		size := sizes[name]
		if p, ok := m.pools[name]; ok {
			p.setSize(size)
			continue
		}
		m.pools[name] = &Pool{Name: name, size: size}
		slog.Info("pools: pool initialized", "pool", name, "size", size)
	}
}

// Get returns the named pool, or nil.
func (m *Manager) Get(name string) *Pool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pools[name]
}

// Names returns the sorted pool names.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.pools))
}

// Count returns the number of pools.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pools)
}

// Marshal returns the current sizes in the YAML file format.
func (m *Manager) Marshal() ([]byte, error) {
	var f File
	for _, name := range m.Names() {
		p := m.Get(name)
		f.Pools = append(f.Pools, Entry{Name: name, Size: p.Size()})
	}
	return yaml.Marshal(&f)
}
