package shm

import (
	"errors"
	"fmt"
	"sync"
)

// errSegmentExists is returned by Backend.Create when the key is taken; Open
// falls back to attaching.
var errSegmentExists = errors.New("shm: segment already exists")

// Backend is an OS namespace of shared memory objects addressed by key.
type Backend interface {
	Name() string
	// Create makes a new zero-filled object of size bytes. It fails with
	// errSegmentExists when the key is already in use.
	Create(key uint32, size uint32) (MemoryProvider, error)
	// Attach maps an existing object or fails with ErrSegmentNotFound.
	Attach(key uint32) (MemoryProvider, error)
	// Remove destroys the object. Existing mappings stay valid until closed.
	Remove(key uint32) error
	Exists(key uint32) bool
}

// BackendByName resolves a configured backend name. dir only applies to the
// file backend; empty means DefaultSharedMemoryDir.
func BackendByName(name, dir string) (Backend, error) {
	switch name {
	case "", "default":
		return DefaultBackend(), nil
	case "sysv":
		return NewSysVBackend(), nil
	case "file":
		return NewFileBackend(dir), nil
	case "memory":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown shared memory backend %q", name)
	}
}

// MemoryBackend keeps segments in process memory. Every Attach to the same key
// shares one buffer, which lets tests run a writer and readers side by side.
type MemoryBackend struct {
	mu       sync.Mutex
	segments map[uint32][]byte
}

// NewMemoryBackend creates an empty in-process namespace.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{segments: make(map[uint32][]byte)}
}

func (b *MemoryBackend) Name() string { return "memory" }

func (b *MemoryBackend) Create(key uint32, size uint32) (MemoryProvider, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.segments[key]; ok {
		return nil, errSegmentExists
	}
	data := make([]byte, size)
	b.segments[key] = data
	return &InMemoryProvider{mapping: mapping{data: data}}, nil
}

func (b *MemoryBackend) Attach(key uint32) (MemoryProvider, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.segments[key]
	if !ok {
		return nil, fmt.Errorf("%w: memory key %d", ErrSegmentNotFound, key)
	}
	return &InMemoryProvider{mapping: mapping{data: data}}, nil
}

func (b *MemoryBackend) Remove(key uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.segments[key]; !ok {
		return fmt.Errorf("%w: memory key %d", ErrSegmentNotFound, key)
	}
	delete(b.segments, key)
	return nil
}

func (b *MemoryBackend) Exists(key uint32) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.segments[key]
	return ok
}

// InMemoryProvider stores segment data in a local byte slice.
type InMemoryProvider struct {
	mapping
}

// NewInMemoryProvider creates a standalone in-memory provider with the requested size.
func NewInMemoryProvider(size uint32) *InMemoryProvider {
	return &InMemoryProvider{mapping: mapping{data: make([]byte, size)}}
}

func (m *InMemoryProvider) Close() error {
	m.data = nil
	return nil
}
