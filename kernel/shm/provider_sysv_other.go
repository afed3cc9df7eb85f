//go:build !linux

package shm

import "errors"

var errSysVUnsupported = errors.New("shm: sysv backend is only available on linux")

// DefaultBackend returns the file backend on platforms without SysV support.
func DefaultBackend() Backend {
	return NewFileBackend("")
}

// SysVBackend is unavailable on this platform; every call fails.
type SysVBackend struct{}

// NewSysVBackend creates a SysV backend stub.
func NewSysVBackend() *SysVBackend {
	return &SysVBackend{}
}

func (b *SysVBackend) Name() string { return "sysv" }

func (b *SysVBackend) Create(key uint32, size uint32) (MemoryProvider, error) {
	return nil, errSysVUnsupported
}

func (b *SysVBackend) Attach(key uint32) (MemoryProvider, error) {
	return nil, errSysVUnsupported
}

func (b *SysVBackend) Remove(key uint32) error {
	return errSysVUnsupported
}

func (b *SysVBackend) Exists(key uint32) bool {
	return false
}
