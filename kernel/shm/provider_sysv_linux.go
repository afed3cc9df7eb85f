//go:build linux

package shm

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// DefaultBackend returns the SysV backend, which addresses segments by the
// same integer key other processes pass to shmget.
func DefaultBackend() Backend {
	return NewSysVBackend()
}

// SysVBackend addresses System V shared memory by IPC key.
type SysVBackend struct{}

// NewSysVBackend creates a SysV backend.
func NewSysVBackend() *SysVBackend {
	return &SysVBackend{}
}

func (b *SysVBackend) Name() string { return "sysv" }

func (b *SysVBackend) Create(key uint32, size uint32) (MemoryProvider, error) {
	if key == 0 {
		return nil, fmt.Errorf("%w: sysv key 0 is IPC_PRIVATE", ErrInvalidSettings)
	}
	id, err := unix.SysvShmGet(int(key), int(size), unix.IPC_CREAT|unix.IPC_EXCL|0o600)
	if err != nil {
		if errors.Is(err, unix.EEXIST) {
			return nil, errSegmentExists
		}
		return nil, fmt.Errorf("shmget key %d: %w", key, err)
	}
	return attachSysV(key, id)
}

func (b *SysVBackend) Attach(key uint32) (MemoryProvider, error) {
	if key == 0 {
		return nil, fmt.Errorf("%w: sysv key 0 is IPC_PRIVATE", ErrInvalidSettings)
	}
	id, err := unix.SysvShmGet(int(key), 0, 0o600)
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return nil, fmt.Errorf("%w: sysv key %d", ErrSegmentNotFound, key)
		}
		return nil, fmt.Errorf("shmget key %d: %w", key, err)
	}
	return attachSysV(key, id)
}

func attachSysV(key uint32, id int) (*SysVProvider, error) {
	data, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("shmat key %d: %w", key, err)
	}
	return &SysVProvider{mapping: mapping{data: data}, region: data, key: key, id: id}, nil
}

func (b *SysVBackend) Remove(key uint32) error {
	id, err := unix.SysvShmGet(int(key), 0, 0o600)
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return fmt.Errorf("%w: sysv key %d", ErrSegmentNotFound, key)
		}
		return fmt.Errorf("shmget key %d: %w", key, err)
	}
	if _, err := unix.SysvShmCtl(id, unix.IPC_RMID, nil); err != nil {
		return fmt.Errorf("shmctl IPC_RMID key %d: %w", key, err)
	}
	return nil
}

func (b *SysVBackend) Exists(key uint32) bool {
	if key == 0 {
		return false
	}
	_, err := unix.SysvShmGet(int(key), 0, 0o600)
	return err == nil
}

// SysVProvider is an attached SysV segment.
type SysVProvider struct {
	mapping
	region []byte
	key    uint32
	id     int
}

// ID returns the kernel shmid.
func (p *SysVProvider) ID() int {
	return p.id
}

func (p *SysVProvider) Close() error {
	if p.region == nil {
		return nil
	}
	err := unix.SysvShmDetach(p.region)
	p.region = nil
	p.data = nil
	if err != nil {
		return fmt.Errorf("shmdt key %d: %w", p.key, err)
	}
	return nil
}
