package shm

import (
	"sync/atomic"
	"unsafe"
)

// MemoryProvider abstracts access to a mapped segment.
// Implementations may be backed by SysV shared memory, an mmap'd file, or an
// in-process buffer.
type MemoryProvider interface {
	Size() uint32
	ReadAt(offset uint32, dest []byte) error
	WriteAt(offset uint32, src []byte) error
	AtomicLoad32(offset uint32) (uint32, error)
	AtomicStore32(offset uint32, val uint32) error
	AtomicLoad64(offset uint32) (uint64, error)
	AtomicStore64(offset uint32, val uint64) error
	AtomicAdd64(offset uint32, delta uint64) (uint64, error)
	AtomicCompareAndSwap64(offset uint32, old, new uint64) (bool, error)
	Close() error
}

// mapping implements the MemoryProvider data path over a byte slice. Providers
// embed it and add their own lifetime handling.
type mapping struct {
	data []byte
}

func (m *mapping) Size() uint32 {
	return uint32(len(m.data))
}

func (m *mapping) ReadAt(offset uint32, dest []byte) error {
	if uint64(offset)+uint64(len(dest)) > uint64(len(m.data)) {
		return ErrOutOfBounds
	}
	copy(dest, m.data[offset:offset+uint32(len(dest))])
	return nil
}

func (m *mapping) WriteAt(offset uint32, src []byte) error {
	if uint64(offset)+uint64(len(src)) > uint64(len(m.data)) {
		return ErrOutOfBounds
	}
	copy(m.data[offset:offset+uint32(len(src))], src)
	return nil
}

func (m *mapping) AtomicLoad32(offset uint32) (uint32, error) {
	ptr, err := m.ptrAt(offset, 4)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32((*uint32)(ptr)), nil
}

func (m *mapping) AtomicStore32(offset uint32, val uint32) error {
	ptr, err := m.ptrAt(offset, 4)
	if err != nil {
		return err
	}
	atomic.StoreUint32((*uint32)(ptr), val)
	return nil
}

func (m *mapping) AtomicLoad64(offset uint32) (uint64, error) {
	ptr, err := m.ptrAt(offset, 8)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint64((*uint64)(ptr)), nil
}

func (m *mapping) AtomicStore64(offset uint32, val uint64) error {
	ptr, err := m.ptrAt(offset, 8)
	if err != nil {
		return err
	}
	atomic.StoreUint64((*uint64)(ptr), val)
	return nil
}

func (m *mapping) AtomicAdd64(offset uint32, delta uint64) (uint64, error) {
	ptr, err := m.ptrAt(offset, 8)
	if err != nil {
		return 0, err
	}
	return atomic.AddUint64((*uint64)(ptr), delta), nil
}

func (m *mapping) AtomicCompareAndSwap64(offset uint32, old, new uint64) (bool, error) {
	ptr, err := m.ptrAt(offset, 8)
	if err != nil {
		return false, err
	}
	return atomic.CompareAndSwapUint64((*uint64)(ptr), old, new), nil
}

func (m *mapping) ptrAt(offset, width uint32) (unsafe.Pointer, error) {
	if m.data == nil || uint64(offset)+uint64(width) > uint64(len(m.data)) {
		return nil, ErrOutOfBounds
	}
	if offset%width != 0 {
		return nil, ErrMisaligned
	}
	return unsafe.Pointer(&m.data[offset]), nil
}

// zero clears the whole mapping.
func (m *mapping) zero() {
	clear(m.data)
}
