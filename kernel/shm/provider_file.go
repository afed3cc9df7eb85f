package shm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
)

// FileBackend maps regular files, normally under /dev/shm.
type FileBackend struct {
	dir string
}

// DefaultSharedMemoryDir returns /dev/shm when present, the temp dir otherwise.
func DefaultSharedMemoryDir() string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}

// NewFileBackend creates a backend rooted at dir.
func NewFileBackend(dir string) *FileBackend {
	if dir == "" {
		dir = DefaultSharedMemoryDir()
	}
	return &FileBackend{dir: dir}
}

func (b *FileBackend) Name() string { return "file" }

// Path returns the file that backs key.
func (b *FileBackend) Path(key uint32) string {
	return filepath.Join(b.dir, fmt.Sprintf("irsl_shm_%d", key))
}

func (b *FileBackend) Create(key uint32, size uint32) (MemoryProvider, error) {
	if size == 0 {
		return nil, errors.New("shared memory size required when creating")
	}
	path := b.Path(key)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, errSegmentExists
		}
		return nil, fmt.Errorf("create shared memory file: %w", err)
	}
	defer file.Close()

	if err := file.Truncate(int64(size)); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("truncate shared memory file: %w", err)
	}

	data, err := mmap.MapRegion(file, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("mmap shared memory file: %w", err)
	}
	return &FileProvider{mapping: mapping{data: data}, region: data, path: path}, nil
}

func (b *FileBackend) Attach(key uint32) (MemoryProvider, error) {
	path := b.Path(key)

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSegmentNotFound, path)
		}
		return nil, fmt.Errorf("open shared memory file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat shared memory file: %w", err)
	}
	if info.Size() == 0 {
		return nil, errors.New("shared memory file has zero size")
	}

	data, err := mmap.Map(file, mmap.RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap shared memory file: %w", err)
	}
	return &FileProvider{mapping: mapping{data: data}, region: data, path: path}, nil
}

func (b *FileBackend) Remove(key uint32) error {
	path := b.Path(key)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSegmentNotFound, path)
		}
		return fmt.Errorf("remove shared memory file: %w", err)
	}
	return nil
}

func (b *FileBackend) Exists(key uint32) bool {
	_, err := os.Stat(b.Path(key))
	return err == nil
}

// FileProvider uses a memory-mapped file for shared access.
type FileProvider struct {
	mapping
	region mmap.MMap
	path   string
}

// Path returns the backing file.
func (p *FileProvider) Path() string {
	return p.path
}

func (p *FileProvider) Close() error {
	if p.region == nil {
		return nil
	}
	err := p.region.Unmap()
	p.region = nil
	p.data = nil
	if err != nil {
		return fmt.Errorf("munmap shared memory file: %w", err)
	}
	return nil
}
