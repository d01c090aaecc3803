// Package shm implements the shared-memory publication fabric: the
// versioned file header, the cache-line-sized seqlock quote record, and the
// manager that maps the file and hands out slot handles. There is no lock
// anywhere in this package — correctness rests entirely on the seqlock
// protocol in slot.go and on the single-writer-per-slot contract the caller
// is responsible for upholding.
package shm

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"
)

// Manager owns the mapped region and computes slot addresses. It carries no
// lock: after construction only constants (nSources, nSymbols, the records
// base pointer) are read, so it is safe to share across goroutines.
type Manager struct {
	file         *os.File
	data         []byte
	recordsBase  unsafe.Pointer
	nSources     uint64
	nSymbols     uint64
	shmTotalSize uint64
}

// Open opens path read-write, maps it, and validates every header field.
// The writer never mutates the header after this call.
func Open(path string, opts ValidateOptions) (*Manager, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: stat %s: %w", path, err)
	}
	fileSize := info.Size()
	if fileSize < HeaderSize {
		f.Close()
		return nil, fmt.Errorf("shm: %s is %d bytes, smaller than the %d-byte header", path, fileSize, HeaderSize)
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(fileSize), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}

	header := (*Header)(unsafe.Pointer(&data[0]))
	if err := header.Validate(fileSize, opts); err != nil {
		syscall.Munmap(data)
		f.Close()
		return nil, err
	}

	recordsBase := unsafe.Pointer(&data[header.RecordsOffset])

	return &Manager{
		file:         f,
		data:         data,
		recordsBase:  recordsBase,
		nSources:     header.NSources,
		nSymbols:     header.NSymbols,
		shmTotalSize: header.ShmTotalSize,
	}, nil
}

// NSources reports the header's n_sources.
func (m *Manager) NSources() uint64 { return m.nSources }

// NSymbols reports the header's n_symbols.
func (m *Manager) NSymbols() uint64 { return m.nSymbols }

func (m *Manager) slotPtr(sourceID, symbolID uint64) (*Quote64, error) {
	if sourceID >= m.nSources {
		return nil, fmt.Errorf("shm: source_id %d out of range (n_sources=%d)", sourceID, m.nSources)
	}
	if symbolID >= m.nSymbols {
		return nil, fmt.Errorf("shm: symbol_id %d out of range (n_symbols=%d)", symbolID, m.nSymbols)
	}
	idx := sourceID*m.nSymbols + symbolID
	ptr := unsafe.Pointer(uintptr(m.recordsBase) + uintptr(idx)*RecordSize)
	return (*Quote64)(ptr), nil
}

// GetSlot returns a stable handle to the (source_id, symbol_id) slot.
// Bounds-checked; cost is one multiply-add plus a bounds compare.
func (m *Manager) GetSlot(sourceID, symbolID uint64) (*Quote64, error) {
	return m.slotPtr(sourceID, symbolID)
}

// InitSlot resets the (source_id, symbol_id) slot to its post-construction
// state. Called once per owned slot before the write loop starts.
func (m *Manager) InitSlot(sourceID, symbolID uint64) error {
	slot, err := m.slotPtr(sourceID, symbolID)
	if err != nil {
		return err
	}
	slot.InitSlot(sourceID, symbolID)
	return nil
}

// Close unmaps the region and closes the backing file.
func (m *Manager) Close() error {
	if err := syscall.Munmap(m.data); err != nil {
		m.file.Close()
		return fmt.Errorf("shm: munmap: %w", err)
	}
	return m.file.Close()
}
