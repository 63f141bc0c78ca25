// Package disk provides the persistent-storage boundary the buffer-pool
// core talks to: a Manager that performs blocking page-sized reads and
// writes, and a Scheduler that serializes concurrent callers' requests
// onto a single worker so the Manager only ever sees one request at a
// time in flight.
package disk

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/tuannm99/bufpool/internal/common"
)

// Manager is the boundary consumed by the Scheduler. Implementations must
// be safe for the serial invocation the Scheduler already guarantees; they
// need not be safe for concurrent calls from multiple goroutines.
type Manager interface {
	// ReadPage fills buf (exactly common.PageSize bytes) with the on-disk
	// contents of pageID. Reading past the current end of file yields a
	// zero-filled page rather than an error.
	ReadPage(pageID common.PageID, buf []byte) error
	// WritePage persists buf (exactly common.PageSize bytes) for pageID,
	// durably, before returning.
	WritePage(pageID common.PageID, buf []byte) error
}

// FileManager is a Manager backed by a single flat file, pages addressed
// by pageID*PageSize offset. Grounded on the teacher's Pager
// (internal/storage/pager.go): one *os.File, one mutex, offset-addressed
// ReadAt/WriteAt.
type FileManager struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileManager opens (creating if necessary) the backing file at path.
func NewFileManager(path string) (*FileManager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o664)
	if err != nil {
		return nil, fmt.Errorf("disk: open %q: %w", path, err)
	}
	return &FileManager{file: f}, nil
}

func (m *FileManager) offset(pageID common.PageID) int64 {
	return int64(pageID) * int64(common.PageSize)
}

// ReadPage implements Manager.
func (m *FileManager) ReadPage(pageID common.PageID, buf []byte) error {
	if len(buf) != common.PageSize {
		return fmt.Errorf("disk: read buffer must be %d bytes, got %d", common.PageSize, len(buf))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.file.ReadAt(buf, m.offset(pageID))
	if err != nil && err != io.EOF {
		return fmt.Errorf("disk: read page %d: %w", pageID, err)
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

// WritePage implements Manager.
func (m *FileManager) WritePage(pageID common.PageID, buf []byte) error {
	if len(buf) != common.PageSize {
		return fmt.Errorf("disk: write buffer must be %d bytes, got %d", common.PageSize, len(buf))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.file.WriteAt(buf, m.offset(pageID))
	if err != nil {
		return fmt.Errorf("disk: write page %d: %w", pageID, err)
	}
	if n != len(buf) {
		return fmt.Errorf("disk: write page %d: %w", pageID, io.ErrShortWrite)
	}
	if err := m.file.Sync(); err != nil {
		return fmt.Errorf("disk: sync page %d: %w", pageID, err)
	}
	return nil
}

// Close closes the backing file.
func (m *FileManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.file.Close()
}
