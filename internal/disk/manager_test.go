package disk

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/bufpool/internal/common"
)

func newTestFileManager(t *testing.T) *FileManager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pages.db")
	fm, err := NewFileManager(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fm.Close() })
	return fm
}

func TestFileManager_WriteThenReadRoundTrips(t *testing.T) {
	fm := newTestFileManager(t)

	want := make([]byte, common.PageSize)
	for i := range want {
		want[i] = byte(i)
	}

	require.NoError(t, fm.WritePage(3, want))

	got := make([]byte, common.PageSize)
	require.NoError(t, fm.ReadPage(3, got))
	require.Equal(t, want, got)
}

func TestFileManager_ReadBeyondEOFIsZeroFilled(t *testing.T) {
	fm := newTestFileManager(t)

	got := make([]byte, common.PageSize)
	for i := range got {
		got[i] = 0xFF
	}
	require.NoError(t, fm.ReadPage(5, got))

	want := make([]byte, common.PageSize)
	require.Equal(t, want, got)
}

func TestFileManager_RejectsWrongSizedBuffers(t *testing.T) {
	fm := newTestFileManager(t)

	require.Error(t, fm.WritePage(0, make([]byte, common.PageSize-1)))
	require.Error(t, fm.ReadPage(0, make([]byte, common.PageSize+1)))
}
