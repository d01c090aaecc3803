package shm

import (
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// buildTestFile writes a valid header for nSources x nSymbols records and
// returns its path. Callers may mutate the header values via the override
// function before the file is finalized on disk.
func buildTestFile(t *testing.T, nSources, nSymbols uint64, override func(*Header)) string {
	t.Helper()

	nRecords := nSources * nSymbols
	total := int64(HeaderSize) + int64(nRecords)*int64(RecordSize)

	buf := make([]byte, total)
	h := (*Header)(unsafe.Pointer(&buf[0]))
	*h = Header{
		Magic:         wantMagic,
		Version:       1,
		HeaderSize:    HeaderSize,
		RecordSize:    RecordSize,
		RecordsOffset: RecordsOffset,
		PriceScale:    PriceScale,
		TsScale:       TsScale,
		NSources:      nSources,
		NSymbols:      nSymbols,
		NRecords:      nRecords,
		ShmTotalSize:  uint64(total),
	}
	if override != nil {
		override(h)
	}

	path := filepath.Join(t.TempDir(), "quotes.dat")
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}
