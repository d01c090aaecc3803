package shm

import (
	"bytes"
	"fmt"
)

// HeaderSize is the fixed size, in bytes, of the file header region.
const HeaderSize = 4096

// RecordSize is the fixed size, in bytes, of one quote slot.
const RecordSize = 64

// RecordsOffset is the fixed byte offset of the slot array within the file.
const RecordsOffset = 4096

// PriceScale is the required price_scale header field (10^8).
const PriceScale = 100_000_000

// TsScale is the required ts_scale header field: microseconds (10^6).
const TsScale = 1_000_000

var wantMagic = [8]byte{'Q', 'S', 'H', 'M', '1', 0, 0, 0}

// Header mirrors the first 88 bytes of the 4096-byte file header exactly as
// laid out in the shared-memory wire contract. It is read directly out of
// the mapped region via an unsafe cast — field order and width must never
// change.
type Header struct {
	Magic         [8]byte
	Version       uint64
	HeaderSize    uint64
	RecordSize    uint64
	RecordsOffset uint64
	PriceScale    uint64
	TsScale       uint64
	NSources      uint64
	NSymbols      uint64
	NRecords      uint64
	ShmTotalSize  uint64
}

// ValidateOptions controls which header fields are checked strictly.
type ValidateOptions struct {
	// RequireVersion, when true, checks Version against WantVersion. The
	// spec only requires this check "if configured" — by default the
	// writer accepts any version value.
	RequireVersion bool
	WantVersion    uint64
}

// Validate checks every required header field against the wire contract,
// naming both the expected and observed value on mismatch, and confirms
// n_records and shm_total_size against the structural invariants.
func (h *Header) Validate(fileSize int64, opts ValidateOptions) error {
	if !bytes.Equal(h.Magic[:], wantMagic[:]) {
		return fmt.Errorf("shm: invalid magic: expected %v, got %v", wantMagic, h.Magic)
	}
	if opts.RequireVersion && h.Version != opts.WantVersion {
		return fmt.Errorf("shm: invalid version: expected %d, got %d", opts.WantVersion, h.Version)
	}
	if h.HeaderSize != HeaderSize {
		return fmt.Errorf("shm: invalid header_size: expected %d, got %d", uint64(HeaderSize), h.HeaderSize)
	}
	if h.RecordSize != RecordSize {
		return fmt.Errorf("shm: invalid record_size: expected %d, got %d", uint64(RecordSize), h.RecordSize)
	}
	if h.RecordsOffset != RecordsOffset {
		return fmt.Errorf("shm: invalid records_offset: expected %d, got %d", uint64(RecordsOffset), h.RecordsOffset)
	}
	if h.PriceScale != PriceScale {
		return fmt.Errorf("shm: invalid price_scale: expected %d, got %d", uint64(PriceScale), h.PriceScale)
	}
	if h.TsScale != TsScale {
		return fmt.Errorf("shm: invalid ts_scale: expected %d (microseconds), got %d", uint64(TsScale), h.TsScale)
	}

	expectedRecords := h.NSources * h.NSymbols
	if h.NRecords != expectedRecords {
		return fmt.Errorf("shm: invalid n_records: expected %d (n_sources * n_symbols), got %d", expectedRecords, h.NRecords)
	}

	if h.ShmTotalSize != uint64(fileSize) {
		return fmt.Errorf("shm: invalid shm_total_size: header says %d, file is %d bytes", h.ShmTotalSize, fileSize)
	}

	return nil
}
