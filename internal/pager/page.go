// Package pager implements the fixed-size page I/O layer of the storage
// engine: a single file per table, a meta page describing allocation
// state, an intrusive free-page list, and a slotted-page record layout.
// Every higher layer (buffer pool, table heap, B+tree index heap) reads
// and writes pages exclusively through a Pager.
package pager

import (
	"encoding/binary"
	"fmt"

	"github.com/minidb/engine/internal/dberrors"
)

// PageID identifies a page within a file. Page 0 is always the meta page.
type PageID uint32

const (
	// InvalidPageID marks the absence of a page reference (e.g. an empty
	// free list).
	InvalidPageID PageID = 0xFFFFFFFF

	// DefaultPageSize is used when a config does not specify one.
	DefaultPageSize = 4096

	// metaMagic and metaVersion identify a mini-db table file. Mismatches
	// on open are fatal (spec §4.1).
	metaMagic   = "MDB1"
	metaVersion = uint16(1)

	// metaSize is the on-disk layout of the meta page:
	//   magic(4) | version(u16) | page_size(u16) | page_count(i32) | free_head(i32)
	metaMagicLen    = 4
	metaVersionOff  = metaMagicLen
	metaPageSizeOff = metaVersionOff + 2
	metaCountOff    = metaPageSizeOff + 2
	metaFreeHeadOff = metaCountOff + 4
	metaSize        = metaFreeHeadOff + 4
)

// Meta holds the parsed contents of page 0.
type Meta struct {
	Version   uint16
	PageSize  uint16
	PageCount int32
	FreeHead  int32 // -1 means the free list is empty
}

func newMeta(pageSize int) Meta {
	return Meta{Version: metaVersion, PageSize: uint16(pageSize), PageCount: 1, FreeHead: -1}
}

func marshalMeta(m Meta, buf []byte) {
	copy(buf[0:metaMagicLen], metaMagic)
	binary.LittleEndian.PutUint16(buf[metaVersionOff:], m.Version)
	binary.LittleEndian.PutUint16(buf[metaPageSizeOff:], m.PageSize)
	binary.LittleEndian.PutUint32(buf[metaCountOff:], uint32(m.PageCount))
	binary.LittleEndian.PutUint32(buf[metaFreeHeadOff:], uint32(m.FreeHead))
}

func unmarshalMeta(buf []byte, expectPageSize int) (Meta, error) {
	if len(buf) < metaSize {
		return Meta{}, fmt.Errorf("%w: truncated meta page (%d bytes)", dberrors.ErrStorageIO, len(buf))
	}
	if string(buf[0:metaMagicLen]) != metaMagic {
		return Meta{}, fmt.Errorf("%w: bad magic %q, not a mini-db table file", dberrors.ErrStorageIO, buf[0:metaMagicLen])
	}
	var m Meta
	m.Version = binary.LittleEndian.Uint16(buf[metaVersionOff:])
	m.PageSize = binary.LittleEndian.Uint16(buf[metaPageSizeOff:])
	m.PageCount = int32(binary.LittleEndian.Uint32(buf[metaCountOff:]))
	m.FreeHead = int32(binary.LittleEndian.Uint32(buf[metaFreeHeadOff:]))
	if expectPageSize != 0 && int(m.PageSize) != expectPageSize {
		return Meta{}, fmt.Errorf("%w: page size mismatch: file=%d, expected=%d", dberrors.ErrStorageIO, m.PageSize, expectPageSize)
	}
	return m, nil
}
