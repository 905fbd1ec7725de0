package cxstorage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

var (
	crxMagic = []byte("Cr24")
	zipMagic = []byte("PK\x03\x04")
)

// zipOffset returns where the zip payload of a CRX2/CRX3 file starts.
// Plain zip archives are accepted with offset 0.
func zipOffset(r io.ReaderAt, size int64) (int64, error) {
	head := make([]byte, 16)
	n, err := r.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("reading CRX header: %w", err)
	}
	head = head[:n]

	if bytes.HasPrefix(head, zipMagic) {
		return 0, nil
	}
	if !bytes.HasPrefix(head, crxMagic) || len(head) < 12 {
		return 0, fmt.Errorf("not a CRX or zip file")
	}

	var offset int64
	switch v := binary.LittleEndian.Uint32(head[4:8]); v {
	case 2:
		if len(head) < 16 {
			return 0, fmt.Errorf("truncated CRX2 header")
		}
		pubKeyLen := int64(binary.LittleEndian.Uint32(head[8:12]))
		sigLen := int64(binary.LittleEndian.Uint32(head[12:16]))
		offset = 16 + pubKeyLen + sigLen
	case 3:
		headerLen := int64(binary.LittleEndian.Uint32(head[8:12]))
		offset = 12 + headerLen
	default:
		return 0, fmt.Errorf("unsupported CRX version %d", v)
	}

	if offset >= size {
		return 0, fmt.Errorf("CRX header length %d exceeds file size %d", offset, size)
	}
	return offset, nil
}
