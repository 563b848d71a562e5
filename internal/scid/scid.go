// Package scid converts between the packed 64-bit short channel id used on
// the LND RPC surface and its human readable BLOCKxTXxOUT form.
package scid

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse accepts either the BLOCKxTXxOUT text form (e.g. "703710x1234x1") or a
// raw decimal channel id and returns the packed id.
func Parse(text string) (uint64, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, fmt.Errorf("empty channel id")
	}

	if strings.ContainsAny(trimmed, "x:") {
		parts := strings.FieldsFunc(trimmed, func(r rune) bool {
			return r == 'x' || r == ':'
		})
		if len(parts) != 3 {
			return 0, fmt.Errorf("invalid channel id %q", text)
		}
		block, err := strconv.ParseUint(parts[0], 10, 24)
		if err != nil {
			return 0, fmt.Errorf("invalid channel id %q: bad block height", text)
		}
		tx, err := strconv.ParseUint(parts[1], 10, 24)
		if err != nil {
			return 0, fmt.Errorf("invalid channel id %q: bad tx index", text)
		}
		output, err := strconv.ParseUint(parts[2], 10, 16)
		if err != nil {
			return 0, fmt.Errorf("invalid channel id %q: bad output index", text)
		}
		return Pack(uint32(block), uint32(tx), uint16(output)), nil
	}

	id, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid channel id %q", text)
	}
	return id, nil
}

// Pack builds a short channel id from its components.
func Pack(block uint32, tx uint32, output uint16) uint64 {
	return uint64(block)<<40 | uint64(tx&0xFFFFFF)<<16 | uint64(output)
}

// Split returns the opening block height, transaction index and output index
// encoded in id.
func Split(id uint64) (block uint32, tx uint32, output uint16) {
	block = uint32(id >> 40)
	tx = uint32(id >> 16 & 0xFFFFFF)
	output = uint16(id & 0xFFFF)
	return block, tx, output
}

// BlockHeight returns only the opening block height encoded in id.
func BlockHeight(id uint64) uint32 {
	return uint32(id >> 40)
}

// Format renders id in the BLOCKxTXxOUT form.
func Format(id uint64) string {
	block, tx, output := Split(id)
	return fmt.Sprintf("%dx%dx%d", block, tx, output)
}
