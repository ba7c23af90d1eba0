package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const addressHexLength = 40

// ParseAddress normalises and validates a principal address expressed as a
// 0x-prefixed hex string. The returned array always contains the raw 20 bytes.
func ParseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return addr, fmt.Errorf("crypto: address required")
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != addressHexLength {
		return addr, fmt.Errorf("crypto: address must be 20 bytes (got %d hex chars)", len(trimmed))
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("crypto: decode address: %w", err)
	}
	copy(addr[:], decoded)
	return addr, nil
}

// FormatAddress renders an address in the canonical 0x-prefixed form.
func FormatAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}
