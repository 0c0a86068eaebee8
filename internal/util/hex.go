package util

import (
	"encoding/hex"
	"fmt"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// HexToBytes converts a hex string to bytes
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	return hex.DecodeString(s)
}

// BytesToHex converts bytes to hex string with 0x prefix
func BytesToHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// BytesToHexNoPre converts bytes to hex string without prefix
func BytesToHexNoPre(b []byte) string {
	return hex.EncodeToString(b)
}

// MustHexToBytes converts hex string to bytes, panics on error
func MustHexToBytes(s string) []byte {
	b, err := HexToBytes(s)
	if err != nil {
		panic(fmt.Sprintf("invalid hex string: %s", s))
	}
	return b
}

// IsValidHex checks if string is valid hexadecimal
func IsValidHex(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	_, err := hex.DecodeString(s)
	return err == nil
}

// ValidateAddress validates that addr is a well-formed 0x-prefixed 20-byte
// address, the format the broker and WagerLedger key payments by.
func ValidateAddress(addr string) bool {
	return strings.HasPrefix(addr, "0x") && ethcommon.IsHexAddress(addr)
}

// NormalizeAddress rewrites addr in go-ethereum's EIP-55 checksummed
// (mixed-case) form, so the same address always compares equal regardless of
// how the client capitalized it.
func NormalizeAddress(addr string) string {
	return ethcommon.HexToAddress(addr).Hex()
}
