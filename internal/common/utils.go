package common

import (
	"strings"

	gethCommon "github.com/ethereum/go-ethereum/common"
)

func SliceToChunks[T any](values []T, chunkSize int) [][]T {
	if chunkSize >= len(values) || chunkSize <= 0 {
		return [][]T{values}
	}
	var chunks [][]T
	for i := 0; i < len(values); i += chunkSize {
		end := i + chunkSize
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[i:end])
	}
	return chunks
}

// DecodeHex decodes a 0x-prefixed hex string, tolerating odd lengths.
func DecodeHex(s string) ([]byte, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, false
	}
	body := s[2:]
	for _, c := range body {
		if !isHexChar(c) {
			return nil, false
		}
	}
	return gethCommon.FromHex(s), true
}

func isHexChar(c rune) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// ZeroWord returns a fresh 32 byte zero value.
func ZeroWord() []byte {
	return make([]byte, 32)
}
