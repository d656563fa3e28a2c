package common

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	stringArguments abi.Arguments
	uint8Arguments  abi.Arguments
)

func init() {
	stringType, err := abi.NewType("string", "", nil)
	if err != nil {
		panic(fmt.Sprintf("failed to construct string abi type: %v", err))
	}
	uint8Type, err := abi.NewType("uint8", "", nil)
	if err != nil {
		panic(fmt.Sprintf("failed to construct uint8 abi type: %v", err))
	}
	stringArguments = abi.Arguments{{Type: stringType}}
	uint8Arguments = abi.Arguments{{Type: uint8Type}}
}

// FunctionSelector returns the 4 byte selector of a canonical function signature like "name()".
func FunctionSelector(signature string) []byte {
	return crypto.Keccak256([]byte(strings.TrimSpace(signature)))[:4]
}

// DecodeStringOutput decodes the return data of a string getter. Some older tokens return a
// bytes32 instead of an ABI string, those are decoded by trimming trailing zero bytes.
func DecodeStringOutput(output []byte) (string, bool) {
	if len(output) == 0 {
		return "", false
	}
	if values, err := stringArguments.Unpack(output); err == nil && len(values) == 1 {
		if s, ok := values[0].(string); ok && utf8.ValidString(s) {
			return s, true
		}
	}
	if len(output) == 32 {
		trimmed := bytes.TrimRight(output, "\x00")
		if utf8.Valid(trimmed) {
			return string(trimmed), true
		}
	}
	return "", false
}

func DecodeUint8Output(output []byte) (uint8, bool) {
	values, err := uint8Arguments.Unpack(output)
	if err != nil || len(values) != 1 {
		return 0, false
	}
	v, ok := values[0].(uint8)
	return v, ok
}
