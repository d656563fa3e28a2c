package common

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindCollect ErrorKind = iota
	KindRPC
	KindDecode
	KindNotFound
	KindSchema
)

func (k ErrorKind) String() string {
	switch k {
	case KindRPC:
		return "rpc error"
	case KindDecode:
		return "decode error"
	case KindNotFound:
		return "not found"
	case KindSchema:
		return "schema error"
	default:
		return "collect error"
	}
}

// Sentinels for errors.Is. A *CollectError matches the sentinel of its kind.
var (
	ErrCollect  = &CollectError{Kind: KindCollect}
	ErrRPC      = &CollectError{Kind: KindRPC}
	ErrDecode   = &CollectError{Kind: KindDecode}
	ErrNotFound = &CollectError{Kind: KindNotFound}
	ErrSchema   = &CollectError{Kind: KindSchema}
)

type CollectError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *CollectError) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	default:
		return e.Kind.String()
	}
}

func (e *CollectError) Unwrap() error {
	return e.Err
}

func (e *CollectError) Is(target error) bool {
	t, ok := target.(*CollectError)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

func NewRPCError(method string, err error) error {
	return &CollectError{Kind: KindRPC, Msg: method, Err: err}
}

func NewDecodeError(msg string, err error) error {
	return &CollectError{Kind: KindDecode, Msg: msg, Err: err}
}

func NewNotFoundError(format string, args ...interface{}) error {
	return &CollectError{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func NewSchemaError(format string, args ...interface{}) error {
	return &CollectError{Kind: KindSchema, Msg: fmt.Sprintf(format, args...)}
}

func NewCollectError(format string, args ...interface{}) error {
	return &CollectError{Kind: KindCollect, Msg: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of the first CollectError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var ce *CollectError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return KindCollect, false
}
