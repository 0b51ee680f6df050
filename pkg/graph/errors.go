package graph

import (
	"errors"
	"fmt"
)

var (
	ErrIncompatibleTypes = errors.New("incompatible slots")
	ErrSlotFull          = errors.New("slot is full")
	ErrSameNode          = errors.New("tail and head belong to the same node")
	ErrStaleHandle       = errors.New("stale node handle")
	ErrUnknownSlot       = errors.New("unknown slot")
	ErrEdgeNotFound      = errors.New("edge not found")
)

// ConnectError reports a rejected connection.
type ConnectError struct {
	Tail SlotRef
	Head SlotRef
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s -> %s: %v", e.Tail, e.Head, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }
