package service

import (
	"fmt"
)

type ErrInvalidArgument struct {
	error
}

func NewErrInvalidArgument(format string, args ...any) *ErrInvalidArgument {
	return &ErrInvalidArgument{fmt.Errorf("bad request: "+format, args...)}
}

func (e *ErrInvalidArgument) Unwrap() error {
	return e.error
}

type ErrQueryFailed struct {
	error
}

func NewErrQueryFailed(uuid string, err error) *ErrQueryFailed {
	return &ErrQueryFailed{fmt.Errorf("metrics query for vm %s failed: %w", uuid, err)}
}

func (e *ErrQueryFailed) Unwrap() error {
	return e.error
}
