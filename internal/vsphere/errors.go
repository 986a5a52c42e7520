package vsphere

import (
	"errors"
	"fmt"

	"github.com/vmware/govmomi/fault"
	"github.com/vmware/govmomi/vim25/soap"
	"github.com/vmware/govmomi/vim25/types"
)

// ErrSkip is returned by the normalizer for inventory objects that are not
// virtual machines (virtual apps). Callers drop the record and continue.
var ErrSkip = errors.New("skip: not a virtual machine")

var ErrInvalidOperation = errors.New("invalid operation")

type ConnectionError struct {
	error
}

func NewConnectionError(host string, err error) *ConnectionError {
	return &ConnectionError{fmt.Errorf("failed to connect to vSphere %s: %w", host, err)}
}

func (e *ConnectionError) Unwrap() error {
	return errors.Unwrap(e.error)
}

type NotFoundError struct {
	error
}

func NewNotFoundError(kind, key string) *NotFoundError {
	return &NotFoundError{fmt.Errorf("%s %s not found", kind, key)}
}

// TaskFaultError carries the fault reported by the platform for an
// asynchronous task that reached the error state.
type TaskFaultError struct {
	error
	Operation string
}

func NewTaskFaultError(operation string, fault error) *TaskFaultError {
	return &TaskFaultError{
		error:     fmt.Errorf("%s task failed: %w", operation, fault),
		Operation: operation,
	}
}

func (e *TaskFaultError) Unwrap() error {
	return errors.Unwrap(e.error)
}

var errNotAuthenticated = soap.WrapVimFault(&types.NotAuthenticated{})

// IsNotAuthenticated reports whether err carries a NotAuthenticated fault,
// which the endpoint returns once the session has expired.
func IsNotAuthenticated(err error) bool {
	return err != nil && fault.Is(err, &types.NotAuthenticated{})
}
