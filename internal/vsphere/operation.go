package vsphere

import "fmt"

// Operation is a power state change requested for one VM.
type Operation string

const (
	OpPowerOff Operation = "poweroff"
	OpPowerOn  Operation = "poweron"
	OpSuspend  Operation = "suspend"
	OpReboot   Operation = "reboot"
	OpShutdown Operation = "shutdown"
)

var operations = []Operation{OpPowerOff, OpPowerOn, OpSuspend, OpReboot, OpShutdown}

// Operations lists every supported operation.
func Operations() []Operation {
	return append([]Operation(nil), operations...)
}

func ParseOperation(s string) (Operation, error) {
	for _, op := range operations {
		if string(op) == s {
			return op, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOperation, s)
}

// TaskBased reports whether the operation runs as a platform task that can
// be waited on. The others are signals to the guest OS.
func (o Operation) TaskBased() bool {
	switch o {
	case OpPowerOff, OpPowerOn, OpSuspend:
		return true
	}
	return false
}

func (o Operation) String() string {
	return string(o)
}
