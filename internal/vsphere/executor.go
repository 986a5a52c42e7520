package vsphere

import (
	"context"
	"fmt"
	"time"

	"github.com/vmware/govmomi/vim25/types"
	"go.uber.org/zap"
)

// DefaultGracePeriod is how long guest operations wait after signalling the
// guest. It is a settling delay, not a completion guarantee.
const DefaultGracePeriod = 10 * time.Second

// ticketKind is the console ticket type handed to web clients.
const ticketKind = "webmks"

// ReconfigureFields holds the VM settings to change. Nil fields are left
// untouched.
type ReconfigureFields struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=1,max=80"`
	Note *string `json:"note,omitempty"`
}

func (f ReconfigureFields) Empty() bool {
	return f.Name == nil && f.Note == nil
}

type ExecutorOption func(*Executor)

func WithGracePeriod(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.grace = d
	}
}

// Executor runs state changing commands against single VMs addressed by
// uuid and blocks until they complete.
type Executor struct {
	locator Locator
	grace   time.Duration
	sleep   func(time.Duration)
	log     *zap.SugaredLogger
}

func NewExecutor(locator Locator, opts ...ExecutorOption) *Executor {
	e := &Executor{
		locator: locator,
		grace:   DefaultGracePeriod,
		sleep:   time.Sleep,
		log:     zap.S().Named("executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve returns the VM with the given BIOS uuid.
func (e *Executor) Resolve(ctx context.Context, uuid string) (Machine, error) {
	if uuid == "" {
		return nil, NewNotFoundError(KindVirtualMachine, `""`)
	}
	m, err := e.locator.Locate(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, NewNotFoundError(KindVirtualMachine, uuid)
	}
	return m, nil
}

// Apply runs op against the VM. Power on, power off and suspend wait for
// the platform task; reboot and shutdown signal the guest and then wait the
// grace period.
func (e *Executor) Apply(ctx context.Context, uuid string, op Operation) error {
	if _, err := ParseOperation(string(op)); err != nil {
		return err
	}
	m, err := e.Resolve(ctx, uuid)
	if err != nil {
		return err
	}

	e.log.Infof("running %s on vm %s (%s)", op, uuid, m.Reference().Value)
	switch op {
	case OpPowerOff:
		return e.runTask(ctx, op.String(), m.PowerOff)
	case OpPowerOn:
		return e.runTask(ctx, op.String(), m.PowerOn)
	case OpSuspend:
		return e.runTask(ctx, op.String(), m.Suspend)
	case OpReboot:
		return e.signal(ctx, op.String(), m.RebootGuest)
	default:
		return e.signal(ctx, op.String(), m.ShutdownGuest)
	}
}

// Reconfigure changes the VM's display name and/or annotation. An empty
// annotation is dropped on the wire, so a note cannot be cleared this way.
func (e *Executor) Reconfigure(ctx context.Context, uuid string, fields ReconfigureFields) error {
	m, err := e.Resolve(ctx, uuid)
	if err != nil {
		return err
	}
	if fields.Empty() {
		return nil
	}

	spec := types.VirtualMachineConfigSpec{}
	if fields.Name != nil {
		spec.Name = *fields.Name
	}
	if fields.Note != nil {
		spec.Annotation = *fields.Note
	}
	e.log.Infof("reconfiguring vm %s (%s)", uuid, m.Reference().Value)
	return e.runTask(ctx, "reconfigure", func(ctx context.Context) (Task, error) {
		return m.Reconfigure(ctx, spec)
	})
}

// Ticket acquires a web console ticket for the VM.
func (e *Executor) Ticket(ctx context.Context, uuid string) (*types.VirtualMachineTicket, error) {
	m, err := e.Resolve(ctx, uuid)
	if err != nil {
		return nil, err
	}
	ticket, err := m.AcquireTicket(ctx, ticketKind)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s ticket for vm %s: %w", ticketKind, uuid, err)
	}
	return ticket, nil
}

func (e *Executor) runTask(ctx context.Context, name string, start func(context.Context) (Task, error)) error {
	task, err := start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}
	if err := task.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return NewTaskFaultError(name, err)
	}
	return nil
}

func (e *Executor) signal(ctx context.Context, name string, send func(context.Context) error) error {
	if err := send(ctx); err != nil {
		return fmt.Errorf("failed to %s guest: %w", name, err)
	}
	e.sleep(e.grace)
	return nil
}
