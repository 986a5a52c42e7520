package vsphere

import (
	"context"

	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/types"
)

// Task is an asynchronous platform task.
type Task interface {
	Wait(ctx context.Context) error
}

// Machine is the set of VM methods the executor drives.
type Machine interface {
	Reference() types.ManagedObjectReference
	PowerOn(ctx context.Context) (Task, error)
	PowerOff(ctx context.Context) (Task, error)
	Suspend(ctx context.Context) (Task, error)
	Reconfigure(ctx context.Context, spec types.VirtualMachineConfigSpec) (Task, error)
	RebootGuest(ctx context.Context) error
	ShutdownGuest(ctx context.Context) error
	AcquireTicket(ctx context.Context, kind string) (*types.VirtualMachineTicket, error)
}

// Locator finds a VM by its BIOS uuid.
type Locator interface {
	Locate(ctx context.Context, uuid string) (Machine, error)
}

type searchLocator struct {
	client *vim25.Client
}

// NewSearchLocator locates VMs through the search index of the endpoint.
func NewSearchLocator(client *vim25.Client) Locator {
	return &searchLocator{client: client}
}

func (l *searchLocator) Locate(ctx context.Context, uuid string) (Machine, error) {
	ref, err := object.NewSearchIndex(l.client).FindByUuid(ctx, nil, uuid, true, nil)
	if err != nil {
		return nil, err
	}
	vm, ok := ref.(*object.VirtualMachine)
	if !ok || vm == nil {
		return nil, NewNotFoundError(KindVirtualMachine, uuid)
	}
	return &vmMachine{vm: vm}, nil
}

// vmMachine adapts object.VirtualMachine to Machine.
type vmMachine struct {
	vm *object.VirtualMachine
}

func (m *vmMachine) Reference() types.ManagedObjectReference {
	return m.vm.Reference()
}

func (m *vmMachine) PowerOn(ctx context.Context) (Task, error) {
	return asTask(m.vm.PowerOn(ctx))
}

func (m *vmMachine) PowerOff(ctx context.Context) (Task, error) {
	return asTask(m.vm.PowerOff(ctx))
}

func (m *vmMachine) Suspend(ctx context.Context) (Task, error) {
	return asTask(m.vm.Suspend(ctx))
}

func (m *vmMachine) Reconfigure(ctx context.Context, spec types.VirtualMachineConfigSpec) (Task, error) {
	return asTask(m.vm.Reconfigure(ctx, spec))
}

func (m *vmMachine) RebootGuest(ctx context.Context) error {
	return m.vm.RebootGuest(ctx)
}

func (m *vmMachine) ShutdownGuest(ctx context.Context) error {
	return m.vm.ShutdownGuest(ctx)
}

func (m *vmMachine) AcquireTicket(ctx context.Context, kind string) (*types.VirtualMachineTicket, error) {
	return m.vm.AcquireTicket(ctx, kind)
}

// asTask keeps a nil *object.Task from turning into a non-nil Task.
func asTask(t *object.Task, err error) (Task, error) {
	if err != nil {
		return nil, err
	}
	return t, nil
}
