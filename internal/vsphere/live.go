package vsphere

import (
	"context"
	"fmt"

	"github.com/vmware/govmomi/property"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"
)

// LiveSource reads properties of individual objects on demand. It backs the
// detail view of a single VM.
type LiveSource interface {
	Tree
	VirtualMachine(ctx context.Context, ref types.ManagedObjectReference) (*mo.VirtualMachine, error)
	Datastores(ctx context.Context, refs []types.ManagedObjectReference) ([]types.DatastoreSummary, error)
	Names(ctx context.Context, refs []types.ManagedObjectReference) ([]string, error)
}

type liveSource struct {
	client *vim25.Client
}

func NewLiveSource(client *vim25.Client) LiveSource {
	return &liveSource{client: client}
}

func (l *liveSource) Node(ctx context.Context, ref types.ManagedObjectReference) (Node, error) {
	content, err := retrieve(ctx, l.client, []types.ManagedObjectReference{ref}, treeProperties)
	if err != nil {
		return Node{}, fmt.Errorf("failed to read %s: %w", ref, err)
	}
	records := recordsFromContent(content, true)
	if len(records) == 0 {
		return Node{}, NewNotFoundError(ref.Type, ref.Value)
	}
	return nodeFromRecord(records[0]), nil
}

func (l *liveSource) VirtualMachine(ctx context.Context, ref types.ManagedObjectReference) (*mo.VirtualMachine, error) {
	var vm mo.VirtualMachine
	if err := property.DefaultCollector(l.client).RetrieveOne(ctx, ref, liveVMProperties, &vm); err != nil {
		return nil, fmt.Errorf("failed to read virtual machine %s: %w", ref.Value, err)
	}
	return &vm, nil
}

// Datastores returns the summaries of refs in the order given. Datastores
// that vanished between listing and lookup are left out.
func (l *liveSource) Datastores(ctx context.Context, refs []types.ManagedObjectReference) ([]types.DatastoreSummary, error) {
	content, err := retrieve(ctx, l.client, refs, datastoreProperties)
	if err != nil {
		return nil, fmt.Errorf("failed to read datastores: %w", err)
	}
	byRef := make(map[string]PropertyRecord, len(content))
	for _, rec := range recordsFromContent(content, true) {
		byRef[refKey(*rec.Ref)] = rec
	}

	summaries := make([]types.DatastoreSummary, 0, len(refs))
	for _, ref := range refs {
		rec, ok := byRef[refKey(ref)]
		if !ok {
			continue
		}
		ds := ref
		summaries = append(summaries, types.DatastoreSummary{
			Datastore: &ds,
			Name:      rec.String(PropName),
			Type:      rec.String(propDatastoreType),
			Capacity:  rec.Int(propDatastoreTotal),
			FreeSpace: rec.Int(propDatastoreFree),
		})
	}
	return summaries, nil
}

// Names returns the display names of refs in the order given.
func (l *liveSource) Names(ctx context.Context, refs []types.ManagedObjectReference) ([]string, error) {
	content, err := retrieve(ctx, l.client, refs, []string{PropName})
	if err != nil {
		return nil, fmt.Errorf("failed to read names: %w", err)
	}
	byRef := make(map[string]string, len(content))
	for _, rec := range recordsFromContent(content, true) {
		byRef[refKey(*rec.Ref)] = rec.String(PropName)
	}

	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		if name, ok := byRef[refKey(ref)]; ok {
			names = append(names, name)
		}
	}
	return names, nil
}
