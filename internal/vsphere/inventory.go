package vsphere

import (
	"context"
	"fmt"

	"github.com/vmware/govmomi/property"
	"github.com/vmware/govmomi/view"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/types"
)

// Reader bulk-collects properties of managed objects. Every call costs one
// property collector round trip regardless of the number of objects.
type Reader struct {
	client *vim25.Client
}

func NewReader(client *vim25.Client) *Reader {
	return &Reader{client: client}
}

// Collect returns one record per object of the given kind reachable under
// container (the root folder when nil), carrying every requested path.
// When includeRefs is set each record keeps a reference to its object.
func (r *Reader) Collect(ctx context.Context, kind string, paths []string, container *types.ManagedObjectReference, includeRefs bool) ([]PropertyRecord, error) {
	return r.collect(ctx, []string{kind}, paths, container, includeRefs)
}

// Index collects name and parent of every folder, datacenter, host and
// compute resource so parent chains can be walked without further round
// trips.
func (r *Reader) Index(ctx context.Context) (Index, error) {
	records, err := r.collect(ctx, treeKinds, treeProperties, nil, true)
	if err != nil {
		return nil, err
	}
	return NewIndex(records), nil
}

// Entities lists name and parent of every object of the given kind.
func (r *Reader) Entities(ctx context.Context, kind string) ([]Node, error) {
	records, err := r.Collect(ctx, kind, treeProperties, nil, true)
	if err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(records))
	for _, rec := range records {
		nodes = append(nodes, nodeFromRecord(rec))
	}
	return nodes, nil
}

// FindByName returns the first object of kind whose name matches exactly.
func (r *Reader) FindByName(ctx context.Context, kind, name string) (Node, error) {
	nodes, err := r.Entities(ctx, kind)
	if err != nil {
		return Node{}, err
	}
	for _, n := range nodes {
		if n.Name == name {
			return n, nil
		}
	}
	return Node{}, NewNotFoundError(kind, name)
}

// FindByID returns the object of kind with the given managed object id.
func (r *Reader) FindByID(ctx context.Context, kind, id string) (Node, error) {
	nodes, err := r.Entities(ctx, kind)
	if err != nil {
		return Node{}, err
	}
	for _, n := range nodes {
		if n.Ref.Value == id {
			return n, nil
		}
	}
	return Node{}, NewNotFoundError(kind, id)
}

func (r *Reader) collect(ctx context.Context, kinds []string, paths []string, container *types.ManagedObjectReference, includeRefs bool) ([]PropertyRecord, error) {
	root := r.client.ServiceContent.RootFolder
	if container != nil {
		root = *container
	}

	v, err := view.NewManager(r.client).CreateContainerView(ctx, root, kinds, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create container view for %v: %w", kinds, err)
	}
	defer func() { _ = v.Destroy(context.WithoutCancel(ctx)) }()

	spec := types.PropertyFilterSpec{
		ObjectSet: []types.ObjectSpec{
			{
				Obj:  v.Reference(),
				Skip: types.NewBool(true),
				SelectSet: []types.BaseSelectionSpec{
					&types.TraversalSpec{
						Type: v.Reference().Type,
						Path: "view",
					},
				},
			},
		},
	}
	for _, kind := range kinds {
		spec.PropSet = append(spec.PropSet, types.PropertySpec{Type: kind, PathSet: paths})
	}

	res, err := property.DefaultCollector(r.client).RetrieveProperties(ctx, types.RetrieveProperties{
		SpecSet: []types.PropertyFilterSpec{spec},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve %v properties: %w", kinds, err)
	}
	return recordsFromContent(res.Returnval, includeRefs), nil
}

func recordsFromContent(content []types.ObjectContent, includeRefs bool) []PropertyRecord {
	records := make([]PropertyRecord, 0, len(content))
	for _, oc := range content {
		rec := PropertyRecord{Properties: make(map[string]any, len(oc.PropSet))}
		for _, p := range oc.PropSet {
			rec.Properties[p.Name] = p.Val
		}
		if includeRefs {
			ref := oc.Obj
			rec.Ref = &ref
		}
		records = append(records, rec)
	}
	return records
}

// retrieve fetches paths for an explicit set of objects in one round trip.
func retrieve(ctx context.Context, client *vim25.Client, refs []types.ManagedObjectReference, paths []string) ([]types.ObjectContent, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	spec := types.PropertyFilterSpec{}
	seen := map[string]bool{}
	for _, ref := range refs {
		spec.ObjectSet = append(spec.ObjectSet, types.ObjectSpec{Obj: ref})
		if !seen[ref.Type] {
			seen[ref.Type] = true
			spec.PropSet = append(spec.PropSet, types.PropertySpec{Type: ref.Type, PathSet: paths})
		}
	}
	res, err := property.DefaultCollector(client).RetrieveProperties(ctx, types.RetrieveProperties{
		SpecSet: []types.PropertyFilterSpec{spec},
	})
	if err != nil {
		return nil, err
	}
	return res.Returnval, nil
}
