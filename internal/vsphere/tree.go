package vsphere

import (
	"context"
	"errors"
	"strings"

	"github.com/vmware/govmomi/vim25/types"
)

// vmFolderName is the hidden root folder of every datacenter's VM tree. It
// terminates folder path walks and never appears in a path.
const vmFolderName = "vm"

// maxTreeDepth bounds parent walks against cycles in malformed inventories.
const maxTreeDepth = 64

// Node is one hop of the inventory tree.
type Node struct {
	Ref    types.ManagedObjectReference  `json:"-"`
	ID     string                        `json:"id"`
	Kind   string                        `json:"kind"`
	Name   string                        `json:"name"`
	Parent *types.ManagedObjectReference `json:"-"`
}

// Tree answers name and parent lookups for inventory objects.
type Tree interface {
	Node(ctx context.Context, ref types.ManagedObjectReference) (Node, error)
}

// Index is an in-memory Tree built from one bulk collection.
type Index map[string]Node

func NewIndex(records []PropertyRecord) Index {
	idx := make(Index, len(records))
	for _, rec := range records {
		if rec.Ref == nil {
			continue
		}
		idx[refKey(*rec.Ref)] = nodeFromRecord(rec)
	}
	return idx
}

func (i Index) Node(_ context.Context, ref types.ManagedObjectReference) (Node, error) {
	n, ok := i[refKey(ref)]
	if !ok {
		return Node{}, NewNotFoundError(ref.Type, ref.Value)
	}
	return n, nil
}

func nodeFromRecord(rec PropertyRecord) Node {
	n := Node{
		Name:   rec.String(PropName),
		Parent: rec.Reference(PropParent),
	}
	if rec.Ref != nil {
		n.Ref = *rec.Ref
		n.ID = rec.Ref.Value
		n.Kind = rec.Ref.Type
	}
	return n
}

func refKey(ref types.ManagedObjectReference) string {
	return ref.Type + ":" + ref.Value
}

// folderPath walks up from parent and joins the folder names root to leaf.
// The walk ends at the datacenter's "vm" folder or when a parent can no
// longer be resolved.
func folderPath(ctx context.Context, tree Tree, parent *types.ManagedObjectReference) (string, error) {
	var names []string
	for depth := 0; parent != nil && depth < maxTreeDepth; depth++ {
		n, err := tree.Node(ctx, *parent)
		if err != nil {
			var nf *NotFoundError
			if errors.As(err, &nf) {
				break
			}
			return "", err
		}
		if n.Name == vmFolderName {
			break
		}
		names = append(names, n.Name)
		parent = n.Parent
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, "/"), nil
}
