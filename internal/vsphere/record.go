package vsphere

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/vmware/govmomi/vim25/types"
)

// PropertyRecord is the denormalized property bag of one managed object as
// returned by a bulk collection: property path to raw value.
type PropertyRecord struct {
	Ref        *types.ManagedObjectReference
	Properties map[string]any
}

func (r PropertyRecord) Value(path string) (any, bool) {
	v, ok := r.Properties[path]
	return v, ok
}

func (r PropertyRecord) String(path string) string {
	return stringOf(r.Properties[path])
}

func (r PropertyRecord) Int(path string) int64 {
	n, _ := intOf(r.Properties[path])
	return n
}

func (r PropertyRecord) Bool(path string) bool {
	return boolOf(r.Properties[path])
}

func (r PropertyRecord) Reference(path string) *types.ManagedObjectReference {
	return refOf(r.Properties[path])
}

// IsVirtualApp reports whether the record was collected from a vApp.
func (r PropertyRecord) IsVirtualApp() bool {
	return r.Ref != nil && r.Ref.Type == KindVirtualApp
}

func stringOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case *string:
		if t == nil {
			return ""
		}
		return *t
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String()
	}
	return ""
}

func intOf(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func boolOf(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case *bool:
		return t != nil && *t
	}
	return false
}

func refOf(v any) *types.ManagedObjectReference {
	switch t := v.(type) {
	case types.ManagedObjectReference:
		return &t
	case *types.ManagedObjectReference:
		return t
	}
	return nil
}

func timeOf(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		return &t
	case *time.Time:
		return t
	}
	return nil
}
