package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/thoas/go-funk"
)

const (
	VMKind         = "vm"
	ClusterKind    = "cluster"
	DatacenterKind = "datacenter"
	FolderKind     = "folder"
	HostKind       = "host"
	DatastoreKind  = "datastore"
	NetworkKind    = "network"
	CounterKind    = "counter"
)

var (
	pluralKinds = map[string]string{
		VMKind:         "vms",
		ClusterKind:    "clusters",
		DatacenterKind: "datacenters",
		FolderKind:     "folders",
		HostKind:       "hosts",
		DatastoreKind:  "datastores",
		NetworkKind:    "networks",
		CounterKind:    "counters",
	}
)

// parseAndValidateKindId splits "vms" or "vm/<uuid>". Only vms can be
// addressed by id.
func parseAndValidateKindId(arg string) (string, string, error) {
	kind, id, _ := strings.Cut(arg, "/")
	kind = singular(kind)
	if _, ok := pluralKinds[kind]; !ok {
		return "", "", fmt.Errorf("invalid resource kind: %s", kind)
	}
	if id != "" && kind != VMKind {
		return "", "", fmt.Errorf("%s cannot be read by id", plural(kind))
	}
	return kind, id, nil
}

func singular(kind string) string {
	for singular, plural := range pluralKinds {
		if kind == plural {
			return singular
		}
	}
	return kind
}

func plural(kind string) string {
	return pluralKinds[kind]
}

// kindNames lists the plural kinds accepted by get.
func kindNames() []string {
	names := funk.Values(pluralKinds).([]string)
	sort.Strings(names)
	return names
}
