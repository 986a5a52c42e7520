package vsphere

import (
	"slices"
	"strings"
)

// Managed object kinds used by the reader and the normalizer.
const (
	KindVirtualMachine         = "VirtualMachine"
	KindVirtualApp             = "VirtualApp"
	KindFolder                 = "Folder"
	KindDatacenter             = "Datacenter"
	KindComputeResource        = "ComputeResource"
	KindClusterComputeResource = "ClusterComputeResource"
	KindHostSystem             = "HostSystem"
	KindDatastore              = "Datastore"
	KindNetwork                = "Network"
)

// Property paths understood by FromBatch.
const (
	PropName           = "name"
	PropParent         = "parent"
	PropGuestIPAddress = "guest.ipAddress"
	PropToolsStatus    = "guest.toolsStatus"
	PropUUID           = "summary.config.uuid"
	PropTemplate       = "summary.config.template"
	PropHost           = "summary.runtime.host"
	PropConfigName     = "summary.config.name"
	PropPowerState     = "summary.runtime.powerState"
	PropGuestID        = "summary.config.guestId"
	PropGuestFullName  = "summary.config.guestFullName"
	PropNumCPU         = "config.hardware.numCPU"
	PropMemoryMB       = "config.hardware.memoryMB"
	PropDevices        = "config.hardware.device"
	PropAnnotation     = "config.annotation"
	PropCreateDate     = "config.createDate"
	propDatastoreType  = "summary.type"
	propDatastoreTotal = "summary.capacity"
	propDatastoreFree  = "summary.freeSpace"
)

var baseVMProperties = []string{
	PropParent,
	PropGuestIPAddress,
	PropToolsStatus,
	PropUUID,
	PropTemplate,
	PropHost,
	PropConfigName,
	PropPowerState,
	PropGuestID,
	PropGuestFullName,
	PropNumCPU,
	PropMemoryMB,
	PropDevices,
	PropAnnotation,
}

// createDateVersions lists the API versions that expose config.createDate.
var createDateVersions = []string{"6.7", "7.0", "8.0"}

// DefaultVMProperties returns the property paths collected for a VM listing
// against an endpoint reporting the given API version.
func DefaultVMProperties(version string) []string {
	props := slices.Clone(baseVMProperties)
	for _, v := range createDateVersions {
		if strings.Contains(version, v) {
			return append(props, PropCreateDate)
		}
	}
	return props
}

var treeProperties = []string{PropName, PropParent}

var treeKinds = []string{
	KindFolder,
	KindDatacenter,
	KindHostSystem,
	KindComputeResource,
	KindClusterComputeResource,
}

var liveVMProperties = []string{
	PropName,
	PropParent,
	"summary",
	"config",
	"guest",
	"datastore",
	"network",
}

var datastoreProperties = []string{
	PropName,
	propDatastoreType,
	propDatastoreTotal,
	propDatastoreFree,
}
