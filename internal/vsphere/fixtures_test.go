package vsphere

import (
	"context"
	"time"

	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"
)

func ref(kind, id string) types.ManagedObjectReference {
	return types.ManagedObjectReference{Type: kind, Value: id}
}

func refPtr(kind, id string) *types.ManagedObjectReference {
	r := ref(kind, id)
	return &r
}

func treeRecord(kind, id, name string, parent *types.ManagedObjectReference) PropertyRecord {
	props := map[string]any{PropName: name}
	if parent != nil {
		props[PropParent] = *parent
	}
	return PropertyRecord{Ref: refPtr(kind, id), Properties: props}
}

var (
	fixtureVMRef     = ref(KindVirtualMachine, "vm-42")
	fixtureFolderRef = ref(KindFolder, "group-v11")
	fixtureHostRef   = ref(KindHostSystem, "host-20")
	fixtureDSRef     = ref(KindDatastore, "datastore-15")
	fixtureNetRef    = ref(KindNetwork, "network-17")
	fixtureCreated   = time.Date(2023, 4, 5, 6, 7, 8, 0, time.FixedZone("CST", 8*3600))
)

// fixtureIndex is Datacenters/DC0/vm/prod/web with host esx-01 in Cluster-A.
func fixtureIndex() Index {
	return NewIndex([]PropertyRecord{
		treeRecord(KindFolder, "group-d1", "Datacenters", nil),
		treeRecord(KindDatacenter, "datacenter-2", "DC0", refPtr(KindFolder, "group-d1")),
		treeRecord(KindFolder, "group-v3", "vm", refPtr(KindDatacenter, "datacenter-2")),
		treeRecord(KindFolder, "group-v10", "prod", refPtr(KindFolder, "group-v3")),
		treeRecord(KindFolder, "group-v11", "web", refPtr(KindFolder, "group-v10")),
		treeRecord(KindFolder, "group-h4", "host", refPtr(KindDatacenter, "datacenter-2")),
		treeRecord(KindClusterComputeResource, "domain-c7", "Cluster-A", refPtr(KindFolder, "group-h4")),
		treeRecord(KindHostSystem, "host-20", "esx-01", refPtr(KindClusterComputeResource, "domain-c7")),
	})
}

func fixtureDevices() []types.BaseVirtualDevice {
	return []types.BaseVirtualDevice{
		&types.VirtualDisk{
			VirtualDevice: types.VirtualDevice{
				Key:        2000,
				DeviceInfo: &types.Description{Label: "Hard disk 1"},
			},
			CapacityInKB: 40 * 1024 * 1024,
		},
		&types.VirtualDisk{
			VirtualDevice: types.VirtualDevice{
				Key:        2001,
				DeviceInfo: &types.Description{Label: "Hard disk 2"},
			},
			CapacityInKB: 100*1024*1024 + 512,
		},
		&types.VirtualVmxnet3{
			VirtualVmxnet: types.VirtualVmxnet{
				VirtualEthernetCard: types.VirtualEthernetCard{
					VirtualDevice: types.VirtualDevice{
						Key:        4000,
						DeviceInfo: &types.Description{Label: "Network adapter 1"},
						Backing: &types.VirtualEthernetCardNetworkBackingInfo{
							VirtualDeviceDeviceBackingInfo: types.VirtualDeviceDeviceBackingInfo{DeviceName: "VM Network"},
						},
						Connectable: &types.VirtualDeviceConnectInfo{Status: "ok", Connected: true},
					},
					MacAddress: "00:50:56:aa:bb:cc",
				},
			},
		},
		&types.VirtualE1000e{
			VirtualEthernetCard: types.VirtualEthernetCard{
				VirtualDevice: types.VirtualDevice{
					Key:        4001,
					DeviceInfo: &types.Description{Label: "Network adapter 2"},
					Backing: &types.VirtualEthernetCardDistributedVirtualPortBackingInfo{
						Port: types.DistributedVirtualSwitchPortConnection{PortgroupKey: "dvportgroup-30"},
					},
					Connectable: &types.VirtualDeviceConnectInfo{Status: "untried", Connected: false},
				},
				MacAddress: "00:50:56:aa:bb:cd",
			},
		},
	}
}

func fixtureRecord() PropertyRecord {
	return PropertyRecord{
		Ref: refPtr(KindVirtualMachine, "vm-42"),
		Properties: map[string]any{
			PropParent:         fixtureFolderRef,
			PropGuestIPAddress: "10.0.0.5",
			PropToolsStatus:    types.VirtualMachineToolsStatusToolsOk,
			PropUUID:           "4215e3c2-7f1a-4a3b-9a52-6e2b1b6f0a01",
			PropTemplate:       false,
			PropHost:           fixtureHostRef,
			PropConfigName:     "web-01",
			PropPowerState:     types.VirtualMachinePowerStatePoweredOn,
			PropGuestID:        "rhel8_64Guest",
			PropGuestFullName:  "Red Hat Enterprise Linux 8 (64-bit)",
			PropNumCPU:         int32(4),
			PropMemoryMB:       int32(8192),
			PropDevices:        types.ArrayOfVirtualDevice{VirtualDevice: fixtureDevices()},
			PropAnnotation:     "frontend",
			PropCreateDate:     fixtureCreated,
		},
	}
}

func fixtureMachine() *mo.VirtualMachine {
	created := fixtureCreated
	host := fixtureHostRef
	parent := fixtureFolderRef
	return &mo.VirtualMachine{
		ManagedEntity: mo.ManagedEntity{Parent: &parent},
		Summary: types.VirtualMachineSummary{
			Config: types.VirtualMachineConfigSummary{
				Uuid:          "4215e3c2-7f1a-4a3b-9a52-6e2b1b6f0a01",
				Name:          "web-01",
				GuestId:       "rhel8_64Guest",
				GuestFullName: "Red Hat Enterprise Linux 8 (64-bit)",
			},
			Runtime: types.VirtualMachineRuntimeInfo{
				PowerState: types.VirtualMachinePowerStatePoweredOn,
				Host:       &host,
			},
		},
		Config: &types.VirtualMachineConfigInfo{
			Annotation: "frontend",
			CreateDate: &created,
			Hardware: types.VirtualHardware{
				NumCPU:   4,
				MemoryMB: 8192,
				Device:   fixtureDevices(),
			},
		},
		Guest: &types.GuestInfo{
			ToolsStatus: types.VirtualMachineToolsStatusToolsOk,
			IpAddress:   "10.0.0.5",
			Net: []types.GuestNicInfo{
				{DeviceConfigId: 4000, IpAddress: []string{"10.0.0.5", "fe80::250:56ff:feaa:bbcc"}},
			},
		},
		Datastore: []types.ManagedObjectReference{fixtureDSRef},
		Network:   []types.ManagedObjectReference{fixtureNetRef},
	}
}

// fakeLive serves a single VM and the fixture tree.
type fakeLive struct {
	Index
	vm         *mo.VirtualMachine
	vmErr      error
	datastores map[string]types.DatastoreSummary
	names      map[string]string
}

func newFakeLive() *fakeLive {
	return &fakeLive{
		Index: fixtureIndex(),
		vm:    fixtureMachine(),
		datastores: map[string]types.DatastoreSummary{
			fixtureDSRef.Value: {
				Name:      "datastore1",
				Type:      "VMFS",
				Capacity:  2 * 1024 * 1024 * 1024 * 1024,
				FreeSpace: 512 * 1024 * 1024 * 1024,
			},
		},
		names: map[string]string{fixtureNetRef.Value: "VM Network"},
	}
}

func (f *fakeLive) VirtualMachine(_ context.Context, _ types.ManagedObjectReference) (*mo.VirtualMachine, error) {
	return f.vm, f.vmErr
}

func (f *fakeLive) Datastores(_ context.Context, refs []types.ManagedObjectReference) ([]types.DatastoreSummary, error) {
	var out []types.DatastoreSummary
	for _, r := range refs {
		if ds, ok := f.datastores[r.Value]; ok {
			out = append(out, ds)
		}
	}
	return out, nil
}

func (f *fakeLive) Names(_ context.Context, refs []types.ManagedObjectReference) ([]string, error) {
	var out []string
	for _, r := range refs {
		if n, ok := f.names[r.Value]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}
