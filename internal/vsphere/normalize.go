package vsphere

import (
	"context"
	"errors"
	"time"

	"github.com/vmware/govmomi/vim25/types"
	"go.uber.org/zap"
)

const createTimeLayout = "2006-01-02T15:04:05Z"

// VirtualMachine is the flat view of one VM. Absent upstream values are
// rendered as empty strings and empty lists, never null.
type VirtualMachine struct {
	UUID        string      `json:"uuid"`
	IsTemplate  bool        `json:"is_template"`
	Name        string      `json:"name"`
	Status      string      `json:"status"`
	ToolsStatus string      `json:"vmware_tools_status"`
	Note        string      `json:"note"`
	CreateTime  string      `json:"create_time"`
	Folder      string      `json:"folder"`
	OSType      string      `json:"os_type"`
	OSName      string      `json:"os_name"`
	CPU         int32       `json:"cpu"`
	Memory      int32       `json:"memory"`
	IPAddress   string      `json:"ip_address"`
	Disks       []Disk      `json:"disk"`
	NICs        []NIC       `json:"nic"`
	Datastores  []Datastore `json:"datastore"`
	Networks    []Network   `json:"network"`
	Host        string      `json:"host"`
	Cluster     string      `json:"cluster"`
}

type Disk struct {
	Name string `json:"name"`
	// Size in GiB.
	Size int64 `json:"size"`
}

type NIC struct {
	Name      string   `json:"name"`
	MAC       string   `json:"mac"`
	IPList    []string `json:"ip_list"`
	Status    string   `json:"status"`
	Connected bool     `json:"is_connect"`
	Network   string   `json:"network"`
	Type      string   `json:"type"`
}

// Datastore sizes are in TiB.
type Datastore struct {
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	TotalSize float64 `json:"total_size"`
	FreeSize  float64 `json:"free_size"`
}

type Network struct {
	Name string `json:"name"`
}

func newVirtualMachine() VirtualMachine {
	return VirtualMachine{
		Disks:      []Disk{},
		NICs:       []NIC{},
		Datastores: []Datastore{},
		Networks:   []Network{},
	}
}

// Normalizer projects raw vSphere data onto VirtualMachine. Records from a
// bulk collection resolve folder and host names through tree; single VM
// lookups read everything through live.
type Normalizer struct {
	tree Tree
	live LiveSource
}

func NewNormalizer(tree Tree, live LiveSource) *Normalizer {
	return &Normalizer{tree: tree, live: live}
}

// FromBatch normalizes one record collected with DefaultVMProperties.
// Records of virtual apps yield ErrSkip.
func (n *Normalizer) FromBatch(ctx context.Context, rec PropertyRecord) (VirtualMachine, error) {
	if rec.IsVirtualApp() {
		return VirtualMachine{}, ErrSkip
	}

	vm := newVirtualMachine()
	vm.UUID = rec.String(PropUUID)
	vm.IsTemplate = rec.Bool(PropTemplate)
	vm.Name = rec.String(PropConfigName)
	vm.Status = rec.String(PropPowerState)
	vm.ToolsStatus = rec.String(PropToolsStatus)
	vm.Note = rec.String(PropAnnotation)
	vm.CreateTime = formatCreateTime(timeOf(rec.Properties[PropCreateDate]))
	vm.OSType = GuestFamily(rec.String(PropGuestID))
	vm.OSName = rec.String(PropGuestFullName)
	vm.CPU = int32(rec.Int(PropNumCPU))
	vm.Memory = int32(rec.Int(PropMemoryMB))
	vm.IPAddress = rec.String(PropGuestIPAddress)
	vm.Disks = disksOf(devicesOf(rec.Properties[PropDevices]))

	var err error
	if vm.Folder, err = folderPath(ctx, n.tree, rec.Reference(PropParent)); err != nil {
		return VirtualMachine{}, err
	}
	if vm.Host, vm.Cluster, err = placement(ctx, n.tree, rec.Reference(PropHost)); err != nil {
		return VirtualMachine{}, err
	}
	return vm, nil
}

// FromLive reads the VM behind ref and normalizes it, resolving NIC
// addresses, datastore capacities, networks and the cluster as well.
func (n *Normalizer) FromLive(ctx context.Context, ref types.ManagedObjectReference) (VirtualMachine, error) {
	if ref.Type == KindVirtualApp {
		return VirtualMachine{}, ErrSkip
	}
	obj, err := n.live.VirtualMachine(ctx, ref)
	if err != nil {
		return VirtualMachine{}, err
	}

	vm := newVirtualMachine()
	summary := obj.Summary
	vm.UUID = summary.Config.Uuid
	vm.IsTemplate = summary.Config.Template
	vm.Name = summary.Config.Name
	vm.Status = string(summary.Runtime.PowerState)
	vm.OSType = GuestFamily(summary.Config.GuestId)
	vm.OSName = summary.Config.GuestFullName

	var guestNet []types.GuestNicInfo
	if g := obj.Guest; g != nil {
		vm.ToolsStatus = string(g.ToolsStatus)
		vm.IPAddress = g.IpAddress
		guestNet = g.Net
	}

	if c := obj.Config; c != nil {
		vm.Note = c.Annotation
		vm.CreateTime = formatCreateTime(c.CreateDate)
		vm.CPU = c.Hardware.NumCPU
		vm.Memory = c.Hardware.MemoryMB
		vm.Disks = disksOf(c.Hardware.Device)
		vm.NICs = nicsOf(c.Hardware.Device, guestNet)
	}

	if vm.Folder, err = folderPath(ctx, n.live, obj.Parent); err != nil {
		return VirtualMachine{}, err
	}
	if vm.Host, vm.Cluster, err = placement(ctx, n.live, summary.Runtime.Host); err != nil {
		return VirtualMachine{}, err
	}

	summaries, err := n.live.Datastores(ctx, obj.Datastore)
	if err != nil {
		return VirtualMachine{}, err
	}
	for _, ds := range summaries {
		vm.Datastores = append(vm.Datastores, Datastore{
			Name:      ds.Name,
			Type:      ds.Type,
			TotalSize: BytesToTiB(ds.Capacity),
			FreeSize:  BytesToTiB(ds.FreeSpace),
		})
	}

	names, err := n.live.Names(ctx, obj.Network)
	if err != nil {
		return VirtualMachine{}, err
	}
	for _, name := range names {
		vm.Networks = append(vm.Networks, Network{Name: name})
	}
	return vm, nil
}

// placement resolves the host name and the name of the host's compute
// resource. Objects the tree cannot resolve leave the names empty.
func placement(ctx context.Context, tree Tree, host *types.ManagedObjectReference) (string, string, error) {
	if host == nil {
		return "", "", nil
	}
	h, err := lookup(ctx, tree, *host)
	if err != nil || h.Parent == nil {
		return h.Name, "", err
	}
	c, err := lookup(ctx, tree, *h.Parent)
	return h.Name, c.Name, err
}

func lookup(ctx context.Context, tree Tree, ref types.ManagedObjectReference) (Node, error) {
	n, err := tree.Node(ctx, ref)
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return Node{}, nil
	}
	return n, err
}

func formatCreateTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(createTimeLayout)
}

func devicesOf(v any) []types.BaseVirtualDevice {
	switch t := v.(type) {
	case types.ArrayOfVirtualDevice:
		return t.VirtualDevice
	case *types.ArrayOfVirtualDevice:
		if t != nil {
			return t.VirtualDevice
		}
	case []types.BaseVirtualDevice:
		return t
	}
	return nil
}

func deviceLabel(d *types.VirtualDevice) string {
	if d.DeviceInfo == nil {
		return ""
	}
	return d.DeviceInfo.GetDescription().Label
}

func disksOf(devices []types.BaseVirtualDevice) []Disk {
	disks := []Disk{}
	for _, d := range devices {
		disk, ok := d.(*types.VirtualDisk)
		if !ok {
			continue
		}
		size, err := DiskSizeGiB(disk.CapacityInKB)
		if err != nil {
			zap.S().Named("normalizer").Warnf("skipping size of disk %q: %v", deviceLabel(&disk.VirtualDevice), err)
		}
		disks = append(disks, Disk{Name: deviceLabel(&disk.VirtualDevice), Size: size})
	}
	return disks
}

// nicsOf lists the ethernet cards among devices. Addresses come from the
// guest network info, which is keyed by device key and only populated when
// VMware Tools runs in the guest.
func nicsOf(devices []types.BaseVirtualDevice, guestNet []types.GuestNicInfo) []NIC {
	addresses := make(map[int32][]string, len(guestNet))
	for _, g := range guestNet {
		addresses[g.DeviceConfigId] = append(addresses[g.DeviceConfigId], g.IpAddress...)
	}

	nics := []NIC{}
	for _, d := range devices {
		card, ok := d.(types.BaseVirtualEthernetCard)
		if !ok {
			continue
		}
		eth := card.GetVirtualEthernetCard()
		nic := NIC{
			Name:    deviceLabel(&eth.VirtualDevice),
			MAC:     eth.MacAddress,
			IPList:  []string{},
			Network: backingNetwork(eth.Backing),
			Type:    cardType(d),
		}
		if ips, ok := addresses[eth.Key]; ok {
			nic.IPList = append(nic.IPList, ips...)
		}
		if c := eth.Connectable; c != nil {
			nic.Status = c.Status
			nic.Connected = c.Connected
		}
		nics = append(nics, nic)
	}
	return nics
}

func backingNetwork(b types.BaseVirtualDeviceBackingInfo) string {
	switch t := b.(type) {
	case *types.VirtualEthernetCardNetworkBackingInfo:
		return t.DeviceName
	case *types.VirtualEthernetCardDistributedVirtualPortBackingInfo:
		return t.Port.PortgroupKey
	case *types.VirtualEthernetCardOpaqueNetworkBackingInfo:
		return t.OpaqueNetworkId
	}
	return ""
}

func cardType(d types.BaseVirtualDevice) string {
	switch d.(type) {
	case *types.VirtualVmxnet3:
		return "vmxnet3"
	case *types.VirtualVmxnet2:
		return "vmxnet2"
	case *types.VirtualE1000e:
		return "e1000e"
	case *types.VirtualE1000:
		return "e1000"
	case *types.VirtualPCNet32:
		return "pcnet32"
	case *types.VirtualSriovEthernetCard:
		return "sriov"
	}
	return ""
}
