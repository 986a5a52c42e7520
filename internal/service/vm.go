package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/types"
	"github.com/yeyushilai/VMware-Manager/internal/vsphere"
	"github.com/yeyushilai/VMware-Manager/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const reconfigureOperation = "reconfigure"

// DefaultMetricsWindow is used when a metrics request sets no window.
const DefaultMetricsWindow = time.Hour

var entityKinds = map[string]string{
	"datacenters": vsphere.KindDatacenter,
	"clusters":    vsphere.KindClusterComputeResource,
	"hosts":       vsphere.KindHostSystem,
	"folders":     vsphere.KindFolder,
	"datastores":  vsphere.KindDatastore,
	"networks":    vsphere.KindNetwork,
}

// EntityKinds lists the inventory kinds accepted by Entities.
func EntityKinds() []string {
	kinds := make([]string, 0, len(entityKinds))
	for k := range entityKinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

type MetricsRequest struct {
	// Counters are catalog names such as "cpu.usage.average".
	Counters []string
	// Since is the length of the window ending now.
	Since    time.Duration
	Instance string
}

type Option func(*VMService)

func WithGracePeriod(d time.Duration) Option {
	return func(s *VMService) {
		s.grace = d
	}
}

// VMService exposes the vSphere operations to the CLI and the HTTP API. It
// owns one Session and serializes every call on it. A caller waiting for the
// session gives up when its context is done.
type VMService struct {
	sem     *semaphore.Weighted
	session *vsphere.Session
	grace   time.Duration
	now     func() time.Time
	log     *zap.SugaredLogger
}

func NewVMService(session *vsphere.Session, opts ...Option) *VMService {
	s := &VMService{
		sem:     semaphore.NewWeighted(1),
		session: session,
		grace:   vsphere.DefaultGracePeriod,
		now:     time.Now,
		log:     zap.S().Named("vm_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check reports whether the endpoint accepts the configured credentials.
func (s *VMService) Check(ctx context.Context) bool {
	release, err := s.acquire(ctx)
	if err != nil {
		s.log.Errorf("connection check: %v", err)
		metrics.IncreaseConnectionCheckMetric(false)
		return false
	}
	defer release()

	ok := s.session.CheckConnected(ctx)
	metrics.IncreaseConnectionCheckMetric(ok)
	return ok
}

func (s *VMService) Version(ctx context.Context) (string, error) {
	return withSession(ctx, s, func() (string, error) {
		return s.session.Version(ctx)
	})
}

// ListVMs returns every VM, or the VMs of one cluster when cluster is set.
func (s *VMService) ListVMs(ctx context.Context, cluster string) ([]vsphere.VirtualMachine, error) {
	return withSession(ctx, s, func() ([]vsphere.VirtualMachine, error) {
		return s.listVMs(ctx, cluster)
	})
}

func (s *VMService) listVMs(ctx context.Context, cluster string) ([]vsphere.VirtualMachine, error) {
	c, err := s.session.Vim25(ctx)
	if err != nil {
		return nil, err
	}
	version, err := s.session.Version(ctx)
	if err != nil {
		return nil, err
	}
	reader := vsphere.NewReader(c)

	var container *types.ManagedObjectReference
	if cluster != "" {
		node, err := reader.FindByName(ctx, vsphere.KindClusterComputeResource, cluster)
		if err != nil {
			return nil, err
		}
		container = &node.Ref
	}

	records, err := reader.Collect(ctx, vsphere.KindVirtualMachine, vsphere.DefaultVMProperties(version), container, true)
	if err != nil {
		return nil, err
	}
	tree, err := reader.Index(ctx)
	if err != nil {
		return nil, err
	}

	n := vsphere.NewNormalizer(tree, vsphere.NewLiveSource(c))
	vms := make([]vsphere.VirtualMachine, 0, len(records))
	for _, rec := range records {
		vm, err := n.FromBatch(ctx, rec)
		if errors.Is(err, vsphere.ErrSkip) {
			continue
		}
		if err != nil {
			return nil, err
		}
		vms = append(vms, vm)
	}
	s.log.Debugf("listed %d vms (cluster %q)", len(vms), cluster)
	return vms, nil
}

// GetVM returns the detailed view of one VM.
func (s *VMService) GetVM(ctx context.Context, uuid string) (vsphere.VirtualMachine, error) {
	return withSession(ctx, s, func() (vsphere.VirtualMachine, error) {
		c, err := s.session.Vim25(ctx)
		if err != nil {
			return vsphere.VirtualMachine{}, err
		}
		m, err := s.executor(c).Resolve(ctx, uuid)
		if err != nil {
			return vsphere.VirtualMachine{}, err
		}
		return vsphere.NewNormalizer(nil, vsphere.NewLiveSource(c)).FromLive(ctx, m.Reference())
	})
}

// Operate runs a power operation and blocks until it is done.
func (s *VMService) Operate(ctx context.Context, uuid, operation string) error {
	op, err := vsphere.ParseOperation(operation)
	if err != nil {
		return NewErrInvalidArgument("%w, expected one of %v", err, vsphere.Operations())
	}

	_, err = withSession(ctx, s, func() (struct{}, error) {
		c, err := s.session.Vim25(ctx)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, s.executor(c).Apply(ctx, uuid, op)
	})
	metrics.IncreaseVMOperationMetric(op.String(), result(err))
	return err
}

// Update renames the VM and/or replaces its note.
func (s *VMService) Update(ctx context.Context, uuid string, fields vsphere.ReconfigureFields) error {
	if fields.Name != nil && strings.TrimSpace(*fields.Name) == "" {
		return NewErrInvalidArgument("name must not be empty")
	}

	_, err := withSession(ctx, s, func() (struct{}, error) {
		c, err := s.session.Vim25(ctx)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, s.executor(c).Reconfigure(ctx, uuid, fields)
	})
	metrics.IncreaseVMOperationMetric(reconfigureOperation, result(err))
	return err
}

// Ticket acquires a web console ticket.
func (s *VMService) Ticket(ctx context.Context, uuid string) (*types.VirtualMachineTicket, error) {
	return withSession(ctx, s, func() (*types.VirtualMachineTicket, error) {
		c, err := s.session.Vim25(ctx)
		if err != nil {
			return nil, err
		}
		return s.executor(c).Ticket(ctx, uuid)
	})
}

// Counters returns the performance counter catalog.
func (s *VMService) Counters(ctx context.Context) (map[string]int32, error) {
	return withSession(ctx, s, func() (map[string]int32, error) {
		m, err := s.session.Metrics(ctx)
		if err != nil {
			return nil, err
		}
		return m.CounterCatalog(ctx)
	})
}

// QueryMetrics returns real-time samples of the requested counters.
func (s *VMService) QueryMetrics(ctx context.Context, uuid string, req MetricsRequest) ([]vsphere.Sample, error) {
	if len(req.Counters) == 0 {
		return nil, NewErrInvalidArgument("at least one counter is required")
	}
	if req.Since <= 0 {
		req.Since = DefaultMetricsWindow
	}

	return withSession(ctx, s, func() ([]vsphere.Sample, error) {
		return s.queryMetrics(ctx, uuid, req)
	})
}

func (s *VMService) queryMetrics(ctx context.Context, uuid string, req MetricsRequest) ([]vsphere.Sample, error) {
	c, err := s.session.Vim25(ctx)
	if err != nil {
		return nil, err
	}
	m, err := s.session.Metrics(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := m.CounterIDs(ctx, req.Counters)
	if err != nil {
		var nf *vsphere.NotFoundError
		if errors.As(err, &nf) {
			return nil, NewErrInvalidArgument("%s", nf.Error())
		}
		return nil, err
	}
	vm, err := s.executor(c).Resolve(ctx, uuid)
	if err != nil {
		return nil, err
	}

	end := s.now()
	res := m.Query(ctx, vsphere.QuerySpec{
		Start:      end.Add(-req.Since),
		End:        end,
		CounterIDs: ids,
		Instance:   req.Instance,
		Entity:     vm.Reference(),
	})
	switch res.Status {
	case vsphere.QueryFailed:
		return nil, NewErrQueryFailed(uuid, res.Err)
	case vsphere.QueryEmpty:
		return []vsphere.Sample{}, nil
	}
	return vsphere.Flatten(res.Samples), nil
}

// Entities lists the inventory objects of one kind, e.g. "clusters".
func (s *VMService) Entities(ctx context.Context, kind string) ([]vsphere.Node, error) {
	moKind, ok := entityKinds[kind]
	if !ok {
		return nil, NewErrInvalidArgument("unknown inventory kind %q, expected one of %v", kind, EntityKinds())
	}

	return withSession(ctx, s, func() ([]vsphere.Node, error) {
		c, err := s.session.Vim25(ctx)
		if err != nil {
			return nil, err
		}
		return vsphere.NewReader(c).Entities(ctx, moKind)
	})
}

// InventoryStats summarizes the VM listing for the prometheus collector.
func (s *VMService) InventoryStats(ctx context.Context) (metrics.InventoryStats, error) {
	vms, err := s.ListVMs(ctx, "")
	if err != nil {
		return metrics.InventoryStats{}, err
	}
	return summarize(vms), nil
}

// Close logs out of vSphere.
func (s *VMService) Close(ctx context.Context) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	return s.session.Logout(ctx)
}

func (s *VMService) acquire(ctx context.Context) (func(), error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for the vSphere session: %w", err)
	}
	return func() { s.sem.Release(1) }, nil
}

// withSession runs fn holding the session. fn runs a second time after a
// fresh login when the first run finds the session expired.
func withSession[T any](ctx context.Context, s *VMService, fn func() (T, error)) (T, error) {
	var out T
	release, err := s.acquire(ctx)
	if err != nil {
		return out, err
	}
	defer release()

	err = s.session.Retry(ctx, func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}

func (s *VMService) executor(c *vim25.Client) *vsphere.Executor {
	return vsphere.NewExecutor(vsphere.NewSearchLocator(c), vsphere.WithGracePeriod(s.grace))
}

func summarize(vms []vsphere.VirtualMachine) metrics.InventoryStats {
	stats := metrics.InventoryStats{
		ByOS:         map[string]int{},
		ByPowerState: map[string]int{},
		ByCluster:    map[string]int{},
	}
	for _, vm := range vms {
		stats.Total++
		if vm.IsTemplate {
			stats.Templates++
		}
		family := vm.OSType
		if family == "" {
			family = "other"
		}
		stats.ByOS[family]++
		stats.ByPowerState[vm.Status]++
		if vm.Cluster != "" {
			stats.ByCluster[vm.Cluster]++
		}
	}
	return stats
}

func result(err error) string {
	if err == nil {
		return metrics.ResultSuccess
	}
	var nf *vsphere.NotFoundError
	if errors.As(err, &nf) {
		return metrics.ResultNotFound
	}
	return metrics.ResultFailure
}
