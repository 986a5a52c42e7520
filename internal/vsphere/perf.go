package vsphere

import (
	"context"
	"fmt"
	"time"

	"github.com/vmware/govmomi/vim25/types"
	"go.uber.org/zap"
)

// realtimeInterval is the sampling interval, in seconds, of real-time stats.
const realtimeInterval = 20

// PerfManager is the part of performance.Manager used for metric queries.
type PerfManager interface {
	Query(ctx context.Context, spec []types.PerfQuerySpec) ([]types.BasePerfEntityMetricBase, error)
	CounterInfo(ctx context.Context) ([]types.PerfCounterInfo, error)
}

type QueryStatus int

const (
	QueryOK QueryStatus = iota
	QueryEmpty
	QueryFailed
)

func (s QueryStatus) String() string {
	switch s {
	case QueryOK:
		return "ok"
	case QueryEmpty:
		return "empty"
	default:
		return "failed"
	}
}

// QueryResult tells a successful query with samples apart from one that
// returned nothing and one that failed.
type QueryResult struct {
	Status  QueryStatus
	Samples []types.BasePerfEntityMetricBase
	Err     error
}

// QuerySpec selects counters of one entity over a time window. A zero Start
// or End leaves that side of the window open.
type QuerySpec struct {
	Start      time.Time
	End        time.Time
	CounterIDs []int32
	Instance   string
	Entity     types.ManagedObjectReference
}

// Metrics queries performance counters. The counter catalog is read once.
type Metrics struct {
	perf    PerfManager
	catalog once[map[string]int32]
	log     *zap.SugaredLogger
}

func NewMetrics(perf PerfManager) *Metrics {
	return &Metrics{perf: perf, log: zap.S().Named("metrics")}
}

// Query runs a single real-time query. Failures are logged and reported
// through the result status.
func (m *Metrics) Query(ctx context.Context, q QuerySpec) QueryResult {
	spec := types.PerfQuerySpec{
		Entity:     q.Entity,
		IntervalId: realtimeInterval,
	}
	if !q.Start.IsZero() {
		start := q.Start
		spec.StartTime = &start
	}
	if !q.End.IsZero() {
		end := q.End
		spec.EndTime = &end
	}
	for _, id := range q.CounterIDs {
		spec.MetricId = append(spec.MetricId, types.PerfMetricId{CounterId: id, Instance: q.Instance})
	}

	samples, err := m.perf.Query(ctx, []types.PerfQuerySpec{spec})
	if err != nil {
		m.log.Errorf("performance query for %s failed: %v", q.Entity, err)
		return QueryResult{Status: QueryFailed, Err: err}
	}
	if len(samples) == 0 {
		return QueryResult{Status: QueryEmpty}
	}
	m.log.Debugf("performance query for %s returned %d entities", q.Entity, len(samples))
	return QueryResult{Status: QueryOK, Samples: samples}
}

// CounterCatalog maps "group.name.rollup" (e.g. "cpu.usage.average") to the
// counter key.
func (m *Metrics) CounterCatalog(ctx context.Context) (map[string]int32, error) {
	return m.catalog.get(func() (map[string]int32, error) {
		counters, err := m.perf.CounterInfo(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read performance counters: %w", err)
		}
		catalog := make(map[string]int32, len(counters))
		for _, c := range counters {
			catalog[counterName(c)] = c.Key
		}
		return catalog, nil
	})
}

// CounterIDs resolves catalog names to counter keys.
func (m *Metrics) CounterIDs(ctx context.Context, names []string) ([]int32, error) {
	catalog, err := m.CounterCatalog(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int32, 0, len(names))
	for _, name := range names {
		id, ok := catalog[name]
		if !ok {
			return nil, NewNotFoundError("counter", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func counterName(c types.PerfCounterInfo) string {
	return fmt.Sprintf("%s.%s.%s", descriptionKey(c.GroupInfo), descriptionKey(c.NameInfo), c.RollupType)
}

func descriptionKey(d types.BaseElementDescription) string {
	if d == nil {
		return ""
	}
	return d.GetElementDescription().Key
}

// Sample is one value of one counter instance at one point in time.
type Sample struct {
	Entity    string    `json:"entity"`
	CounterID int32     `json:"counter_id"`
	Instance  string    `json:"instance"`
	Timestamp time.Time `json:"timestamp"`
	Interval  int32     `json:"interval"`
	Value     int64     `json:"value"`
}

// Flatten turns query output into one sample per counter, instance and
// timestamp. Series that are not integer series are ignored.
func Flatten(results []types.BasePerfEntityMetricBase) []Sample {
	samples := []Sample{}
	for _, r := range results {
		metric, ok := r.(*types.PerfEntityMetric)
		if !ok {
			continue
		}
		for _, v := range metric.Value {
			series, ok := v.(*types.PerfMetricIntSeries)
			if !ok {
				continue
			}
			for i, value := range series.Value {
				if i >= len(metric.SampleInfo) {
					break
				}
				info := metric.SampleInfo[i]
				samples = append(samples, Sample{
					Entity:    metric.Entity.Value,
					CounterID: series.Id.CounterId,
					Instance:  series.Id.Instance,
					Timestamp: info.Timestamp,
					Interval:  info.Interval,
					Value:     value,
				})
			}
		}
	}
	return samples
}
