package vsphere

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/vmware/govmomi/vim25/types"
)

type fakePerf struct {
	specs       []types.PerfQuerySpec
	result      []types.BasePerfEntityMetricBase
	err         error
	counters    []types.PerfCounterInfo
	counterErr  error
	counterHits int
}

func (f *fakePerf) Query(_ context.Context, spec []types.PerfQuerySpec) ([]types.BasePerfEntityMetricBase, error) {
	f.specs = append(f.specs, spec...)
	return f.result, f.err
}

func (f *fakePerf) CounterInfo(context.Context) ([]types.PerfCounterInfo, error) {
	f.counterHits++
	return f.counters, f.counterErr
}

func counter(key int32, group, name string, rollup types.PerfSummaryType) types.PerfCounterInfo {
	return types.PerfCounterInfo{
		Key:        key,
		GroupInfo:  &types.ElementDescription{Key: group},
		NameInfo:   &types.ElementDescription{Key: name},
		RollupType: rollup,
	}
}

var _ = Describe("Metrics", func() {
	var (
		perf    *fakePerf
		metrics *Metrics
	)
	entity := ref(KindVirtualMachine, "vm-42")
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	BeforeEach(func() {
		perf = &fakePerf{
			counters: []types.PerfCounterInfo{
				counter(2, "cpu", "usage", types.PerfSummaryTypeAverage),
				counter(24, "mem", "usage", types.PerfSummaryTypeAverage),
				counter(143, "net", "usage", types.PerfSummaryTypeMaximum),
			},
		}
		metrics = NewMetrics(perf)
	})

	Context("query", func() {
		It("builds one real-time spec", func() {
			perf.result = []types.BasePerfEntityMetricBase{&types.PerfEntityMetric{}}

			res := metrics.Query(context.TODO(), QuerySpec{
				Start:      start,
				End:        start.Add(time.Hour),
				CounterIDs: []int32{2, 24},
				Instance:   "*",
				Entity:     entity,
			})
			Expect(res.Status).To(Equal(QueryOK))
			Expect(res.Samples).To(HaveLen(1))
			Expect(res.Err).To(BeNil())

			Expect(perf.specs).To(HaveLen(1))
			spec := perf.specs[0]
			Expect(spec.IntervalId).To(Equal(int32(20)))
			Expect(spec.Entity).To(Equal(entity))
			Expect(*spec.StartTime).To(Equal(start))
			Expect(*spec.EndTime).To(Equal(start.Add(time.Hour)))
			Expect(spec.MetricId).To(Equal([]types.PerfMetricId{
				{CounterId: 2, Instance: "*"},
				{CounterId: 24, Instance: "*"},
			}))
		})

		It("leaves an open window unbounded", func() {
			metrics.Query(context.TODO(), QuerySpec{CounterIDs: []int32{2}, Entity: entity})
			Expect(perf.specs[0].StartTime).To(BeNil())
			Expect(perf.specs[0].EndTime).To(BeNil())
		})

		It("reports an empty result", func() {
			res := metrics.Query(context.TODO(), QuerySpec{CounterIDs: []int32{2}, Entity: entity})
			Expect(res.Status).To(Equal(QueryEmpty))
			Expect(res.Err).To(BeNil())
		})

		It("reports a failed query without raising", func() {
			perf.err = errors.New("invalid argument: startTime")
			res := metrics.Query(context.TODO(), QuerySpec{CounterIDs: []int32{2}, Entity: entity})
			Expect(res.Status).To(Equal(QueryFailed))
			Expect(res.Err).To(MatchError("invalid argument: startTime"))
			Expect(res.Status.String()).To(Equal("failed"))
		})
	})

	Context("counter catalog", func() {
		It("keys counters by group, name and rollup", func() {
			catalog, err := metrics.CounterCatalog(context.TODO())
			Expect(err).To(BeNil())
			Expect(catalog).To(Equal(map[string]int32{
				"cpu.usage.average": 2,
				"mem.usage.average": 24,
				"net.usage.maximum": 143,
			}))
		})

		It("is read once", func() {
			_, _ = metrics.CounterCatalog(context.TODO())
			_, _ = metrics.CounterCatalog(context.TODO())
			Expect(perf.counterHits).To(Equal(1))
		})

		It("retries after a failure", func() {
			perf.counterErr = errors.New("timeout")
			_, err := metrics.CounterCatalog(context.TODO())
			Expect(err).NotTo(BeNil())

			perf.counterErr = nil
			_, err = metrics.CounterCatalog(context.TODO())
			Expect(err).To(BeNil())
			Expect(perf.counterHits).To(Equal(2))
		})

		It("resolves names to ids", func() {
			ids, err := metrics.CounterIDs(context.TODO(), []string{"mem.usage.average", "cpu.usage.average"})
			Expect(err).To(BeNil())
			Expect(ids).To(Equal([]int32{24, 2}))

			_, err = metrics.CounterIDs(context.TODO(), []string{"disk.read.average"})
			var nf *NotFoundError
			Expect(errors.As(err, &nf)).To(BeTrue())
		})
	})

	Context("flatten", func() {
		It("emits one sample per value", func() {
			samples := Flatten([]types.BasePerfEntityMetricBase{
				&types.PerfEntityMetric{
					PerfEntityMetricBase: types.PerfEntityMetricBase{Entity: entity},
					SampleInfo: []types.PerfSampleInfo{
						{Timestamp: start, Interval: 20},
						{Timestamp: start.Add(20 * time.Second), Interval: 20},
					},
					Value: []types.BasePerfMetricSeries{
						&types.PerfMetricIntSeries{
							PerfMetricSeries: types.PerfMetricSeries{Id: types.PerfMetricId{CounterId: 2}},
							Value:            []int64{150, 175},
						},
					},
				},
			})
			Expect(samples).To(Equal([]Sample{
				{Entity: "vm-42", CounterID: 2, Timestamp: start, Interval: 20, Value: 150},
				{Entity: "vm-42", CounterID: 2, Timestamp: start.Add(20 * time.Second), Interval: 20, Value: 175},
			}))
		})

		It("returns an empty list for nothing", func() {
			Expect(Flatten(nil)).To(BeEmpty())
			Expect(Flatten(nil)).NotTo(BeNil())
		})
	})
})
