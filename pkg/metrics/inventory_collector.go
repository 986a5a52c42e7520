package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const inventoryScrapeTimeout = 30 * time.Second

// InventoryStats summarizes the virtual machines of the connected endpoint.
type InventoryStats struct {
	Total        int
	Templates    int
	ByOS         map[string]int
	ByPowerState map[string]int
	ByCluster    map[string]int
}

type InventoryStatsProvider interface {
	InventoryStats(ctx context.Context) (InventoryStats, error)
}

type inventoryStatsCollector struct {
	provider         InventoryStatsProvider
	totalVm          *prometheus.Desc
	totalTemplates   *prometheus.Desc
	totalVmByOs      *prometheus.Desc
	totalVmByState   *prometheus.Desc
	totalVmByCluster *prometheus.Desc
	inventoryUp      *prometheus.Desc
}

// NewInventoryCollector returns a collector that reads the inventory on
// every scrape.
func NewInventoryCollector(p InventoryStatsProvider) prometheus.Collector {
	fqName := func(name string) string {
		return fmt.Sprintf("%s_inventory_%s", vmwareManager, name)
	}

	return &inventoryStatsCollector{
		provider: p,
		totalVm: prometheus.NewDesc(
			fqName("vms_total"),
			"Total number of vms.",
			nil,
			prometheus.Labels{},
		),
		totalTemplates: prometheus.NewDesc(
			fqName("templates_total"),
			"Total number of vms marked as template.",
			nil,
			prometheus.Labels{},
		),
		totalVmByOs: prometheus.NewDesc(
			fqName("vms_by_os_total"),
			"Total VMs by OS family",
			[]string{"os"},
			prometheus.Labels{},
		),
		totalVmByState: prometheus.NewDesc(
			fqName("vms_by_power_state_total"),
			"Total VMs by power state",
			[]string{"state"},
			prometheus.Labels{},
		),
		totalVmByCluster: prometheus.NewDesc(
			fqName("vms_by_cluster_total"),
			"Total VMs by cluster",
			[]string{"cluster"},
			prometheus.Labels{},
		),
		inventoryUp: prometheus.NewDesc(
			fqName("up"),
			"Whether the last inventory read succeeded.",
			nil,
			prometheus.Labels{},
		),
	}
}

func (c *inventoryStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalVm
	ch <- c.totalTemplates
	ch <- c.totalVmByOs
	ch <- c.totalVmByState
	ch <- c.totalVmByCluster
	ch <- c.inventoryUp
}

// Collect implements Collector.
func (c *inventoryStatsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), inventoryScrapeTimeout)
	defer cancel()

	stats, err := c.provider.InventoryStats(ctx)
	if err != nil {
		zap.S().Named("inventory_collector").Errorf("failed to collect inventory statistics: %s", err)
		ch <- prometheus.MustNewConstMetric(c.inventoryUp, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.inventoryUp, prometheus.GaugeValue, 1)
	ch <- prometheus.MustNewConstMetric(c.totalVm, prometheus.GaugeValue, float64(stats.Total))
	ch <- prometheus.MustNewConstMetric(c.totalTemplates, prometheus.GaugeValue, float64(stats.Templates))

	for osType, total := range stats.ByOS {
		ch <- prometheus.MustNewConstMetric(c.totalVmByOs, prometheus.GaugeValue, float64(total), osType)
	}

	for state, total := range stats.ByPowerState {
		ch <- prometheus.MustNewConstMetric(c.totalVmByState, prometheus.GaugeValue, float64(total), state)
	}

	for cluster, total := range stats.ByCluster {
		ch <- prometheus.MustNewConstMetric(c.totalVmByCluster, prometheus.GaugeValue, float64(total), cluster)
	}
}
