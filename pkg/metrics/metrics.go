package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	vmwareManager = "vmware_manager"

	// Command metrics
	vmOperationsTotal = "vm_operations_total"

	// Session metrics
	connectionChecksTotal = "connection_checks_total"

	// Labels
	operationLabel = "operation"
	resultLabel    = "result"
)

const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultNotFound = "not_found"
)

var vmOperationsTotalLabels = []string{
	operationLabel,
	resultLabel,
}

var connectionChecksTotalLabels = []string{
	resultLabel,
}

/**
* Metrics definition
**/
var vmOperationsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: vmwareManager,
		Name:      vmOperationsTotal,
		Help:      "number of commands run against virtual machines",
	},
	vmOperationsTotalLabels,
)

var connectionChecksTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: vmwareManager,
		Name:      connectionChecksTotal,
		Help:      "number of vSphere connectivity checks",
	},
	connectionChecksTotalLabels,
)

// IncreaseVMOperationMetric counts one command. operation is a power
// operation name or "reconfigure".
func IncreaseVMOperationMetric(operation, result string) {
	labels := prometheus.Labels{
		operationLabel: operation,
		resultLabel:    result,
	}
	vmOperationsTotalMetric.With(labels).Inc()
}

func IncreaseConnectionCheckMetric(connected bool) {
	result := ResultSuccess
	if !connected {
		result = ResultFailure
	}
	connectionChecksTotalMetric.With(prometheus.Labels{resultLabel: result}).Inc()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(vmOperationsTotalMetric)
	prometheus.MustRegister(connectionChecksTotalMetric)
}
