// Package metrics 宿主侧的 Prometheus 计数器
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultOK    = "ok"
	ResultError = "error"

	TransferNative = "native"
	TransferToken  = "token"
)

// Metrics 持有独立的 registry，避免污染全局 DefaultRegisterer
type Metrics struct {
	registry    *prometheus.Registry
	invocations *prometheus.CounterVec
	transfers   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "splitter_invocations_total",
			Help: "Number of split instructions executed, by command and result.",
		}, []string{"command", "result"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "splitter_transfers_total",
			Help: "Number of committed delegated transfers, by kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(m.invocations, m.transfers)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Invocations() *prometheus.CounterVec {
	return m.invocations
}

func (m *Metrics) Transfers() *prometheus.CounterVec {
	return m.transfers
}

// ObserveInvocation command 为空时记为 "unknown"（解码失败）
func (m *Metrics) ObserveInvocation(command string, err error) {
	if command == "" {
		command = "unknown"
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.invocations.WithLabelValues(command, result).Inc()
}

func (m *Metrics) AddTransfers(kind string, n int) {
	if n <= 0 {
		return
	}
	m.transfers.WithLabelValues(kind).Add(float64(n))
}

// WriteTextfile 以 node_exporter textfile 格式写出当前指标（批处理结束时调用）
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
