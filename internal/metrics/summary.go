package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Stats is a coarse rollup of the registered metrics, used by the /stats
// admin command.
type Stats struct {
	Requests     int64
	Errors       int64
	AvgLatencyMs float64
}

// Snapshot gathers the default registry and rolls up request, error and
// latency figures.
func Snapshot() (Stats, error) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, family := range families {
		switch family.GetName() {
		case "gigabot_requests_total":
			for _, m := range family.GetMetric() {
				stats.Requests += int64(m.GetCounter().GetValue())
			}
		case "gigabot_errors_total":
			for _, m := range family.GetMetric() {
				stats.Errors += int64(m.GetCounter().GetValue())
			}
		case "gigabot_chat_latency_ms":
			for _, m := range family.GetMetric() {
				h := m.GetHistogram()
				if h.GetSampleCount() > 0 {
					stats.AvgLatencyMs = h.GetSampleSum() / float64(h.GetSampleCount())
				}
			}
		}
	}
	return stats, nil
}
