package upload

import "github.com/prometheus/client_golang/prometheus"

var mActiveUploads = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "riakcs",
	Subsystem: "upload",
	Name:      "active_uploads",
	Help:      "Number of uploads currently holding writers.",
})

var mBlocksWritten = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "riakcs",
	Subsystem: "upload",
	Name:      "blocks_written_total",
	Help:      "Count of block writes acknowledged by writers.",
})

func init() {
	prometheus.MustRegister(mActiveUploads, mBlocksWritten)
}
