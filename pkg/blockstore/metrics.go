package blockstore

import "github.com/prometheus/client_golang/prometheus"

var mObjectOps = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "riakcs",
	Subsystem: "blockstore",
	Name:      "object_operations_total",
	Help:      "Count of backend object operations by operation and routing path.",
}, []string{"op", "path"})

var mFoldOps = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "riakcs",
	Subsystem: "blockstore",
	Name:      "fold_operations_total",
	Help:      "Count of started fold traversals by fold kind.",
}, []string{"kind"})

func init() {
	prometheus.MustRegister(mObjectOps, mFoldOps)
}
