package shm

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// accessor metrics
	SegmentWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shm",
		Subsystem: "accessor",
		Name:      "writes_total",
		Help:      "committed block writes",
	}, []string{"block"})
	SegmentReads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shm",
		Subsystem: "accessor",
		Name:      "reads_total",
		Help:      "consistent block reads",
	}, []string{"block"})

	// seqlock metrics
	ReadRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shm",
		Subsystem: "seqlock",
		Name:      "read_retries_total",
		Help:      "reads repeated because a write overlapped",
	})
	WriterWaits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shm",
		Subsystem: "seqlock",
		Name:      "writer_waits_total",
		Help:      "writes that found another write in progress",
	})
	TornReads = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shm",
		Subsystem: "seqlock",
		Name:      "torn_reads_total",
		Help:      "reads that gave up after exhausting retries",
	})

	// segment metrics
	SegmentFrame = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "shm",
		Subsystem: "segment",
		Name:      "frame",
		Help:      "last frame counter value observed by this process",
	}, []string{"key"})
	HeaderMismatches = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shm",
		Subsystem: "segment",
		Name:      "header_mismatch_total",
		Help:      "CheckHeader calls that rejected the segment",
	})
)

func init() {
	prometheus.MustRegister(SegmentWrites)
	prometheus.MustRegister(SegmentReads)
	prometheus.MustRegister(ReadRetries)
	prometheus.MustRegister(WriterWaits)
	prometheus.MustRegister(TornReads)
	prometheus.MustRegister(SegmentFrame)
	prometheus.MustRegister(HeaderMismatches)
}
