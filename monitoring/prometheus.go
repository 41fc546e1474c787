package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/mezonai/sequencer/logx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type TxRejectedReason string

var (
	TxMalformed       TxRejectedReason = "malformed"
	TxDuplicated      TxRejectedReason = "duplicated"
	TxSubmitFailed    TxRejectedReason = "submit_failed"
	TxExecutionFailed TxRejectedReason = "execution_failed"
	TxConfirmTimeout  TxRejectedReason = "confirmation_timeout"
	TxAttemptsExpired TxRejectedReason = "attempts_expired"
	TxRejectedUnknown TxRejectedReason = "other"
)

type ReplayResult string

var (
	ReplayApplied          ReplayResult = "applied"
	ReplayTxFailed         ReplayResult = "tx_failed"
	ReplaySequenceMismatch ReplayResult = "sequence_violation"
	ReplayHashMismatch     ReplayResult = "hash_mismatch"
)

type sequencerPromMetrics struct {
	nodeUpUnixSeconds prometheus.Gauge
	poolSize          prometheus.Gauge
	slotHeight        prometheus.Gauge
	blockTime         prometheus.Histogram
	txInBlock         prometheus.Histogram
	commitLatency     prometheus.Histogram
	ticksSent         *prometheus.CounterVec
	tickErrors        *prometheus.CounterVec
	rejectedTxCount   *prometheus.CounterVec
	ingressTxCount    *prometheus.CounterVec
	replayedBlocks    *prometheus.CounterVec
	panicCount        prometheus.Counter
}

func newSequencerPromMetrics() *sequencerPromMetrics {
	return &sequencerPromMetrics{
		nodeUpUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sequencer_up_timestamp_unix_seconds",
				Help: "Unix timestamp of the sequencer start",
			},
		),
		poolSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sequencer_pool_size",
				Help: "The total pending transactions staged in the transaction pool",
			},
		),
		slotHeight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sequencer_slot_height",
				Help: "The current slot of the block engine",
			},
		),
		blockTime: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name: "sequencer_block_time",
				Help: "Duration in second spent producing one block",
			},
		),
		txInBlock: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sequencer_tx_in_block",
				Help:    "Number of committed tx in block",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		commitLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name: "sequencer_commit_latency",
				Help: "Latency in second from submission until the engine reports the tx processed",
			},
		),
		ticksSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sequencer_ticks_sent",
				Help: "The total number of clock ticks acknowledged by the engine",
			},
			[]string{"transport"},
		),
		tickErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sequencer_tick_errors",
				Help: "The total number of failed clock ticks",
			},
			[]string{"transport", "reason"},
		),
		rejectedTxCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sequencer_rejected_tx_count",
				Help: "The total number of rejected transactions",
			},
			[]string{"reason"},
		),
		ingressTxCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sequencer_ingress_tx_count",
				Help: "The total number of transactions received from clients",
			},
			[]string{"source"},
		),
		replayedBlocks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sequencer_replayed_blocks",
				Help: "The total number of replayed blocks by outcome",
			},
			[]string{"result"},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sequencer_panic_count",
				Help: "The total number of recovered panics",
			},
		),
	}
}

var (
	initOnce sync.Once
	metrics  *sequencerPromMetrics
)

// InitMetrics registers the collectors with the default registry. Safe to call
// more than once; every setter calls it lazily.
func InitMetrics() {
	initOnce.Do(func() {
		metrics = newSequencerPromMetrics()
		metrics.nodeUpUnixSeconds.SetToCurrentTime()
	})
}

func m() *sequencerPromMetrics {
	InitMetrics()
	return metrics
}

func RegisterMetrics(mux *http.ServeMux) {
	InitMetrics()
	logx.Info("METRICS", "Registering prometheus metrics")
	mux.Handle("/metrics", promhttp.Handler())
}

func SetPoolSize(size int) {
	m().poolSize.Set(float64(size))
}

func SetSlotHeight(slot uint64) {
	m().slotHeight.Set(float64(slot))
}

func RecordBlockTime(duration time.Duration) {
	m().blockTime.Observe(duration.Seconds())
}

func RecordTxInBlock(txCount int) {
	m().txInBlock.Observe(float64(txCount))
}

func RecordCommitLatency(duration time.Duration) {
	m().commitLatency.Observe(duration.Seconds())
}

func IncreaseTickCount(transport string) {
	m().ticksSent.With(prometheus.Labels{"transport": transport}).Inc()
}

func IncreaseTickError(transport, reason string) {
	m().tickErrors.With(prometheus.Labels{"transport": transport, "reason": reason}).Inc()
}

func RecordRejectedTx(reason TxRejectedReason) {
	m().rejectedTxCount.With(prometheus.Labels{
		"reason": string(reason),
	}).Inc()
}

func IncreaseIngressTxCount(source string) {
	m().ingressTxCount.With(prometheus.Labels{"source": source}).Inc()
}

func RecordReplay(result ReplayResult) {
	m().replayedBlocks.With(prometheus.Labels{"result": string(result)}).Inc()
}

func IncreasePanicCount() {
	m().panicCount.Inc()
}
