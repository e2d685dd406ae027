package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type prometheusObserver struct {
	pendingGauge     prometheus.Gauge
	processingGauge  prometheus.Gauge
	enqueuedCounter  prometheus.Counter
	completedCounter prometheus.Counter
	failedCounter    prometheus.Counter
	retriedCounter   prometheus.Counter
	expiredCounter   prometheus.Counter
}

var (
	pendingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "staffdesk_queue_pending",
		Help: "Number of actions waiting in the queue",
	})
	processingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "staffdesk_queue_processing",
		Help: "Number of actions currently executing",
	})
	enqueuedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staffdesk_queue_enqueued_total",
		Help: "Total number of actions accepted into the queue",
	})
	completedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staffdesk_queue_completed_total",
		Help: "Total number of actions completed successfully",
	})
	failedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staffdesk_queue_failed_total",
		Help: "Total number of actions that failed permanently",
	})
	retriedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staffdesk_queue_retried_total",
		Help: "Total number of retry attempts scheduled",
	})
	expiredCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staffdesk_queue_expired_total",
		Help: "Total number of pending actions evicted by TTL",
	})
)

func NewPrometheusObserver() QueueObserver {
	return &prometheusObserver{
		pendingGauge:     pendingGauge,
		processingGauge:  processingGauge,
		enqueuedCounter:  enqueuedCounter,
		completedCounter: completedCounter,
		failedCounter:    failedCounter,
		retriedCounter:   retriedCounter,
		expiredCounter:   expiredCounter,
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func (p *prometheusObserver) SetPendingDepth(n int)    { p.pendingGauge.Set(float64(n)) }
func (p *prometheusObserver) SetProcessingDepth(n int) { p.processingGauge.Set(float64(n)) }
func (p *prometheusObserver) IncEnqueued()             { p.enqueuedCounter.Inc() }
func (p *prometheusObserver) IncCompleted()            { p.completedCounter.Inc() }
func (p *prometheusObserver) IncFailed()               { p.failedCounter.Inc() }
func (p *prometheusObserver) IncRetried()              { p.retriedCounter.Inc() }
func (p *prometheusObserver) IncExpired()              { p.expiredCounter.Inc() }
