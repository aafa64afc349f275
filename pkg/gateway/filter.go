package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Response interface {
	IsEnd() bool
}

type Next struct{}

func (n Next) IsEnd() bool {
	return false
}

type End struct{}

func (e End) IsEnd() bool {
	return true
}

type Filter interface {
	Run(d *Data) (Response, error)
	Type() string
}

// Chain runs filters in order until one ends the request or fails.
type Chain struct {
	filters                []Filter
	metricErrorCount       *prometheus.CounterVec
	metricRunDuration      prometheus.Histogram
	metricRequestCount     *prometheus.CounterVec
	metricContextCancelled *prometheus.CounterVec
}

func NewChain(reg prometheus.Registerer) *Chain {
	c := &Chain{
		filters: make([]Filter, 0),
		metricErrorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "s3gw_filter_error_count",
			Help: "Number of errors encountered in filters",
		}, []string{"filter"}),
		metricRunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "s3gw_filter_run_duration_seconds",
			Help:    "Duration of filter runs in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		metricRequestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "s3gw_filter_request_count",
			Help: "Number of requests processed by filters",
		}, []string{"filter"}),
		metricContextCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "s3gw_filter_context_cancelled_count",
			Help: "Number of times filter context was cancelled",
		}, []string{"filter"}),
	}
	if reg != nil {
		reg.MustRegister(c.metricErrorCount, c.metricRunDuration, c.metricRequestCount, c.metricContextCancelled)
	}
	return c
}

func (c *Chain) AddFilter(f Filter) {
	c.filters = append(c.filters, f)
}

// Run returns the type of the filter that stopped the chain, if any.
func (c *Chain) Run(d *Data) (string, error) {
	for _, filter := range c.filters {
		t := time.Now()
		resp, err := filter.Run(d)
		c.metricRunDuration.Observe(time.Since(t).Seconds())
		c.metricRequestCount.WithLabelValues(filter.Type()).Inc()

		if d.Ctx.Err() != nil {
			c.metricContextCancelled.WithLabelValues(filter.Type()).Inc()
			return filter.Type(), d.Ctx.Err()
		}

		if err != nil {
			c.metricErrorCount.WithLabelValues(filter.Type()).Inc()
			return filter.Type(), err
		}
		if resp.IsEnd() {
			return filter.Type(), nil
		}
	}
	return "", nil
}
