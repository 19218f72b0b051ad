package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const ServiceName = "refresher"

var (
	// HTTP request metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code", "service"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "service"},
	)

	// Pipeline metrics
	CrawlCandidates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refresher_crawl_candidates_total",
			Help: "Total number of article candidates collected from listing pages",
		},
	)

	IngestedArticles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresher_ingested_articles_total",
			Help: "Total number of crawled articles by ingest status",
		},
		[]string{"status"},
	)

	PipelineArticles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresher_pipeline_articles_total",
			Help: "Total number of articles by terminal augmentation stage",
		},
		[]string{"stage"},
	)

	// Outbound calls (listing/article fetch, search, scrape, rewrite)
	ExternalRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresher_external_requests_total",
			Help: "Total number of outbound requests",
		},
		[]string{"service", "status"},
	)

	ExternalRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refresher_external_request_duration_seconds",
			Help:    "Outbound request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"service"},
	)

	ApplicationInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "application_info",
			Help: "Application information",
		},
		[]string{"service", "version"},
	)
)

func Init(version string) {
	ApplicationInfo.WithLabelValues(ServiceName, version).Set(1)
}

// ObserveExternal records one outbound call. err == nil counts as success.
func ObserveExternal(service string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ExternalRequestsTotal.WithLabelValues(service, status).Inc()
	ExternalRequestDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
}

// PrometheusMiddleware collects request counts and latencies. The matched
// route template is used as the path label to keep cardinality bounded.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		statusCode := strconv.Itoa(c.Writer.Status())

		HttpRequestsTotal.WithLabelValues(method, path, statusCode, ServiceName).Inc()
		HttpRequestDuration.WithLabelValues(method, path, ServiceName).Observe(time.Since(start).Seconds())
	}
}
