package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// Sources supplies scrape-time gauge values. Nil funcs report 0.
type Sources struct {
	Recordings   func() int    // library size
	ImportQueue  func() int    // pending import jobs
	UploadQueue  func() int    // pending backup uploads
	PostgresPool *pgxpool.Pool // kv pool when the postgres backend is used
}

// Collector reads live gauges at scrape time.
type Collector struct {
	src Sources

	recordings   *prometheus.Desc
	importQueue  *prometheus.Desc
	uploadQueue  *prometheus.Desc
	dbTotalConns *prometheus.Desc
	dbIdleConns  *prometheus.Desc
}

func NewCollector(src Sources) *Collector {
	return &Collector{
		src: src,
		recordings: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "recordings"),
			"Recordings in the library.",
			nil, nil,
		),
		importQueue: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "import", "queue_pending"),
			"Import jobs waiting for a worker.",
			nil, nil,
		),
		uploadQueue: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "upload", "queue_pending"),
			"Backup uploads waiting for a worker.",
			nil, nil,
		),
		dbTotalConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "total_conns"),
			"Total database pool connections.",
			nil, nil,
		),
		dbIdleConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "idle_conns"),
			"Database pool idle connections.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.recordings
	ch <- c.importQueue
	ch <- c.uploadQueue
	ch <- c.dbTotalConns
	ch <- c.dbIdleConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.recordings, prometheus.GaugeValue, value(c.src.Recordings))
	ch <- prometheus.MustNewConstMetric(c.importQueue, prometheus.GaugeValue, value(c.src.ImportQueue))
	ch <- prometheus.MustNewConstMetric(c.uploadQueue, prometheus.GaugeValue, value(c.src.UploadQueue))

	var total, idle float64
	if c.src.PostgresPool != nil {
		stat := c.src.PostgresPool.Stat()
		total = float64(stat.TotalConns())
		idle = float64(stat.IdleConns())
	}
	ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, total)
	ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, idle)
}

func value(f func() int) float64 {
	if f == nil {
		return 0
	}
	return float64(f())
}
