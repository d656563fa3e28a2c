package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request gate metrics
var (
	GateWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gate_wait_duration_seconds",
		Help:    "Time spent waiting for a request permit",
		Buckets: prometheus.DefBuckets,
	})

	GateInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gate_in_flight_requests",
		Help: "The number of permits currently held",
	})
)

// RPC metrics
var (
	RPCRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rpc_requests_total",
		Help: "The total number of RPC requests issued",
	}, []string{"method"})

	RPCRequestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rpc_request_errors_total",
		Help: "The total number of RPC requests that failed",
	}, []string{"method"})

	RPCRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rpc_request_duration_seconds",
		Help:    "Round trip time of RPC requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

// Collection metrics
var (
	GasUsedFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gas_used_fallbacks_total",
		Help: "The number of blocks whose gas used had to be fetched per transaction",
	})

	RowsCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collected_rows_total",
		Help: "The total number of rows emitted per dataset",
	}, []string{"dataset"})

	ChunksCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collected_chunks_total",
		Help: "The total number of chunks collected per dataset",
	}, []string{"dataset"})

	ChunkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chunk_errors_total",
		Help: "The total number of chunks that failed per dataset",
	}, []string{"dataset"})

	ChunkDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chunk_duration_seconds",
		Help:    "Time taken to extract and transform one chunk",
		Buckets: prometheus.DefBuckets,
	}, []string{"dataset"})
)

// Sink metrics
var (
	FilesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sink_files_written_total",
		Help: "The number of parquet files written per dataset",
	}, []string{"dataset"})

	FilesUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sink_files_uploaded_total",
		Help: "The number of parquet files uploaded to S3",
	})
)
