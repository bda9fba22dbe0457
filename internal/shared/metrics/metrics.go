package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	intakeStartedTotal      atomic.Uint64
	intakeCompletedTotal    atomic.Uint64
	intakeFailedTotal       atomic.Uint64
	pipelineStartedTotal    atomic.Uint64
	pipelineCompletedTotal  atomic.Uint64
	pipelineFailedTotal     atomic.Uint64
	extractionTimeoutsTotal atomic.Uint64
	jobsReceivedTotal       atomic.Uint64
	jobsCompletedTotal      atomic.Uint64
	jobsFailedTotal         atomic.Uint64
	jobsDroppedTotal        atomic.Uint64

	pipelineDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000})
)

// IncIntakeStarted increments the intake-job started counter.
func IncIntakeStarted() { intakeStartedTotal.Add(1) }

// IncIntakeCompleted increments the intake-job completed counter.
func IncIntakeCompleted() { intakeCompletedTotal.Add(1) }

// IncIntakeFailed increments the intake-job failed counter.
func IncIntakeFailed() { intakeFailedTotal.Add(1) }

// IncPipelineStarted increments the pipeline started counter.
func IncPipelineStarted() { pipelineStartedTotal.Add(1) }

// IncPipelineCompleted increments the pipeline completed counter.
func IncPipelineCompleted() { pipelineCompletedTotal.Add(1) }

// IncPipelineFailed increments the pipeline failed counter.
func IncPipelineFailed() { pipelineFailedTotal.Add(1) }

// IncExtractionTimeout increments the poll-window exhaustion counter.
func IncExtractionTimeout() { extractionTimeoutsTotal.Add(1) }

// IncJobsReceived increments the queue messages received counter.
func IncJobsReceived() { jobsReceivedTotal.Add(1) }

// IncJobsCompleted increments the queue messages processed counter.
func IncJobsCompleted() { jobsCompletedTotal.Add(1) }

// IncJobsFailed increments the queue message processing failure counter.
func IncJobsFailed() { jobsFailedTotal.Add(1) }

// IncJobsDropped increments the counter of unrecoverable messages deleted
// without processing.
func IncJobsDropped() { jobsDroppedTotal.Add(1) }

// ObservePipelineDurationMs records a pipeline run duration in milliseconds.
func ObservePipelineDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	pipelineDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "intake_started_total", "Total intake jobs started", intakeStartedTotal.Load())
	writeCounter(&buf, "intake_completed_total", "Total intake jobs completed", intakeCompletedTotal.Load())
	writeCounter(&buf, "intake_failed_total", "Total intake jobs failed", intakeFailedTotal.Load())
	writeCounter(&buf, "pipeline_started_total", "Total pipeline runs started", pipelineStartedTotal.Load())
	writeCounter(&buf, "pipeline_completed_total", "Total pipeline runs completed", pipelineCompletedTotal.Load())
	writeCounter(&buf, "pipeline_failed_total", "Total pipeline runs failed", pipelineFailedTotal.Load())
	writeCounter(&buf, "extraction_timeouts_total", "Total pipeline runs that exhausted the extraction poll window", extractionTimeoutsTotal.Load())
	writeCounter(&buf, "queue_jobs_received_total", "Total queue messages received by workers", jobsReceivedTotal.Load())
	writeCounter(&buf, "queue_jobs_completed_total", "Total queue messages processed successfully", jobsCompletedTotal.Load())
	writeCounter(&buf, "queue_jobs_failed_total", "Total queue messages whose processing failed", jobsFailedTotal.Load())
	writeCounter(&buf, "queue_jobs_dropped_total", "Total unrecoverable queue messages deleted without processing", jobsDroppedTotal.Load())
	writeHistogram(&buf, "pipeline_duration_ms", "Pipeline run duration in milliseconds", pipelineDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
