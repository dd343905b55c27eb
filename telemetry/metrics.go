// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MarksTotal           prometheus.Counter
	MarkRejectionsTotal  prometheus.Counter
	EventsAppendedTotal  prometheus.Counter
	ReportsBuiltTotal    prometheus.Counter
	RemindersSentTotal   prometheus.Counter
	ReminderSendFailures prometheus.Counter

	// Histograms
	ReportChunksHist prometheus.Observer
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MarksTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "attendance_marks_total", Help: "Number of successful mark-all actions"})
		MarkRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "attendance_mark_rejections_total", Help: "Number of mark-all actions rejected (wrong channel, missing role, empty voice channel)"})
		EventsAppendedTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "attendance_events_appended_total", Help: "Number of attendance events written to the store"})
		ReportsBuiltTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "attendance_reports_built_total", Help: "Number of reports rendered"})
		RemindersSentTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "reminders_sent_total", Help: "Number of reminder messages delivered"})
		ReminderSendFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "reminder_send_failures_total", Help: "Number of reminder deliveries that failed"})
		ReportChunksHist = promauto.NewHistogram(prometheus.HistogramOpts{Name: "attendance_report_chunks", Help: "Chunks per rendered report", Buckets: []float64{1, 2, 3, 4, 5, 6}})
	})
}

// IncMark records one successful mark-all action.
func IncMark() {
	if MarksTotal != nil {
		MarksTotal.Inc()
	}
}

// IncMarkRejection records one rejected mark-all action.
func IncMarkRejection() {
	if MarkRejectionsTotal != nil {
		MarkRejectionsTotal.Inc()
	}
}

// AddEventsAppended records n appended attendance events.
func AddEventsAppended(n int) {
	if EventsAppendedTotal != nil {
		EventsAppendedTotal.Add(float64(n))
	}
}

// IncReportBuilt records one rendered report.
func IncReportBuilt() {
	if ReportsBuiltTotal != nil {
		ReportsBuiltTotal.Inc()
	}
}

// ObserveReportChunks records how many chunks a report produced.
func ObserveReportChunks(n int) {
	if ReportChunksHist != nil {
		ReportChunksHist.Observe(float64(n))
	}
}

// IncReminderSent records one delivered reminder.
func IncReminderSent() {
	if RemindersSentTotal != nil {
		RemindersSentTotal.Inc()
	}
}

// IncReminderSendFailure records one failed reminder delivery.
func IncReminderSendFailure() {
	if ReminderSendFailures != nil {
		ReminderSendFailures.Inc()
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
