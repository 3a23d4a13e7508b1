package pusher

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PushStatus is the outcome of the last completed push.
type PushStatus int

const (
	StatusNone PushStatus = iota
	StatusSuccess
	StatusInterruption
	StatusFailure
)

func (s PushStatus) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusInterruption:
		return "INTERRUPTION"
	case StatusFailure:
		return "FAILURE"
	default:
		return "NONE"
	}
}

// Journal holds the process-wide counters and sliding-window stats:
// total/unique pushed identifiers, total/unique served requests split by
// GSA-origin vs other, per-minute/hour/day request-rate windows, one
// request-latency histogram for all requests (the windows count requests
// and do not record latency), and the status of the last completed push.
//
// Counters are sync/atomic; the sliding windows and the push status are
// updated under mu.
type Journal struct {
	totalPushed  int64
	uniquePushed int64
	pushedSeen   sync.Map // docId -> struct{}, for the unique-pushed count

	totalServedGSA   int64
	totalServedOther int64
	uniqueServed     int64
	servedSeen       sync.Map

	mu                sync.Mutex
	lastPushStart     time.Time
	lastPushEnd       time.Time
	lastPushStatus    PushStatus
	minuteWindow      *slidingWindow
	hourWindow        *slidingWindow
	dayWindow         *slidingWindow

	pushedGauge  prometheus.Gauge
	servedGauge  *prometheus.GaugeVec
	latencyHisto prometheus.Histogram
}

// NewJournal builds an empty Journal and registers its metrics with reg (nil
// uses the default registerer).
func NewJournal(reg prometheus.Registerer) *Journal {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	j := &Journal{
		minuteWindow: newSlidingWindow(time.Minute, 60),
		hourWindow:   newSlidingWindow(time.Hour, 60),
		dayWindow:    newSlidingWindow(24*time.Hour, 144),
		pushedGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gsa_adaptor_pushed_total",
			Help: "Total identifiers pushed to the appliance.",
		}),
		servedGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gsa_adaptor_requests_served_total",
			Help: "Total document requests served, by caller origin.",
		}, []string{"origin"}),
		latencyHisto: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gsa_adaptor_request_latency_seconds",
			Help:    "Document request processing latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(j.pushedGauge, j.servedGauge, j.latencyHisto)
	return j
}

// RecordPushed records one identifier pushed in a feed batch.
func (j *Journal) RecordPushed(docID string) {
	atomic.AddInt64(&j.totalPushed, 1)
	j.pushedGauge.Inc()
	if _, loaded := j.pushedSeen.LoadOrStore(docID, struct{}{}); !loaded {
		atomic.AddInt64(&j.uniquePushed, 1)
	}
}

// RecordServed records one document request served, with its processing
// latency, in the appropriate sliding windows.
func (j *Journal) RecordServed(docID string, fromGSA bool, latency time.Duration) {
	origin := "other"
	if fromGSA {
		atomic.AddInt64(&j.totalServedGSA, 1)
		origin = "gsa"
	} else {
		atomic.AddInt64(&j.totalServedOther, 1)
	}
	j.servedGauge.WithLabelValues(origin).Inc()
	j.latencyHisto.Observe(latency.Seconds())
	if _, loaded := j.servedSeen.LoadOrStore(docID, struct{}{}); !loaded {
		atomic.AddInt64(&j.uniqueServed, 1)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.minuteWindow.record(latency)
	j.hourWindow.record(latency)
	j.dayWindow.record(latency)
}

// RecordPushStart marks the beginning of a push.
func (j *Journal) RecordPushStart(t time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lastPushStart = t
}

// RecordPushEnd marks a push's completion and its outcome.
func (j *Journal) RecordPushEnd(t time.Time, status PushStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lastPushEnd = t
	j.lastPushStatus = status
}

// Snapshot is a point-in-time read of Journal's counters, used by the
// dashboard status panel.
type Snapshot struct {
	TotalPushed      int64
	UniquePushed     int64
	TotalServedGSA   int64
	TotalServedOther int64
	UniqueServed     int64
	LastPushStart    time.Time
	LastPushEnd      time.Time
	LastPushStatus   PushStatus
	MinuteRate       float64
	HourRate         float64
	DayRate          float64
}

// Snapshot returns a consistent read of all counters and window rates.
func (j *Journal) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		TotalPushed:      atomic.LoadInt64(&j.totalPushed),
		UniquePushed:     atomic.LoadInt64(&j.uniquePushed),
		TotalServedGSA:   atomic.LoadInt64(&j.totalServedGSA),
		TotalServedOther: atomic.LoadInt64(&j.totalServedOther),
		UniqueServed:     atomic.LoadInt64(&j.uniqueServed),
		LastPushStart:    j.lastPushStart,
		LastPushEnd:      j.lastPushEnd,
		LastPushStatus:   j.lastPushStatus,
		MinuteRate:       j.minuteWindow.rate(),
		HourRate:         j.hourWindow.rate(),
		DayRate:          j.dayWindow.rate(),
	}
}

// slidingWindow buckets counts over a fixed span divided into equal buckets,
// e.g. 60 one-minute buckets covering the last hour.
type slidingWindow struct {
	span    time.Duration
	buckets []int64
	bucketW time.Duration
	start   time.Time
}

func newSlidingWindow(span time.Duration, numBuckets int) *slidingWindow {
	return &slidingWindow{
		span:    span,
		buckets: make([]int64, numBuckets),
		bucketW: span / time.Duration(numBuckets),
		start:   time.Time{},
	}
}

func (w *slidingWindow) record(time.Duration) {
	now := timeNow()
	if w.start.IsZero() {
		w.start = now
	}
	idx := int(now.Sub(w.start)/w.bucketW) % len(w.buckets)
	if idx < 0 {
		idx = 0
	}
	w.buckets[idx]++
}

func (w *slidingWindow) rate() float64 {
	var total int64
	for _, b := range w.buckets {
		total += b
	}
	return float64(total) / w.span.Seconds()
}

// timeNow is a seam for deterministic tests.
var timeNow = time.Now
