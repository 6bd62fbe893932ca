package metrics

import (
	dmlog "github.com/nao1215/deskmaster/internal/log"
	"github.com/nao1215/deskmaster/internal/model"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "deskmaster"

// Metrics bundles the Prometheus collectors for a DeskMaster process.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	EventsTotal     *prometheus.CounterVec
	Candidates      prometheus.Counter
	TabsOpened      prometheus.Counter
	OpenFailures    prometheus.Counter
	TabsClosed      prometheus.Counter
	PruneRounds     prometheus.Counter
	PageMoves       prometheus.Counter
	CaptchaOutcomes *prometheus.CounterVec
	Errors          prometheus.Counter
	Sessions        *prometheus.CounterVec
	SessionDuration prometheus.Histogram
}

// New constructs and registers all collectors on a dedicated registry.
func New() *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
	}

	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Session log events by name.",
			},
			[]string{"event"},
		),
		Candidates:   counter("candidates_total", "Listings that passed the review threshold."),
		TabsOpened:   counter("tabs_opened_total", "Detail tabs opened."),
		OpenFailures: counter("tab_open_failures_total", "Listings that failed to open in a new tab."),
		TabsClosed:   counter("tabs_closed_total", "Detail tabs closed as external malls."),
		PruneRounds:  counter("prune_rounds_total", "Times the tab budget forced tabs to close."),
		PageMoves:    counter("page_moves_total", "Successful moves to the next result page."),
		CaptchaOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "captcha_total",
				Help:      "CAPTCHA challenges by outcome.",
			},
			[]string{"outcome"},
		),
		Errors: counter("errors_total", "Error events written to the session log."),
		Sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_total",
				Help:      "Finished sessions by status.",
			},
			[]string{"status"},
		),
		SessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Wall time of finished sessions.",
			Buckets:   prometheus.ExponentialBuckets(30, 2, 10),
		}),
	}

	m.Registry.MustRegister(
		m.EventsTotal,
		m.Candidates,
		m.TabsOpened,
		m.OpenFailures,
		m.TabsClosed,
		m.PruneRounds,
		m.PageMoves,
		m.CaptchaOutcomes,
		m.Errors,
		m.Sessions,
		m.SessionDuration,
	)
	return m
}

// Observe counts one session log event.
// It matches the recorder's event hook signature.
func (m *Metrics) Observe(event, phase string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(event).Inc()

	switch event {
	case dmlog.EventCandidateFound:
		m.Candidates.Inc()
	case dmlog.EventOpenTabOK:
		m.TabsOpened.Inc()
	case dmlog.EventOpenTabFail:
		m.OpenFailures.Inc()
	case dmlog.EventTabClosed:
		m.TabsClosed.Inc()
	case dmlog.EventTabPruned:
		m.PruneRounds.Inc()
	case dmlog.EventPageMove:
		if phase == dmlog.PhaseOK {
			m.PageMoves.Inc()
		}
	case dmlog.EventCaptchaDetected:
		m.CaptchaOutcomes.WithLabelValues("detected").Inc()
	case dmlog.EventCaptchaSolveOK:
		m.CaptchaOutcomes.WithLabelValues(string(model.CaptchaAutoSolved)).Inc()
	case dmlog.EventCaptchaSolveFail:
		m.CaptchaOutcomes.WithLabelValues("solve-failed").Inc()
	case dmlog.EventResume:
		m.CaptchaOutcomes.WithLabelValues("manual-handover").Inc()
	case dmlog.EventError:
		m.Errors.Inc()
	}
}

// ObserveSession records how a session ended.
func (m *Metrics) ObserveSession(s *model.Summary) {
	if m == nil || s == nil {
		return
	}
	m.Sessions.WithLabelValues(string(s.Status)).Inc()
	if d := s.Duration(); d > 0 {
		m.SessionDuration.Observe(d.Seconds())
	}
}
