// Package metrics exports watch polls as Prometheus gauges and counters.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/sigreer/sesdiag/internal/enclosure"
)

var elementLabels = []string{"device", "type", "group", "index"}

// Exporter holds the collectors of one watch run. It implements
// enclosure.Sink.
type Exporter struct {
	reg *prometheus.Registry
	log logrus.FieldLogger

	elementStatus *prometheus.GaugeVec
	predictedFail *prometheus.GaugeVec
	temperature   *prometheus.GaugeVec
	volts         *prometheus.GaugeVec
	amps          *prometheus.GaugeVec
	fanRPM        *prometheus.GaugeVec
	enclosureFlag *prometheus.GaugeVec
	generation    *prometheus.GaugeVec
	polls         *prometheus.CounterVec
	changes       *prometheus.CounterVec
	lastPoll      *prometheus.GaugeVec
}

// NewExporter registers the collectors on a fresh registry.
func NewExporter(log logrus.FieldLogger) *Exporter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	e := &Exporter{
		reg: prometheus.NewRegistry(),
		log: log,
		elementStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ses_element_status_code",
			Help: "Element status code (0 unsupported, 1 OK, 2 critical, 3 non-critical, 4 unrecoverable, 5 not installed, 6 unknown, 7 not available).",
		}, elementLabels),
		predictedFail: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ses_element_predicted_failure",
			Help: "1 when the element reports predicted failure.",
		}, elementLabels),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ses_temperature_celsius",
			Help: "Temperature sensor reading.",
		}, elementLabels),
		volts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ses_voltage_volts",
			Help: "Voltage sensor reading.",
		}, elementLabels),
		amps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ses_current_amperes",
			Help: "Current sensor reading.",
		}, elementLabels),
		fanRPM: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ses_fan_speed_rpm",
			Help: "Actual fan speed of a cooling element.",
		}, elementLabels),
		enclosureFlag: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ses_enclosure_condition",
			Help: "Enclosure wide condition flags of the status page.",
		}, []string{"device", "condition"}),
		generation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ses_generation_code",
			Help: "Generation code of the last status page.",
		}, []string{"device"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ses_polls_total",
			Help: "Status page polls recorded.",
		}, []string{"device"}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ses_element_changes_total",
			Help: "Element status changes detected.",
		}, []string{"device", "type"}),
		lastPoll: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ses_last_poll_timestamp_seconds",
			Help: "Unix time of the last recorded poll.",
		}, []string{"device"}),
	}
	e.reg.MustRegister(
		e.elementStatus, e.predictedFail,
		e.temperature, e.volts, e.amps, e.fanRPM,
		e.enclosureFlag, e.generation,
		e.polls, e.changes, e.lastPoll,
	)
	return e
}

// Registry returns the registry the collectors live on.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.reg
}

// Record updates the collectors from one poll.
func (e *Exporter) Record(_ context.Context, r *enclosure.ChangeReport) error {
	e.polls.WithLabelValues(r.Device).Inc()
	e.lastPoll.WithLabelValues(r.Device).Set(float64(r.DetectedAt.Unix()))
	for _, c := range r.Changes {
		e.changes.WithLabelValues(r.Device, c.Target.Type.String()).Inc()
		if c.After == nil {
			e.forget(r.Device, c.Target)
		}
	}

	snap := r.Snapshot
	if snap == nil {
		return nil
	}
	e.generation.WithLabelValues(r.Device).Set(float64(snap.Generation))
	e.enclosureFlag.WithLabelValues(r.Device, "critical").Set(b2f(snap.Critical))
	e.enclosureFlag.WithLabelValues(r.Device, "non_critical").Set(b2f(snap.NonCrit))
	e.enclosureFlag.WithLabelValues(r.Device, "unrecoverable").Set(b2f(snap.Unrecov))

	for _, el := range snap.Elements {
		lv := labels(r.Device, el.Target)
		e.elementStatus.WithLabelValues(lv...).Set(float64(el.Code))
		e.predictedFail.WithLabelValues(lv...).Set(b2f(el.PredictedFailure))
		if el.Temperature != nil {
			e.temperature.WithLabelValues(lv...).Set(float64(*el.Temperature))
		}
		if el.Volts != nil {
			e.volts.WithLabelValues(lv...).Set(*el.Volts)
		}
		if el.Amps != nil {
			e.amps.WithLabelValues(lv...).Set(*el.Amps)
		}
		if el.FanRPM != nil {
			e.fanRPM.WithLabelValues(lv...).Set(float64(*el.FanRPM))
		}
	}
	return nil
}

// forget drops the series of an element that is no longer reported.
func (e *Exporter) forget(device string, t enclosure.Target) {
	lv := labels(device, t)
	for _, g := range []*prometheus.GaugeVec{e.elementStatus, e.predictedFail, e.temperature, e.volts, e.amps, e.fanRPM} {
		g.DeleteLabelValues(lv...)
	}
}

func labels(device string, t enclosure.Target) []string {
	return []string{device, t.Type.String(), strconv.Itoa(t.Group), strconv.Itoa(t.Index)}
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// Serve listens on addr until ctx is cancelled.
func (e *Exporter) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           e.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		e.log.WithField("listen", addr).Info("metrics server started")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
