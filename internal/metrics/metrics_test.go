package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

// counterValue sums every series of the named family
func counterValue(reg *prometheus.Registry, name string) float64 {
	families, err := reg.Gather()
	if err != nil {
		return -1
	}
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return total
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			manager := NewManager()

			Convey("Then it owns a private registry", func() {
				So(manager, ShouldNotBeNil)
				So(manager.Registry(), ShouldNotBeNil)
			})
		})

		Convey("When two managers share nothing", func() {
			So(func() {
				NewManager()
				NewManager()
			}, ShouldNotPanic)
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{0.1, 1}),
				WithRegistry(registry),
			)
			manager.RecordCategorizationFailure()

			Convey("Then metric names carry the namespace", func() {
				So(counterValue(registry, "test_unit_categorization_failures_total"), ShouldEqual, 1)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given a manager", t, func() {
		registry := prometheus.NewRegistry()
		manager := NewManager(WithRegistry(registry))

		Convey("When recording categorizations", func() {
			manager.RecordCategorized("llm")
			manager.RecordCategorized("llm")
			manager.RecordCategorized("cache")
			manager.RecordRetry("openai")

			Convey("Then counts are split by source and cache hits tracked", func() {
				So(counterValue(registry, "poldna_pass_events_categorized_total"), ShouldEqual, 3)
				So(counterValue(registry, "poldna_pass_categorization_cache_hits_total"), ShouldEqual, 1)
				So(counterValue(registry, "poldna_pass_categorization_retries_total"), ShouldEqual, 1)
			})
		})

		Convey("When recording alerts", func() {
			manager.RecordAlerts("high", 2)
			manager.RecordAlerts("medium", 1)
			manager.RecordAlerts("medium", 0)

			Convey("Then zero counts are ignored", func() {
				So(counterValue(registry, "poldna_pass_alerts_total"), ShouldEqual, 3)
			})
		})

		Convey("When recording a publish", func() {
			at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
			manager.RecordPublish(12, 3, at)
			manager.ObserveStage("profiles", 250*time.Millisecond)

			Convey("Then gauges reflect the snapshot", func() {
				So(counterValue(registry, "poldna_pass_profiles"), ShouldEqual, 12)
				So(counterValue(registry, "poldna_pass_parties"), ShouldEqual, 3)
				So(counterValue(registry, "poldna_pass_last_success_unixtime"), ShouldEqual, float64(at.Unix()))
				So(counterValue(registry, "poldna_pass_stage_duration_seconds"), ShouldEqual, 1)
			})
		})

		Convey("When metrics are disabled", func() {
			off := prometheus.NewRegistry()
			disabled := NewManager(WithRegistry(off), WithMetricsEnabled(false))
			disabled.RecordCategorizationFailure()

			Convey("Then nothing is recorded", func() {
				So(counterValue(off, "poldna_pass_categorization_failures_total"), ShouldEqual, 0)
			})
		})
	})
}

func TestNilManager(t *testing.T) {
	Convey("Given a nil manager", t, func() {
		var manager *Manager

		Convey("Then every method is a no-op", func() {
			So(func() {
				manager.RecordCategorized("llm")
				manager.RecordCategorizationFailure()
				manager.RecordRetry("openai")
				manager.RecordAlerts("high", 1)
				manager.RecordPublish(1, 1, time.Now())
				manager.ObserveStage("detect", time.Second)
			}, ShouldNotPanic)
			So(manager.WriteTextfile("/nonexistent/x.prom"), ShouldBeNil)
		})
	})
}

func TestWriteTextfile(t *testing.T) {
	Convey("Given recorded metrics", t, func() {
		manager := NewManager()
		manager.RecordCategorized("llm")
		path := filepath.Join(t.TempDir(), "poldna.prom")

		Convey("When exporting to a textfile", func() {
			err := manager.WriteTextfile(path)

			Convey("Then the file holds the exposition text", func() {
				So(err, ShouldBeNil)
				data, readErr := os.ReadFile(path)
				So(readErr, ShouldBeNil)
				So(string(data), ShouldContainSubstring, `poldna_pass_events_categorized_total{source="llm"} 1`)
			})
		})

		Convey("When the directory does not exist", func() {
			err := manager.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"))

			Convey("Then an export error is returned", func() {
				So(errors.Is(err, ErrExportFailed), ShouldBeTrue)
			})
		})
	})
}
