package metrics

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry and custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("audit"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.recordsValidated.Add(3)

			Convey("Then the collectors carry the namespace and labels", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var names []string
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_audit_records_validated_total")
				So(testutil.ToFloat64(manager.recordsValidated), ShouldEqual, 3)
			})
		})

		Convey("When empty options are given", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithNamespace(""), WithSubsystem(""), WithHistogramBuckets(nil), WithPrometheusRegistry(registry))

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "racetier")
				So(manager.subsystem, ShouldEqual, "rating")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics", t, func() {
		Convey("When an audit is recorded", func() {
			before := testutil.ToFloat64(globalManager.violations.WithLabelValues("score_mismatch", "severe"))
			RecordRecordsValidated(10)
			RecordViolation("score_mismatch", "severe")
			RecordAuditRun("failed", 12.5)
			RecordClassification("1", "prestige_five")
			UpdateRatedRaces(42)

			Convey("Then the counters move", func() {
				So(testutil.ToFloat64(globalManager.violations.WithLabelValues("score_mismatch", "severe")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.ratedRaces), ShouldEqual, 42)
				So(testutil.ToFloat64(globalManager.auditRuns.WithLabelValues("failed")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When queue and worker state changes", func() {
			UpdateQueueCapacity(64)
			UpdateQueueSize(3)
			UpdateWorkerCount(4)
			UpdateWorkerActiveCount(2)

			Convey("Then the gauges hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 64)
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.workerActiveCount), ShouldEqual, 2)
			})
		})

		Convey("When the remaining helpers are called", func() {
			So(func() {
				RecordAuditDuplicate()
				RecordCorpusSkipped(2)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordWorkerProcessingLatency(3)
				RecordWorkerError()
				RecordHTTPRequest("/audit", "POST", "200")
				RecordHTTPRequestDuration("/audit", "POST", "200", 1.5)
				RecordErrorByComponent("api", "bad_request")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
			}, ShouldNotPanic)
		})

		Convey("When the registry is exposed", func() {
			expected := `
# HELP racetier_rating_system_goroutine_count Number of goroutines
# TYPE racetier_rating_system_goroutine_count gauge
racetier_rating_system_goroutine_count 7
`
			UpdateSystemGoroutineCount(7)

			Convey("Then it serves our collectors", func() {
				err := testutil.GatherAndCompare(GetRegistry(), strings.NewReader(expected), "racetier_rating_system_goroutine_count")
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent recorders", t, func() {
		before := testutil.ToFloat64(globalManager.queueEnqueued)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					RecordQueueEnqueue()
				}
			}()
		}
		wg.Wait()

		Convey("Then no increment is lost", func() {
			So(testutil.ToFloat64(globalManager.queueEnqueued), ShouldEqual, before+1000)
		})
	})
}
