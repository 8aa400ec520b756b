package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func newTestManager(opts ...Option) *Manager {
	opts = append([]Option{WithRegistry(prometheus.NewRegistry())}, opts...)
	return NewManager(opts...)
}

func TestManager_Scoring(t *testing.T) {
	Convey("Given a manager on a private registry", t, func() {
		m := newTestManager()

		Convey("When recording submissions and writes", func() {
			m.RecordSubmission("ok", 3)
			m.RecordSubmission("partial", 7)
			m.RecordScoreUpsert(OutcomeOK)
			m.RecordScoreUpsert(OutcomeOK)
			m.RecordScoreUpsert(OutcomeError)
			m.RecordCommentWrite(OutcomeSkipped)
			m.RecordValidationFailure()

			Convey("Then counters reflect every call", func() {
				So(testutil.ToFloat64(m.submissions.WithLabelValues("ok")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.submissions.WithLabelValues("partial")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.scoreUpserts.WithLabelValues(OutcomeOK)), ShouldEqual, 2)
				So(testutil.ToFloat64(m.scoreUpserts.WithLabelValues(OutcomeError)), ShouldEqual, 1)
				So(testutil.ToFloat64(m.commentWrites.WithLabelValues(OutcomeSkipped)), ShouldEqual, 1)
				So(testutil.ToFloat64(m.validationFailures), ShouldEqual, 1)
			})
		})

		Convey("When recording a successful leaderboard", func() {
			m.RecordLeaderboard(OutcomeOK, 4, 5, 20)
			So(testutil.ToFloat64(m.leaderboardTeams), ShouldEqual, 5)
			So(testutil.ToFloat64(m.registeredScoreRows), ShouldEqual, 20)
		})

		Convey("When recording a failed leaderboard", func() {
			m.RecordLeaderboard(OutcomeError, 4, 99, 99)
			So(testutil.ToFloat64(m.leaderboardBuilds.WithLabelValues(OutcomeError)), ShouldEqual, 1)
			So(testutil.ToFloat64(m.leaderboardTeams), ShouldEqual, 0)
		})
	})
}

func TestManager_StoreAndHTTP(t *testing.T) {
	Convey("Given a manager on a private registry", t, func() {
		m := newTestManager()

		Convey("Store errors are counted only on failure", func() {
			m.RecordStoreCall("upsert_score", 1, nil)
			m.RecordStoreCall("upsert_score", 1, errors.New("down"))
			So(testutil.ToFloat64(m.storeErrors.WithLabelValues("upsert_score")), ShouldEqual, 1)
		})

		Convey("HTTP requests and errors are labelled", func() {
			m.RecordHTTPRequest("leaderboard", "GET", "200", 2)
			m.RecordHTTPError("submission", "PUT", "client_error", "medium")
			So(testutil.ToFloat64(m.httpRequests.WithLabelValues("leaderboard", "GET", "200")), ShouldEqual, 1)
			So(testutil.ToFloat64(m.errorRateByType.WithLabelValues("client_error", "medium")), ShouldEqual, 1)
		})

		Convey("Identity counters are labelled by kind", func() {
			m.RecordSignIn("judge", OutcomeOK)
			m.RecordSessionInvalidation("notification")
			So(testutil.ToFloat64(m.signIns.WithLabelValues("judge", OutcomeOK)), ShouldEqual, 1)
			So(testutil.ToFloat64(m.sessionInvalidations.WithLabelValues("notification")), ShouldEqual, 1)
		})
	})
}

func TestManager_Options(t *testing.T) {
	Convey("Given a disabled manager", t, func() {
		m := newTestManager(WithMetricsEnabled(false))
		m.RecordSubmission("ok", 1)
		m.UpdateSystem(1024, 3, 0.5)
		So(testutil.ToFloat64(m.submissions.WithLabelValues("ok")), ShouldEqual, 0)
		So(testutil.ToFloat64(m.systemMemoryUsage), ShouldEqual, 0)
	})

	Convey("Given a custom namespace and prefix", t, func() {
		reg := prometheus.NewRegistry()
		m := NewManager(WithRegistry(reg), WithNamespace("panel"), WithMetricPrefix("x_"))
		m.RecordExport("xlsx")
		families, err := reg.Gather()
		So(err, ShouldBeNil)
		names := map[string]bool{}
		for _, f := range families {
			names[f.GetName()] = true
		}
		So(names["panel_x_leaderboard_exports_total"], ShouldBeTrue)
	})

	Convey("Given const labels and custom buckets", t, func() {
		reg := prometheus.NewRegistry()
		m := NewManager(WithRegistry(reg),
			WithConstLabels(map[string]string{"instance": "a1"}),
			WithLatencyBuckets([]float64{5, 50}))
		m.RecordSubmission("ok", 7)
		families, err := reg.Gather()
		So(err, ShouldBeNil)
		for _, f := range families {
			for _, metric := range f.GetMetric() {
				labels := map[string]string{}
				for _, l := range metric.GetLabel() {
					labels[l.GetName()] = l.GetValue()
				}
				So(labels["instance"], ShouldEqual, "a1")
				if h := metric.GetHistogram(); h != nil {
					So(h.GetBucket(), ShouldHaveLength, 2)
				}
			}
		}
	})

	Convey("Given the global registry", t, func() {
		So(GetRegistry(), ShouldNotBeNil)
		So(func() { RecordSignIn("admin", OutcomeError) }, ShouldNotPanic)
	})
}
