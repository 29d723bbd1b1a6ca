package model_test

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/racetier/internal/domain/integrity"
	"github.com/okian/racetier/internal/domain/model"
	"github.com/okian/racetier/internal/domain/rating"
)

func TestAuditRun(t *testing.T) {
	Convey("Given a submitted audit job", t, func() {
		submitted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		job := model.AuditJob{
			RunID:       "run-1",
			Records:     make([]rating.RaceRating, 3),
			SubmittedAt: submitted,
		}
		run := model.NewAuditRun(job)

		Convey("Then the run starts queued", func() {
			So(run.ID, ShouldEqual, "run-1")
			So(run.Status, ShouldEqual, model.RunQueued)
			So(run.Records, ShouldEqual, 3)
			So(run.Status.Terminal(), ShouldBeFalse)
			So(run.Passed, ShouldBeNil)
		})

		Convey("When it runs to completion", func() {
			run.Start(submitted.Add(time.Second))
			So(run.Status, ShouldEqual, model.RunRunning)

			report := integrity.Report{Records: 3, Violations: []integrity.Violation{
				{Kind: integrity.KindScoreMismatch, Severity: integrity.SeveritySevere, RaceID: "a"},
			}}
			run.Finish(submitted.Add(2*time.Second), report, nil)

			Convey("Then it carries the report and the verdict", func() {
				So(run.Status, ShouldEqual, model.RunDone)
				So(run.Status.Terminal(), ShouldBeTrue)
				So(run.Report, ShouldNotBeNil)
				So(run.Report.Violations, ShouldHaveLength, 1)
				So(*run.Passed, ShouldBeFalse)
				So(run.FinishedAt.Sub(*run.StartedAt), ShouldEqual, time.Second)
			})
		})

		Convey("When it fails", func() {
			run.Finish(submitted, integrity.Report{}, errors.New("context canceled"))

			Convey("Then the error is kept and no report is attached", func() {
				So(run.Status, ShouldEqual, model.RunFailed)
				So(run.Error, ShouldEqual, "context canceled")
				So(run.Report, ShouldBeNil)
			})
		})
	})
}
