package report_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v3"

	"github.com/okian/racetier/internal/adapters/report"
	"github.com/okian/racetier/internal/adapters/repository"
	"github.com/okian/racetier/internal/domain/integrity"
	"github.com/okian/racetier/internal/domain/rating"
)

func failing() integrity.Report {
	return integrity.Report{
		Records: 3,
		Violations: []integrity.Violation{
			{
				Kind: integrity.KindScoreMismatch, Severity: integrity.SeveritySevere,
				RaceID: "zeta", Field: "overall_score", Observed: "78", Expected: "60",
				Hint: "recompute the score or document the adjustment",
			},
			{
				Kind: integrity.KindPrestigeAlignment, Severity: integrity.SeverityAdvisory,
				RaceID: "alpha", Field: "prestige", Observed: "prestige=5 tier=3", Expected: "tier 1 or 2",
				Hint: "review",
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	Convey("Given format names", t, func() {
		for in, want := range map[string]report.Format{
			"text": report.FormatText, "JSON": report.FormatJSON, " yaml ": report.FormatYAML, "yml": report.FormatYAML,
		} {
			got, err := report.ParseFormat(in)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}
		_, err := report.ParseFormat("xml")
		So(errors.Is(err, report.ErrUnknownFormat), ShouldBeTrue)
	})
}

func TestWriteAudit_Text(t *testing.T) {
	Convey("Given a clean report", t, func() {
		var buf bytes.Buffer
		err := report.WriteAudit(&buf, report.FormatText, integrity.Report{Records: 12}, nil)

		Convey("Then the summary line says every record passes", func() {
			So(err, ShouldBeNil)
			So(buf.String(), ShouldEqual, "all 12 records pass\n")
		})
	})

	Convey("Given a report with a severe violation and a skipped file", t, func() {
		var buf bytes.Buffer
		skipped := []repository.SkippedFile{{Path: "broken.json", Err: errors.New("unexpected EOF")}}
		err := report.WriteAudit(&buf, report.FormatText, failing(), skipped)
		out := buf.String()

		Convey("Then violations are grouped by kind in report order", func() {
			So(err, ShouldBeNil)
			mismatch := strings.Index(out, "score_mismatch (1)")
			alignment := strings.Index(out, "prestige_alignment (1)")
			So(mismatch, ShouldBeGreaterThanOrEqualTo, 0)
			So(alignment, ShouldBeGreaterThan, mismatch)
		})

		Convey("Then each row carries race, observed, expected and hint", func() {
			for _, want := range []string{"RACE", "zeta", "78", "60", "recompute the score"} {
				So(out, ShouldContainSubstring, want)
			}
		})

		Convey("Then the verdict and the skipped file are reported", func() {
			So(out, ShouldContainSubstring, "3 records: 1 severe, 0 warning, 0 info, 1 advisory.")
			So(out, ShouldContainSubstring, "FAIL")
			So(out, ShouldContainSubstring, "skipped broken.json: unexpected EOF")
		})
	})
}

func TestWriteAudit_Machine(t *testing.T) {
	Convey("Given a failing report", t, func() {
		rep := failing()

		Convey("When written as JSON", func() {
			var buf bytes.Buffer
			So(report.WriteAudit(&buf, report.FormatJSON, rep, nil), ShouldBeNil)

			var doc struct {
				Records int            `json:"records"`
				Passed  bool           `json:"passed"`
				Counts  map[string]int `json:"counts"`
				Groups  []struct {
					Kind       string `json:"kind"`
					Violations []struct {
						RaceID string `json:"race_id"`
					} `json:"violations"`
				} `json:"groups"`
			}
			So(json.Unmarshal(buf.Bytes(), &doc), ShouldBeNil)

			Convey("Then it carries the verdict, counts and groups", func() {
				So(doc.Records, ShouldEqual, 3)
				So(doc.Passed, ShouldBeFalse)
				So(doc.Counts["severe"], ShouldEqual, 1)
				So(doc.Counts["warning"], ShouldEqual, 0)
				So(doc.Groups, ShouldHaveLength, 2)
				So(doc.Groups[0].Kind, ShouldEqual, "score_mismatch")
				So(doc.Groups[0].Violations[0].RaceID, ShouldEqual, "zeta")
			})
		})

		Convey("When written as YAML", func() {
			var buf bytes.Buffer
			So(report.WriteAudit(&buf, report.FormatYAML, rep, nil), ShouldBeNil)

			var doc map[string]any
			So(yaml.Unmarshal(buf.Bytes(), &doc), ShouldBeNil)

			Convey("Then it parses back with the same verdict", func() {
				So(doc["records"], ShouldEqual, 3)
				So(doc["passed"], ShouldEqual, false)
			})
		})

		Convey("When the format is unknown", func() {
			err := report.WriteAudit(&bytes.Buffer{}, report.Format("xml"), rep, nil)

			Convey("Then it fails", func() {
				So(errors.Is(err, report.ErrUnknownFormat), ShouldBeTrue)
			})
		})
	})
}

func TestWriteCorrections(t *testing.T) {
	Convey("Given a normalization plan", t, func() {
		plan := []repository.Correction{{
			RaceID: "zeta",
			Path:   "corpus/zeta.json",
			Changes: []repository.Change{
				{Field: "overall_score", From: "78", To: "60"},
				{Field: "tier_override_reason", From: "Prestige 5", To: ""},
			},
		}}

		Convey("When it is previewed as text", func() {
			var buf bytes.Buffer
			So(report.WriteCorrections(&buf, report.FormatText, plan, nil, false), ShouldBeNil)
			out := buf.String()

			Convey("Then every change is listed and nothing is claimed written", func() {
				So(out, ShouldContainSubstring, "zeta (corpus/zeta.json)")
				So(out, ShouldContainSubstring, "overall_score")
				So(out, ShouldContainSubstring, "tier_override_reason")
				So(out, ShouldContainSubstring, "would rewrite 1 profiles")
			})
		})

		Convey("When nothing needs correcting", func() {
			var buf bytes.Buffer
			So(report.WriteCorrections(&buf, report.FormatText, nil, nil, true), ShouldBeNil)
			So(buf.String(), ShouldEqual, "no corrections needed\n")
		})

		Convey("When it is written as JSON after applying", func() {
			var buf bytes.Buffer
			So(report.WriteCorrections(&buf, report.FormatJSON, plan, nil, true), ShouldBeNil)

			var doc struct {
				Written     bool                    `json:"written"`
				Corrections []repository.Correction `json:"corrections"`
			}
			So(json.Unmarshal(buf.Bytes(), &doc), ShouldBeNil)
			So(doc.Written, ShouldBeTrue)
			So(doc.Corrections, ShouldResemble, plan)
		})

		Convey("When records were held back for review", func() {
			skipped := []repository.SkippedFile{
				{Path: "corpus/leap.json", Err: fmt.Errorf("%w: prestige_five promotion T3->T1 exceeds the override cap (multi_step)", rating.ErrNeedsReview)},
				{Path: "corpus/partial.json", Err: rating.ErrMissingDimension},
			}

			var text bytes.Buffer
			So(report.WriteCorrections(&text, report.FormatText, nil, skipped, false), ShouldBeNil)
			var js bytes.Buffer
			So(report.WriteCorrections(&js, report.FormatJSON, nil, skipped, false), ShouldBeNil)

			Convey("Then they are listed apart from unreadable records", func() {
				So(text.String(), ShouldContainSubstring, "needs review corpus/leap.json")
				So(text.String(), ShouldContainSubstring, "skipped corpus/partial.json")

				var doc struct {
					Skipped []struct {
						Path        string `json:"path"`
						NeedsReview bool   `json:"needs_review"`
					} `json:"skipped"`
				}
				So(json.Unmarshal(js.Bytes(), &doc), ShouldBeNil)
				So(doc.Skipped, ShouldHaveLength, 2)
				So(doc.Skipped[0].NeedsReview, ShouldBeTrue)
				So(doc.Skipped[1].NeedsReview, ShouldBeFalse)
			})
		})
	})
}
