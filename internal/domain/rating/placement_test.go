package rating_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/okian/racetier/internal/domain/rating"
	. "github.com/smartystreets/goconvey/convey"
)

// shaped returns threes everywhere except prestige and the listed dimensions.
func shaped(prestige int, set map[rating.Dimension]int) rating.Scores {
	s := uniform(3)
	s[rating.Prestige] = prestige
	for d, v := range set {
		s[d] = v
	}
	return s
}

func TestPolicy_Place(t *testing.T) {
	Convey("Given the default policy", t, func() {
		p := rating.DefaultPolicy()
		// 10 fours, 3 threes and prestige 5: 54 -> 77, base tier 2.
		flagship := uniform(4)
		flagship[rating.Prestige] = 5
		flagship[rating.Community] = 3
		flagship[rating.FieldDepth] = 3
		flagship[rating.Value] = 3
		// Threes and prestige 4 with four twos: 39 -> 56, base tier 3.
		regional := shaped(4, map[rating.Dimension]int{
			rating.Community: 2, rating.FieldDepth: 2, rating.Value: 2, rating.Expenses: 2,
		})

		Convey("When a prestige 5 record scores at or above the tier 1 floor", func() {
			r := rating.NewRaceRating("flagship", flagship, 77, rating.Tier2,
				rating.WithOverrideReason("Prestige 5 flagship"))

			pl, err := p.Place(r)

			Convey("Then it is promoted into tier 1 and keeps its reason", func() {
				So(err, ShouldBeNil)
				So(pl.BaseTier, ShouldEqual, rating.Tier2)
				So(pl.Tier, ShouldEqual, rating.Tier1)
				So(pl.Reason, ShouldEqual, "Prestige 5 flagship")
			})
		})

		Convey("When the tier 1 floor is raised above the score", func() {
			strict, err := rating.NewPolicy(rating.WithP5Tier1Floor(78))
			So(err, ShouldBeNil)

			pl, err := strict.Place(rating.NewRaceRating("flagship", flagship, 77, rating.Tier1,
				rating.WithOverrideReason("Prestige 5 flagship")))

			Convey("Then the record is placed in tier 2 and the reason dropped", func() {
				So(err, ShouldBeNil)
				So(pl.Tier, ShouldEqual, rating.Tier2)
				So(pl.Reason, ShouldBeEmpty)
			})
		})

		Convey("When a prestige 5 record scores below the floor", func() {
			pl, err := p.Place(rating.NewRaceRating("mid", shaped(5, nil), 63, rating.Tier1))

			Convey("Then it stays in tier 2", func() {
				So(err, ShouldBeNil)
				So(pl.Tier, ShouldEqual, rating.Tier2)
				So(pl.Reason, ShouldBeEmpty)
			})
		})

		Convey("When a prestige 5 record has a low base tier", func() {
			// 13 twos and prestige 5: 31 -> 44, base tier 4.
			low := uniform(2)
			low[rating.Prestige] = 5

			pl, err := p.Place(rating.NewRaceRating("low", low, 44, rating.Tier4))

			Convey("Then it moves up one tier with a generated reason", func() {
				So(err, ShouldBeNil)
				So(pl.BaseTier, ShouldEqual, rating.Tier4)
				So(pl.Tier, ShouldEqual, rating.Tier3)
				So(pl.Reason, ShouldEqual, "Prestige 5, promoted to Tier 3")
			})
		})

		Convey("When a prestige 4 record was promoted without a reason", func() {
			pl, err := p.Place(rating.NewRaceRating("regional", regional, 56, rating.Tier2))

			Convey("Then the promotion is kept and documented", func() {
				So(err, ShouldBeNil)
				So(pl.BaseTier, ShouldEqual, rating.Tier3)
				So(pl.Tier, ShouldEqual, rating.Tier2)
				So(strings.HasPrefix(pl.Reason, "Prestige 4"), ShouldBeTrue)
			})
		})

		Convey("When a prestige 4 record sits in tier 2 by score", func() {
			pl, err := p.Place(rating.NewRaceRating("p4", shaped(4, nil), 61, rating.Tier2))

			Convey("Then it is never lifted into tier 1", func() {
				So(err, ShouldBeNil)
				So(pl.Tier, ShouldEqual, rating.Tier2)
			})
		})

		Convey("When an editorial override is documented", func() {
			// Threes, prestige 3 and four twos: 38 -> 54, base tier 3.
			scores := shaped(3, map[rating.Dimension]int{
				rating.Community: 2, rating.FieldDepth: 2, rating.Value: 2, rating.Expenses: 2,
			})
			reason := rating.WithOverrideReason("Oldest race in the state")

			promoted, err := p.Place(rating.NewRaceRating("old", scores, 54, rating.Tier2, reason))
			So(err, ShouldBeNil)
			kept, err := p.Place(rating.NewRaceRating("old", scores, 54, rating.Tier3, reason))
			So(err, ShouldBeNil)

			Convey("Then only a published promotion is kept", func() {
				So(promoted.Tier, ShouldEqual, rating.Tier2)
				So(promoted.Reason, ShouldEqual, "Oldest race in the state")
				So(kept.Tier, ShouldEqual, rating.Tier3)
				So(kept.Reason, ShouldBeEmpty)
			})
		})

		Convey("When the persisted tier exceeds the override cap", func() {
			cases := []rating.RaceRating{
				// prestige 3 and no reason at 60
				rating.NewRaceRating("unearned", uniform(3), 60, rating.Tier1),
				// prestige 5 two tiers above base 3
				rating.NewRaceRating("leap", shaped(5, map[rating.Dimension]int{
					rating.Community: 2, rating.FieldDepth: 2, rating.Value: 2,
				}), 59, rating.Tier1),
				// prestige 4 into tier 1
				rating.NewRaceRating("p4", shaped(4, nil), 61, rating.Tier1, rating.WithOverrideReason("Prestige 4")),
			}

			Convey("Then the record needs review", func() {
				for _, r := range cases {
					_, err := p.Place(r)
					So(errors.Is(err, rating.ErrNeedsReview), ShouldBeTrue)
				}
			})
		})

		Convey("When a dimension is out of range", func() {
			scores := shaped(5, map[rating.Dimension]int{rating.Value: 9})

			_, err := p.Place(rating.NewRaceRating("overpriced", scores, 60, rating.Tier2))

			Convey("Then the record needs review", func() {
				So(errors.Is(err, rating.ErrNeedsReview), ShouldBeTrue)
				So(errors.Is(err, rating.ErrScoreOutOfRange), ShouldBeTrue)
			})
		})

		Convey("When a dimension is missing", func() {
			partial := shaped(5, nil)
			delete(partial, rating.Climate)

			_, err := p.Place(rating.NewRaceRating("partial", partial, 63, rating.Tier2))

			Convey("Then the record cannot be placed but is not sent to review", func() {
				So(errors.Is(err, rating.ErrMissingDimension), ShouldBeTrue)
				So(errors.Is(err, rating.ErrNeedsReview), ShouldBeFalse)
			})
		})
	})
}
