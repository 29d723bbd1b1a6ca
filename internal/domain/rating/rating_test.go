package rating_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/okian/racetier/internal/domain/rating"
	. "github.com/smartystreets/goconvey/convey"
)

// uniform returns scores with every dimension set to v.
func uniform(v int) rating.Scores {
	s := make(rating.Scores, rating.DimensionCount)
	for _, d := range rating.Dimensions() {
		s[d] = v
	}
	return s
}

// summingTo returns a complete score set whose plain sum is total.
func summingTo(total int) rating.Scores {
	s := uniform(1)
	rest := total - rating.DimensionCount
	for _, d := range rating.Dimensions() {
		if rest == 0 {
			break
		}
		add := rest
		if add > 4 {
			add = 4
		}
		s[d] += add
		rest -= add
	}
	return s
}

func TestPolicy_Aggregate(t *testing.T) {
	Convey("Given the default policy", t, func() {
		p := rating.DefaultPolicy()

		Convey("When the 14 scores sum to 56 with no bonus", func() {
			scores := uniform(4)
			scores[rating.Prestige] = 5
			scores[rating.Expenses] = 2
			scores[rating.RaceQuality] = 5 // 11*4 + 5 + 5 + 2 = 56

			got, err := p.Aggregate(scores, 0)

			Convey("Then the overall score is 80 and the tier is 1", func() {
				So(err, ShouldBeNil)
				So(got, ShouldEqual, 80)
				tier, err := p.Classify(got)
				So(err, ShouldBeNil)
				So(tier, ShouldEqual, rating.Tier1)
			})
		})

		Convey("When a bonus is supplied", func() {
			got, err := p.Aggregate(summingTo(50), 3)

			Convey("Then it is added to the sum before normalization", func() {
				So(err, ShouldBeNil)
				So(got, ShouldEqual, 76) // 53/70*100 = 75.71
			})
		})

		Convey("When a bonus would push the score past 100", func() {
			got, err := p.Aggregate(uniform(5), 5)

			Convey("Then the score is capped at 100", func() {
				So(err, ShouldBeNil)
				So(got, ShouldEqual, 100)
			})
		})

		Convey("When dimensions are missing", func() {
			scores := uniform(3)
			delete(scores, rating.Altitude)
			delete(scores, rating.Logistics)

			_, err := p.Aggregate(scores, 0)

			Convey("Then it fails with the absent axes in canonical order", func() {
				So(errors.Is(err, rating.ErrMissingDimension), ShouldBeTrue)
				var missing *rating.MissingDimensionError
				So(errors.As(err, &missing), ShouldBeTrue)
				So(missing.Missing, ShouldResemble, []rating.Dimension{rating.Logistics, rating.Altitude})
				So(err.Error(), ShouldContainSubstring, "logistics, altitude")
			})
		})

		Convey("When every valid score set is classified", func() {
			rng := rand.New(rand.NewSource(7)) //nolint:gosec // deterministic property sampling
			ok := true
			for i := 0; i < 5000 && ok; i++ {
				scores := make(rating.Scores, rating.DimensionCount)
				for _, d := range rating.Dimensions() {
					scores[d] = 1 + rng.Intn(5)
				}
				overall, err := p.Aggregate(scores, 0)
				if err != nil {
					ok = false
					break
				}
				tier, err := p.Classify(overall)
				ok = err == nil && tier >= rating.Tier1 && tier <= rating.Tier4
			}

			Convey("Then the tier is always within 1..4", func() {
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When a single dimension is increased", func() {
			monotone := true
			for base := 1; base <= 5; base++ {
				for _, d := range rating.Dimensions() {
					scores := uniform(base)
					prev, _ := p.Aggregate(scores, 0)
					for v := base + 1; v <= 5; v++ {
						scores[d] = v
						next, _ := p.Aggregate(scores, 0)
						if next < prev {
							monotone = false
						}
						prev = next
					}
				}
			}

			Convey("Then the overall score never decreases", func() {
				So(monotone, ShouldBeTrue)
			})
		})

		Convey("When weights are changed", func() {
			weighted, err := rating.NewPolicy(rating.WithWeights(map[rating.Dimension]int{rating.Prestige: 2}))
			So(err, ShouldBeNil)
			scores := uniform(3)
			scores[rating.Prestige] = 5

			got, err := weighted.Aggregate(scores, 0)

			Convey("Then the weighted sum is normalized by the weighted maximum", func() {
				So(err, ShouldBeNil)
				// (13*3 + 2*5) / (15*5) * 100 = 65.33
				So(got, ShouldEqual, 65)
			})
		})
	})
}

func TestPolicy_Classify(t *testing.T) {
	Convey("Given the default thresholds", t, func() {
		p := rating.DefaultPolicy()

		Convey("Then tier boundaries are inclusive on the lower bound", func() {
			cases := map[int]rating.Tier{
				100: rating.Tier1, 80: rating.Tier1, 79: rating.Tier2, 60: rating.Tier2,
				59: rating.Tier3, 45: rating.Tier3, 44: rating.Tier4, 0: rating.Tier4,
			}
			for score, want := range cases {
				got, err := p.Classify(score)
				So(err, ShouldBeNil)
				So(got, ShouldEqual, want)
			}
		})

		Convey("Then scores outside 0..100 are a caller error", func() {
			_, err := p.Classify(101)
			So(errors.Is(err, rating.ErrScoreOutOfRange), ShouldBeTrue)
			_, err = p.Classify(-1)
			So(errors.Is(err, rating.ErrScoreOutOfRange), ShouldBeTrue)
		})

		Convey("Then an alternative threshold policy classifies differently", func() {
			strict, err := rating.NewPolicy(rating.WithTierThresholds(85, 65, 50))
			So(err, ShouldBeNil)
			got, err := strict.Classify(80)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, rating.Tier2)
		})

		Convey("Then tier labels follow the published format", func() {
			So(rating.Tier3.Label(), ShouldEqual, "TIER 3")
			So(rating.Tier(0).Valid(), ShouldBeFalse)
		})
	})
}

func TestPolicy_Validate(t *testing.T) {
	Convey("Given policy options", t, func() {
		Convey("When thresholds do not descend", func() {
			_, err := rating.NewPolicy(rating.WithTierThresholds(60, 60, 45))
			So(errors.Is(err, rating.ErrInvalidPolicy), ShouldBeTrue)
		})

		Convey("When a weight is not positive", func() {
			_, err := rating.NewPolicy(rating.WithWeights(map[rating.Dimension]int{rating.Value: 0}))
			So(errors.Is(err, rating.ErrInvalidPolicy), ShouldBeTrue)
		})

		Convey("When a weight names an unknown dimension", func() {
			_, err := rating.NewPolicy(rating.WithWeights(map[rating.Dimension]int{"vibes": 1}))
			So(errors.Is(err, rating.ErrInvalidPolicy), ShouldBeTrue)
		})

		Convey("When the severe band is below the silent band", func() {
			_, err := rating.NewPolicy(rating.WithScoreTolerance(3, 2, 1))
			So(errors.Is(err, rating.ErrInvalidPolicy), ShouldBeTrue)
		})

		Convey("When the prestige 5 floor leaves the tier 2 band", func() {
			_, err := rating.NewPolicy(rating.WithP5Tier1Floor(55))
			So(errors.Is(err, rating.ErrInvalidPolicy), ShouldBeTrue)
			_, err = rating.NewPolicy(rating.WithP5Tier1Floor(81))
			So(errors.Is(err, rating.ErrInvalidPolicy), ShouldBeTrue)
		})

		Convey("When the defaults are used", func() {
			So(rating.DefaultPolicy().Validate(), ShouldBeNil)
			So(rating.DefaultPolicy().P5Tier1Floor, ShouldEqual, 75)
		})
	})
}
