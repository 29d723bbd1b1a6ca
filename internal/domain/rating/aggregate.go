package rating

import "fmt"

// percentScale turns a ratio into a 0..100 score.
const percentScale = 100

// Aggregate returns the overall score for a complete set of dimension scores
// plus the cultural impact bonus:
//
//	round((Σ weight·score + bonus) / (Σ weight·DimensionMax) × 100)
//
// Rounding is half-to-even and done in integer arithmetic, so a sum that
// lands exactly on .5 resolves the same way on every platform. A bonus never
// lifts the result above 100. Ranges are not checked here; the validator
// reports them.
func (p Policy) Aggregate(scores Scores, bonus int) (int, error) {
	if missing := scores.Missing(); len(missing) > 0 {
		return 0, &MissingDimensionError{Missing: missing}
	}
	den := p.maxWeightedSum()
	if den <= 0 {
		return 0, fmt.Errorf("%w: zero score denominator", ErrInvalidPolicy)
	}
	num := bonus
	for _, d := range Dimensions() {
		num += p.weight(d) * scores[d]
	}
	score := roundHalfEven(num*percentScale, den)
	if score > MaxOverallScore && bonus > 0 {
		// The bonus tops up a score; it never lifts it past the scale.
		score = MaxOverallScore
	}
	return score, nil
}

// WeightedSum returns Σ weight·score over the dimensions present in scores.
func (p Policy) WeightedSum(scores Scores) int {
	total := 0
	for _, d := range Dimensions() {
		total += p.weight(d) * scores[d]
	}
	return total
}

// roundHalfEven divides num by a positive den and rounds the quotient to the
// nearest integer, ties going to the even neighbour.
func roundHalfEven(num, den int) int {
	q, r := num/den, num%den
	if r < 0 {
		q--
		r += den
	}
	switch twice := 2 * r; {
	case twice > den:
		q++
	case twice == den && q%2 != 0:
		q++
	}
	return q
}
