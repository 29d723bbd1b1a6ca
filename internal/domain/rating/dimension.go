// Package rating turns editorial dimension scores into a published overall
// score and tier, and applies the bounded tier override policy.
//
// Everything here is pure: thresholds and weights travel in a Policy value,
// records are values, and no function keeps state between calls.
package rating

// Dimension names one of the editorial judgment axes.
type Dimension string

// The 14 canonical dimensions.
const (
	Logistics    Dimension = "logistics"
	Length       Dimension = "length"
	Technicality Dimension = "technicality"
	Elevation    Dimension = "elevation"
	Climate      Dimension = "climate"
	Altitude     Dimension = "altitude"
	Adventure    Dimension = "adventure"
	Prestige     Dimension = "prestige"
	RaceQuality  Dimension = "race_quality"
	Experience   Dimension = "experience"
	Community    Dimension = "community"
	FieldDepth   Dimension = "field_depth"
	Value        Dimension = "value"
	Expenses     Dimension = "expenses"
)

// DimensionCount is the number of scored dimensions a complete record carries.
const DimensionCount = 14

// Dimensions returns the canonical dimension order. The slice is a fresh copy.
func Dimensions() []Dimension {
	return []Dimension{
		Logistics, Length, Technicality, Elevation, Climate,
		Altitude, Adventure, Prestige, RaceQuality, Experience,
		Community, FieldDepth, Value, Expenses,
	}
}

// IsDimension reports whether name is one of the canonical dimensions.
func IsDimension(name string) bool {
	for _, d := range Dimensions() {
		if string(d) == name {
			return true
		}
	}
	return false
}

// Scores maps dimensions to their 1..5 judgment. A missing key means the
// dimension was not supplied; a zero value is present and out of range.
type Scores map[Dimension]int

// Missing returns the canonical dimensions absent from s.
func (s Scores) Missing() []Dimension {
	var missing []Dimension
	for _, d := range Dimensions() {
		if _, ok := s[d]; !ok {
			missing = append(missing, d)
		}
	}
	return missing
}

// Clone returns an independent copy of s.
func (s Scores) Clone() Scores {
	out := make(Scores, len(s))
	for d, v := range s {
		out[d] = v
	}
	return out
}
