package rating

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Wire keys of the rating sub-record and its enclosing document.
const (
	KeyRace               = "race"
	KeyRating             = "gravel_god_rating"
	KeySlug               = "slug"
	KeyRaceID             = "race_id"
	KeyCulturalImpact     = "cultural_impact"
	KeyOverallScore       = "overall_score"
	KeyScoreNote          = "score_note"
	KeyTierOverrideReason = "tier_override_reason"
)

// Decode reads a rating from a race profile document. The document may be
// {"race": {"gravel_god_rating": {...}}}, {"gravel_god_rating": {...}} or the
// bare sub-record. raceID wins over any slug found in the document. Only the
// rating sub-record is interpreted.
func Decode(raceID string, data []byte) (RaceRating, error) {
	obj, err := decodeObject(data)
	if err != nil {
		return RaceRating{}, err
	}
	if raw, ok := obj[KeyRace]; ok {
		if obj, err = decodeObject(raw); err != nil {
			return RaceRating{}, fmt.Errorf("%s: %w", KeyRace, err)
		}
	}
	if raceID == "" {
		raceID = optionalString(obj, KeySlug)
	}
	if raw, ok := obj[KeyRating]; ok {
		if obj, err = decodeObject(raw); err != nil {
			return RaceRating{}, fmt.Errorf("%s: %w", KeyRating, err)
		}
	}
	if raceID == "" {
		raceID = optionalString(obj, KeyRaceID)
	}
	return decodeRating(raceID, obj)
}

func decodeRating(raceID string, obj map[string]json.RawMessage) (RaceRating, error) {
	scores := make(Scores, DimensionCount)
	for _, d := range Dimensions() {
		v, ok, err := optionalInt(obj, string(d))
		if err != nil {
			return RaceRating{}, err
		}
		if ok {
			scores[d] = v
		}
	}

	var opts []RecordOption
	bonus, ok, err := optionalInt(obj, KeyCulturalImpact)
	if err != nil {
		return RaceRating{}, err
	}
	if ok {
		opts = append(opts, WithCulturalImpact(bonus))
	}

	overall, _, err := optionalInt(obj, KeyOverallScore)
	if err != nil {
		return RaceRating{}, err
	}

	// Aliases are resolved here, once, so no reader ever looks at them again.
	var tier Tier
	for _, key := range TierKeys() {
		v, ok, err := optionalInt(obj, key)
		if err != nil {
			return RaceRating{}, err
		}
		if ok {
			tier = Tier(v)
			opts = append(opts, WithTierSource(key))
			break
		}
	}

	opts = append(opts,
		WithScoreNote(optionalString(obj, KeyScoreNote)),
		WithOverrideReason(optionalString(obj, KeyTierOverrideReason)),
	)
	r := NewRaceRating(raceID, scores, overall, tier, opts...)
	if tier == 0 {
		r.TierSource = ""
	}
	return r, nil
}

// MarshalJSON writes the canonical rating sub-record.
func (r RaceRating) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, DimensionCount+7)
	for d, v := range r.Scores {
		out[string(d)] = v
	}
	if r.RaceID != "" {
		out[KeyRaceID] = r.RaceID
	}
	if r.CulturalImpact != nil {
		out[KeyCulturalImpact] = *r.CulturalImpact
	}
	out[KeyOverallScore] = r.OverallScore
	if r.Tier != 0 {
		out[KeyTier] = int(r.Tier)
	}
	if r.ScoreNote.Note != "" {
		out[KeyScoreNote] = r.ScoreNote.Note
	}
	if r.Override.Reason != "" {
		out[KeyTierOverrideReason] = r.Override.Reason
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts any document shape Decode accepts.
func (r *RaceRating) UnmarshalJSON(data []byte) error {
	decoded, err := Decode("", data)
	if err != nil {
		return err
	}
	*r = decoded
	return nil
}

func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: expected an object", ErrMalformedRecord)
	}
	return obj, nil
}

// optionalInt reads key as an integer. Integral floats such as 4.0 are
// accepted, quoted numbers are not; null and absent keys report ok=false.
func optionalInt(obj map[string]json.RawMessage, key string) (int, bool, error) {
	raw, ok := obj[key]
	if !ok || string(raw) == "null" {
		return 0, false, nil
	}
	if raw = bytes.TrimSpace(raw); len(raw) > 0 && raw[0] == '"' {
		return 0, false, fmt.Errorf("%w: %s is a string, not a number", ErrMalformedRecord, key)
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return 0, false, fmt.Errorf("%w: %s is not a number", ErrMalformedRecord, key)
	}
	if v, err := strconv.Atoi(num.String()); err == nil {
		return v, true, nil
	}
	f, err := num.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false, fmt.Errorf("%w: %s=%s is not an integer", ErrMalformedRecord, key, num)
	}
	return int(f), true, nil
}

func optionalString(obj map[string]json.RawMessage, key string) string {
	raw, ok := obj[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
