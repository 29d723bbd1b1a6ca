package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/racetier/internal/domain/rating"
)

// Change is one key rewritten by normalization. An empty From means the key
// was absent; an empty To means it is removed.
type Change struct {
	Field string `json:"field" yaml:"field"`
	From  string `json:"from" yaml:"from"`
	To    string `json:"to" yaml:"to"`
}

// Correction lists the changes normalization makes to one profile.
type Correction struct {
	RaceID  string   `json:"race_id" yaml:"race_id"`
	Path    string   `json:"path" yaml:"path"`
	Changes []Change `json:"changes" yaml:"changes"`
}

// labelKeys are the published tier labels kept next to the tier keys.
var labelKeys = []string{
	"tier_label",
	rating.KeyDisplayTier + "_label",
	rating.KeyEditorialTier + "_label",
	rating.KeyBusinessTier + "_label",
}

// PlanCorrection rewrites the rating keys of a profile document so they
// agree with pl and returns the changes and the new document. Only keys
// of the rating sub-record are touched:
//
//	overall_score          the published score
//	tier                   the placed tier
//	*_tier aliases         synced to the placed tier when present
//	*tier_label            synced when present
//	tier_override_reason   written for a promotion, removed otherwise
func PlanCorrection(doc []byte, pl rating.Placement) (Correction, []byte, error) {
	root, err := decodeDoc(doc)
	if err != nil {
		return Correction{}, nil, err
	}

	// Walk down to the rating sub-record, remembering how to write it back.
	race, ratingObj := root, root
	if raw, ok := root[rating.KeyRace]; ok {
		if race, err = decodeDoc(raw); err != nil {
			return Correction{}, nil, fmt.Errorf("%s: %w", rating.KeyRace, err)
		}
		ratingObj = race
	}
	nested := false
	if raw, ok := race[rating.KeyRating]; ok {
		if ratingObj, err = decodeDoc(raw); err != nil {
			return Correction{}, nil, fmt.Errorf("%s: %w", rating.KeyRating, err)
		}
		nested = true
	}

	corr := Correction{RaceID: pl.RaceID}
	set := func(key, value string) {
		old := rawText(ratingObj[key])
		if old == value {
			return
		}
		ratingObj[key] = json.RawMessage(value)
		corr.Changes = append(corr.Changes, Change{Field: key, From: old, To: value})
	}

	set(rating.KeyOverallScore, strconv.Itoa(pl.OverallScore))
	tier := strconv.Itoa(int(pl.Tier))
	set(rating.KeyTier, tier)
	for _, key := range rating.TierKeys() {
		if _, ok := ratingObj[key]; ok && key != rating.KeyTier {
			set(key, tier)
		}
	}
	label, _ := json.Marshal(pl.Tier.Label())
	for _, labelKey := range labelKeys {
		if _, ok := ratingObj[labelKey]; ok {
			set(labelKey, string(label))
		}
	}
	switch raw, ok := ratingObj[rating.KeyTierOverrideReason]; {
	case pl.Reason != "":
		var old string
		if ok {
			_ = json.Unmarshal(raw, &old)
		}
		if strings.TrimSpace(old) != pl.Reason {
			reason, err := json.Marshal(pl.Reason)
			if err != nil {
				return Correction{}, nil, err
			}
			set(rating.KeyTierOverrideReason, string(reason))
		}
	case ok:
		delete(ratingObj, rating.KeyTierOverrideReason)
		corr.Changes = append(corr.Changes, Change{Field: rating.KeyTierOverrideReason, From: rawText(raw)})
	}

	if len(corr.Changes) == 0 {
		return corr, doc, nil
	}

	if nested {
		b, err := json.Marshal(ratingObj)
		if err != nil {
			return Correction{}, nil, err
		}
		race[rating.KeyRating] = b
	}
	if _, ok := root[rating.KeyRace]; ok {
		b, err := json.Marshal(race)
		if err != nil {
			return Correction{}, nil, err
		}
		root[rating.KeyRace] = b
	}
	out, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return Correction{}, nil, err
	}
	return corr, append(out, '\n'), nil
}

func decodeDoc(data []byte) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("%w: %w", rating.ErrMalformedRecord, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: expected an object", rating.ErrMalformedRecord)
	}
	return obj, nil
}

// rawText returns a compact form of a raw value, "" when absent.
func rawText(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
