package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/okian/racetier/internal/domain/rating"
	"github.com/okian/racetier/pkg/metrics"
)

// SkippedFile is a corpus file that could not be read as a race profile.
type SkippedFile struct {
	Path string
	Err  error
}

func (s SkippedFile) String() string {
	return fmt.Sprintf("%s: %v", s.Path, s.Err)
}

// Corpus is a directory of race-profile JSON documents.
type Corpus struct {
	Dir     string
	Records []rating.RaceRating
	// Paths maps race id to the file it was read from.
	Paths   map[string]string
	Skipped []SkippedFile
}

// LoadCorpus reads every *.json file in dir, in name order. A file that
// cannot be read or decoded is skipped and reported, so one bad profile
// never hides the others. The race id is the file name without extension.
func LoadCorpus(ctx context.Context, dir string) (*Corpus, error) {
	if info, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorpusDir, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrCorpusDir, dir)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorpusDir, dir, err)
	}
	sort.Strings(matches)

	c := &Corpus{Dir: dir, Paths: make(map[string]string, len(matches))}
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := LoadProfile(path)
		if err != nil {
			c.Skipped = append(c.Skipped, SkippedFile{Path: path, Err: err})
			continue
		}
		c.Records = append(c.Records, r)
		c.Paths[r.RaceID] = path
	}
	metrics.RecordCorpusSkipped(len(c.Skipped))
	return c, nil
}

// LoadProfile reads one race-profile document.
func LoadProfile(path string) (rating.RaceRating, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return rating.RaceRating{}, err
	}
	r, err := rating.Decode(raceIDFromPath(path), data)
	if err != nil {
		return rating.RaceRating{}, err
	}
	return r, nil
}

func raceIDFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// Normalize plans, and with write set applies, the corrections that bring
// every profile in line with its placement. Records that cannot be placed
// are returned as skipped; those the policy refuses to repair carry
// rating.ErrNeedsReview.
func (c *Corpus) Normalize(ctx context.Context, policy rating.Policy, write bool) ([]Correction, []SkippedFile, error) {
	var (
		out     []Correction
		skipped []SkippedFile
	)
	for _, r := range c.Records {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		path := c.Paths[r.RaceID]
		pl, err := policy.Place(r)
		if err != nil {
			skipped = append(skipped, SkippedFile{Path: path, Err: err})
			continue
		}
		corr, err := normalizeFile(path, pl, write)
		if err != nil {
			skipped = append(skipped, SkippedFile{Path: path, Err: err})
			continue
		}
		if len(corr.Changes) > 0 {
			out = append(out, corr)
		}
	}
	return out, skipped, nil
}

func normalizeFile(path string, pl rating.Placement, write bool) (Correction, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Correction{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Correction{}, err
	}
	corr, updated, err := PlanCorrection(data, pl)
	if err != nil {
		return Correction{}, err
	}
	corr.Path = path
	if !write || len(corr.Changes) == 0 {
		return corr, nil
	}
	if err := writeFileAtomic(path, updated, info.Mode().Perm()); err != nil {
		return Correction{}, err
	}
	return corr, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := errors.Join(tmp.Chmod(perm), tmp.Close()); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
