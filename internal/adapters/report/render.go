package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/okian/racetier/internal/adapters/repository"
	"github.com/okian/racetier/internal/domain/integrity"
	"github.com/okian/racetier/internal/domain/model"
	"github.com/okian/racetier/internal/domain/rating"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	severeStyle = cellStyle.Foreground(lipgloss.Color("9"))
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// auditDoc is the machine-readable shape of an audit.
type auditDoc struct {
	Records int                        `json:"records" yaml:"records"`
	Passed  bool                       `json:"passed" yaml:"passed"`
	Counts  map[integrity.Severity]int `json:"counts" yaml:"counts"`
	Groups  []integrity.Group          `json:"groups" yaml:"groups"`
	Skipped []skippedDoc               `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

type skippedDoc struct {
	Path        string `json:"path" yaml:"path"`
	Error       string `json:"error" yaml:"error"`
	NeedsReview bool   `json:"needs_review,omitempty" yaml:"needs_review,omitempty"`
}

// normalizeDoc is the machine-readable shape of a normalization plan.
type normalizeDoc struct {
	Written     bool                    `json:"written" yaml:"written"`
	Corrections []repository.Correction `json:"corrections" yaml:"corrections"`
	Skipped     []skippedDoc            `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

func skippedDocs(skipped []repository.SkippedFile) []skippedDoc {
	out := make([]skippedDoc, len(skipped))
	for i, s := range skipped {
		out[i] = skippedDoc{Path: s.Path, Error: s.Err.Error(), NeedsReview: errors.Is(s.Err, rating.ErrNeedsReview)}
	}
	return out
}

// WriteAudit writes rep, and the files that could not be loaded, in format f.
func WriteAudit(w io.Writer, f Format, rep integrity.Report, skipped []repository.SkippedFile) error { //nolint:gocritic // hugeParam
	switch f {
	case FormatJSON, FormatYAML:
		all := rep.Counts()
		counts := make(map[integrity.Severity]int, len(integrity.Severities()))
		for _, s := range integrity.Severities() {
			counts[s] = all[s]
		}
		groups := rep.Groups()
		if groups == nil {
			groups = []integrity.Group{}
		}
		return encode(w, f, auditDoc{
			Records: rep.Records,
			Passed:  rep.Passed(),
			Counts:  counts,
			Groups:  groups,
			Skipped: skippedDocs(skipped),
		})
	case FormatText:
		return writeAuditText(w, rep, skipped)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

func writeAuditText(w io.Writer, rep integrity.Report, skipped []repository.SkippedFile) error { //nolint:gocritic // hugeParam
	var sb strings.Builder
	if len(rep.Violations) == 0 {
		fmt.Fprintf(&sb, "all %d records pass\n", rep.Records)
	} else {
		for _, g := range rep.Groups() {
			sb.WriteString(titleStyle.Render(fmt.Sprintf("%s (%d)", g.Kind, len(g.Violations))))
			sb.WriteString("\n")
			sb.WriteString(violationTable(g.Violations))
			sb.WriteString("\n\n")
		}
		counts := rep.Counts()
		parts := make([]string, 0, len(integrity.Severities()))
		for _, s := range integrity.Severities() {
			parts = append(parts, fmt.Sprintf("%d %s", counts[s], s))
		}
		verdict := passStyle.Render("PASS")
		if rep.HasSevere() {
			verdict = failStyle.Render("FAIL")
		}
		fmt.Fprintf(&sb, "%d records: %s. %s\n", rep.Records, strings.Join(parts, ", "), verdict)
	}
	writeSkippedText(&sb, skipped)
	_, err := io.WriteString(w, sb.String())
	return err
}

func violationTable(vs []integrity.Violation) string {
	rows := make([][]string, len(vs))
	for i, v := range vs {
		rows[i] = []string{v.RaceID, string(v.Severity), v.Field, v.Observed, v.Expected, v.Hint}
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("RACE", "SEVERITY", "FIELD", "OBSERVED", "EXPECTED", "HINT").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= 0 && row < len(vs) && vs[row].Severity == integrity.SeveritySevere:
				return severeStyle
			default:
				return cellStyle
			}
		})
	return t.Render()
}

// WriteClassified writes the classification of one record and its
// violations in format f.
func WriteClassified(w io.Writer, f Format, c model.Classified) error {
	switch f {
	case FormatJSON, FormatYAML:
		if c.Violations == nil {
			c.Violations = []integrity.Violation{}
		}
		return encode(w, f, c)
	case FormatText:
		var sb strings.Builder
		if cls := c.Classification; cls != nil {
			rows := [][]string{
				{"race", cls.RaceID},
				{"computed score", strconv.Itoa(cls.ComputedScore)},
				{"overall score", strconv.Itoa(cls.OverallScore)},
				{"base tier", cls.BaseTier.Label()},
				{"tier", cls.PublishedTier.Label()},
				{"granted tier", cls.EffectiveTier.Label()},
				{"override", cls.StateName},
			}
			for _, r := range rows {
				fmt.Fprintf(&sb, "%-15s %s\n", r[0], r[1])
			}
		} else {
			sb.WriteString("not classified\n")
		}
		for _, g := range (integrity.Report{Violations: c.Violations}).Groups() {
			sb.WriteString("\n")
			sb.WriteString(titleStyle.Render(fmt.Sprintf("%s (%d)", g.Kind, len(g.Violations))))
			sb.WriteString("\n")
			sb.WriteString(violationTable(g.Violations))
			sb.WriteString("\n")
		}
		_, err := io.WriteString(w, sb.String())
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// WriteCorrections writes a normalization plan in format f. written tells
// whether the corrections were applied to disk.
func WriteCorrections(w io.Writer, f Format, corrections []repository.Correction, skipped []repository.SkippedFile, written bool) error {
	switch f {
	case FormatJSON, FormatYAML:
		if corrections == nil {
			corrections = []repository.Correction{}
		}
		return encode(w, f, normalizeDoc{Written: written, Corrections: corrections, Skipped: skippedDocs(skipped)})
	case FormatText:
		return writeCorrectionsText(w, corrections, skipped, written)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

func writeCorrectionsText(w io.Writer, corrections []repository.Correction, skipped []repository.SkippedFile, written bool) error {
	var sb strings.Builder
	if len(corrections) == 0 {
		sb.WriteString("no corrections needed\n")
	}
	for _, c := range corrections {
		sb.WriteString(titleStyle.Render(fmt.Sprintf("%s (%s)", c.RaceID, c.Path)))
		sb.WriteString("\n")
		rows := make([][]string, len(c.Changes))
		for i, ch := range c.Changes {
			rows[i] = []string{ch.Field, orDash(ch.From), orDash(ch.To)}
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("FIELD", "FROM", "TO").
			Rows(rows...).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})
		sb.WriteString(t.Render())
		sb.WriteString("\n\n")
	}
	if len(corrections) > 0 {
		verb := "would rewrite"
		if written {
			verb = "rewrote"
		}
		fmt.Fprintf(&sb, "%s %d profiles\n", verb, len(corrections))
	}
	writeSkippedText(&sb, skipped)
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeSkippedText(sb *strings.Builder, skipped []repository.SkippedFile) {
	for _, s := range skipped {
		if errors.Is(s.Err, rating.ErrNeedsReview) {
			fmt.Fprintf(sb, "needs review %s\n", s)
			continue
		}
		fmt.Fprintf(sb, "skipped %s\n", s)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func encode(w io.Writer, f Format, v any) error {
	if f == FormatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	return nil
}
