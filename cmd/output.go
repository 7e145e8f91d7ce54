package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/rotisserie/eris"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/choropleth/internal/classify"
	"github.com/sells-group/choropleth/internal/model"
	"github.com/sells-group/choropleth/internal/palette"
)

// classReport describes one legend entry.
type classReport struct {
	Class int     `json:"class" yaml:"class"`
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
	Count int     `json:"count" yaml:"count"`
	Label string  `json:"label" yaml:"label"`
	Color string  `json:"color" yaml:"color"`
}

// report is the printable outcome of classifying one column.
type report struct {
	RunID       string             `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Column      string             `json:"column" yaml:"column"`
	Source      string             `json:"source,omitempty" yaml:"source,omitempty"`
	Scheme      string             `json:"scheme" yaml:"scheme"`
	K           int                `json:"k" yaml:"k"`
	KEffective  int                `json:"k_effective" yaml:"k_effective"`
	Edges       []float64          `json:"edges" yaml:"edges"`
	Dropped     int                `json:"dropped" yaml:"dropped"`
	Min         float64            `json:"min" yaml:"min"`
	Max         float64            `json:"max" yaml:"max"`
	Degenerate  bool               `json:"degenerate" yaml:"degenerate"`
	Approximate bool               `json:"approximate" yaml:"approximate"`
	GVF         float64            `json:"gvf" yaml:"gvf"`
	Classes     []classReport      `json:"classes" yaml:"classes"`
	Missing     string             `json:"missing_color" yaml:"missing_color"`
	Assignments []model.Assignment `json:"assignments,omitempty" yaml:"assignments,omitempty"`
	Error       string             `json:"error,omitempty" yaml:"error,omitempty"`
}

func newReport(column, source string, res *classify.Result, pal palette.Palette) report {
	labels := palette.Labels(res, palette.DefaultLabelOptions())
	bounds := res.Bounds()
	classes := make([]classReport, res.KEffective)
	for i := range classes {
		classes[i] = classReport{
			Class: i,
			Lower: bounds[i][0],
			Upper: bounds[i][1],
			Count: res.Counts[i],
			Label: labels[i],
			Color: pal.Color(i),
		}
	}
	return report{
		Column:      column,
		Source:      source,
		Scheme:      string(res.Scheme),
		K:           res.K,
		KEffective:  res.KEffective,
		Edges:       res.Edges,
		Dropped:     res.Dropped,
		Min:         res.Min,
		Max:         res.Max,
		Degenerate:  res.Degenerate,
		Approximate: res.Approximate,
		GVF:         res.GVF(),
		Classes:     classes,
		Missing:     pal.Missing,
	}
}

// styles renders table output; swatches are only drawn on a terminal.
type styles struct {
	enabled bool
	header  lipgloss.Style
	muted   lipgloss.Style
	warn    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	enabled := false
	if f, ok := w.(*os.File); ok && os.Getenv("NO_COLOR") == "" {
		enabled = term.IsTerminal(int(f.Fd()))
	}
	if !enabled {
		return styles{header: lipgloss.NewStyle(), muted: lipgloss.NewStyle(), warn: lipgloss.NewStyle()}
	}
	return styles{
		enabled: true,
		header:  lipgloss.NewStyle().Bold(true),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	}
}

func (s styles) swatch(hex string) string {
	if !s.enabled {
		return ""
	}
	return lipgloss.NewStyle().Background(lipgloss.Color(hex)).Render("    ")
}

func writeReports(w io.Writer, format string, reports []report) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if len(reports) == 1 {
			return enc.Encode(reports[0])
		}
		return enc.Encode(reports)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close() //nolint:errcheck
		if len(reports) == 1 {
			return enc.Encode(reports[0])
		}
		return enc.Encode(reports)
	case "table", "":
		st := newStyles(w)
		for i, r := range reports {
			if i > 0 {
				_, _ = fmt.Fprintln(w)
			}
			formatReportTable(w, st, r)
		}
		return nil
	default:
		return eris.Errorf("unknown output format %q (want json, yaml or table)", format)
	}
}

// formatReportTable writes a legend table for r.
func formatReportTable(out io.Writer, st styles, r report) {
	title := r.Column
	if r.Source != "" {
		title += " (" + r.Source + ")"
	}
	_, _ = fmt.Fprintln(out, st.header.Render(title))

	if r.Error != "" {
		_, _ = fmt.Fprintln(out, st.warn.Render("error: "+r.Error))
		return
	}

	summary := fmt.Sprintf("scheme=%s k=%d effective=%d dropped=%d gvf=%s",
		r.Scheme, r.K, r.KEffective, r.Dropped, strconv.FormatFloat(r.GVF, 'f', 4, 64))
	if r.RunID != "" {
		summary += " run=" + truncateID(r.RunID)
	}
	_, _ = fmt.Fprintln(out, st.muted.Render(summary))
	if r.Degenerate {
		_, _ = fmt.Fprintln(out, st.warn.Render("all values are equal; one class"))
	}
	if r.Approximate {
		_, _ = fmt.Fprintln(out, st.warn.Render("breaks computed on a sample"))
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CLASS\tRANGE\tCOUNT\tCOLOR\t")
	for _, c := range r.Classes {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", c.Class, c.Label, c.Count, c.Color, st.swatch(c.Color))
	}
	_ = w.Flush()
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOLUMN\tSCHEME\tK\tEDGES\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t-\t-----\t-------")

	for _, r := range runs {
		column := r.Column
		if len(column) > 30 {
			column = column[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			truncateID(r.ID),
			column,
			r.Scheme,
			r.KEffective,
			r.K,
			formatEdges(r.Edges),
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func formatEdges(edges []float64) string {
	if len(edges) == 0 {
		return "-"
	}
	s := ""
	for i, e := range edges {
		if i > 0 {
			s += ","
		}
		s += strconv.FormatFloat(e, 'g', 6, 64)
	}
	return s
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
