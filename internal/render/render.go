// Package render writes engine results as JSON or terminal tables.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Format selects the output encoding
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (supported: text, json)", s)
	}
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7BC47F"))
	headStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle  = lipgloss.NewStyle().Padding(0, 1)
	borderGrey = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
)

// Renderer writes reports to one writer in one format
type Renderer struct {
	w      io.Writer
	format Format
}

// New creates a Renderer
func New(w io.Writer, format Format) *Renderer {
	return &Renderer{w: w, format: format}
}

// Format returns the renderer's output format
func (r *Renderer) Format() Format {
	return r.format
}

func (r *Renderer) json(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *Renderer) title(s string) {
	_, _ = fmt.Fprintln(r.w, titleStyle.Render(s))
}

func (r *Renderer) field(label string, value any) {
	_, _ = fmt.Fprintf(r.w, "  %s %v\n", labelStyle.Render(fmt.Sprintf("%-14s", label+":")), value)
}

func (r *Renderer) table(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderGrey).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	_, _ = fmt.Fprintln(r.w, t.String())
}

func (r *Renderer) blank() {
	_, _ = fmt.Fprintln(r.w)
}

func f1(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

func f2(v float64) string {
	return fmt.Sprintf("%+.2f", v)
}
