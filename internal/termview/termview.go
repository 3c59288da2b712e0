// Package termview renders an annotated document and its question history
// for a terminal.
package termview

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/dgallion1/insurspeak/internal/domain"
	"github.com/dgallion1/insurspeak/internal/segment"
)

var categoryColors = map[string][]color.Attribute{
	"payment":  {color.FgYellow},
	"policy":   {color.FgBlue},
	"process":  {color.FgMagenta},
	"coverage": {color.FgGreen},
	"medical":  {color.FgRed},
	"legal":    {color.FgHiBlack},
	"benefit":  {color.FgCyan},
	"general":  {color.FgWhite},
}

// Renderer writes views to out.
type Renderer struct {
	out      io.Writer
	useColor bool
}

// New returns a renderer. With useColor false no escape codes are written.
func New(out io.Writer, useColor bool) *Renderer {
	return &Renderer{out: out, useColor: useColor}
}

func (r *Renderer) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if r.useColor {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

// Footnotes returns the annotated segments in display order. Footnote n
// refers to element n-1.
func Footnotes(segments []domain.Segment) []domain.Segment {
	return segment.Annotated(segments)
}

// Document writes text with every annotated run colored by category and
// followed by its footnote number. The open annotation is underlined.
func (r *Renderer) Document(text string, segments []domain.Segment, open *domain.TermAnnotation) {
	n := 0
	for _, seg := range segments {
		run := segment.Text(text, seg)
		if seg.Kind != domain.SegmentAnnotated || seg.Annotation == nil {
			fmt.Fprint(r.out, run)
			continue
		}
		n++
		attrs := append([]color.Attribute{}, categoryColors[domain.CategoryStyle(seg.Annotation.Category)]...)
		if open != nil && (open == seg.Annotation || open.SameSpan(*seg.Annotation)) {
			attrs = append(attrs, color.Bold, color.Underline)
		}
		r.paint(attrs...).Fprint(r.out, run)
		r.paint(color.Faint).Fprintf(r.out, "[%d]", n)
	}
	fmt.Fprintln(r.out)
}

// Explanation writes the panel for an open annotation.
func (r *Renderer) Explanation(a *domain.TermAnnotation) {
	if a == nil {
		return
	}
	style := domain.CategoryStyle(a.Category)
	category := a.Category
	if category == "" {
		category = style
	}
	r.paint(append(categoryColors[style], color.Bold)...).Fprintf(r.out, "%s", a.Term)
	fmt.Fprintf(r.out, " (%s)\n", category)
	if a.Explanation != "" {
		fmt.Fprintln(r.out, wrap(a.Explanation, 76, "  "))
	}
	if a.Implications != "" {
		r.paint(color.Bold).Fprintln(r.out, "  What this means for you:")
		fmt.Fprintln(r.out, wrap(a.Implications, 76, "  "))
	}
}

// History writes the question history, newest first.
func (r *Renderer) History(entries []domain.QAEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(r.out, "No questions asked yet.")
		return
	}
	for _, e := range entries {
		r.paint(color.Bold).Fprintf(r.out, "Q: %s\n", e.Question)
		fmt.Fprintln(r.out, "A: "+strings.TrimLeft(wrap(e.Answer, 73, "   "), " "))
	}
}

// Status writes the document header line.
func (r *Renderer) Status(doc string, t domain.InsuranceType, terms int) {
	r.paint(color.Bold).Fprintf(r.out, "%s", doc)
	fmt.Fprintf(r.out, " [%s] %d terms\n", t, terms)
}

// Error writes msg as an error line.
func (r *Renderer) Error(msg string) {
	r.paint(color.FgRed).Fprintf(r.out, "error: %s\n", msg)
}

// wrap breaks s into lines of at most width runes, prefixing each with indent.
// Existing line breaks are kept.
func wrap(s string, width int, indent string) string {
	var out []string
	for _, para := range strings.Split(s, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, strings.TrimRight(indent, " "))
			continue
		}
		line := indent + words[0]
		for _, w := range words[1:] {
			if len([]rune(line))+1+len([]rune(w)) > width {
				out = append(out, line)
				line = indent + w
				continue
			}
			line += " " + w
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
