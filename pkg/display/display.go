package display

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/wetest/pkg/compiler"
	"github.com/ormasoftchile/wetest/pkg/naming"
	"github.com/ormasoftchile/wetest/pkg/runner"
	"github.com/ormasoftchile/wetest/pkg/suite"
	"github.com/ormasoftchile/wetest/pkg/validate"
	"github.com/ormasoftchile/wetest/pkg/value"
)

// TitleWidth bounds the title columns of suite listings.
const TitleWidth = 32

// Suite writes the units of s grouped by scenario, with their latest
// status or selection state.
func Suite(w io.Writer, s *suite.Suite) error {
	st := newStyles(w)
	var b strings.Builder

	b.WriteString(st.title.Render(s.Title) + "\n")
	fmt.Fprintf(&b, "%d/%d tests selected\n", len(s.Selected()), s.Count())

	groups := make([][]*suite.Entry, len(s.Scenarios))
	for _, e := range s.Entries() {
		groups[e.Scenario] = append(groups[e.Scenario], e)
	}
	for i, sc := range s.Scenarios {
		b.WriteString("\n")
		head := fmt.Sprintf("Scenario %d: %s (%s)", sc.Index, sc.Name, sc.Type)
		if sc.Source != "" {
			head += " from " + filepath.Base(sc.Source)
		}
		b.WriteString(st.header.Render(head) + "\n")
		if len(groups[i]) == 0 {
			b.WriteString("  no test\n")
			continue
		}

		rows := make([][]string, 0, len(groups[i]))
		styled := make([]lipgloss.Style, 0, len(groups[i]))
		for _, e := range groups[i] {
			state, style := entryState(st, s, e)
			t := e.Test
			rows = append(rows, []string{
				t.ID.String(),
				clip(t.TestTitle),
				clip(t.SubtestTitle),
				pvCell(t.Setter, t.SetValue),
				pvCell(t.Getter, t.GetValue),
				state,
			})
			styled = append(styled, style)
		}
		writeTable(&b, st, "  ", []string{"ID", "TEST", "SUBTEST", "SET", "GET", "STATE"}, rows,
			func(row, col int) (lipgloss.Style, bool) {
				if col == 5 {
					return styled[row], true
				}
				return lipgloss.Style{}, false
			})
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func entryState(st styles, s *suite.Suite, e *suite.Entry) (string, lipgloss.Style) {
	if r, ok := s.Status(e.Test.ID); ok {
		glyph, style := st.status(r.Status)
		return glyph + " " + string(r.Status), style
	}
	if e.State == suite.Skipped {
		text := GlyphSkipped + " skipped"
		if e.Reason != "" {
			text += " (" + e.Reason + ")"
		}
		return text, st.skipped
	}
	return GlyphSelected + " selected", st.column
}

func pvCell(pv string, v any) string {
	if pv == "" {
		return ""
	}
	if v == nil {
		return pv
	}
	return pv + "=" + value.Stringify(v)
}

func clip(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	return runewidth.Truncate(s, TitleWidth, "…")
}

// writeTable aligns rows under headers by display width. style may return a
// style for a cell; padding is added outside the styled text.
func writeTable(b *strings.Builder, st styles, indent string, headers []string, rows [][]string,
	style func(row, col int) (lipgloss.Style, bool)) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, r := range rows {
		for i, c := range r {
			widths[i] = max(widths[i], runewidth.StringWidth(c))
		}
	}

	line := func(cells []string, render func(col int, s string) string) {
		var l strings.Builder
		l.WriteString(indent)
		for i, c := range cells {
			last := i == len(cells)-1
			l.WriteString(render(i, c))
			if !last {
				l.WriteString(strings.Repeat(" ", widths[i]-runewidth.StringWidth(c)+2))
			}
		}
		b.WriteString(strings.TrimRight(l.String(), " ") + "\n")
	}

	line(headers, func(_ int, s string) string { return st.column.Render(s) })
	for ri, r := range rows {
		line(r, func(col int, s string) string {
			if s == "" {
				return s
			}
			if sty, ok := style(ri, col); ok {
				return sty.Render(s)
			}
			return s
		})
	}
}

// Reports writes the validation outcome of every file, with its issues.
func Reports(w io.Writer, reports validate.Reports) error {
	st := newStyles(w)
	var b strings.Builder
	for _, r := range reports {
		switch {
		case r.Fatal():
			b.WriteString(st.failed.Render(GlyphFailed) + " " + st.path.Render(r.File) + "\n")
		case r.Valid():
			b.WriteString(st.passed.Render(GlyphPassed) + " " + st.path.Render(r.File) + "\n")
		default:
			b.WriteString(st.warning.Render(GlyphWarning) + " " + st.path.Render(r.File) + "\n")
		}
		for _, issue := range r.Issues() {
			sev := runewidth.FillRight(issue.Severity, len("warning"))
			if issue.Severity == "error" {
				sev = st.failed.Render(sev)
			} else {
				sev = st.warning.Render(sev)
			}
			for i, l := range strings.Split(issue.Error(), "\n") {
				if i == 0 {
					b.WriteString("  " + sev + " " + l + "\n")
				} else {
					b.WriteString("          " + l + "\n")
				}
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

type treeNode struct {
	name     string
	children []*treeNode
}

func (n *treeNode) child(name string) *treeNode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	c := &treeNode{name: name}
	n.children = append(n.children, c)
	return c
}

// PVTree writes names as a tree of their naming segments. Names the naming
// cannot split are listed at the end.
func PVTree(w io.Writer, names []string, n naming.Naming) error {
	st := newStyles(w)
	sorted := slices.Clone(names)
	slices.SortFunc(sorted, func(a, b string) int {
		if c := slices.Compare(n.SortKey(a), n.SortKey(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	sorted = slices.Compact(sorted)

	root := &treeNode{}
	var incompatible []string
	for _, pv := range sorted {
		parts, err := n.Split(pv)
		if err != nil {
			incompatible = append(incompatible, pv)
			continue
		}
		node := root
		for _, p := range parts {
			node = node.child(p)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", st.title.Render(fmt.Sprintf("%d PVs (%s naming)", len(sorted), n.Name())))
	for _, top := range root.children {
		b.WriteString(st.header.Render(top.name) + "\n")
		writeBranch(&b, top.children, "")
	}
	if len(incompatible) > 0 {
		b.WriteString(st.warning.Render(fmt.Sprintf("%s incompatible with %s naming:", GlyphWarning, n.Name())) + "\n")
		for _, pv := range incompatible {
			b.WriteString("  " + pv + "\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeBranch(b *strings.Builder, nodes []*treeNode, prefix string) {
	for i, c := range nodes {
		branch, next := "├── ", "│   "
		if i == len(nodes)-1 {
			branch, next = "└── ", "    "
		}
		b.WriteString(prefix + branch + c.name + "\n")
		writeBranch(b, c.children, prefix+next)
	}
}

// RunSummary writes the counts of a run.
func RunSummary(w io.Writer, sum *runner.Summary) error {
	st := newStyles(w)
	line := fmt.Sprintf("%d tests: %s, %s, %s, %s",
		sum.Total,
		st.passed.Render(fmt.Sprintf("%d success", sum.Success)),
		st.failed.Render(fmt.Sprintf("%d failed", sum.Failed)),
		st.failed.Render(fmt.Sprintf("%d error", sum.Errors)),
		st.skipped.Render(fmt.Sprintf("%d skipped", sum.Skipped)))
	if sum.Aborted {
		line += " " + st.failed.Render("(aborted)")
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

// Trace writes the trace of every unit that did not succeed.
func Trace(w io.Writer, s *suite.Suite) error {
	st := newStyles(w)
	var b strings.Builder
	for _, t := range s.Tests() {
		r, ok := s.Status(t.ID)
		if !ok || r.Trace == "" || r.Status == suite.StatusSuccess || r.Status == suite.StatusSkipped {
			continue
		}
		glyph, style := st.status(r.Status)
		fmt.Fprintf(&b, "%s %s %s\n", style.Render(glyph), t.ID, clip(desc(t)))
		for _, l := range strings.Split(r.Trace, "\n") {
			b.WriteString("    " + l + "\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func desc(t *compiler.TestData) string {
	return strings.TrimSpace(t.TestTitle + " " + strings.TrimSpace(t.SubtestTitle))
}
