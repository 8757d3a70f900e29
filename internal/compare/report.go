package compare

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ozzy-project/ozzy/internal/changeset"
)

type RenderOptions struct {
	// Verbose lists every difference instead of three per section.
	Verbose bool
	// BinaryDetails renders data values as full hex instead of a length.
	BinaryDetails bool
}

const perSectionLimit = 3

// Render writes the plist comparison as a per-section report.
func (r *Result) Render(w io.Writer, opts RenderOptions) {
	if len(r.Differences) == 0 {
		fmt.Fprintln(w, "✅ No differences found! The plists are functionally identical.")
		return
	}

	var order []string
	grouped := map[string][]Difference{}
	for _, d := range r.Differences {
		section := d.Section()
		if _, seen := grouped[section]; !seen {
			order = append(order, section)
		}
		grouped[section] = append(grouped[section], d)
	}

	for _, section := range order {
		diffs := grouped[section]
		fmt.Fprintf(w, "📁 %s\n", section)
		for i, d := range diffs {
			if !opts.Verbose && i == perSectionLimit {
				fmt.Fprintf(w, "   ... and %d more\n", len(diffs)-perSectionLimit)
				break
			}
			fmt.Fprintf(w, "   %s\n", d.describe(opts))
		}
	}

	fmt.Fprintf(w, "\n📊 %d differences in %d sections\n", len(r.Differences), len(order))
}

func (d Difference) describe(opts RenderOptions) string {
	loc := d.Path[0]
	if len(d.Path) > 1 {
		loc = strings.Join(d.Path[1:], " -> ")
	}

	switch d.Kind {
	case OnlyFirst:
		return fmt.Sprintf("- %s (only in first): %s", loc, renderValue(d.First, opts))
	case OnlySecond:
		return fmt.Sprintf("+ %s (only in second): %s", loc, renderValue(d.Second, opts))
	default:
		return fmt.Sprintf("~ %s: %s != %s", loc, renderValue(d.First, opts), renderValue(d.Second, opts))
	}
}

func renderValue(v interface{}, opts RenderOptions) string {
	if data, ok := asBytes(v); ok {
		if opts.BinaryDetails {
			return fmt.Sprintf("0x%X", data)
		}
		return fmt.Sprintf("<%d bytes>", len(data))
	}

	var s string
	switch v.(type) {
	case map[string]interface{}, map[interface{}]interface{}, []interface{}:
		s = fingerprint(v)
	case string:
		s = fmt.Sprintf("%q", v)
	default:
		s = fmt.Sprintf("%v", v)
	}
	if len(s) > 60 {
		s = s[:57] + "..."
	}
	return s
}

// RenderChangesets writes the section-level changeset comparison as a
// report.
func RenderChangesets(w io.Writer, firstName, secondName string, first, second changeset.Changeset) {
	cmp := changeset.Compare(first, second)

	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w, "CHANGESET COMPARISON REPORT")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintf(w, "First:  %s (%d sections)\n", firstName, len(first))
	fmt.Fprintf(w, "Second: %s (%d sections)\n", secondName, len(second))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "SUMMARY")
	fmt.Fprintf(w, "  %d identical, %d different, %d only in first, %d only in second\n",
		len(cmp.Identical), len(cmp.Different), len(cmp.OnlyInFirst), len(cmp.OnlyInSecond))

	if len(cmp.Identical) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "✅ IDENTICAL SECTIONS")
		for _, section := range cmp.Identical {
			fmt.Fprintf(w, "  %s\n", section)
		}
	}
	if len(cmp.OnlyInFirst) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "📋 ONLY IN %s\n", strings.ToUpper(firstName))
		for _, section := range cmp.OnlyInFirst {
			fmt.Fprintf(w, "  %s\n", section)
		}
	}
	if len(cmp.OnlyInSecond) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "📋 ONLY IN %s\n", strings.ToUpper(secondName))
		for _, section := range cmp.OnlyInSecond {
			fmt.Fprintf(w, "  %s\n", section)
		}
	}

	if len(cmp.Different) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "🔄 DIFFERENT SECTIONS")
		for _, section := range sortedSections(cmp.Different) {
			fmt.Fprintf(w, "\n  %s:\n", section)
			for _, line := range cmp.Different[section] {
				fmt.Fprintf(w, "    %s %s\n", diffMarker(line), line)
			}
		}
	}
}

func diffMarker(line string) string {
	switch {
	case strings.HasPrefix(line, "+"):
		return "🟢"
	case strings.HasPrefix(line, "-"):
		return "🔴"
	default:
		return "🟡"
	}
}

func sortedSections(m map[string][]string) []string {
	sections := make([]string, 0, len(m))
	for section := range m {
		sections = append(sections, section)
	}
	sort.Strings(sections)
	return sections
}
