/**
 * Text assembler: orders merged regions into reading-order page text.
 */

package ocr

import (
	"sort"
	"strings"
)

// AssemblePage sorts regions top-to-bottom then left-to-right and joins the
// non-blank texts with newlines. The input slice is not modified.
func AssemblePage(regions []MergedRegion) string {
	ordered := make([]MergedRegion, len(regions))
	copy(ordered, regions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Box.Y1 != ordered[j].Box.Y1 {
			return ordered[i].Box.Y1 < ordered[j].Box.Y1
		}
		return ordered[i].Box.X1 < ordered[j].Box.X1
	})

	lines := make([]string, 0, len(ordered))
	for _, r := range ordered {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		lines = append(lines, r.Text)
	}
	return strings.Join(lines, "\n")
}

// AssembleDocument joins page texts with blank-line separators, skipping
// pages that produced no text.
func AssembleDocument(pages []string) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p) == "" {
			continue
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, "\n\n")
}
