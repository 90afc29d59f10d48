package house

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffPlans returns a line diff between two plan documents, or "" when they
// are identical. Lines are prefixed with "- " / "+ " and unchanged lines are
// omitted.
func DiffPlans(previous, current string) string {
	if previous == current {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(previous, current)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var result strings.Builder
	additions, deletions := 0, 0
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		default:
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			if prefix == "+ " {
				additions++
			} else {
				deletions++
			}
			result.WriteString(prefix + line + "\n")
		}
	}
	if result.Len() == 0 {
		return ""
	}
	return fmt.Sprintf("plan.json: +%d -%d\n%s", additions, deletions, result.String())
}
