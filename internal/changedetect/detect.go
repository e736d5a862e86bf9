// Package changedetect compares two versions of archived text and
// reports a similarity ratio plus line-level additions and removals,
// or a standard unified diff.
package changedetect

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Detect splits current and previous into lines and reports:
//   - Similarity: a SequenceMatcher-style ratio, 2*M/T where M is the
//     total length of matching runs and T is the combined line count
//     of both versions.
//   - Added/Removed: the set differences between the two line sets
//     (not positional — a line present in current but absent from
//     previous counts as added regardless of where it moved to).
func Detect(current, previous string, opts Options) Diff {
	currentLines := splitLines(current, opts)
	previousLines := splitLines(previous, opts)

	return Diff{
		Similarity: similarityRatio(currentLines, previousLines),
		Added:      setDifference(currentLines, previousLines),
		Removed:    setDifference(previousLines, currentLines),
	}
}

// UnifiedDiff renders a standard unified diff of previous → current
// with `context` lines of surrounding context per hunk.
func UnifiedDiff(current, previous string, context int) string {
	currentLines := strings.Split(current, "\n")
	previousLines := strings.Split(previous, "\n")

	ops := lineDiffOps(previousLines, currentLines)
	hunks := buildHunks(ops, context)
	return formatUnifiedDiff(hunks)
}

func splitLines(text string, opts Options) []string {
	lines := strings.Split(text, "\n")
	if !opts.TrimLines {
		return lines
	}
	trimmed := make([]string, len(lines))
	for i, l := range lines {
		trimmed[i] = strings.TrimSpace(l)
	}
	return trimmed
}

// similarityRatio computes 2*M/T using diffmatchpatch's line-mode
// diff to find M, the combined length of equal runs.
func similarityRatio(current, previous []string) float64 {
	total := len(current) + len(previous)
	if total == 0 {
		return 1
	}

	dmp := diffmatchpatch.New()
	charsA, charsB, lineArray := dmp.DiffLinesToChars(strings.Join(previous, "\n"), strings.Join(current, "\n"))
	diffs := dmp.DiffMain(charsA, charsB, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var matching int
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			matching += countLines(d.Text)
		}
	}

	return 2 * float64(matching) / float64(total)
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	// Line-mode chunks keep each line's trailing "\n", so count
	// terminators and add one only for an unterminated last line.
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}

// setDifference returns elements of a not present in b, preserving a's
// order, deduplicated.
func setDifference(a, b []string) []string {
	present := make(map[string]bool, len(b))
	for _, l := range b {
		present[l] = true
	}

	seen := make(map[string]bool)
	var out []string
	for _, l := range a {
		if present[l] || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
