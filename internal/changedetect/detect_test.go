package changedetect_test

import (
	"strings"
	"testing"

	"github.com/archivecrawl/crawler/internal/changedetect"
)

func TestDetectIdenticalTextHasFullSimilarity(t *testing.T) {
	text := "line one\nline two\nline three"
	diff := changedetect.Detect(text, text, changedetect.Options{})

	if diff.Similarity != 1 {
		t.Errorf("identical text should have similarity 1, got %v", diff.Similarity)
	}
	if len(diff.Added) != 0 || len(diff.Removed) != 0 {
		t.Errorf("identical text should have no added/removed lines, got added=%v removed=%v", diff.Added, diff.Removed)
	}
}

func TestDetectCompletelyDifferentTextHasLowSimilarity(t *testing.T) {
	diff := changedetect.Detect("alpha\nbeta\ngamma", "one\ntwo\nthree", changedetect.Options{})

	if diff.Similarity > 0.1 {
		t.Errorf("disjoint text should have near-zero similarity, got %v", diff.Similarity)
	}
}

func TestDetectReportsAddedAndRemovedLines(t *testing.T) {
	previous := "keep\nold line\nalso keep"
	current := "keep\nnew line\nalso keep"

	diff := changedetect.Detect(current, previous, changedetect.Options{})

	if !contains(diff.Added, "new line") {
		t.Errorf("expected 'new line' in Added, got %v", diff.Added)
	}
	if !contains(diff.Removed, "old line") {
		t.Errorf("expected 'old line' in Removed, got %v", diff.Removed)
	}
	if contains(diff.Added, "keep") || contains(diff.Removed, "keep") {
		t.Errorf("shared lines should not appear in Added or Removed, got added=%v removed=%v", diff.Added, diff.Removed)
	}
}

func TestDetectTrimLinesIgnoresWhitespace(t *testing.T) {
	previous := "line one\nline two"
	current := "  line one  \nline two"

	untrimmed := changedetect.Detect(current, previous, changedetect.Options{TrimLines: false})
	trimmed := changedetect.Detect(current, previous, changedetect.Options{TrimLines: true})

	if len(trimmed.Added) != 0 || len(trimmed.Removed) != 0 {
		t.Errorf("trimmed comparison should treat whitespace-only changes as no change, got added=%v removed=%v", trimmed.Added, trimmed.Removed)
	}
	if len(untrimmed.Added) == 0 {
		t.Error("untrimmed comparison should treat the whitespace difference as a change")
	}
}

func TestUnifiedDiffProducesHunkHeaders(t *testing.T) {
	previous := "alpha\nbeta\ngamma\ndelta\nepsilon"
	current := "alpha\nbeta\nGAMMA\ndelta\nepsilon"

	out := changedetect.UnifiedDiff(current, previous, 1)

	if !strings.Contains(out, "@@") {
		t.Errorf("expected a unified diff hunk header, got:\n%s", out)
	}
	if !strings.Contains(out, "-gamma") || !strings.Contains(out, "+GAMMA") {
		t.Errorf("expected the changed line to appear as -gamma/+GAMMA, got:\n%s", out)
	}
}

func TestUnifiedDiffIdenticalTextHasNoHunks(t *testing.T) {
	text := "alpha\nbeta\ngamma"
	out := changedetect.UnifiedDiff(text, text, 3)
	if out != "" {
		t.Errorf("identical text should produce an empty unified diff, got:\n%s", out)
	}
}

func contains(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}
	return false
}
