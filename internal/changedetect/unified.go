package changedetect

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

type lineOp struct {
	kind byte // 'e' equal, '-' delete, '+' insert
	text string
}

// lineDiffOps runs diffmatchpatch in line mode (each distinct line
// encoded as one rune, so the underlying char-diff only ever aligns
// whole lines) and expands the result back into a flat op sequence.
func lineDiffOps(previous, current []string) []lineOp {
	dmp := diffmatchpatch.New()
	charsA, charsB, lineArray := dmp.DiffLinesToChars(strings.Join(previous, "\n"), strings.Join(current, "\n"))
	diffs := dmp.DiffMain(charsA, charsB, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var ops []lineOp
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		var kind byte
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			kind = 'e'
		case diffmatchpatch.DiffDelete:
			kind = '-'
		case diffmatchpatch.DiffInsert:
			kind = '+'
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			ops = append(ops, lineOp{kind: kind, text: line})
		}
	}
	return ops
}

type annotatedOp struct {
	lineOp
	oldLineNo int
	newLineNo int
}

type hunk struct {
	oldStart, oldLines int
	newStart, newLines int
	ops                []annotatedOp
}

// buildHunks annotates each op with its position in the old/new
// sequence, then groups changed regions (plus `context` lines of
// padding on each side) into hunks, merging hunks whose padding
// windows overlap.
func buildHunks(ops []lineOp, context int) []hunk {
	if context < 0 {
		context = 0
	}

	annotated := make([]annotatedOp, len(ops))
	old, new := 1, 1
	for i, op := range ops {
		annotated[i] = annotatedOp{lineOp: op, oldLineNo: old, newLineNo: new}
		switch op.kind {
		case 'e':
			old++
			new++
		case '-':
			old++
		case '+':
			new++
		}
	}

	included := make([]bool, len(annotated))
	for i, a := range annotated {
		if a.kind == 'e' {
			continue
		}
		lo, hi := i-context, i+context
		if lo < 0 {
			lo = 0
		}
		if hi >= len(annotated) {
			hi = len(annotated) - 1
		}
		for j := lo; j <= hi; j++ {
			included[j] = true
		}
	}

	var hunks []hunk
	i := 0
	for i < len(annotated) {
		if !included[i] {
			i++
			continue
		}
		start := i
		for i < len(annotated) && included[i] {
			i++
		}
		hunks = append(hunks, makeHunk(annotated[start:i]))
	}
	return hunks
}

func makeHunk(ops []annotatedOp) hunk {
	h := hunk{ops: ops}
	if len(ops) == 0 {
		return h
	}
	h.oldStart = ops[0].oldLineNo
	h.newStart = ops[0].newLineNo
	for _, op := range ops {
		if op.kind != '+' {
			h.oldLines++
		}
		if op.kind != '-' {
			h.newLines++
		}
	}
	return h
}

func formatUnifiedDiff(hunks []hunk) string {
	var sb strings.Builder
	for _, h := range hunks {
		fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n", h.oldStart, h.oldLines, h.newStart, h.newLines)
		for _, op := range h.ops {
			switch op.kind {
			case 'e':
				sb.WriteString(" ")
			case '-':
				sb.WriteString("-")
			case '+':
				sb.WriteString("+")
			}
			sb.WriteString(op.text)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
