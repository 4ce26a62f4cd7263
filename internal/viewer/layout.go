package viewer

import "github.com/fyrsmithlabs/foldd/internal/editor"

// row is one painted line.
type row struct {
	line int
	// fold is the fold whose marker is drawn on this line, if any.
	fold *editor.Fold
	// hidden is the number of lines a collapsed fold hides below this one.
	hidden int
}

// layout returns the rows left visible once collapsed folds hide their
// bodies. A collapsed fold keeps its first line.
func layout(lineCount int, folds []editor.Fold) []row {
	starts := make(map[int]editor.Fold, len(folds))
	for _, f := range folds {
		cur, ok := starts[f.StartLine]
		if !ok || outranks(f, cur) {
			starts[f.StartLine] = f
		}
	}

	rows := make([]row, 0, lineCount)
	hideUntil := -1
	for line := 0; line < lineCount; line++ {
		if line <= hideUntil {
			continue
		}
		r := row{line: line}
		if f, ok := starts[line]; ok {
			r.fold = &f
			if f.Collapsed && f.EndLine > line {
				r.hidden = f.EndLine - line
				hideUntil = f.EndLine
			}
		}
		rows = append(rows, r)
	}
	return rows
}

// outranks reports whether a should own the marker on a line shared with b.
// Collapsed folds win, then the longer fold.
func outranks(a, b editor.Fold) bool {
	if a.Collapsed != b.Collapsed {
		return a.Collapsed
	}
	return a.EndLine > b.EndLine
}

// innermost returns the smallest fold containing line.
func innermost(folds []editor.Fold, line int) (editor.Fold, bool) {
	var best editor.Fold
	found := false
	for _, f := range folds {
		if line < f.StartLine || line > f.EndLine {
			continue
		}
		if !found || f.EndLine-f.StartLine < best.EndLine-best.StartLine {
			best, found = f, true
		}
	}
	return best, found
}
