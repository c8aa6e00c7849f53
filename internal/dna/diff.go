package dna

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"sdna/internal/model"
)

// Diff writes a line diff of the row renderings of from and to to w,
// prefixing removed lines with "-" and added lines with "+". It reports
// whether the layouts differ.
func Diff(w io.Writer, from, to *model.SDNA) (bool, error) {
	var a, b bytes.Buffer
	if err := writeRows(&a, from); err != nil {
		return false, err
	}
	if err := writeRows(&b, to); err != nil {
		return false, err
	}

	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a.String(), b.String())
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	changed := false
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
			changed = true
		case diffmatchpatch.DiffInsert:
			prefix = "+"
			changed = true
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			if _, err := fmt.Fprintf(w, "%s%s", prefix, line); err != nil {
				return changed, err
			}
		}
	}
	return changed, nil
}
