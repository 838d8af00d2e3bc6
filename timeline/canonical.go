package timeline

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical renders a table to its canonical text form: a UTF-8,
// tab-separated block with one header line and one line per row, in the
// table's row order. This is the ONLY serialization used for golden files
// and fingerprints.
//
// Determinism rules:
//  1. Strings are NFC normalized at the encoding boundary.
//  2. Floats use shortest round-trip formatting (strconv 'g', -1).
//  3. Missing renders as ".".
//  4. Cells containing tabs, line breaks, control characters, or double
//     quotes are Go-quoted so framing stays unambiguous.
//
// Rows are encoded in the order given; producers emit (id, start, stop)
// sorted tables, so canonical bytes are stable across runs.
func MarshalCanonical(t *Table) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(ColID)
	buf.WriteByte('\t')
	buf.WriteString(ColStart)
	buf.WriteByte('\t')
	buf.WriteString(ColStop)
	for _, c := range t.Columns {
		buf.WriteByte('\t')
		buf.WriteString(canonicalCell(c))
	}
	buf.WriteByte('\n')

	for i, r := range t.Rows {
		if len(r.Values) != len(t.Columns) {
			return nil, fmt.Errorf("row %d: %d values for %d columns", i, len(r.Values), len(t.Columns))
		}
		buf.WriteString(canonicalCell(r.ID))
		buf.WriteByte('\t')
		buf.WriteString(strconv.FormatInt(r.Start, 10))
		buf.WriteByte('\t')
		buf.WriteString(strconv.FormatInt(r.Stop, 10))
		for _, v := range r.Values {
			buf.WriteByte('\t')
			buf.WriteString(canonicalValue(v))
		}
		buf.WriteByte('\n')
	}

	return buf.Bytes(), nil
}

// canonicalValue renders one cell. String cells pass through the same
// normalization and quoting as structural cells; numeric cells never need
// quoting.
func canonicalValue(v Value) string {
	if s, ok := v.(String); ok {
		return canonicalCell(string(s))
	}
	return Render(v)
}

// canonicalCell NFC-normalizes a string and quotes it when it would break
// tab/newline framing.
func canonicalCell(s string) string {
	s = norm.NFC.String(s)
	if needsQuoting(s) {
		return strconv.Quote(s)
	}
	return s
}

func needsQuoting(s string) bool {
	return strings.ContainsFunc(s, func(r rune) bool {
		return r < 0x20 || r == '"' || r == 0x7f
	})
}
