package output

import (
	"bytes"
	"strings"
	"text/tabwriter"
)

// PlainFormatter writes an aligned table without colors.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	cols := columns(r)

	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.header
	}
	if _, err := tw.Write([]byte(strings.Join(headers, "\t") + "\n")); err != nil {
		return err
	}

	fields := make([]string, len(cols))
	for _, row := range r.Rows {
		for i, c := range cols {
			fields[i] = c.value(row)
		}
		if _, err := tw.Write([]byte(strings.Join(fields, "\t") + "\n")); err != nil {
			return err
		}
	}

	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

var _ Formatter = (*PlainFormatter)(nil)
