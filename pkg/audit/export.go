package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Format is an export serialization.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts "csv" and "json" in any case. Empty defaults to JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON:
		return f, nil
	case "":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

// ReportFilename returns audit_report_<date>.<ext> for the given time.
func ReportFilename(f Format, t time.Time) string {
	return "audit_report_" + t.UTC().Format(time.DateOnly) + "." + string(f)
}

// CSVColumns is the fixed column order of CSV exports.
var CSVColumns = []string{
	"Timestamp",
	"Action",
	"Entity Type",
	"Entity ID",
	"User Email",
	"IP Address",
	"Success",
	"Changes",
	"Reason",
}

// Export writes the report for f to w and returns its summary, so callers
// can tell a complete export from a truncated one.
func (q *QueryService) Export(ctx context.Context, w io.Writer, f Filter, format Format) (*Summary, error) {
	if format != FormatCSV && format != FormatJSON {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	report, err := q.Report(ctx, f)
	if err != nil {
		return nil, err
	}
	if format == FormatJSON {
		err = json.NewEncoder(w).Encode(report)
	} else {
		err = WriteCSV(w, report.Logs)
	}
	if err != nil {
		return nil, err
	}
	return &report.Summary, nil
}

// WriteCSV writes a header line and one line per record with every field
// quoted. encoding/csv only quotes when needed, so quoting is done here.
// Line breaks inside a field are written as the two characters \n, which
// keeps one physical line per record.
func WriteCSV(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	writeCSVRow(bw, CSVColumns)

	row := make([]string, len(CSVColumns))
	for i := range records {
		r := &records[i]
		changes := ""
		if r.Changes != nil {
			data, err := json.Marshal(r.Changes)
			if err != nil {
				return fmt.Errorf("encode changes of record %s: %w", r.ID, err)
			}
			changes = string(data)
		}
		row[0] = r.CreatedAt.UTC().Format(time.RFC3339)
		row[1] = string(r.Action)
		row[2] = r.EntityType
		row[3] = r.EntityID
		row[4] = r.UserEmail
		row[5] = r.IPAddress
		row[6] = strconv.FormatBool(r.Success)
		row[7] = changes
		row[8] = r.Reason
		writeCSVRow(bw, row)
	}
	return bw.Flush()
}

var csvEscaper = strings.NewReplacer(`"`, `""`, "\r\n", `\n`, "\n", `\n`, "\r", `\n`)

func writeCSVRow(w *bufio.Writer, fields []string) {
	for i, field := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(csvEscaper.Replace(field))
		w.WriteByte('"')
	}
	w.WriteByte('\n')
}
