package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

var csvHeader = []string{"id", "created_at", "actor_id", "action", "target_type", "target_id", "severity", "category", "details"}

// WriteCSV encodes records as CSV with a header row. Cells that a spreadsheet would
// evaluate as a formula are prefixed with a quote.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range records {
		details := ""
		if len(rec.Details) > 0 {
			raw, err := json.Marshal(rec.Details)
			if err != nil {
				return fmt.Errorf("audit: encode details of %s: %w", rec.ID, err)
			}
			details = string(raw)
		}
		row := []string{
			rec.ID,
			rec.CreatedAt.UTC().Format(time.RFC3339),
			sanitizeCell(rec.ActorID),
			sanitizeCell(rec.Action),
			sanitizeCell(rec.TargetType),
			sanitizeCell(rec.TargetID),
			string(rec.Severity),
			string(rec.Category),
			sanitizeCell(details),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON encodes records as a JSON array.
func WriteJSON(w io.Writer, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func sanitizeCell(v string) string {
	if v == "" {
		return v
	}
	if strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}
