package dataset

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/okian/tdoa/internal/domain/model"
	"github.com/okian/tdoa/internal/domain/types"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// WriteCSV writes records with a header row. Failed events leave the
// origin columns empty.
func WriteCSV(w io.Writer, records []types.OriginRecord) error {
	if err := gocsv.Marshal(records, w); err != nil {
		return fmt.Errorf("%w: csv: %w", ErrWriteDataset, err)
	}
	return nil
}

// WriteJSON writes records as an indented JSON array.
func WriteJSON(w io.Writer, records []types.OriginRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("%w: json: %w", ErrWriteDataset, err)
	}
	return nil
}

// Export flattens outcomes and writes them in format.
func Export(w io.Writer, format string, outcomes []model.Outcome) error {
	records := types.NewOriginRecords(outcomes)
	switch format {
	case FormatJSON:
		return WriteJSON(w, records)
	case FormatCSV:
		return WriteCSV(w, records)
	default:
		return fmt.Errorf("%w: %q", ErrFormat, format)
	}
}
