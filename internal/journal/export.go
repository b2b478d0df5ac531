package journal

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	"github.com/fleveque/wyckoff-journal/internal/model"
)

// ContentType of an exported journal document.
const ContentType = "application/json"

// ExportFileName returns the download name for an export made at t,
// e.g. "trading_journal_20261019.json".
func ExportFileName(t time.Time) string {
	return fmt.Sprintf("trading_journal_%s.json", t.Format("20060102"))
}

// Marshal serializes the whole journal as an indented JSON array, oldest first.
func (j *Journal) Marshal() ([]byte, error) {
	records := j.Records()
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encoding journal: %w", err)
	}
	return data, nil
}

// Export writes the serialized journal to w.
func (j *Journal) Export(w io.Writer) error {
	data, err := j.Marshal()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing journal: %w", err)
	}
	return nil
}

// Decode reads an exported journal document. Both the current format and the
// legacy {"date", "analysis"} backups are accepted.
func Decode(r io.Reader) ([]model.AnalysisRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading journal: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var records []model.AnalysisRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return records, nil
}

// Import decodes r and restores the records into j, which must be empty.
// An empty document is ErrMalformed; an empty journal exports as "[]".
func (j *Journal) Import(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading journal: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: empty document", ErrMalformed)
	}

	records, err := Decode(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return j.Restore(records)
}

// LoadFile opens a journal previously saved with SaveFile. A missing file
// yields an empty journal.
func LoadFile(path string) (*Journal, error) {
	j := New()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return j, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening journal file: %w", err)
	}
	defer f.Close()

	// Unlike Import, an empty file loads as an empty journal.
	records, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if err := j.Restore(records); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return j, nil
}

// SaveFile writes the journal to path through a temporary file and a rename.
func (j *Journal) SaveFile(path string) error {
	data, err := j.Marshal()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating journal directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing journal file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing journal file: %w", err)
	}
	return nil
}
