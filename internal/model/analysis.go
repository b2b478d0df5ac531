// Package model defines the core data types for the chart journal.
// In Go, we use structs instead of classes. Struct tags (the `json:"..."` and `db:"..."` annotations) tell serialization
// libraries how to map fields.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Provider names. Lookups elsewhere are case-insensitive, these are the
// canonical lowercase forms used as registry keys.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderDeepseek  = "deepseek"
	ProviderAnthropic = "anthropic"
)

// AllProviders is the closed set of providers the registry knows how to build.
var AllProviders = []string{ProviderGemini, ProviderOpenAI, ProviderDeepseek, ProviderAnthropic}

// LegacyDateLayout is the timestamp format of journal backups downloaded from
// the first version of the tool ({"date": ..., "analysis": ...}).
const LegacyDateLayout = "2006-01-02 15:04:05"

// AnalysisRecord is one completed generation cycle. Records are passed by
// value and never edited after the journal appends them.
type AnalysisRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Strategy  string    `json:"strategy"`
	Analysis  string    `json:"analysis"`
}

// UnmarshalJSON accepts both the current format and the legacy backup format,
// where the timestamp lived under "date" with second precision.
func (r *AnalysisRecord) UnmarshalJSON(data []byte) error {
	// The alias type drops the method set, so json.Unmarshal doesn't recurse.
	type recordAlias AnalysisRecord
	var raw struct {
		recordAlias
		Date string `json:"date"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	rec := AnalysisRecord(raw.recordAlias)
	if rec.Timestamp.IsZero() && raw.Date != "" {
		ts, err := time.ParseInLocation(LegacyDateLayout, raw.Date, time.Local)
		if err != nil {
			return fmt.Errorf("parsing legacy date %q: %w", raw.Date, err)
		}
		rec.Timestamp = ts
	}
	if rec.Timestamp.IsZero() {
		return fmt.Errorf("analysis record has no timestamp")
	}

	*r = rec
	return nil
}

// GenerationCall tracks each call to an LLM provider for cost monitoring.
// Failed calls are recorded too, with the error message.
type GenerationCall struct {
	ID           int64     `db:"id" json:"id"`
	RequestID    string    `db:"request_id" json:"request_id"`
	Provider     string    `db:"provider" json:"provider"`
	Model        string    `db:"model" json:"model"`
	Strategy     string    `db:"strategy" json:"strategy"`
	Success      bool      `db:"success" json:"success"`
	DurationMs   int64     `db:"duration_ms" json:"duration_ms"`
	ErrorMessage *string   `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ProviderStats aggregates generation calls for one provider.
type ProviderStats struct {
	Provider  string `db:"provider" json:"provider"`
	Total     int64  `db:"total" json:"total"`
	Succeeded int64  `db:"succeeded" json:"succeeded"`
	Failed    int64  `db:"failed" json:"failed"`
}
