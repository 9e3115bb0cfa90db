package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sawpanic/gemscan/internal/screen"
)

// TimestampLayout renders the run instant, always in UTC.
const TimestampLayout = "2006-01-02 15:04 UTC"

// Report is the written artifact of a run.
type Report struct {
	Timestamp string          `json:"timestamp"`
	Tokens    []screen.Result `json:"tokens"`
}

// New builds a report stamped with now. Tokens is never nil so an empty run
// encodes as [] rather than null.
func New(now time.Time, tokens []screen.Result) Report {
	if tokens == nil {
		tokens = []screen.Result{}
	}
	return Report{
		Timestamp: now.UTC().Format(TimestampLayout),
		Tokens:    tokens,
	}
}

// Encode renders the report as two-space indented JSON. Non-ASCII text and
// HTML characters are written literally.
func Encode(r Report) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return buf.Bytes(), nil
}

// Write encodes r and replaces path with it. The returned bytes are exactly
// what was written.
func Write(path string, r Report) ([]byte, error) {
	data, err := Encode(r)
	if err != nil {
		return nil, err
	}
	if err := WriteFileAtomic(path, data); err != nil {
		return nil, fmt.Errorf("write report %s: %w", path, err)
	}
	return data, nil
}

// WriteFileAtomic writes data to a sibling temp file and renames it over
// path, so readers never observe a partial report.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
