package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"
)

// LoadReport summarises a bulk load.
type LoadReport struct {
	Files       int
	Records     int
	Inserted    int
	Overwritten int
	Skipped     int
	Errors      []RecordError
}

// RecordError describes a skipped record.
type RecordError struct {
	Source string
	Line   int
	Err    error
}

func (e RecordError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("%s:%d: %v", e.Source, e.Line, e.Err)
}

func (e RecordError) Unwrap() error {
	return e.Err
}

func (r *LoadReport) merge(o LoadReport) {
	r.Files += o.Files
	r.Records += o.Records
	r.Inserted += o.Inserted
	r.Overwritten += o.Overwritten
	r.Skipped += o.Skipped
	r.Errors = append(r.Errors, o.Errors...)
}

// BulkLoad inserts one document per JSON line of r. Malformed records are
// logged, counted and skipped; only a read error or cancellation aborts.
// Duplicate ids overwrite earlier ones.
func (s *Store) BulkLoad(ctx context.Context, r io.Reader, idField, contentField string) (LoadReport, error) {
	return s.bulkLoad(ctx, "", r, idField, contentField)
}

// BulkLoadFiles loads every file matching the doublestar pattern.
func (s *Store) BulkLoadFiles(ctx context.Context, pattern, idField, contentField string) (LoadReport, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return LoadReport{}, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return LoadReport{}, fmt.Errorf("no files match %q", pattern)
	}

	var report LoadReport
	for _, path := range matches {
		f, err := os.Open(path)
		if err != nil {
			return report, fmt.Errorf("failed to open %s: %w", path, err)
		}
		r, err := s.bulkLoad(ctx, path, f, idField, contentField)
		f.Close()
		report.merge(r)
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

func (s *Store) bulkLoad(ctx context.Context, source string, r io.Reader, idField, contentField string) (LoadReport, error) {
	ctx, span := s.obs.StartSpan(ctx, "store.BulkLoad")
	defer span.End()

	report := LoadReport{Files: 1}
	reader := bufio.NewReader(r)
	for lineNo := 1; ; lineNo++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return report, fmt.Errorf("read %s line %d: %w", sourceName(source), lineNo, readErr)
		}

		if line = bytes.TrimSpace(line); len(line) > 0 {
			report.Records++
			s.loadRecord(ctx, &report, source, lineNo, line, idField, contentField)
		}

		if readErr != nil {
			break
		}
	}

	s.obs.Log().Info().
		Str("source", sourceName(source)).
		Int("inserted", report.Inserted).
		Int("overwritten", report.Overwritten).
		Int("skipped", report.Skipped).
		Msg("bulk load finished")
	return report, nil
}

func (s *Store) loadRecord(ctx context.Context, report *LoadReport, source string, lineNo int, line []byte, idField, contentField string) {
	id, content, err := parseRecord(line, idField, contentField)
	overwritten := false
	if err == nil {
		_, overwritten, err = s.insert(ctx, id, content)
	}

	if err != nil {
		report.Skipped++
		report.Errors = append(report.Errors, RecordError{Source: source, Line: lineNo, Err: err})
		s.metrics.IngestRecord("skipped")
		s.obs.Log().Warn().
			Str("source", sourceName(source)).
			Int("line", lineNo).
			Err(err).
			Msg("Insert Error: skipping record")
		return
	}

	report.Inserted++
	if overwritten {
		report.Overwritten++
		s.metrics.IngestRecord("overwritten")
		return
	}
	s.metrics.IngestRecord("inserted")
}

func parseRecord(line []byte, idField, contentField string) (string, string, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var record map[string]any
	if err := dec.Decode(&record); err != nil {
		return "", "", fmt.Errorf("invalid JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return "", "", errors.New("invalid JSON: trailing data after record")
	}
	if record == nil {
		return "", "", errors.New("record is not a JSON object")
	}

	rawID, ok := record[idField]
	if !ok {
		return "", "", fmt.Errorf("missing field %q", idField)
	}
	var id string
	switch v := rawID.(type) {
	case string:
		id = v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			id = strconv.FormatInt(n, 10)
		} else {
			id = v.String()
		}
	default:
		return "", "", fmt.Errorf("field %q must be a string or number", idField)
	}

	rawContent, ok := record[contentField]
	if !ok {
		return "", "", fmt.Errorf("missing field %q", contentField)
	}
	content, ok := rawContent.(string)
	if !ok {
		return "", "", fmt.Errorf("field %q must be a string", contentField)
	}
	return id, content, nil
}

func sourceName(source string) string {
	if source == "" {
		return "input"
	}
	return source
}
