package journal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// ArchiveDay exports one day's events to a zstd-compressed JSON-lines file
// under dir and deletes them from the live table, keeping the database
// small on long runs. Returns the archive path; a day with no events
// archives nothing and returns "".
func (j *Journal) ArchiveDay(dir string, day int) (string, error) {
	rows, err := j.EventsForDay(day)
	if err != nil {
		return "", fmt.Errorf("load day %d: %w", day, err)
	}
	if len(rows) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("day-%04d.jsonl.zst", day))

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return "", err
	}
	enc := json.NewEncoder(zw)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			zw.Close()
			return "", fmt.Errorf("encode event %s: %w", row.ID, err)
		}
	}
	if err := zw.Close(); err != nil {
		return "", err
	}

	if _, err := j.conn.Exec("DELETE FROM events WHERE day = ?", day); err != nil {
		return "", fmt.Errorf("prune day %d: %w", day, err)
	}

	slog.Info("journal day archived", "day", day, "events", len(rows), "path", path)
	return path, nil
}

// ReadArchive loads the events back out of an archive file, for tooling.
func ReadArchive(path string) ([]EventRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var rows []EventRow
	dec := json.NewDecoder(zr)
	for dec.More() {
		var row EventRow
		if err := dec.Decode(&row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
