package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
)

// Store persists crack results to a single JSON file.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Save appends r unless an identical result (ignoring the timestamp) is
// already stored. It reports whether the file was written.
func (s *Store) Save(r *CrackResult) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, existing, err := s.read()
	if err != nil {
		return false, err
	}
	for _, e := range existing {
		if e.SameAs(r) {
			return false, nil
		}
	}

	rec, err := json.Marshal(r)
	if err != nil {
		return false, fmt.Errorf("encode result: %w", err)
	}
	// Entries this version cannot decode are written back untouched.
	data, err := json.MarshalIndent(append(raw, rec), "", "  ")
	if err != nil {
		return false, fmt.Errorf("encode results: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return false, fmt.Errorf("write %s: %w", s.path, err)
	}
	return true, nil
}

// LoadAll returns every stored result, newest first. A missing file is an empty store.
func (s *Store) LoadAll() ([]*CrackResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, results, err := s.read()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Timestamp.After(results[j].Timestamp)
	})
	return results, nil
}

// read returns every stored entry as raw JSON together with the ones that
// decode. Records are decoded one by one so a single unknown kind does not
// hide the rest.
func (s *Store) read() ([]json.RawMessage, []*CrackResult, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", s.path, err)
	}

	results := make([]*CrackResult, 0, len(raw))
	for i, msg := range raw {
		r := &CrackResult{}
		if err := json.Unmarshal(msg, r); err != nil {
			slog.Warn("skipping unreadable result", "file", s.path, "index", i, "err", err)
			continue
		}
		results = append(results, r)
	}
	return raw, results, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Format renders results as a column-aligned table in the order given.
func Format(results []*CrackResult) string {
	if len(results) == 0 {
		return "No cracked networks.\n"
	}

	headers := []string{"DATE", "ESSID", "BSSID", "TYPE", "KEY"}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Timestamp.Format("2006-01-02 15:04:05"),
			runewidth.Truncate(r.ESSID, 32, ".."),
			r.BSSID,
			string(r.Kind),
			r.DisplayKey(),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		sb.WriteString("  ")
		for i, cell := range cells {
			if i == len(cells)-1 {
				sb.WriteString(cell)
				break
			}
			sb.WriteString(runewidth.FillRight(cell, widths[i]))
			sb.WriteString("  ")
		}
		sb.WriteString("\n")
	}

	writeRow(headers)
	rule := make([]string, len(headers))
	for i := range headers {
		rule[i] = strings.Repeat("-", widths[i])
	}
	writeRow(rule)
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}
