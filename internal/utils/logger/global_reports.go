package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// StringListReport collects lines (fetched URLs) to be written out at the end
// of a run.
type StringListReport struct {
	Title string

	mu    sync.Mutex
	items []string
}

// NewStringListReport returns an empty report with the given title.
func NewStringListReport(title string) *StringListReport {
	return &StringListReport{Title: title}
}

// Add appends an item. A nil report ignores it.
func (r *StringListReport) Add(item string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.items = append(r.items, item)
	r.mu.Unlock()
}

// Items returns a copy of the collected items.
func (r *StringListReport) Items() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.items))
	copy(out, r.items)
	return out
}

// WriteToFile appends the collected items to dir/fetchurl-<title>.txt and
// resets the report. It returns the path written.
func (r *StringListReport) WriteToFile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating base path: %w", err)
	}

	title := r.Title
	if title == "" {
		title = "untitled"
	}
	// Replace spaces and special characters with underscores
	safeTitle := ""
	for _, c := range title {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			safeTitle += string(c)
		} else {
			safeTitle += "_"
		}
	}

	reportFullPath := filepath.Join(dir, fmt.Sprintf("fetchurl-%s.txt", safeTitle))

	f, err := os.OpenFile(reportFullPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if _, err := fmt.Fprintln(f, item); err != nil {
			return "", fmt.Errorf("writing to file: %w", err)
		}
	}

	r.items = nil
	if _, err := fmt.Fprintln(f); err != nil {
		return "", fmt.Errorf("writing new line to file: %w", err)
	}

	return reportFullPath, nil
}
