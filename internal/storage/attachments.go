// Package storage keeps report attachments on disk, one directory per report.
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Attachment kinds, used as the file name prefix.
const (
	KindActivity = "atividade"
	KindIncident = "ocorrencia"
	KindPhoto    = "foto_geral"
)

var ErrInvalidPath = errors.New("invalid attachment path")

func ValidKind(kind string) bool {
	return kind == KindActivity || kind == KindIncident || kind == KindPhoto
}

type Attachments struct {
	root string
	now  func() time.Time
}

func NewAttachments(root string) (*Attachments, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create attachments dir: %w", err)
	}
	return &Attachments{root: root, now: time.Now}, nil
}

func (a *Attachments) Root() string { return a.root }

// Save writes r under the report's directory and returns the path relative to
// the attachment root, "<reportID>/<kind>_<index>_<timestamp>_<name>".
func (a *Attachments) Save(r io.Reader, reportID, kind string, index int, filename string) (string, error) {
	if !validSegment(reportID) {
		return "", fmt.Errorf("save attachment: %w", ErrInvalidPath)
	}
	name := cleanName(filename)
	dir := filepath.Join(a.root, reportID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	stamp := a.now().Format("20060102150405")
	file := fmt.Sprintf("%s_%d_%s_%s", kind, index, stamp, name)
	f, err := os.OpenFile(filepath.Join(dir, file), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		// same kind/index/name within one second
		file = fmt.Sprintf("%s_%d_%s_%d_%s", kind, index, stamp, a.now().Nanosecond(), name)
		f, err = os.OpenFile(filepath.Join(dir, file), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	}
	if err != nil {
		return "", fmt.Errorf("create attachment: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write attachment: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close attachment: %w", err)
	}
	return path.Join(reportID, file), nil
}

// Resolve maps a stored relative path to its location on disk. Paths that
// would leave the report directory are rejected.
func (a *Attachments) Resolve(rel string) (string, error) {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "/")
	parts := strings.Split(rel, "/")
	if len(parts) != 2 || !validSegment(parts[0]) || !validSegment(parts[1]) {
		return "", fmt.Errorf("resolve %q: %w", rel, ErrInvalidPath)
	}
	return filepath.Join(a.root, parts[0], parts[1]), nil
}

// ReportOf returns the report id a relative path belongs to.
func ReportOf(rel string) string {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "/")
	if i := strings.IndexByte(rel, '/'); i > 0 {
		return rel[:i]
	}
	return ""
}

func (a *Attachments) Open(rel string) (*os.File, error) {
	p, err := a.Resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// List returns the relative paths stored for a report, sorted.
func (a *Attachments) List(reportID string) ([]string, error) {
	if !validSegment(reportID) {
		return nil, fmt.Errorf("list attachments: %w", ErrInvalidPath)
	}
	entries, err := os.ReadDir(filepath.Join(a.root, reportID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, path.Join(reportID, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// DeleteReport removes every attachment of a report.
func (a *Attachments) DeleteReport(reportID string) error {
	if !validSegment(reportID) {
		return fmt.Errorf("delete attachments: %w", ErrInvalidPath)
	}
	if err := os.RemoveAll(filepath.Join(a.root, reportID)); err != nil {
		return fmt.Errorf("delete attachments: %w", err)
	}
	return nil
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if !validSegment(name) {
		return "arquivo"
	}
	return name
}
