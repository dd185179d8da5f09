package migration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"
)

const (
	versionLayout = "20060102150405"
	upSuffix      = ".up.sql"
	downSuffix    = ".down.sql"
)

var upTemplate = template.Must(template.New("up").Parse(`-- Migration: {{.Name}}
-- Created: {{.Timestamp}}
{{- if .Description}}
-- Description: {{.Description}}
{{- end}}

`))

var downTemplate = template.Must(template.New("down").Parse(`-- Migration: {{.Name}} (Rollback)
-- Created: {{.Timestamp}}

`))

// ErrEmptyName is returned when a migration name sanitizes to nothing
var ErrEmptyName = errors.New("migration: name must contain letters or digits")

// Entry is one migration pair found in the migrations directory
type Entry struct {
	Version uint64
	Name    string
	HasDown bool
}

// BaseName returns the file stem, e.g. 20250110090000_create_fee_catalog
func (e Entry) BaseName() string {
	return fmt.Sprintf("%d_%s", e.Version, e.Name)
}

// MigrationFile describes a freshly created up/down pair
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	Timestamp   string
	UpPath      string
	DownPath    string
}

// Creator writes new migration pairs into a directory
type Creator struct {
	Dir string
	Now func() time.Time
}

// NewCreator creates a Creator for dir using the wall clock
func NewCreator(dir string) *Creator {
	return &Creator{Dir: dir, Now: time.Now}
}

// Create writes <version>_<name>.up.sql and .down.sql. The version is a
// UTC timestamp so files sort in creation order.
func (c *Creator) Create(name, description string) (*MigrationFile, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return nil, ErrEmptyName
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	now := c.Now().UTC()
	version := now.Format(versionLayout)
	base := version + "_" + slug
	mf := &MigrationFile{
		Version:     version,
		Name:        slug,
		Description: strings.TrimSpace(description),
		Timestamp:   now.Format(time.RFC3339),
		UpPath:      filepath.Join(c.Dir, base+upSuffix),
		DownPath:    filepath.Join(c.Dir, base+downSuffix),
	}

	if err := writeTemplate(mf.UpPath, upTemplate, mf); err != nil {
		return nil, fmt.Errorf("failed to create up migration: %w", err)
	}
	if err := writeTemplate(mf.DownPath, downTemplate, mf); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, fmt.Errorf("failed to create down migration: %w", err)
	}
	return mf, nil
}

func writeTemplate(path string, tmpl *template.Template, data *MigrationFile) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer f.Close()
	return tmpl.Execute(f, data)
}

// sanitizeName lowercases name and joins its alphanumeric words with underscores
func sanitizeName(name string) string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	})
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				return r
			}
			return -1
		}, w)
		if w != "" {
			out = append(out, w)
		}
	}
	return strings.Join(out, "_")
}

// List returns the migration pairs in dir ordered by version. A missing
// directory yields an empty list.
func List(dir string) ([]Entry, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	downs := make(map[string]bool)
	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), downSuffix) {
			downs[strings.TrimSuffix(f.Name(), downSuffix)] = true
		}
	}

	entries := make([]Entry, 0)
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), upSuffix) {
			continue
		}
		base := strings.TrimSuffix(f.Name(), upSuffix)
		rawVersion, name, ok := strings.Cut(base, "_")
		if !ok {
			continue
		}
		version, err := strconv.ParseUint(rawVersion, 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Version: version, Name: name, HasDown: downs[base]})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Version < entries[j].Version })
	return entries, nil
}

// Partition splits entries into those at or below current and those above it
func Partition(entries []Entry, current uint) (applied, pending []Entry) {
	for _, e := range entries {
		if e.Version <= uint64(current) {
			applied = append(applied, e)
		} else {
			pending = append(pending, e)
		}
	}
	return applied, pending
}
