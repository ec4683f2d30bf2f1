// Package curriculum loads the course units and topics from YAML.
package curriculum

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed content
var content embed.FS

// DefaultFS is the curriculum shipped with the binary.
var DefaultFS = mustSub(content, "content")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// Loader holds the loaded curriculum. It is read-only after NewLoader returns.
type Loader struct {
	units  []Unit
	topics map[string]int // topic id -> index into units
}

// NewLoader loads every unit file in fsys. Files that are not valid YAML are
// skipped; duplicate topic ids, duplicate unit numbers and unknown chart types
// are errors.
func NewLoader(fsys fs.FS) (*Loader, error) {
	l := &Loader{topics: make(map[string]int)}

	if err := l.loadAll(fsys); err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}

	slices.SortFunc(l.units, func(a, b Unit) int { return a.Number - b.Number })
	for i, u := range l.units {
		for _, t := range u.Topics {
			l.topics[t.ID] = i
		}
	}

	slog.Info("curriculum loaded", "units", len(l.units), "topics", l.TopicCount())
	return l, nil
}

// NewDirLoader loads the curriculum from a directory on disk.
func NewDirLoader(dir string) (*Loader, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("loading curriculum: %s is not a directory", dir)
	}
	return NewLoader(os.DirFS(dir))
}

// Units returns all units ordered by number.
func (l *Loader) Units() []Unit {
	return slices.Clone(l.units)
}

// Topic returns a topic by ID.
func (l *Loader) Topic(id string) (Topic, bool) {
	i, ok := l.topics[id]
	if !ok {
		return Topic{}, false
	}
	for _, t := range l.units[i].Topics {
		if t.ID == id {
			return t, true
		}
	}
	return Topic{}, false
}

// UnitOf returns the unit containing topic id.
func (l *Loader) UnitOf(id string) (Unit, bool) {
	i, ok := l.topics[id]
	if !ok {
		return Unit{}, false
	}
	return l.units[i], true
}

// TopicCount returns the number of topics across all units.
func (l *Loader) TopicCount() int {
	return len(l.topics)
}

// Completion counts, per unit, how many of its topics appear in completed.
// Ids that are not in the curriculum are ignored.
func (l *Loader) Completion(completed []string) []UnitCompletion {
	out := make([]UnitCompletion, 0, len(l.units))
	for _, u := range l.units {
		c := UnitCompletion{Unit: u.Number, Title: u.Title, Total: len(u.Topics)}
		for _, t := range u.Topics {
			if slices.Contains(completed, t.ID) {
				c.Completed++
			}
		}
		if c.Total > 0 {
			c.Ratio = float64(c.Completed) / float64(c.Total)
		}
		out = append(out, c)
	}
	return out
}

func (l *Loader) loadAll(fsys fs.FS) error {
	seen := make(map[string]string) // topic id -> file
	numbers := make(map[int]string) // unit number -> file

	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := path.Ext(p); ext != ".yaml" && ext != ".yml" {
			return nil
		}

		unit, ok, err := loadUnit(fsys, p)
		if err != nil || !ok {
			return err
		}

		if other, dup := numbers[unit.Number]; dup {
			return fmt.Errorf("%s: unit %d already defined in %s", p, unit.Number, other)
		}
		numbers[unit.Number] = p

		for _, t := range unit.Topics {
			if other, dup := seen[t.ID]; dup {
				return fmt.Errorf("%s: topic %q of %s already defined in %s", p, t.ID, unit, other)
			}
			seen[t.ID] = p
		}

		slog.Debug("unit loaded", "unit", unit.String(), "file", p, "topics", len(unit.Topics))
		l.units = append(l.units, unit)
		return nil
	})
}

// loadUnit parses one file. ok is false for files that are not units.
func loadUnit(fsys fs.FS, p string) (Unit, bool, error) {
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		return Unit{}, false, err
	}

	var unit Unit
	if err := yaml.Unmarshal(data, &unit); err != nil {
		slog.Warn("skipping invalid unit YAML", "path", p, "error", err)
		return Unit{}, false, nil
	}

	if unit.Number == 0 {
		return Unit{}, false, nil // Not a unit file
	}

	for i := range unit.Topics {
		t := &unit.Topics[i]
		t.ID = strings.TrimSpace(t.ID)
		if t.ID == "" {
			return Unit{}, false, fmt.Errorf("%s: topic %d has no id", p, i+1)
		}
		if t.Chart == "" {
			t.Chart = ChartNone
		}
		if !t.Chart.valid() {
			return Unit{}, false, fmt.Errorf("%s: topic %q has unknown chart %q", p, t.ID, t.Chart)
		}
	}
	return unit, true, nil
}
