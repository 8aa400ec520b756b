package simulate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"gopkg.in/yaml.v3"
)

const directoryPermission = 0o750

// ErrEmptyFixture is returned for a fixture without judges or teams.
var ErrEmptyFixture = errors.New("fixture needs at least one judge and one team")

// Fixture is the roster a run seeds before scoring.
type Fixture struct {
	Judges []string `yaml:"judges"`
	Teams  []string `yaml:"teams"`
}

// Validate trims names and rejects an empty roster or duplicate names.
func (f *Fixture) Validate() error {
	var err error
	if f.Judges, err = uniqueNames("judge", f.Judges); err != nil {
		return err
	}
	if f.Teams, err = uniqueNames("team", f.Teams); err != nil {
		return err
	}
	if len(f.Judges) == 0 || len(f.Teams) == 0 {
		return ErrEmptyFixture
	}
	return nil
}

func uniqueNames(kind string, names []string) ([]string, error) {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := strings.ToLower(n)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate %s name %q", kind, n)
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}

// LoadFixture reads a YAML fixture from path.
func LoadFixture(path string) (Fixture, error) {
	var f Fixture
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read fixture: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return f, fmt.Errorf("fixture %s: %w", path, err)
	}
	return f, nil
}

// SaveFixture writes f to path as YAML, creating the directory if needed.
func SaveFixture(path string, f Fixture) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create fixture directory: %w", err)
		}
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// GenerateFixture invents judges and teams. tag is appended to every name
// so repeated runs against one server do not collide.
func GenerateFixture(faker *gofakeit.Faker, judges, teams int, tag string) Fixture {
	suffix := ""
	if tag != "" {
		suffix = " " + tag
	}
	f := Fixture{
		Judges: fakeNames(judges, suffix, faker.Name),
		Teams:  fakeNames(teams, suffix, faker.AppName),
	}
	return f
}

// fakeNames draws n distinct names, numbering repeats.
func fakeNames(n int, suffix string, next func() string) []string {
	seen := make(map[string]int, n)
	out := make([]string, 0, n)
	for len(out) < n {
		name := next()
		key := strings.ToLower(name)
		seen[key]++
		if c := seen[key]; c > 1 {
			name = fmt.Sprintf("%s %d", name, c)
		}
		out = append(out, name+suffix)
	}
	return out
}
