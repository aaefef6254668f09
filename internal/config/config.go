package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultFormat captures the whole filename as the file value when a
// location does not declare its own format.
const defaultFormat = "(.*)"

// ConfigError aggregates every problem found while loading the
// configuration so a broken file is reported in full, not one
// complaint at a time.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return strings.Join(e.Problems, "; ")
}

func newConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Problems: []string{fmt.Sprintf(format, args...)}}
}

// Config structures (yaml shape)
type fileConfig struct {
	Locations map[string]locationSection   `yaml:"locations"`
	Rewrite   map[string]map[string]string `yaml:"rewrite"`
	DiskUsage bool                         `yaml:"disk_usage"`
}

type locationSection struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// Location is a named backup directory together with its compiled
// filename pattern. The pattern is anchored so it must match an entire
// filename, and ContentGroup is the index of the capture group whose
// match becomes the "file" label value.
type Location struct {
	Name         string
	Path         string
	Pattern      *regexp.Regexp
	ContentGroup int
}

// Config is the validated, immutable exporter configuration.
type Config struct {
	// Locations is sorted by name so scans and error reports are
	// deterministic.
	Locations []Location
	// Rewrites maps tag name -> raw extracted value -> replacement.
	Rewrites map[string]map[string]string
	// DiskUsage enables the per-location filesystem usage gauges.
	DiskUsage bool
}

// DefaultPath returns the path of a config.yml colocated with the
// running binary.
func DefaultPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "config.yml"
	}
	return filepath.Join(filepath.Dir(exe), "config.yml")
}

// Load reads and validates the configuration file at path. Any failure
// is returned as a *ConfigError carrying every detected problem.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newConfigError("unable to load config file %q: %v", path, err)
	}

	var raw fileConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, newConfigError("unable to parse config file %q: %v", path, err)
	}

	return parse(&raw)
}

func parse(raw *fileConfig) (*Config, error) {
	var problems []string

	if len(raw.Locations) == 0 {
		problems = append(problems, "no location defined")
	}

	names := make([]string, 0, len(raw.Locations))
	for name := range raw.Locations {
		names = append(names, name)
	}
	sort.Strings(names)

	locations := make([]Location, 0, len(names))
	for _, name := range names {
		section := raw.Locations[name]
		if section.Path == "" {
			problems = append(problems, fmt.Sprintf("no path defined for the %q section", name))
			continue
		}
		absPath, err := filepath.Abs(section.Path)
		if err != nil {
			problems = append(problems, fmt.Sprintf("location %q: invalid path %q: %v", name, section.Path, err))
			continue
		}
		if _, err := os.Stat(absPath); err != nil {
			problems = append(problems, fmt.Sprintf("location %q: folder %q does not exist", name, section.Path))
			continue
		}
		pattern, contentGroup, err := compileFormat(section.Format)
		if err != nil {
			problems = append(problems, fmt.Sprintf("location %q: %v", name, err))
			continue
		}
		locations = append(locations, Location{
			Name:         name,
			Path:         absPath,
			Pattern:      pattern,
			ContentGroup: contentGroup,
		})
	}

	if len(problems) > 0 {
		return nil, &ConfigError{Problems: problems}
	}

	rewrites := make(map[string]map[string]string)
	for tag, table := range raw.Rewrite {
		if len(table) == 0 {
			continue
		}
		rewrites[tag] = table
	}

	return &Config{
		Locations: locations,
		Rewrites:  rewrites,
		DiskUsage: raw.DiskUsage,
	}, nil
}

// compileFormat anchors and compiles a location format, then resolves
// the content group: the lowest-numbered capture group that is not a
// named group. A custom format without such a group is rejected here
// rather than blowing up during a scrape.
func compileFormat(format string) (*regexp.Regexp, int, error) {
	if format == "" {
		format = defaultFormat
	}
	pattern, err := regexp.Compile("^" + format + "$")
	if err != nil {
		return nil, 0, fmt.Errorf("invalid format pattern: %v", err)
	}
	for i, name := range pattern.SubexpNames() {
		if i == 0 {
			continue
		}
		if name == "" {
			return pattern, i, nil
		}
	}
	return nil, 0, fmt.Errorf("format pattern %q has no unnamed capture group for the file value", format)
}
