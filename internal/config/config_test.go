package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func loadError(t *testing.T, content string) *ConfigError {
	t.Helper()
	_, err := Load(writeConfig(t, content))
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	return cfgErr
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "unable to load config file")
}

func TestLoadUnparsableFile(t *testing.T) {
	cfgErr := loadError(t, "locations: [not: a: mapping\n")
	assert.Contains(t, cfgErr.Error(), "unable to parse config file")
}

func TestLoadNoLocations(t *testing.T) {
	cfgErr := loadError(t, "rewrite:\n  site:\n    nyc: new-york\n")
	assert.Contains(t, cfgErr.Error(), "no location defined")
}

func TestLoadLocationWithoutPath(t *testing.T) {
	cfgErr := loadError(t, "locations:\n  daily:\n    format: '(.*)'\n")
	assert.Contains(t, cfgErr.Error(), `no path defined for the "daily" section`)
}

func TestLoadMissingFolder(t *testing.T) {
	cfgErr := loadError(t, "locations:\n  daily:\n    path: /does/not/exist/anywhere\n")
	assert.Contains(t, cfgErr.Error(), `location "daily"`)
	assert.Contains(t, cfgErr.Error(), "does not exist")
}

func TestLoadInvalidPattern(t *testing.T) {
	content := fmt.Sprintf("locations:\n  daily:\n    path: %s\n    format: '(['\n", t.TempDir())
	cfgErr := loadError(t, content)
	assert.Contains(t, cfgErr.Error(), "invalid format pattern")
}

func TestLoadPatternWithoutContentGroup(t *testing.T) {
	content := fmt.Sprintf("locations:\n  daily:\n    path: %s\n    format: '(?P<date>\\d{8})'\n", t.TempDir())
	cfgErr := loadError(t, content)
	assert.Contains(t, cfgErr.Error(), "no unnamed capture group")
}

func TestLoadReportsAllProblems(t *testing.T) {
	cfgErr := loadError(t, `locations:
  daily:
    format: '(.*)'
  weekly:
    path: /does/not/exist/anywhere
`)
	require.Len(t, cfgErr.Problems, 2)
	assert.Contains(t, cfgErr.Error(), "daily")
	assert.Contains(t, cfgErr.Error(), "weekly")
}

func TestLoadDefaultFormat(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(writeConfig(t, fmt.Sprintf("locations:\n  daily:\n    path: %s\n", dir)))
	require.NoError(t, err)
	require.Len(t, cfg.Locations, 1)

	loc := cfg.Locations[0]
	assert.Equal(t, "daily", loc.Name)
	assert.Equal(t, 1, loc.ContentGroup)
	// The default pattern captures any whole filename.
	match := loc.Pattern.FindStringSubmatch("whatever_2023.tar.gz")
	require.NotNil(t, match)
	assert.Equal(t, "whatever_2023.tar.gz", match[1])
}

func TestContentGroupIsLowestUnnamedGroup(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(writeConfig(t, fmt.Sprintf(
		"locations:\n  daily:\n    path: %s\n    format: '(?P<date>\\d{8})_(.+)\\.tar'\n  extra:\n    path: %s\n    format: '(a)(?P<x>b)(c)'\n", dir, dir)))
	require.NoError(t, err)
	require.Len(t, cfg.Locations, 2)

	assert.Equal(t, 2, cfg.Locations[0].ContentGroup)
	assert.Equal(t, 1, cfg.Locations[1].ContentGroup)
}

func TestPatternMatchesWholeFilename(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(writeConfig(t, fmt.Sprintf(
		"locations:\n  daily:\n    path: %s\n    format: '(\\d{8})\\.tar'\n", dir)))
	require.NoError(t, err)

	pattern := cfg.Locations[0].Pattern
	assert.Nil(t, pattern.FindStringSubmatch("backup_20230615.tar"))
	assert.NotNil(t, pattern.FindStringSubmatch("20230615.tar"))
}

func TestLocationPathMadeAbsolute(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.Mkdir("backups", 0o755))

	cfg, err := Load(writeConfig(t, "locations:\n  daily:\n    path: backups\n"))
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.Locations[0].Path))
}

func TestLocationsSortedByName(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(writeConfig(t, fmt.Sprintf(
		"locations:\n  zeta:\n    path: %s\n  alpha:\n    path: %s\n", dir, dir)))
	require.NoError(t, err)
	require.Len(t, cfg.Locations, 2)
	assert.Equal(t, "alpha", cfg.Locations[0].Name)
	assert.Equal(t, "zeta", cfg.Locations[1].Name)
}

func TestEmptyRewriteTableIgnored(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(writeConfig(t, fmt.Sprintf(`locations:
  daily:
    path: %s
rewrite:
  site:
    nyc: new-york
  empty:
`, dir)))
	require.NoError(t, err)
	assert.Contains(t, cfg.Rewrites, "site")
	assert.NotContains(t, cfg.Rewrites, "empty")
}

func TestDiskUsageFlag(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(writeConfig(t, fmt.Sprintf("locations:\n  daily:\n    path: %s\n", dir)))
	require.NoError(t, err)
	assert.False(t, cfg.DiskUsage)

	cfg, err = Load(writeConfig(t, fmt.Sprintf("locations:\n  daily:\n    path: %s\ndisk_usage: true\n", dir)))
	require.NoError(t, err)
	assert.True(t, cfg.DiskUsage)
}
