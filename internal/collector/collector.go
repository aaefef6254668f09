// Package collector implements the prometheus.Collector that scans the
// configured backup locations on every scrape. Metrics are built fresh
// per request so freshness follows the prometheus scrape interval, with
// no state carried between scrapes besides the immutable configuration.
package collector

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/sirupsen/logrus"

	"github.com/aziugo/prometheus-bkp-exporter/internal/config"
)

const namespace = "backup"

const (
	fileTimestampName = namespace + "_file_timestamp"
	fileTimestampHelp = "Backup file timestamp"
	fileSizeName      = namespace + "_file_size"
	fileSizeHelp      = "Backup file size"
)

// Per-location filesystem usage, emitted only when disk_usage is
// enabled in the configuration.
var (
	diskTotalDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "location", "disk_total_bytes"),
		"Total size of the filesystem holding a backup location",
		[]string{"location", "path"}, nil,
	)
	diskFreeDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "location", "disk_free_bytes"),
		"Free space on the filesystem holding a backup location",
		[]string{"location", "path"}, nil,
	)
	diskUsedPercentDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "location", "disk_used_percent"),
		"Used percentage of the filesystem holding a backup location",
		[]string{"location", "path"}, nil,
	)
)

// BkpCollector scans backup locations and reports one timestamp gauge
// and one size gauge per file matching the location's pattern.
type BkpCollector struct {
	cfg *config.Config
	log *logrus.Logger
}

// New creates a collector for the given configuration.
func New(cfg *config.Config, log *logrus.Logger) *BkpCollector {
	if log == nil {
		log = logrus.New()
	}
	return &BkpCollector{cfg: cfg, log: log}
}

// Describe sends nothing: label dimensions depend on the named groups
// of each location's pattern, so the collector is unchecked.
func (c *BkpCollector) Describe(ch chan<- *prometheus.Desc) {}

// Collect runs one full scan over every configured location.
func (c *BkpCollector) Collect(ch chan<- prometheus.Metric) {
	for _, loc := range c.cfg.Locations {
		c.collectLocation(ch, loc)
	}
	if c.cfg.DiskUsage {
		c.collectDiskUsage(ch)
	}
}

func (c *BkpCollector) collectLocation(ch chan<- prometheus.Metric, loc config.Location) {
	entries, err := os.ReadDir(loc.Path)
	if err != nil {
		c.log.WithError(err).WithField("location", loc.Name).
			Warn("cannot list backup folder, skipping location for this scrape")
		return
	}

	// Note: subdirectories are matched and reported like files. Their
	// own mtime and size end up in the metrics, mirroring the exporter
	// this replaces.
	for _, entry := range entries {
		match := loc.Pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}

		labels := map[string]string{"location": loc.Name}
		for i, tag := range loc.Pattern.SubexpNames() {
			if tag == "" {
				continue
			}
			value := strings.TrimSpace(match[i])
			if value == "" {
				continue
			}
			if table, ok := c.cfg.Rewrites[tag]; ok {
				if replacement, ok := table[value]; ok {
					value = replacement
				}
			}
			labels[tag] = value
		}
		labels["file"] = match[loc.ContentGroup]
		labels["filepath"] = filepath.Join(loc.Path, entry.Name())

		info, err := entry.Info()
		if err != nil {
			// The file disappeared between listing and stat; the backup
			// jobs being watched rotate files while we scan.
			c.log.WithError(err).WithField("file", labels["filepath"]).
				Warn("cannot stat backup file, skipping it for this scrape")
			continue
		}

		names, values := sortedLabels(labels)
		ch <- prometheus.MustNewConstMetric(
			prometheus.NewDesc(fileTimestampName, fileTimestampHelp, names, nil),
			prometheus.GaugeValue,
			float64(info.ModTime().UnixNano())/1e9,
			values...,
		)
		ch <- prometheus.MustNewConstMetric(
			prometheus.NewDesc(fileSizeName, fileSizeHelp, names, nil),
			prometheus.GaugeValue,
			float64(info.Size()),
			values...,
		)
	}
}

func (c *BkpCollector) collectDiskUsage(ch chan<- prometheus.Metric) {
	for _, loc := range c.cfg.Locations {
		usage, err := disk.Usage(loc.Path)
		if err != nil {
			c.log.WithError(err).WithField("location", loc.Name).
				Warn("cannot read filesystem usage")
			continue
		}
		ch <- prometheus.MustNewConstMetric(diskTotalDesc, prometheus.GaugeValue,
			float64(usage.Total), loc.Name, loc.Path)
		ch <- prometheus.MustNewConstMetric(diskFreeDesc, prometheus.GaugeValue,
			float64(usage.Free), loc.Name, loc.Path)
		ch <- prometheus.MustNewConstMetric(diskUsedPercentDesc, prometheus.GaugeValue,
			usage.UsedPercent, loc.Name, loc.Path)
	}
}

// sortedLabels flattens a label map into name and value slices ordered
// by label name, so repeated scrapes expose samples in a stable shape.
func sortedLabels(labels map[string]string) ([]string, []string) {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)
	values := make([]string, len(names))
	for i, name := range names {
		values[i] = labels[name]
	}
	return names, values
}
