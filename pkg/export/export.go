// Package export writes a finished crawl to disk in the configured formats.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-mapper/pkg/config"
	"github.com/Sriram-PR/site-mapper/pkg/crawler"
	"github.com/Sriram-PR/site-mapper/pkg/utils"
)

// Output file names inside a site directory
const (
	MetadataFile   = "metadata.yaml"
	EdgesFile      = "edges.tsv"
	TreeFile       = "tree.txt"
	SQLiteFile     = "site_map.db"
	VisitedLogFile = "visited.txt"
)

// SiteDir returns the output directory for domain under baseDir
func SiteDir(baseDir, domain string) string {
	return filepath.Join(baseDir, utils.SanitizeFilename(domain))
}

// Manager owns the output directory of one site and writes crawl results into it
type Manager struct {
	log     *logrus.Entry
	appCfg  *config.AppConfig
	siteDir string
}

// NewManager creates a Manager without touching the filesystem
func NewManager(appCfg *config.AppConfig, domain string, log *logrus.Entry) *Manager {
	siteDir := SiteDir(appCfg.OutputBaseDir, domain)
	return &Manager{
		log:     log.WithField("output_dir", siteDir),
		appCfg:  appCfg,
		siteDir: siteDir,
	}
}

// Dir returns the site output directory
func (m *Manager) Dir() string { return m.siteDir }

// Path returns the path of name inside the site output directory
func (m *Manager) Path(name string) string { return filepath.Join(m.siteDir, name) }

// Enabled reports whether any output will be written
func (m *Manager) Enabled() bool {
	return len(m.appCfg.OutputFormats) > 0 || m.appCfg.WriteVisitedLog
}

// Prepare creates the site output directory
func (m *Manager) Prepare() error {
	if err := os.MkdirAll(m.siteDir, 0755); err != nil {
		return fmt.Errorf("%w: creating output dir '%s': %w", utils.ErrFilesystem, m.siteDir, err)
	}
	m.log.Debug("Ensured site output directory exists")
	return nil
}

// Write exports res in every configured format and returns the files written
// A failing format does not stop the others; all failures are joined in the returned error.
func (m *Manager) Write(res *crawler.Result) ([]string, error) {
	if len(m.appCfg.OutputFormats) == 0 {
		m.log.Info("No output formats configured, skipping export")
		return nil, nil
	}
	if err := m.Prepare(); err != nil {
		return nil, err
	}

	var written []string
	var errs []error
	for _, format := range m.appCfg.OutputFormats {
		var path string
		var err error
		switch format {
		case config.FormatYAML:
			path = m.Path(MetadataFile)
			err = WriteMetadataYAML(path, BuildMetadata(res, m.appCfg.AsMap()))
		case config.FormatTSV:
			path = m.Path(EdgesFile)
			err = WriteEdgesTSV(path, res.Graph)
		case config.FormatTree:
			path = m.Path(TreeFile)
			err = WriteTreeFile(path, res, m.log)
		case config.FormatSQLite:
			path = m.Path(SQLiteFile)
			err = WriteSQLite(path, res)
		default:
			err = fmt.Errorf("%w: unknown output format '%s'", utils.ErrConfigValidation, format)
		}

		fileLog := m.log.WithFields(logrus.Fields{"format": format, "file": path})
		if err != nil {
			fileLog.WithField("category", utils.CategorizeError(err)).Errorf("Export failed: %v", err)
			errs = append(errs, err)
			continue
		}
		fileLog.Info("Export written")
		written = append(written, path)
	}
	return written, errors.Join(errs...)
}
