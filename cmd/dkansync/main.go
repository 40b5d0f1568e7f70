// Command dkansync synchronises spreadsheets with a DKAN open data portal.
package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/custodia-labs/dkansync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/dkansync/internal/adapters/driven/datapackage"
	"github.com/custodia-labs/dkansync/internal/adapters/driven/dkan"
	"github.com/custodia-labs/dkansync/internal/adapters/driven/schema"
	"github.com/custodia-labs/dkansync/internal/adapters/driven/sheet"
	"github.com/custodia-labs/dkansync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/dkansync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/dkansync/internal/adapters/driven/watch"
	"github.com/custodia-labs/dkansync/internal/adapters/driving/cli"
	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/core/ports/driven"
	"github.com/custodia-labs/dkansync/internal/core/services"
	"github.com/custodia-labs/dkansync/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = ""

const (
	// cacheTTL bounds how long cached portal responses are served.
	cacheTTL = 24 * time.Hour

	// keepRuns is the number of runs kept in the history.
	keepRuns = 200

	// linkTimeout bounds a single link probe or download.
	linkTimeout = 30 * time.Second
)

func main() {
	if err := cli.Execute(wire, version); err != nil {
		os.Exit(1)
	}
}

// wire builds the services from the configuration in configDir.
func wire(configDir string) (*cli.Services, error) {
	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, err
	}
	settingsService := services.NewSettingsService(configStore)
	settings, err := settingsService.Get()
	if err != nil {
		return nil, err
	}

	svc := &cli.Services{
		Settings: settingsService,
		Watcher:  watch.NewWatcher(0),
	}

	runs, cache, closeStore := openStores(filepath.Join(filepath.Dir(configStore.Path()), "data"), settings.Cache.Enabled)
	svc.Close = closeStore
	svc.Maintenance = services.NewMaintenanceService(runs, cache)

	var validator driven.DocumentValidator
	if v, err := schema.NewValidator(); err != nil {
		logger.Warn("Document schemas unavailable: %v", err)
	} else {
		validator = v
	}

	fields := domain.DefaultFieldMap()
	sheets := sheet.New()
	links := dkan.NewLinkChecker(settings.Portal.InsecureSkipVerify, linkTimeout)

	if !settings.Portal.IsConfigured() {
		logger.Debug("Portal not configured, only settings and sheet checks are available")
		svc.Checker = services.NewCheckService(nil, sheets, validator, links, fields, *settings)
		return svc, nil
	}

	client, err := dkan.NewClient(dkan.ConfigFromSettings(settings.Portal), cache)
	if err != nil {
		return nil, err
	}
	var cached driven.Portal
	if cache != nil {
		cached = client.Cached()
	}

	svc.Importer = services.NewImportService(client, client, sheets, runs, fields, *settings)
	svc.Exporter = services.NewExportService(
		client, cached, client, sheets, validator, links, links,
		datapackage.NewWriter(), runs, fields, *settings,
	)
	svc.Checker = services.NewCheckService(client, sheets, validator, links, fields, *settings)
	return svc, nil
}

// openStores opens the sqlite history and cache. When the database cannot
// be opened the run falls back to in-memory stores.
func openStores(dataDir string, cacheEnabled bool) (driven.RunStore, driven.ResponseCache, func() error) {
	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		logger.Warn("Run history unavailable, using memory: %v", err)
		var cache driven.ResponseCache
		if cacheEnabled {
			cache = memory.NewResponseCache()
		}
		return memory.NewRunStore(), cache, func() error { return nil }
	}

	if err := store.PruneRuns(context.Background(), keepRuns); err != nil {
		logger.Warn("Failed to prune run history: %v", err)
	}

	var cache driven.ResponseCache
	if cacheEnabled {
		cache = store.ResponseCache(cacheTTL)
	}
	return store.RunStore(), cache, store.Close
}
