package cli

import (
	"bytes"
	"context"
	"time"

	"github.com/custodia-labs/dkansync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/core/ports/driving"
	"github.com/custodia-labs/dkansync/internal/core/services"
	"github.com/custodia-labs/dkansync/internal/logger"
)

// mockImporter implements driving.Importer for testing.
type mockImporter struct {
	requests []driving.ImportRequest
	run      *domain.Run
	err      error
}

func (m *mockImporter) Import(_ context.Context, req driving.ImportRequest) (*domain.Run, error) {
	m.requests = append(m.requests, req)
	run := *m.run
	run.DryRun = req.DryRun
	return &run, m.err
}

// mockExporter implements driving.Exporter for testing.
type mockExporter struct {
	requests []driving.ExportRequest
	run      *domain.Run
	err      error
}

func (m *mockExporter) Export(_ context.Context, req driving.ExportRequest) (*domain.Run, error) {
	m.requests = append(m.requests, req)
	run := *m.run
	run.File = req.Path
	return &run, m.err
}

// mockChecker implements driving.Checker for testing.
type mockChecker struct {
	portal    *driving.PortalReport
	sheet     *driving.SheetReport
	links     []driving.LinkReport
	err       error
	sheetPath string
	linksPath string
}

func (m *mockChecker) CheckPortal(_ context.Context) (*driving.PortalReport, error) {
	return m.portal, m.err
}

func (m *mockChecker) CheckSheet(_ context.Context, path string) (*driving.SheetReport, error) {
	m.sheetPath = path
	return m.sheet, m.err
}

func (m *mockChecker) CheckLinks(_ context.Context, path string) ([]driving.LinkReport, error) {
	m.linksPath = path
	return m.links, m.err
}

func (m *mockChecker) CompareRows(_, _ *domain.Row) []driving.RowDifference {
	return nil
}

// mockMaintenance implements driving.Maintenance for testing.
type mockMaintenance struct {
	runs    []domain.Run
	cleared bool
	limit   int
}

func (m *mockMaintenance) Runs(_ context.Context, limit int) ([]domain.Run, error) {
	m.limit = limit
	return m.runs, nil
}

func (m *mockMaintenance) Run(_ context.Context, id string) (*domain.Run, error) {
	for i := range m.runs {
		if m.runs[i].ID == id {
			return &m.runs[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockMaintenance) ClearCache(_ context.Context) error {
	m.cleared = true
	return nil
}

// mockWatcher emits changes events and then closes the channel.
type mockWatcher struct {
	changes int
	path    string
}

func (m *mockWatcher) Watch(_ context.Context, path string) (<-chan struct{}, error) {
	m.path = path
	ch := make(chan struct{}, m.changes)
	for i := 0; i < m.changes; i++ {
		ch <- struct{}{}
	}
	close(ch)
	return ch, nil
}

type testServices struct {
	importer    *mockImporter
	exporter    *mockExporter
	checker     *mockChecker
	maintenance *mockMaintenance
	watcher     *mockWatcher
	settings    *services.SettingsService
}

var testStarted = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func finishedRun(kind domain.RunKind) *domain.Run {
	return &domain.Run{
		ID:         "run-1",
		Kind:       kind,
		File:       "dkan.xlsx",
		StartedAt:  testStarted,
		FinishedAt: testStarted.Add(1500 * time.Millisecond),
		Stats: domain.RunStats{
			DatasetsCreated:  1,
			DatasetsUpdated:  2,
			DatasetsExported: 3,
			ResourcesCreated: 4,
		},
	}
}

// setupTestServices installs fresh fakes and resets command flags.
// The returned function restores the previous services.
func setupTestServices() (*testServices, func()) {
	old := Services{
		Importer:    importer,
		Exporter:    exporter,
		Checker:     checker,
		Maintenance: maintenance,
		Settings:    settingsService,
		Watcher:     fileWatcher,
	}

	ts := &testServices{
		importer:    &mockImporter{run: finishedRun(domain.RunImport)},
		exporter:    &mockExporter{run: finishedRun(domain.RunExport)},
		checker:     &mockChecker{},
		maintenance: &mockMaintenance{},
		watcher:     &mockWatcher{},
		settings:    services.NewSettingsService(memory.NewConfigStore(nil)),
	}
	SetServices(&Services{
		Importer:    ts.importer,
		Exporter:    ts.exporter,
		Checker:     ts.checker,
		Maintenance: ts.maintenance,
		Settings:    ts.settings,
		Watcher:     ts.watcher,
	})

	importOpts = importOptions{}
	exportOpts = exportOptions{}
	checkSheetOnly = false
	historyLimit = 20

	return ts, func() {
		SetServices(&old)
		importOpts = importOptions{}
		exportOpts = exportOptions{}
		verbose, quiet = false, false
		logger.SetVerbose(false)
		logger.SetQuiet(false)
	}
}

// execute runs the root command with args and returns its output.
func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}
