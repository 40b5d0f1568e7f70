package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/core/ports/driven"
	"github.com/custodia-labs/dkansync/internal/core/ports/driving"
)

type fakeValidator struct {
	packageErr error
	nodeErr    error

	// rejected fails packages and nodes carrying one of these ids
	rejected []string
	checked  []string
}

func (v *fakeValidator) ValidatePackage(doc domain.Document) error {
	return v.validate(doc, "id", v.packageErr)
}

func (v *fakeValidator) ValidateNode(doc domain.Document) error {
	return v.validate(doc, "uuid", v.nodeErr)
}

func (v *fakeValidator) validate(doc domain.Document, key string, err error) error {
	id := doc.String(domain.Path{domain.Key(key)})
	v.checked = append(v.checked, id)
	if slices.Contains(v.rejected, id) {
		return fmt.Errorf("%s does not match", id)
	}
	return err
}

type fakePackageWriter struct {
	path     string
	title    string
	packages []domain.Document
}

func (w *fakePackageWriter) WritePackage(path, title string, packages []domain.Document) error {
	w.path, w.title, w.packages = path, title, packages
	return nil
}

type exportFixture struct {
	portal    *fakePortal
	cached    *fakePortal
	sheets    *fakeSheets
	prober    *fakeProber
	validator *fakeValidator
	writer    *fakePackageWriter
	service   *ExportService
}

func newExportFixture(t *testing.T, settings domain.AppSettings) *exportFixture {
	t.Helper()
	silenceLogs(t)
	f := &exportFixture{
		portal:    newFakePortal(),
		cached:    newFakePortal(),
		sheets:    newFakeSheets(),
		prober:    newFakeProber(),
		validator: &fakeValidator{},
		writer:    &fakePackageWriter{},
	}
	f.service = NewExportService(
		f.portal, f.cached, f.portal, f.sheets, f.validator,
		f.prober, f.prober, f.writer, nil, domain.DefaultFieldMap(), settings,
	)
	return f
}

// addPackage registers a package and its dataset node.
func (f *exportFixture) addPackage(nid, id, title string, resources ...map[string]any) domain.Document {
	list := make([]any, len(resources))
	for i, r := range resources {
		list[i] = r
	}
	pkg := domain.Document{
		"id":        id,
		"type":      "Dataset",
		"title":     title,
		"name":      title,
		"resources": list,
	}
	f.portal.packages = append(f.portal.packages, pkg)
	f.portal.addNode(nid, domain.Document{"type": "dataset", "uuid": id, "title": title})
	return pkg
}

func pkgResource(id, name, url string) map[string]any {
	return map[string]any{"id": id, "name": name, "url": url, "format": "csv"}
}

func written(t *testing.T, f *exportFixture) *domain.Sheet {
	t.Helper()
	sheet, ok := f.sheets.written[sheetPath]
	require.True(t, ok, "sheet not written")
	return sheet
}

func TestExport_NewSpreadsheet(t *testing.T) {
	f := newExportFixture(t, domain.DefaultAppSettings())
	f.addPackage("41", "p1", "Haushalt",
		pkgResource("r1", "Tabelle", "http://x/a.csv"),
		pkgResource("r2", "Karte", "http://x/sites/default/files/b.csv"),
	)
	f.portal.packages = append(f.portal.packages, domain.Document{"id": "h1", "type": "Harvest Source"})

	run, err := f.service.Export(context.Background(), driving.ExportRequest{Path: sheetPath})

	require.NoError(t, err)
	sheet := written(t, f)
	assert.Equal(t, ExportHeader(domain.DefaultFieldMap(), nil, false, false), sheet.Header)
	require.Len(t, sheet.Rows, 2)

	head := sheet.Rows[0]
	assert.Equal(t, "p1", head.Value(domain.ColDatasetID))
	assert.Equal(t, "41", head.Value(domain.ColNodeID))
	assert.Equal(t, "Haushalt", head.Value(domain.ColTitle))
	assert.Equal(t, "001-01", head.Value(domain.ColResourceSeq))
	assert.Equal(t, "Tabelle", head.Value(domain.ColResourceName))
	assert.Equal(t, "url", head.Value(domain.ColResourceType))

	second := sheet.Rows[1]
	assert.Empty(t, second.Value(domain.ColTitle))
	assert.Equal(t, "001-02", second.Value(domain.ColResourceSeq))
	assert.Equal(t, "uploaded", second.Value(domain.ColResourceType))

	assert.Equal(t, 1, run.Stats.DatasetsExported)
	require.Len(t, run.Entries, 1)
	assert.Equal(t, "41", run.Entries[0].NodeID)
	assert.Equal(t, 2, run.Entries[0].Row)
}

func TestExport_ExtensionColumns(t *testing.T) {
	f := newExportFixture(t, domain.DefaultAppSettings())
	pkg := f.addPackage("41", "p1", "Haushalt")
	pkg["extras"] = []any{map[string]any{"key": "Quelle", "value": "Kämmerei"}}
	other := f.addPackage("42", "p2", "Verkehr")
	other["extras"] = []any{map[string]any{"key": "Stand", "value": "2020"}}

	_, err := f.service.Export(context.Background(), driving.ExportRequest{Path: sheetPath})

	require.NoError(t, err)
	sheet := written(t, f)
	assert.True(t, sheet.HasColumn("Extra-Quelle"))
	assert.True(t, sheet.HasColumn("Extra-Stand"))
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "Kämmerei", sheet.Rows[0].Value("Extra-Quelle"))
	assert.Empty(t, sheet.Rows[0].Value("Extra-Stand"))
	assert.Equal(t, "2020", sheet.Rows[1].Value("Extra-Stand"))
}

func TestExport_ContinuesExistingSpreadsheet(t *testing.T) {
	f := newExportFixture(t, domain.DefaultAppSettings())
	f.addPackage("41", "p1", "Haushalt", pkgResource("r1", "Tabelle", "http://x/a.csv"))
	f.addPackage("42", "p2", "Verkehr", pkgResource("r2", "Zählung", "http://x/z.csv"))
	header := ExportHeader(domain.DefaultFieldMap(), nil, false, false)
	f.sheets.sheets[sheetPath] = sheetOf(header,
		[]string{domain.ColDatasetID, "p1", domain.ColTitle, "Von Hand gepflegt"},
	)

	run, err := f.service.Export(context.Background(), driving.ExportRequest{Path: sheetPath})

	require.NoError(t, err)
	sheet := written(t, f)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "Von Hand gepflegt", sheet.Rows[0].Value(domain.ColTitle))
	assert.Equal(t, "p2", sheet.Rows[1].Value(domain.ColDatasetID))
	assert.Equal(t, "002-01", sheet.Rows[1].Value(domain.ColResourceSeq))
	assert.Equal(t, 1, run.Stats.DatasetsSkipped)
	assert.Equal(t, 1, run.Stats.DatasetsExported)
}

func TestExport_OverwriteReplacesRows(t *testing.T) {
	f := newExportFixture(t, domain.DefaultAppSettings())
	f.addPackage("41", "p1", "Haushalt", pkgResource("r1", "Tabelle", "http://x/a.csv"))
	header := ExportHeader(domain.DefaultFieldMap(), nil, false, false)
	f.sheets.sheets[sheetPath] = sheetOf(header,
		[]string{domain.ColDatasetID, "p1", domain.ColTitle, "Alt", domain.ColResourceName, "Alt 1"},
		[]string{domain.ColResourceName, "Alt 2"},
		[]string{domain.ColDatasetID, "p9", domain.ColTitle, "Fremd"},
	)

	run, err := f.service.Export(context.Background(), driving.ExportRequest{Path: sheetPath, Overwrite: true})

	require.NoError(t, err)
	sheet := written(t, f)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "Fremd", sheet.Rows[0].Value(domain.ColTitle))
	assert.Equal(t, "Haushalt", sheet.Rows[1].Value(domain.ColTitle))
	assert.Equal(t, domain.DatasetUpdate, run.Entries[0].Action)
}

func TestExport_ExistingSpreadsheetMissingColumns(t *testing.T) {
	f := newExportFixture(t, domain.DefaultAppSettings())
	f.addPackage("41", "p1", "Haushalt")
	f.sheets.sheets[sheetPath] = sheetOf([]string{domain.ColDatasetID, domain.ColTitle})

	_, err := f.service.Export(context.Background(), driving.ExportRequest{Path: sheetPath})

	assert.True(t, domain.IsAbort(err))
	assert.ErrorIs(t, err, domain.ErrMissingColumns)
	assert.Empty(t, f.sheets.written)
}

func TestExport_FilterAndLimit(t *testing.T) {
	tests := []struct {
		name string
		req  driving.ExportRequest
		ids  []string
	}{
		{name: "filter", req: driving.ExportRequest{DatasetIDs: []string{"p3", "p1"}}, ids: []string{"p1", "p3"}},
		{name: "limit", req: driving.ExportRequest{Limit: 2}, ids: []string{"p1", "p2"}},
		{name: "filter and limit", req: driving.ExportRequest{DatasetIDs: []string{"p2", "p3"}, Limit: 1}, ids: []string{"p2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newExportFixture(t, domain.DefaultAppSettings())
			f.addPackage("41", "p1", "Eins")
			f.addPackage("42", "p2", "Zwei")
			f.addPackage("43", "p3", "Drei")
			tt.req.Path = sheetPath

			_, err := f.service.Export(context.Background(), tt.req)

			require.NoError(t, err)
			var ids []string
			for _, row := range written(t, f).Rows {
				ids = append(ids, row.Value(domain.ColDatasetID))
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestExport_SkipResources(t *testing.T) {
	f := newExportFixture(t, domain.DefaultAppSettings())
	f.addPackage("41", "p1", "Haushalt",
		pkgResource("r1", "Tabelle", "http://x/a.csv"),
		pkgResource("r2", "Karte", "http://x/b.csv"),
	)

	_, err := f.service.Export(context.Background(), driving.ExportRequest{Path: sheetPath, SkipResources: true})

	require.NoError(t, err)
	sheet := written(t, f)
	assert.False(t, sheet.HasColumn(domain.ColResourceName))
	assert.Len(t, sheet.Rows, 1)
}

func TestExport_CheckLinks(t *testing.T) {
	f := newExportFixture(t, domain.DefaultAppSettings())
	f.addPackage("41", "p1", "Haushalt",
		pkgResource("r1", "Tabelle", "http://x/a.csv"),
		pkgResource("r2", "Karte", "http://x/weg.csv"),
	)
	f.prober.status["http://x/a.csv"] = driven.LinkStatus{OK: true, Code: "200"}

	_, err := f.service.Export(context.Background(), driving.ExportRequest{Path: sheetPath, CheckLinks: true})

	require.NoError(t, err)
	rows := written(t, f).Rows
	require.Len(t, rows, 2)
	assert.Equal(t, "true", rows[0].Value(domain.ColCheckOK))
	assert.Equal(t, "200", rows[0].Value(domain.ColResponseCode))
	assert.Equal(t, "false", rows[1].Value(domain.ColCheckOK))
	assert.Equal(t, "404", rows[1].Value(domain.ColResponseCode))
}

func TestExport_Detailed(t *testing.T) {
	f := newExportFixture(t, domain.DefaultAppSettings())
	f.addPackage("41", "p1", "Haushalt", pkgResource("r1", "Tabelle", "http://x/a.csv"))
	node := resourceNode("Tabelle", "http://x/a.csv")
	node["uuid"] = "r1"
	node["sticky"] = "0"
	node["field_dcatapde_rights"] = domain.Wrap(map[string]any{"url": "https://rights.example"})
	f.portal.addNode("501", node)

	_, err := f.service.Export(context.Background(), driving.ExportRequest{Path: sheetPath, Detailed: true})

	require.NoError(t, err)
	sheet := written(t, f)
	assert.True(t, sheet.HasColumn(domain.ColResourceTypeDetailed))
	row := sheet.Rows[0]
	assert.Equal(t, "url", row.Value(domain.ColResourceTypeDetailed))
	assert.Equal(t, "0", row.Value(domain.ColSticky))
	assert.Equal(t, "https://rights.example", row.Value(domain.ColResourceRights))
}

func TestExport_Download(t *testing.T) {
	f := newExportFixture(t, domain.DefaultAppSettings())
	f.addPackage("41", "p1", "Haushalt", pkgResource("r1", "Tabelle", "http://x/daten/a.csv"))

	_, err := f.service.Export(context.Background(), driving.ExportRequest{Path: sheetPath, Download: true})

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"downloads/001-01-a.csv": "http://x/daten/a.csv"}, f.prober.downloaded)
}

func TestExport_IncompatibleDocumentsAbort(t *testing.T) {
	tests := []struct {
		name string
		set  func(v *fakeValidator)
	}{
		{name: "package", set: func(v *fakeValidator) { v.packageErr = errors.New("missing property resources") }},
		{name: "node", set: func(v *fakeValidator) { v.nodeErr = errors.New("body must be object") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newExportFixture(t, domain.DefaultAppSettings())
			f.addPackage("41", "p1", "Haushalt")
			tt.set(f.validator)

			run, err := f.service.Export(context.Background(), driving.ExportRequest{Path: sheetPath})

			var abort *domain.AbortError
			require.ErrorAs(t, err, &abort)
			assert.Equal(t, domain.AbortConfiguration, abort.Kind)
			assert.NotEmpty(t, run.Error)
		})
	}
}

func TestExport_OnlyFirstExportedDocumentsAreChecked(t *testing.T) {
	tests := []struct {
		name        string
		req         driving.ExportRequest
		wantChecked []string
		wantRows    []string
	}{
		{
			name:        "filtered out package",
			req:         driving.ExportRequest{Path: sheetPath, DatasetIDs: []string{"p2"}},
			wantChecked: []string{"p2", "p2"},
			wantRows:    []string{"p2"},
		},
		{
			name:        "later package",
			req:         driving.ExportRequest{Path: sheetPath},
			wantChecked: []string{"p2", "p2"},
			wantRows:    []string{"p2", "p1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newExportFixture(t, domain.DefaultAppSettings())
			f.addPackage("42", "p2", "Verkehr")
			f.addPackage("41", "p1", "Haushalt")
			f.validator.rejected = []string{"p1"}

			_, err := f.service.Export(context.Background(), tt.req)

			require.NoError(t, err)
			assert.Equal(t, tt.wantChecked, f.validator.checked)
			sheet := written(t, f)
			var ids []string
			for _, row := range sheet.Rows {
				ids = append(ids, row.Value(domain.ColDatasetID))
			}
			assert.Equal(t, tt.wantRows, ids)
		})
	}
}

func TestExport_ListFailureIsTransient(t *testing.T) {
	f := newExportFixture(t, domain.DefaultAppSettings())
	f.service.portal = failingPortal{fakePortal: f.portal}

	_, err := f.service.Export(context.Background(), driving.ExportRequest{Path: sheetPath})

	var abort *domain.AbortError
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, domain.AbortTransient, abort.Kind)
}

type failingPortal struct {
	*fakePortal
}

func (failingPortal) ListPackages(context.Context) ([]domain.Document, error) {
	return nil, errors.Join(domain.ErrTransient, errors.New("503 Service Unavailable"))
}

func TestExport_Datapackage(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.Portal.URL = "https://opendata.example.org"
	f := newExportFixture(t, settings)
	f.addPackage("41", "p1", "Haushalt")

	_, err := f.service.Export(context.Background(), driving.ExportRequest{Path: sheetPath, DatapackagePath: "datapackage.json"})

	require.NoError(t, err)
	assert.Equal(t, "datapackage.json", f.writer.path)
	assert.Equal(t, "https://opendata.example.org", f.writer.title)
	require.Len(t, f.writer.packages, 1)
}

func TestExport_CachedReadsFromCache(t *testing.T) {
	f := newExportFixture(t, domain.DefaultAppSettings())
	f.cached.packages = []domain.Document{{"id": "c1", "type": "Dataset", "title": "Aus dem Cache"}}
	f.cached.addNode("71", domain.Document{"type": "dataset", "uuid": "c1"})

	_, err := f.service.Export(context.Background(), driving.ExportRequest{Path: sheetPath, Cached: true})

	require.NoError(t, err)
	rows := written(t, f).Rows
	require.Len(t, rows, 1)
	assert.Equal(t, "Aus dem Cache", rows[0].Value(domain.ColTitle))
	assert.Equal(t, "71", rows[0].Value(domain.ColNodeID))
}

func TestExportHeader(t *testing.T) {
	fields := domain.DefaultFieldMap()

	full := ExportHeader(fields, []string{"Quelle"}, false, true)
	assert.Len(t, full, len(domain.DatasetColumns)+1+len(domain.ResourceColumns))
	assert.Equal(t, "Extra-Quelle", full[len(domain.DatasetColumns)])

	plain := ExportHeader(fields, nil, false, false)
	assert.NotContains(t, plain, domain.ColResourceTypeDetailed)
	assert.Contains(t, plain, domain.ColResourceURL)

	datasets := ExportHeader(fields, nil, true, true)
	assert.Equal(t, domain.DatasetColumns, datasets)
}
