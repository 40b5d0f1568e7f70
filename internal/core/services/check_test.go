package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/core/ports/driven"
	"github.com/custodia-labs/dkansync/internal/core/ports/driving"
)

type checkFixture struct {
	portal    *fakePortal
	sheets    *fakeSheets
	prober    *fakeProber
	validator *fakeValidator
	service   *CheckService
}

func newCheckFixture(t *testing.T) *checkFixture {
	t.Helper()
	silenceLogs(t)
	settings := domain.DefaultAppSettings()
	settings.Portal.URL = "https://opendata.example.org"
	f := &checkFixture{
		portal:    newFakePortal(),
		sheets:    newFakeSheets(),
		prober:    newFakeProber(),
		validator: &fakeValidator{},
	}
	f.service = NewCheckService(f.portal, f.sheets, f.validator, f.prober, domain.DefaultFieldMap(), settings)
	return f
}

func (f *checkFixture) seedPortal() {
	f.portal.packages = []domain.Document{
		{"id": "h1", "type": "Harvest Source"},
		{
			"id":   "p1",
			"type": "Dataset",
			"resources": []any{
				map[string]any{"id": "r1"},
				map[string]any{"id": "r2"},
			},
			"extras": []any{map[string]any{"key": "Quelle", "value": "Amt"}},
		},
		{"id": "p2", "type": "Dataset", "extras": []any{map[string]any{"key": "Quelle", "value": "Amt"}}},
	}
	f.portal.addNode("41", domain.Document{"type": "dataset", "uuid": "p1"})
	f.portal.addNode("42", domain.Document{"type": "dataset", "uuid": "p2"})
}

func TestCheckPortal(t *testing.T) {
	f := newCheckFixture(t)
	f.seedPortal()

	report, err := f.service.CheckPortal(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "https://opendata.example.org", report.URL)
	assert.Equal(t, 2, report.Datasets)
	assert.Equal(t, 2, report.Resources)
	assert.Equal(t, map[string]int{"Quelle": 2}, report.ExtensionUsage)
	assert.Equal(t, "41", report.SampleNodeID)
	assert.True(t, report.Compatible())
	assert.True(t, report.LoginOK)
	assert.True(t, f.portal.loggedIn)
}

func TestCheckPortal_Problems(t *testing.T) {
	tests := []struct {
		name   string
		set    func(f *checkFixture)
		assert func(t *testing.T, r *driving.PortalReport)
	}{
		{
			name: "incompatible package",
			set:  func(f *checkFixture) { f.validator.packageErr = errors.New("resources is required") },
			assert: func(t *testing.T, r *driving.PortalReport) {
				assert.Equal(t, "resources is required", r.PackageSchemaErr)
				assert.False(t, r.Compatible())
			},
		},
		{
			name: "incompatible node",
			set:  func(f *checkFixture) { f.validator.nodeErr = errors.New("body must be object") },
			assert: func(t *testing.T, r *driving.PortalReport) {
				assert.Equal(t, "body must be object", r.NodeSchemaErr)
				assert.False(t, r.Compatible())
			},
		},
		{
			name: "node missing",
			set:  func(f *checkFixture) { f.portal.nodes = map[string]domain.Document{} },
			assert: func(t *testing.T, r *driving.PortalReport) {
				assert.Contains(t, r.NodeSchemaErr, "find node of package p1")
				assert.Empty(t, r.SampleNodeID)
			},
		},
		{
			name: "login rejected",
			set:  func(f *checkFixture) { f.portal.loginErr = errors.New("wrong password") },
			assert: func(t *testing.T, r *driving.PortalReport) {
				assert.False(t, r.LoginOK)
				assert.Equal(t, "wrong password", r.LoginError)
				assert.True(t, r.Compatible())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckFixture(t)
			f.seedPortal()
			tt.set(f)

			report, err := f.service.CheckPortal(context.Background())

			require.NoError(t, err)
			tt.assert(t, report)
		})
	}
}

func TestCheckPortal_NotConfigured(t *testing.T) {
	silenceLogs(t)
	service := NewCheckService(newFakePortal(), newFakeSheets(), nil, nil, domain.DefaultFieldMap(), domain.DefaultAppSettings())

	_, err := service.CheckPortal(context.Background())

	assert.True(t, domain.IsAbort(err))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCheckSheet(t *testing.T) {
	f := newCheckFixture(t)
	header := append(fullHeader(), "Extra-Quelle", "Bemerkung")
	f.sheets.sheets[sheetPath] = sheetOf(header,
		datasetRow("Haushalt", domain.ColResourceName, "Tabelle", domain.ColTemporalStart, "Januar"),
		[]string{domain.ColResourceName, "Karte"},
		[]string{domain.ColFormat, "csv"},
	)

	report, err := f.service.CheckSheet(context.Background(), sheetPath)

	require.NoError(t, err)
	assert.Equal(t, 3, report.Rows)
	assert.Equal(t, 1, report.Datasets)
	assert.Equal(t, 2, report.Resources)
	assert.Equal(t, []string{"Extra-Quelle"}, report.ExtensionColumns)
	assert.Equal(t, []string{"Bemerkung"}, report.UnknownColumns)
	assert.Empty(t, report.MissingDataset)
	assert.Empty(t, report.MissingResource)
	assert.False(t, report.DatasetOnly)
	require.Len(t, report.RecordErrors, 2)
	assert.Contains(t, report.RecordErrors[0], domain.ColTemporalStart)
	assert.Contains(t, report.RecordErrors[1], "row 4")
}

func TestCheckSheet_Header(t *testing.T) {
	tests := []struct {
		name        string
		header      []string
		datasetOnly bool
		missingDS   []string
		failed      bool
	}{
		{name: "dataset only", header: domain.DatasetColumns, datasetOnly: true},
		{name: "missing title", header: without(fullHeader(), domain.ColTitle), missingDS: []string{domain.ColTitle}, failed: true},
		{name: "partial resources", header: without(fullHeader(), domain.ColFormat), failed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckFixture(t)
			f.sheets.sheets[sheetPath] = sheetOf(tt.header)

			report, err := f.service.CheckSheet(context.Background(), sheetPath)

			require.NoError(t, err)
			assert.Equal(t, tt.datasetOnly, report.DatasetOnly)
			assert.Equal(t, tt.missingDS, report.MissingDataset)
			if tt.failed {
				require.Len(t, report.RecordErrors, 1)
				assert.Contains(t, report.RecordErrors[0], "missing")
			} else {
				assert.Empty(t, report.RecordErrors)
			}
		})
	}
}

func without(header []string, column string) []string {
	var out []string
	for _, h := range header {
		if h != column {
			out = append(out, h)
		}
	}
	return out
}

func TestCheckSheet_ReadFailure(t *testing.T) {
	f := newCheckFixture(t)

	_, err := f.service.CheckSheet(context.Background(), "fehlt.xlsx")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckLinks(t *testing.T) {
	f := newCheckFixture(t)
	f.sheets.sheets[sheetPath] = sheetOf(fullHeader(),
		datasetRow("Haushalt",
			domain.ColDescription, "Siehe https://example.org/info und http://alt.example.com/x",
			domain.ColResourceURL, "http://x.example.com/a.csv",
		),
		[]string{domain.ColHomepageURL, "https://stadt.example.de"},
	)
	f.prober.status["https://example.org/info"] = driven.LinkStatus{OK: true, Code: "200"}
	f.prober.status["https://stadt.example.de"] = driven.LinkStatus{OK: true, Code: "301"}

	reports, err := f.service.CheckLinks(context.Background(), sheetPath)

	require.NoError(t, err)
	assert.Equal(t, []driving.LinkReport{
		{Row: 2, Column: domain.ColDescription, URL: "https://example.org/info", Status: "200", OK: true},
		{Row: 2, Column: domain.ColDescription, URL: "http://alt.example.com/x", Status: "404"},
		{Row: 3, Column: domain.ColHomepageURL, URL: "https://stadt.example.de", Status: "301", OK: true},
	}, reports)
	assert.NotContains(t, f.prober.probed, "http://x.example.com/a.csv")
}

func TestCheckLinks_NoProber(t *testing.T) {
	silenceLogs(t)
	service := NewCheckService(newFakePortal(), newFakeSheets(), nil, nil, domain.DefaultFieldMap(), domain.DefaultAppSettings())

	_, err := service.CheckLinks(context.Background(), sheetPath)

	assert.ErrorIs(t, err, domain.ErrNotImplemented)
}

func TestCompareRows(t *testing.T) {
	source := domain.NewRow()
	source.Set(domain.ColTitle, "Haushalt")
	source.Set(domain.ColDescription, "Alt")
	source.Set(domain.ColDatasetName, "haushalt")
	source.Set(domain.ColAuthor, "Amt")
	source.Set("Extra-Quelle", "")
	source.Set(domain.ColResourceSeq, "001-01")

	exported := domain.NewRow()
	exported.Set(domain.ColTitle, "Haushalt ")
	exported.Set(domain.ColDescription, "Neu")
	exported.Set(domain.ColDatasetName, "haushalt-2")
	exported.Set(domain.ColResourceSeq, "004-01")

	f := newCheckFixture(t)
	diffs := f.service.CompareRows(source, exported)

	assert.Equal(t, []driving.RowDifference{
		{Column: domain.ColDescription, Source: "Alt", Exported: "Neu"},
		{Column: domain.ColAuthor, Source: "Amt", Missing: true},
	}, diffs)
}

func TestCompareRows_RoundTrip(t *testing.T) {
	f := newCheckFixture(t)
	codec := newTestCodec()
	pkg := domain.Document{
		"id":    "p1",
		"title": "Haushalt",
		"name":  "haushalt",
		"resources": []any{
			map[string]any{"id": "r1", "name": "Tabelle", "url": "http://x/a.csv", "format": "csv"},
		},
	}
	node := domain.Document{"nid": "41", "uuid": "p1"}

	first, err := codec.ToRows(context.Background(), ExportInput{Package: pkg, Node: node, Number: 1})
	require.NoError(t, err)
	again, err := codec.ToRows(context.Background(), ExportInput{Package: pkg, Node: node, Number: 7})
	require.NoError(t, err)

	assert.Empty(t, f.service.CompareRows(first[0], again[0]))
}
