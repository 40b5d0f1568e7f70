package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/core/ports/driving"
)

func compatiblePortal() *driving.PortalReport {
	return &driving.PortalReport{
		URL:            "https://opendata.example.org",
		Datasets:       12,
		Resources:      30,
		ExtensionUsage: map[string]int{"Quelle": 4, "Aktualisierung": 1},
		LoginOK:        true,
		SampleNodeID:   "41",
	}
}

func TestCheckCmd_Portal(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.checker.portal = compatiblePortal()

	out, err := execute("check")

	require.NoError(t, err)
	assert.Contains(t, out, "Current Settings")
	assert.Contains(t, out, "Portal https://opendata.example.org")
	assert.Contains(t, out, "Datasets:  12")
	assert.Contains(t, out, "Aktualisierung: 1")
	assert.Contains(t, out, "Quelle: 4")
	assert.Less(t, strings.Index(out, "Aktualisierung"), strings.Index(out, "Quelle"))
	assert.Contains(t, out, "Package list: compatible")
	assert.Contains(t, out, "Dataset node: compatible (node 41)")
	assert.Contains(t, out, "Login: ok")
}

func TestCheckCmd_PortalProblems(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	report := compatiblePortal()
	report.NodeSchemaErr = "body: Invalid type"
	report.LoginOK = false
	report.LoginError = "wrong password"
	ts.checker.portal = report

	out, err := execute("check")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "check found problems")
	assert.Contains(t, out, "Dataset node: not compatible: body: Invalid type")
	assert.Contains(t, out, "Login: failed wrong password")
}

func TestCheckCmd_Sheet(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.checker.sheet = &driving.SheetReport{
		Path:             "daten.xlsx",
		Rows:             5,
		Datasets:         2,
		Resources:        3,
		ExtensionColumns: []string{"Extra-Quelle"},
		UnknownColumns:   []string{"Bemerkung"},
	}

	out, err := execute("check", "daten.xlsx", "--sheet-only")

	require.NoError(t, err)
	assert.Equal(t, "daten.xlsx", ts.checker.sheetPath)
	assert.NotContains(t, out, "Current Settings")
	assert.Contains(t, out, "Spreadsheet daten.xlsx")
	assert.Contains(t, out, "Rows: 5 (2 datasets, 3 resources)")
	assert.Contains(t, out, "Extension columns: Extra-Quelle")
	assert.Contains(t, out, "Unknown columns: Bemerkung")
	assert.Contains(t, out, "Records: ok")
}

func TestCheckCmd_SheetRecordErrors(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.checker.sheet = &driving.SheetReport{
		Path:           "daten.xlsx",
		MissingDataset: []string{domain.ColTitle},
		RecordErrors:   []string{"missing columns: Titel"},
	}

	out, err := execute("check", "daten.xlsx", "--sheet-only")

	require.Error(t, err)
	assert.Contains(t, out, "Missing dataset columns: Titel")
	assert.Contains(t, out, "Records: 1 problems")
	assert.Contains(t, out, "missing columns: Titel")
}

func TestCheckCmd_SheetOnlyNeedsFile(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("check", "--sheet-only")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a file argument")
}

func TestCheckCmd_Abort(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.checker.err = domain.Abort(domain.ErrInvalidInput)

	_, err := execute("check")

	assert.True(t, domain.IsAbort(err))
}

func TestLinkcheckCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.checker.links = []driving.LinkReport{
		{Row: 2, Column: domain.ColDescription, URL: "https://example.org/info", Status: "200", OK: true},
		{Row: 3, Column: domain.ColHomepageURL, URL: "http://alt.example.com/x", Status: "404"},
	}

	out, err := execute("linkcheck")

	require.Error(t, err)
	assert.Equal(t, "dkan.xlsx", ts.checker.linksPath)
	assert.Contains(t, err.Error(), "1 broken links")
	assert.Contains(t, out, "[404] row 3, "+domain.ColHomepageURL+": http://alt.example.com/x")
	assert.NotContains(t, out, "https://example.org/info")
	assert.Contains(t, out, "2 links checked, 1 broken")
}

func TestLinkcheckCmd_AllOK(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.checker.links = []driving.LinkReport{{Row: 2, URL: "https://example.org", Status: "200", OK: true}}

	out, err := execute("linkcheck", "daten.csv")

	require.NoError(t, err)
	assert.Equal(t, "daten.csv", ts.checker.linksPath)
	assert.Contains(t, out, "1 links checked, 0 broken")
}
