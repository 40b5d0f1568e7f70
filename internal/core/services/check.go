package services

import (
	"context"
	"fmt"
	"regexp"
	"slices"

	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/core/ports/driven"
	"github.com/custodia-labs/dkansync/internal/core/ports/driving"
	"github.com/custodia-labs/dkansync/internal/logger"
)

// Ensure CheckService implements the interface.
var _ driving.Checker = (*CheckService)(nil)

// urlPattern finds http(s) urls inside free text cells.
var urlPattern = regexp.MustCompile(`(?:http|https)://[a-zA-Z0-9./?:@\-_=#]+\.[a-zA-Z]{2,6}[a-zA-Z0-9.&/?:@\-_=#]*`)

// CheckService runs diagnostics against the portal and spreadsheets.
type CheckService struct {
	portal    driven.Portal
	sheets    driven.Spreadsheet
	validator driven.DocumentValidator
	prober    driven.LinkProber
	fields    *domain.FieldMap
	settings  domain.AppSettings
}

// NewCheckService creates a check service. validator and prober may be nil.
func NewCheckService(
	portal driven.Portal,
	sheets driven.Spreadsheet,
	validator driven.DocumentValidator,
	prober driven.LinkProber,
	fields *domain.FieldMap,
	settings domain.AppSettings,
) *CheckService {
	return &CheckService{
		portal:    portal,
		sheets:    sheets,
		validator: validator,
		prober:    prober,
		fields:    fields,
		settings:  settings,
	}
}

// CheckPortal lists the instance statistics, checks the first package and
// its node against the expected structure and tests the login.
func (s *CheckService) CheckPortal(ctx context.Context) (*driving.PortalReport, error) {
	if !s.settings.Portal.IsConfigured() {
		return nil, domain.Abort(fmt.Errorf("%w: portal url not set", domain.ErrInvalidInput))
	}
	report := &driving.PortalReport{URL: s.settings.Portal.URL}

	packages, err := s.portal.ListPackages(ctx)
	if err != nil {
		return nil, domain.Abort(fmt.Errorf("list packages: %w", err))
	}

	var sample domain.Document
	for _, pkg := range packages {
		if pkg.String(domain.Path{domain.Key("type")}) != packageTypeDataset {
			continue
		}
		if sample == nil {
			sample = pkg
		}
		report.Datasets++
		report.Resources += len(packageList(pkg, "resources"))
	}
	_, report.ExtensionUsage = ExtensionKeys(packages)
	logger.Info("%d datasets with %d resources", report.Datasets, report.Resources)

	if s.validator != nil && len(packages) > 0 {
		s.checkDocuments(ctx, report, packages[0], sample)
	}

	if err := s.portal.Login(ctx); err != nil {
		report.LoginError = err.Error()
		logger.Warn("Login failed: %v", err)
	} else {
		report.LoginOK = true
	}
	return report, nil
}

func (s *CheckService) checkDocuments(ctx context.Context, report *driving.PortalReport, first, sample domain.Document) {
	if err := s.validator.ValidatePackage(first); err != nil {
		report.PackageSchemaErr = err.Error()
		logger.Warn("Package list is not compatible: %v", err)
	}
	if sample == nil {
		return
	}

	id := sample.String(domain.Path{domain.Key("id")})
	nid, err := s.portal.FindNodeIDByPackageID(ctx, id)
	if err != nil {
		report.NodeSchemaErr = fmt.Sprintf("find node of package %s: %v", id, err)
		return
	}
	report.SampleNodeID = nid

	node, err := s.portal.FetchNode(ctx, nid)
	if err != nil {
		report.NodeSchemaErr = fmt.Sprintf("fetch node %s: %v", nid, err)
		return
	}
	if err := s.validator.ValidateNode(node); err != nil {
		report.NodeSchemaErr = err.Error()
		logger.Warn("Node %s is not compatible: %v", nid, err)
	}
}

// CheckSheet classifies the header of a spreadsheet and decodes its rows
// without contacting the portal.
func (s *CheckService) CheckSheet(_ context.Context, path string) (*driving.SheetReport, error) {
	sheet, err := s.sheets.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	report := &driving.SheetReport{Path: path, Rows: len(sheet.Rows)}
	for _, col := range sheet.Header {
		if _, ok := domain.ExtensionKey(col); ok {
			report.ExtensionColumns = append(report.ExtensionColumns, col)
			continue
		}
		if _, err := s.fields.Resolve(col); err == nil {
			continue
		}
		report.UnknownColumns = append(report.UnknownColumns, col)
		logger.Warn("Column %q has no matching portal field", col)
	}
	report.MissingDataset = missingColumns(sheet, s.fields.Required(domain.EntityDataset))
	report.MissingResource = missingColumns(sheet, s.fields.Required(domain.EntityResource))
	for _, col := range missingColumns(sheet, s.fields.AllFields(domain.EntityResource)) {
		if !slices.Contains(report.MissingResource, col) {
			logger.Debug("Optional column %q not in %s", col, path)
		}
	}

	datasetOnly, err := CheckHeader(s.fields, sheet.Header)
	if err != nil {
		report.RecordErrors = append(report.RecordErrors, err.Error())
		return report, nil
	}
	report.DatasetOnly = datasetOnly

	codec := NewRecordCodec(s.fields, nil, s.settings.Portal)
	for i, row := range sheet.Rows {
		position := i + 2
		ds, err := codec.DatasetFromRow(row, position)
		if err != nil {
			report.RecordErrors = append(report.RecordErrors, err.Error())
		}
		if ds != nil {
			report.Datasets++
			report.RecordErrors = appendProblems(report.RecordErrors, ds.Problems())
		}
		if datasetOnly {
			continue
		}
		res, err := codec.ResourceFromRow(row, position)
		if err != nil {
			report.RecordErrors = append(report.RecordErrors, err.Error())
		}
		if res != nil {
			report.Resources++
			report.RecordErrors = appendProblems(report.RecordErrors, res.Problems())
		}
	}
	return report, nil
}

func missingColumns(sheet *domain.Sheet, columns []string) []string {
	var missing []string
	for _, col := range columns {
		if !sheet.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	return missing
}

func appendProblems(out []string, problems []*domain.RecordError) []string {
	for _, p := range problems {
		out = append(out, p.Error())
	}
	return out
}

// CheckLinks probes every url found in the cells of a spreadsheet. The
// resource url column is skipped; export checks it per resource.
func (s *CheckService) CheckLinks(ctx context.Context, path string) ([]driving.LinkReport, error) {
	if s.prober == nil {
		return nil, fmt.Errorf("link check: %w", domain.ErrNotImplemented)
	}
	sheet, err := s.sheets.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var reports []driving.LinkReport
	for i, row := range sheet.Rows {
		for _, col := range sheet.Header {
			if col == domain.ColResourceURL {
				continue
			}
			for _, url := range urlPattern.FindAllString(row.Value(col), -1) {
				if err := ctx.Err(); err != nil {
					return reports, err
				}
				status := s.prober.Probe(ctx, url)
				r := driving.LinkReport{Row: i + 2, Column: col, URL: url, Status: status.Code, OK: status.OK}
				if r.OK {
					logger.Info("[%s] row %d, %s: %s", r.Status, r.Row, col, url)
				} else {
					logger.Error("[%s] row %d, %s: %s", r.Status, r.Row, col, url)
				}
				reports = append(reports, r)
			}
		}
	}
	return reports, nil
}

// CompareRows lists the columns of source whose exported value differs.
// Server-assigned columns may differ, and extension columns may be absent
// from the export when they were empty.
func (s *CheckService) CompareRows(source, exported *domain.Row) []driving.RowDifference {
	var diffs []driving.RowDifference
	for _, col := range source.Columns() {
		want := source.Value(col)
		got, ok := exported.Get(col)
		if !ok {
			if _, ext := domain.ExtensionKey(col); ext {
				logger.Debug("%q empty in export", col)
				continue
			}
			diffs = append(diffs, driving.RowDifference{Column: col, Source: want, Missing: true})
			continue
		}
		if got = exported.Value(col); got == want {
			continue
		}
		if spec, err := s.fields.Resolve(col); err == nil && spec.ServerAssigned {
			logger.Debug("%q changed by the portal: %q", col, got)
			continue
		}
		diffs = append(diffs, driving.RowDifference{Column: col, Source: want, Exported: got})
	}
	return diffs
}
