package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/core/ports/driven"
	"github.com/custodia-labs/dkansync/internal/core/ports/driving"
	"github.com/custodia-labs/dkansync/internal/logger"
)

// Ensure ExportService implements the interface.
var _ driving.Exporter = (*ExportService)(nil)

// packageTypeDataset is the package type exported; harvest sources and
// other types are skipped.
const packageTypeDataset = "Dataset"

// ExportService writes portal content to a spreadsheet.
type ExportService struct {
	portal     driven.Portal
	cached     driven.Portal
	vocab      driven.VocabularyFetcher
	sheets     driven.Spreadsheet
	validator  driven.DocumentValidator
	prober     driven.LinkProber
	downloader driven.Downloader
	packages   driven.PackageWriter
	runs       driven.RunStore
	fields     *domain.FieldMap
	settings   domain.AppSettings
}

// NewExportService creates an export service.
// cached reads through the response cache and is used for --cached runs.
// cached, validator, prober, downloader, packages and runs may be nil.
func NewExportService(
	portal driven.Portal,
	cached driven.Portal,
	vocab driven.VocabularyFetcher,
	sheets driven.Spreadsheet,
	validator driven.DocumentValidator,
	prober driven.LinkProber,
	downloader driven.Downloader,
	packages driven.PackageWriter,
	runs driven.RunStore,
	fields *domain.FieldMap,
	settings domain.AppSettings,
) *ExportService {
	return &ExportService{
		portal:     portal,
		cached:     cached,
		vocab:      vocab,
		sheets:     sheets,
		validator:  validator,
		prober:     prober,
		downloader: downloader,
		packages:   packages,
		runs:       runs,
		fields:     fields,
		settings:   settings,
	}
}

// Export writes every selected dataset to the spreadsheet. Datasets
// already in an existing spreadsheet are kept and skipped unless
// req.Overwrite is set.
func (s *ExportService) Export(ctx context.Context, req driving.ExportRequest) (*domain.Run, error) {
	req = s.withDefaults(req)
	run := &domain.Run{
		ID:        uuid.NewString(),
		Kind:      domain.RunExport,
		File:      req.Path,
		StartedAt: time.Now(),
	}

	err := s.execute(ctx, req, run)
	run.FinishedAt = time.Now()
	if err != nil {
		run.Error = err.Error()
	}
	if s.runs != nil {
		if serr := s.runs.Save(ctx, run); serr != nil {
			logger.Warn("Failed to record run %s: %v", run.ID, serr)
		}
	}
	return run, err
}

func (s *ExportService) withDefaults(req driving.ExportRequest) driving.ExportRequest {
	f := s.settings.Features
	if req.Path == "" {
		req.Path = s.settings.Sheet.Filename
	}
	req.CheckLinks = req.CheckLinks || f.CheckResources
	req.Detailed = req.Detailed || f.DetailedResources
	req.Download = req.Download || f.DownloadResources
	req.SkipResources = req.SkipResources || f.SkipResources
	if req.DatasetIDs == nil {
		req.DatasetIDs = f.DatasetIDs
	}
	if req.Limit == 0 {
		req.Limit = f.Limit
	}
	return req
}

// source returns the portal reads go to.
func (s *ExportService) source(cached bool) driven.Portal {
	if cached && s.cached != nil {
		return s.cached
	}
	if cached {
		logger.Warn("Response cache not available, reading from the portal")
	}
	return s.portal
}

func (s *ExportService) execute(ctx context.Context, req driving.ExportRequest, run *domain.Run) error {
	src := s.source(req.Cached)

	packages, err := src.ListPackages(ctx)
	if err != nil {
		return domain.Abort(fmt.Errorf("list packages: %w", err))
	}
	logger.Info("%d packages in the portal", len(packages))

	keys, usage := ExtensionKeys(packages)
	logger.Debug("Extension fields: %v", usage)

	header := ExportHeader(s.fields, keys, req.SkipResources, req.Detailed)
	sheet, existing, err := s.openSheet(req.Path, header)
	if err != nil {
		return err
	}

	codec := NewRecordCodec(s.fields, NewReferenceResolver(NewVocabularyCache(s.vocab)), s.settings.Portal)
	number := len(existing)
	var exported []domain.Document
	checked := false

	for _, pkg := range packages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if req.Limit > 0 && len(exported) >= req.Limit {
			logger.Info("Limit of %d datasets reached", req.Limit)
			break
		}

		id := pkg.String(domain.Path{domain.Key("id")})
		if len(req.DatasetIDs) > 0 && !slices.Contains(req.DatasetIDs, id) {
			logger.Debug("%s not in dataset filter", id)
			continue
		}
		if t := pkg.String(domain.Path{domain.Key("type")}); t != packageTypeDataset {
			logger.Debug("%s is a %q, skipped", id, t)
			continue
		}
		action := domain.DatasetCreate
		if existing[id] {
			if !req.Overwrite {
				logger.Info("%s already in %s, skipped", id, req.Path)
				run.Stats.DatasetsSkipped++
				continue
			}
			sheet.Rows = removeDataset(sheet.Rows, id)
			action = domain.DatasetUpdate
		}

		number++
		in, err := s.exportInput(ctx, src, req, pkg, number, keys)
		if err != nil {
			return err
		}
		if !checked {
			if err := s.checkStructure(in); err != nil {
				return err
			}
			checked = true
		}
		rows, err := codec.ToRows(ctx, in)
		if err != nil {
			return domain.Abort(fmt.Errorf("package %s: %w", id, err))
		}
		if req.Download && !req.SkipResources {
			run.Stats.Warnings += s.download(ctx, rows)
		}

		title := pkg.String(domain.Path{domain.Key("title")})
		logger.Info("Dataset %d: %q", number, title)
		run.Entries = append(run.Entries, domain.PlanEntry{
			Row:    len(sheet.Rows) + 2,
			Title:  title,
			NodeID: in.Node.String(domain.Path{domain.Key("nid")}),
			Action: action,
		})
		sheet.Rows = append(sheet.Rows, rows...)
		run.Stats.DatasetsExported++
		exported = append(exported, pkg)
	}

	if err := s.sheets.Write(req.Path, sheet); err != nil {
		return fmt.Errorf("write %s: %w", req.Path, err)
	}
	logger.Info("%d datasets written to %s", len(exported), req.Path)

	if req.DatapackagePath != "" {
		if s.packages == nil {
			return fmt.Errorf("data package export: %w", domain.ErrNotImplemented)
		}
		if err := s.packages.WritePackage(req.DatapackagePath, s.settings.Portal.URL, exported); err != nil {
			return fmt.Errorf("write data package: %w", err)
		}
	}
	return nil
}

// ExportHeader returns the spreadsheet header of an export.
func ExportHeader(fields *domain.FieldMap, extensionKeys []string, skipResources, detailed bool) []string {
	header := fields.AllFields(domain.EntityDataset)
	for _, key := range extensionKeys {
		header = append(header, domain.ExtensionColumn(key))
	}
	if skipResources {
		return header
	}
	for _, spec := range fields.Specs(domain.EntityResource) {
		if !spec.Optional || detailed {
			header = append(header, spec.Column)
		}
	}
	return header
}

// openSheet loads the spreadsheet to continue, or starts an empty one. An
// existing spreadsheet must contain every column of header; new extension
// columns are appended. It returns the dataset ids already present.
func (s *ExportService) openSheet(file string, header []string) (*domain.Sheet, map[string]bool, error) {
	existing := make(map[string]bool)
	sheet, err := s.sheets.Read(file)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, domain.ErrNotFound) {
		logger.Info("%s does not exist yet and is created", file)
		return &domain.Sheet{Header: header}, existing, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", file, err)
	}

	var missing []string
	for _, col := range header {
		if sheet.HasColumn(col) {
			continue
		}
		if _, ok := domain.ExtensionKey(col); ok {
			sheet.Header = append(sheet.Header, col)
			continue
		}
		missing = append(missing, col)
	}
	for _, col := range sheet.Header {
		if !slices.Contains(header, col) {
			logger.Warn("Unknown column %q in %s is kept as is", col, file)
		}
	}
	if len(missing) > 0 {
		return nil, nil, domain.Abort(fmt.Errorf("%w in %s: %v", domain.ErrMissingColumns, file, missing))
	}

	for _, row := range sheet.Rows {
		if id := row.Value(domain.ColDatasetID); id != "" {
			existing[id] = true
		}
	}
	logger.Info("Continuing %s with %d datasets", file, len(existing))
	return sheet, existing, nil
}

// removeDataset drops the rows of a dataset: its header row and the
// resource rows up to the next dataset.
func removeDataset(rows []*domain.Row, id string) []*domain.Row {
	out := rows[:0:0]
	dropping := false
	for _, row := range rows {
		if rid := row.Value(domain.ColDatasetID); rid != "" || row.Value(domain.ColTitle) != "" {
			dropping = rid == id
		}
		if !dropping {
			out = append(out, row)
		}
	}
	return out
}

// exportInput gathers the node, resource nodes and link checks of a package.
func (s *ExportService) exportInput(
	ctx context.Context,
	src driven.Portal,
	req driving.ExportRequest,
	pkg domain.Document,
	number int,
	keys []string,
) (ExportInput, error) {
	id := pkg.String(domain.Path{domain.Key("id")})
	in := ExportInput{Package: pkg, Number: number, ExtensionKeys: keys, SkipResources: req.SkipResources}

	node, err := s.datasetNode(ctx, src, id)
	if err != nil {
		return in, err
	}
	in.Node = node

	if req.SkipResources {
		return in, nil
	}
	resources := packageList(pkg, "resources")

	if req.CheckLinks {
		if s.prober == nil {
			return in, domain.Abort(fmt.Errorf("link check: %w", domain.ErrNotImplemented))
		}
		in.Links = make(map[string]driven.LinkStatus, len(resources))
		for _, item := range resources {
			res := domain.Document(asDocument(item))
			url := res.String(domain.Path{domain.Key("url")})
			status := s.prober.Probe(ctx, url)
			logger.Debug("Probe %s: %v %s", url, status.OK, status.Code)
			in.Links[res.String(domain.Path{domain.Key("id")})] = status
		}
	}

	if req.Detailed {
		in.ResourceNodes = make(map[string]domain.Document, len(resources))
		for _, item := range resources {
			rid := domain.Document(asDocument(item)).String(domain.Path{domain.Key("id")})
			nid, err := src.FindNodeIDByPackageID(ctx, rid)
			if errors.Is(err, domain.ErrNotFound) {
				logger.Warn("Resource %s of %s has no node", rid, id)
				continue
			}
			if err != nil {
				return in, domain.Abort(fmt.Errorf("find resource %s: %w", rid, err))
			}
			rnode, err := src.FetchNode(ctx, nid)
			if err != nil {
				return in, domain.Abort(fmt.Errorf("fetch resource %s: %w", nid, err))
			}
			in.ResourceNodes[rid] = rnode
		}
	}
	return in, nil
}

// datasetNode fetches the dataset node of a package.
func (s *ExportService) datasetNode(ctx context.Context, src driven.Portal, id string) (domain.Document, error) {
	nid, err := src.FindNodeIDByPackageID(ctx, id)
	if err != nil {
		return nil, domain.Abort(fmt.Errorf("find node of package %s: %w", id, err))
	}
	node, err := src.FetchNode(ctx, nid)
	if err != nil {
		return nil, domain.Abort(fmt.Errorf("fetch node %s: %w", nid, err))
	}
	return node, nil
}

// checkStructure validates the first exported package and its node. A
// portal whose documents do not match aborts the export before anything is
// written; packages left out by the filter are never checked.
func (s *ExportService) checkStructure(in ExportInput) error {
	if s.validator == nil {
		return nil
	}
	id := in.Package.String(domain.Path{domain.Key("id")})
	if err := s.validator.ValidatePackage(in.Package); err != nil {
		return domain.Abort(fmt.Errorf("package %s: %w", id, err))
	}
	if err := s.validator.ValidateNode(in.Node); err != nil {
		nid := in.Node.String(domain.Path{domain.Key("nid")})
		if logger.IsVerbose() {
			logger.Debug("Node %s:\n%s", nid, dump(in.Node))
		}
		return domain.Abort(fmt.Errorf("node %s: %w", nid, err))
	}
	return nil
}

// download stores resource files as <Lfd-Nr>-<file name> in the download
// directory and returns the number of failures.
func (s *ExportService) download(ctx context.Context, rows []*domain.Row) int {
	if s.downloader == nil {
		logger.Warn("Resource download not available")
		return 1
	}
	failures := 0
	for _, row := range rows {
		url := row.Value(domain.ColResourceURL)
		seq := row.Value(domain.ColResourceSeq)
		if url == "" {
			continue
		}
		dest := filepath.Join(s.settings.Sheet.DownloadDir, seq+"-"+path.Base(url))
		if err := s.downloader.Download(ctx, url, dest); err != nil {
			logger.Warn("Download %s: %v", url, err)
			failures++
			continue
		}
		logger.Debug("Downloaded %s to %s", url, dest)
	}
	return failures
}

func asDocument(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
