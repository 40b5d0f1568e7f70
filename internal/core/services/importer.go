package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"

	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/core/ports/driven"
	"github.com/custodia-labs/dkansync/internal/core/ports/driving"
	"github.com/custodia-labs/dkansync/internal/logger"
)

// Ensure ImportService implements the interface.
var _ driving.Importer = (*ImportService)(nil)

// ImportService writes spreadsheet rows to the portal.
type ImportService struct {
	portal   driven.Portal
	vocab    driven.VocabularyFetcher
	sheets   driven.Spreadsheet
	runs     driven.RunStore
	fields   *domain.FieldMap
	settings domain.AppSettings

	// fileExists is handed to the document builder; tests replace it.
	fileExists func(path string) bool
}

// NewImportService creates an import service. runs is optional.
func NewImportService(
	portal driven.Portal,
	vocab driven.VocabularyFetcher,
	sheets driven.Spreadsheet,
	runs driven.RunStore,
	fields *domain.FieldMap,
	settings domain.AppSettings,
) *ImportService {
	return &ImportService{
		portal:     portal,
		vocab:      vocab,
		sheets:     sheets,
		runs:       runs,
		fields:     fields,
		settings:   settings,
		fileExists: isFile,
	}
}

// importRun is the per-run state of an import.
type importRun struct {
	req         driving.ImportRequest
	run         *domain.Run
	codec       *RecordCodec
	builder     *DocumentBuilder
	reconciler  *ResourceReconciler
	datasetOnly bool
	processed   int
}

// datasetGroup is a dataset row with the resource rows that follow it.
type datasetGroup struct {
	dataset   *domain.Dataset
	resources []*domain.Resource
}

// Import reads the spreadsheet and converges the portal to it.
func (s *ImportService) Import(ctx context.Context, req driving.ImportRequest) (*domain.Run, error) {
	req = s.withDefaults(req)
	run := &domain.Run{
		ID:        uuid.NewString(),
		Kind:      domain.RunImport,
		File:      req.Path,
		DryRun:    req.DryRun,
		StartedAt: time.Now(),
	}

	err := s.execute(ctx, req, run)
	run.FinishedAt = time.Now()
	if err != nil {
		run.Error = err.Error()
	}
	s.saveRun(ctx, run)
	return run, err
}

func (s *ImportService) withDefaults(req driving.ImportRequest) driving.ImportRequest {
	f := s.settings.Features
	if req.Path == "" {
		req.Path = s.settings.Sheet.Filename
	}
	req.ForceUpdate = req.ForceUpdate || f.ForceResourceUpdate
	req.SkipResources = req.SkipResources || f.SkipResources
	if req.DatasetIDs == nil {
		req.DatasetIDs = f.DatasetIDs
	}
	if req.Limit == 0 {
		req.Limit = f.Limit
	}
	return req
}

func (s *ImportService) saveRun(ctx context.Context, run *domain.Run) {
	if s.runs == nil {
		return
	}
	if err := s.runs.Save(ctx, run); err != nil {
		logger.Warn("Failed to record run %s: %v", run.ID, err)
	}
}

func (s *ImportService) execute(ctx context.Context, req driving.ImportRequest, run *domain.Run) error {
	if err := s.fields.Verify(); err != nil {
		return domain.Abort(err)
	}

	sheet, err := s.sheets.Read(req.Path)
	if err != nil {
		return fmt.Errorf("read %s: %w", req.Path, err)
	}

	datasetOnly, err := CheckHeader(s.fields, sheet.Header)
	if err != nil {
		return domain.Abort(err)
	}
	if datasetOnly {
		logger.Warn("%s has no resource columns, only datasets are updated", req.Path)
	}

	if !req.DryRun {
		if err := s.portal.Login(ctx); err != nil {
			return domain.Abort(fmt.Errorf("login: %w", err))
		}
	}

	resolver := NewReferenceResolver(NewVocabularyCache(s.vocab))
	builder := NewDocumentBuilder(s.fields, resolver, s.portal, s.settings.Portal, s.settings.Sheet.DownloadDir)
	builder.fileExists = s.fileExists

	ir := &importRun{
		req:         req,
		run:         run,
		codec:       NewRecordCodec(s.fields, resolver, s.settings.Portal),
		builder:     builder,
		datasetOnly: datasetOnly,
		reconciler: NewResourceReconciler(s.portal, builder, ReconcileOptions{
			ForceUpdate:   req.ForceUpdate,
			CompareFields: s.settings.Reconcile.CompareFields,
		}),
	}

	var current *datasetGroup
	skipping := false
	for i, row := range sheet.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		position := i + 2
		logger.Debug("Row %d/%d", position, len(sheet.Rows)+1)

		ds, err := ir.codec.DatasetFromRow(row, position)
		if err != nil {
			if current != nil {
				if perr := s.process(ctx, ir, current); perr != nil {
					return perr
				}
			}
			s.recordFailure(run, position, row.Value(domain.ColTitle), err)
			current, skipping = nil, true
			continue
		}
		if ds != nil {
			if current != nil {
				if err := s.process(ctx, ir, current); err != nil {
					return err
				}
			}
			current, skipping = &datasetGroup{dataset: ds}, false
		}

		if datasetOnly || req.SkipResources {
			continue
		}
		res, err := ir.codec.ResourceFromRow(row, position)
		switch {
		case err != nil:
			run.Stats.RecordErrors++
			logger.Warn("%v, resource ignored", err)
		case res == nil:
			logger.Debug("Row %d holds no resource", position)
		case current == nil && !skipping:
			logger.Warn("Row %d: resource %q has no dataset above it and is ignored", position, res.Name())
		case current != nil:
			current.resources = append(current.resources, res)
		}
	}

	if current != nil {
		return s.process(ctx, ir, current)
	}
	return nil
}

// CheckHeader verifies that a header carries every required dataset
// column. It reports dataset-only mode when no resource column is present
// at all; a partial set of resource columns is an error.
func CheckHeader(fields *domain.FieldMap, header []string) (datasetOnly bool, err error) {
	sheet := &domain.Sheet{Header: header}
	var missing []string
	for _, col := range fields.Required(domain.EntityDataset) {
		if !sheet.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return false, fmt.Errorf("%w: dataset columns %s", domain.ErrMissingColumns, strings.Join(missing, ", "))
	}

	required := fields.Required(domain.EntityResource)
	missing = nil
	for _, col := range required {
		if !sheet.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	switch {
	case len(missing) == 0:
		return false, nil
	case len(missing) == len(required):
		return true, nil
	default:
		return false, fmt.Errorf("%w: resource columns %s", domain.ErrMissingColumns, strings.Join(missing, ", "))
	}
}

func (s *ImportService) recordFailure(run *domain.Run, position int, title string, err error) {
	run.Stats.RecordErrors++
	logger.Warn("%v, dataset skipped", err)
	run.Entries = append(run.Entries, domain.PlanEntry{
		Row:     position,
		Title:   title,
		Action:  domain.DatasetFailed,
		Message: err.Error(),
	})
}

// selected reports whether the dataset filter admits a dataset. Rows
// without ids are new and always admitted.
func selected(ds *domain.Dataset, ids []string) bool {
	if len(ids) == 0 {
		return true
	}
	if ds.PackageID() == "" && ds.NodeID() == "" {
		return true
	}
	return slices.Contains(ids, ds.PackageID()) || slices.Contains(ids, ds.NodeID())
}

// process writes one dataset and reconciles its resources. Only aborts
// are returned; record-level failures end up in the run entries.
func (s *ImportService) process(ctx context.Context, ir *importRun, g *datasetGroup) error {
	ds := g.dataset
	run := ir.run

	if ir.req.Limit > 0 && ir.processed >= ir.req.Limit {
		logger.Debug("%s skipped, limit of %d reached", ds, ir.req.Limit)
		run.Stats.DatasetsSkipped++
		return nil
	}
	if !selected(ds, ir.req.DatasetIDs) {
		logger.Info("%s skipped, not in dataset filter", ds)
		run.Stats.DatasetsSkipped++
		return nil
	}
	ir.processed++

	logger.Section(ds.Title())
	entry := domain.PlanEntry{Row: ds.Position(), Title: ds.Title()}
	for _, p := range ds.Problems() {
		entry.Warnings = append(entry.Warnings, p.Error())
	}

	doc, err := ir.builder.BuildDataset(ctx, ds)
	if err != nil {
		return err
	}
	if logger.IsVerbose() {
		logger.Debug("Dataset document:\n%s", dump(doc))
	}

	nid, err := s.locate(ctx, ds)
	if err != nil {
		return err
	}

	if nid == "" {
		entry.Action = domain.DatasetCreate
	} else {
		entry.Action = domain.DatasetUpdate
	}

	if !ir.req.DryRun {
		if nid, err = s.writeDataset(ctx, nid, doc); err != nil {
			if errors.Is(err, domain.ErrAuthInvalid) {
				return domain.Abort(err)
			}
			entry.Action = domain.DatasetFailed
			entry.Message = err.Error()
			run.Stats.RecordErrors++
			logger.Warn("%s: %v", ds, err)
			addEntry(run, entry)
			return nil
		}
	}
	entry.NodeID = nid
	if entry.Action == domain.DatasetCreate {
		run.Stats.DatasetsCreated++
	} else {
		run.Stats.DatasetsUpdated++
	}

	if !ir.datasetOnly && !ir.req.SkipResources {
		ops, err := s.reconcile(ctx, ir, nid, doc, g.resources)
		if err != nil {
			return err
		}
		if !ir.req.DryRun {
			entry.Warnings = append(entry.Warnings, s.apply(ctx, ops)...)
		}
		run.Stats.Add(ops)
		for _, op := range ops {
			entry.Operations = append(entry.Operations, op.Summarise())
		}
	}

	addEntry(run, entry)
	return nil
}

// dump renders a document for debug output.
func dump(doc domain.Document) string {
	return spew.Sdump(doc)
}

func addEntry(run *domain.Run, entry domain.PlanEntry) {
	run.Stats.Warnings += len(entry.Warnings)
	run.Entries = append(run.Entries, entry)
}

// locate returns the node id of an existing dataset, "" when it is new.
// A Dataset-ID that the portal does not know creates a new dataset.
func (s *ImportService) locate(ctx context.Context, ds *domain.Dataset) (string, error) {
	if nid := ds.NodeID(); nid != "" {
		return nid, nil
	}
	pkg := ds.PackageID()
	if pkg == "" {
		return "", nil
	}
	nid, err := s.portal.FindNodeIDByPackageID(ctx, pkg)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("%s: no node carries Dataset-ID %s, creating a new dataset", ds, pkg)
		return "", nil
	}
	if err != nil {
		return "", domain.Abort(fmt.Errorf("find node of package %s: %w", pkg, err))
	}
	logger.Debug("Dataset-ID %s is node %s", pkg, nid)
	return nid, nil
}

func (s *ImportService) writeDataset(ctx context.Context, nid string, doc domain.Document) (string, error) {
	if nid == "" {
		created, err := s.portal.CreateNode(ctx, doc)
		if err != nil {
			return "", fmt.Errorf("create dataset: %w", err)
		}
		logger.Info("Created dataset node %s", created)
		return created, nil
	}
	if err := s.portal.UpdateNode(ctx, nid, doc); err != nil {
		return "", fmt.Errorf("update dataset %s: %w", nid, err)
	}
	logger.Info("Updated dataset node %s", nid)
	return nid, nil
}

// reconcile plans the resource operations of a written dataset. In a dry
// run a new dataset has no node; its resources are all created.
func (s *ImportService) reconcile(
	ctx context.Context,
	ir *importRun,
	nid string,
	doc domain.Document,
	resources []*domain.Resource,
) ([]domain.Operation, error) {
	parent := domain.Document{"nid": nid, "title": doc["title"]}
	var existing []string
	if nid != "" {
		node, err := s.portal.FetchNode(ctx, nid)
		if err != nil {
			return nil, domain.Abort(fmt.Errorf("fetch dataset %s: %w", nid, err))
		}
		parent = node
		existing = ResourceRefs(node)
	}
	return ir.reconciler.Plan(ctx, resources, existing, parent)
}

// ResourceRefs returns the resource node ids attached to a dataset node.
func ResourceRefs(node domain.Document) []string {
	var refs []string
	for _, item := range node.Items(domain.FieldResources) {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if id := domain.ScalarString(m["target_id"]); id != "" {
			refs = append(refs, id)
		}
	}
	return refs
}

// apply executes a plan and returns a warning for every failed step.
func (s *ImportService) apply(ctx context.Context, ops []domain.Operation) []string {
	var warnings []string
	fail := func(op domain.Operation, err error) {
		msg := fmt.Sprintf("%s %q: %v", op.Kind, op.Title(), err)
		logger.Warn("Resource %s", msg)
		warnings = append(warnings, msg)
	}

	for _, op := range ops {
		switch op.Kind {
		case domain.OpCreate:
			nid, err := s.portal.CreateNode(ctx, op.Payload.Document)
			if err != nil {
				fail(op, err)
				continue
			}
			logger.Info("Created resource %q (%s)", op.Title(), nid)
			if err := s.attach(ctx, nid, op.Payload); err != nil {
				fail(op, err)
			}
		case domain.OpUpdate:
			if err := s.portal.UpdateNode(ctx, op.Ref, op.Payload.Document); err != nil {
				fail(op, err)
				continue
			}
			logger.Info("Updated resource %q (%s): %s", op.Title(), op.Ref, strings.Join(op.Reasons, ", "))
			if err := s.attach(ctx, op.Ref, op.Payload); err != nil {
				fail(op, err)
			}
		case domain.OpDelete:
			if err := s.portal.DeleteNode(ctx, op.Ref); err != nil {
				fail(op, err)
				continue
			}
			logger.Info("Deleted resource %q (%s)", op.Title(), op.Ref)
		case domain.OpNoOp:
			logger.Debug("Resource %q (%s) unchanged", op.Title(), op.Ref)
		}
	}
	return warnings
}

func (s *ImportService) attach(ctx context.Context, nid string, payload *domain.ResourcePayload) error {
	if payload.UploadPath == "" {
		return nil
	}
	if err := s.portal.AttachFile(ctx, nid, domain.FieldUpload, payload.UploadPath); err != nil {
		return fmt.Errorf("attach %s: %w", payload.UploadPath, err)
	}
	return nil
}
