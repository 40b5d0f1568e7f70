package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/core/ports/driven"
	"github.com/custodia-labs/dkansync/internal/logger"
)

// ReconcileOptions tunes change detection.
type ReconcileOptions struct {
	// ForceUpdate updates every matched resource.
	ForceUpdate bool

	// CompareFields are node values whose change triggers an update.
	CompareFields []domain.CompareField
}

// ResourceReconciler computes the operations that converge the resources
// of a dataset node to the desired rows.
type ResourceReconciler struct {
	nodes   driven.NodeFetcher
	builder *DocumentBuilder
	opts    ReconcileOptions
}

// NewResourceReconciler creates a reconciler.
func NewResourceReconciler(nodes driven.NodeFetcher, builder *DocumentBuilder, opts ReconcileOptions) *ResourceReconciler {
	return &ResourceReconciler{nodes: nodes, builder: builder, opts: opts}
}

// Plan returns one UPDATE, NO-OP or DELETE per existing ref, in order,
// followed by one CREATE per unmatched desired resource. desired is not
// modified. A failure to fetch an existing resource aborts the plan.
func (r *ResourceReconciler) Plan(
	ctx context.Context,
	desired []*domain.Resource,
	existing []string,
	parent domain.Document,
) ([]domain.Operation, error) {
	remaining := make([]*domain.Resource, len(desired))
	copy(remaining, desired)

	rc := ResourceContext{
		DatasetNodeID: parent.String(domain.Path{domain.Key("nid")}),
		DatasetTitle:  parent.String(domain.Path{domain.Key("title")}),
	}

	ops := make([]domain.Operation, 0, len(existing)+len(desired))
	for _, ref := range existing {
		prev, err := r.nodes.FetchNode(ctx, ref)
		if err != nil {
			return nil, domain.Abort(fmt.Errorf("fetch resource %s: %w", ref, err))
		}

		idx := -1
		for i, res := range remaining {
			if res.MatchesExisting(prev) {
				idx = i
				break
			}
		}
		if idx < 0 {
			logger.Debug("resource %s (%q) no longer in sheet", ref, prev.String(domain.Path{domain.Key("title")}))
			ops = append(ops, domain.Operation{Kind: domain.OpDelete, Ref: ref, Previous: prev})
			continue
		}

		match := remaining[idx]
		remaining = append(remaining[:idx:idx], remaining[idx+1:]...)

		rc.Previous = prev
		payload, err := r.builder.BuildResource(ctx, match, rc)
		if err != nil {
			return nil, err
		}

		reasons := r.differences(payload, prev)
		kind := domain.OpNoOp
		if r.opts.ForceUpdate || len(reasons) > 0 {
			kind = domain.OpUpdate
		}
		if r.opts.ForceUpdate && len(reasons) == 0 {
			reasons = []string{"forced"}
		}
		ops = append(ops, domain.Operation{
			Kind:     kind,
			Ref:      ref,
			Resource: match,
			Payload:  payload,
			Previous: prev,
			Reasons:  reasons,
		})
	}

	rc.Previous = nil
	for _, res := range remaining {
		payload, err := r.builder.BuildResource(ctx, res, rc)
		if err != nil {
			return nil, err
		}
		ops = append(ops, domain.Operation{Kind: domain.OpCreate, Resource: res, Payload: payload})
	}

	return ops, nil
}

// differences lists what the payload would change on the existing node.
func (r *ResourceReconciler) differences(payload *domain.ResourcePayload, prev domain.Document) []string {
	var reasons []string
	title := domain.Path{domain.Key("title")}
	if payload.Document.String(title) != prev.String(title) {
		reasons = append(reasons, "title")
	}

	newLink, newType := domain.ExtractLink(payload.Document)
	if payload.UploadPath != "" {
		newLink, newType = filepath.Base(payload.UploadPath), domain.ResourceUploaded
	}
	oldLink, oldType := domain.ExtractLink(prev)
	if newLink != oldLink || newType != oldType {
		reasons = append(reasons, "link")
	}

	body := payload.Document.String(domain.FieldValue("body", "value"))
	if body != prev.String(domain.FieldValue("body", "safe_value")) && body != prev.String(domain.FieldValue("body", "value")) {
		reasons = append(reasons, "body")
	}

	for _, f := range r.opts.CompareFields {
		if normaliseCompared(payload.Document.String(f.Path())) != normaliseCompared(prev.String(f.Path())) {
			reasons = append(reasons, f.String())
		}
	}
	return reasons
}

func normaliseCompared(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "_x000D_", "")
	return strings.TrimSpace(s)
}
