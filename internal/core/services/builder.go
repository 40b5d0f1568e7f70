package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/core/ports/driven"
	"github.com/custodia-labs/dkansync/internal/logger"
)

var remoteURLPattern = regexp.MustCompile(`(?i)\b(https?|ftp)://[-A-Z0-9+&@#/%?=~_|!:,.;]*[-A-Z0-9+&@#/%=~_|]`)

// DocumentBuilder turns decoded entities into node payloads.
type DocumentBuilder struct {
	fields   *domain.FieldMap
	resolver *ReferenceResolver
	nodes    driven.NodeFetcher
	portal   domain.PortalSettings

	downloadDir string
	fileExists  func(path string) bool
}

// NewDocumentBuilder creates a builder. nodes is used to verify groups;
// downloadDir holds files referenced by uploaded resources.
func NewDocumentBuilder(
	fields *domain.FieldMap,
	resolver *ReferenceResolver,
	nodes driven.NodeFetcher,
	portal domain.PortalSettings,
	downloadDir string,
) *DocumentBuilder {
	return &DocumentBuilder{
		fields:      fields,
		resolver:    resolver,
		nodes:       nodes,
		portal:      portal,
		downloadDir: downloadDir,
		fileExists:  isFile,
	}
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// BuildDataset builds the create or update payload of a dataset. A group
// that is missing or not a group aborts the build.
func (b *DocumentBuilder) BuildDataset(ctx context.Context, ds *domain.Dataset) (domain.Document, error) {
	format := ds.Value(domain.ColTextFormat)
	if format == "" {
		format = string(b.portal.DatasetTextFormat)
	}

	doc := domain.Document{
		"type":  "dataset",
		"title": ds.Title(),
		"body":  domain.Wrap(map[string]any{"value": lineBreaks(ds.Value(domain.ColDescription)), "format": format}),
	}

	for _, spec := range b.fields.Specs(domain.EntityDataset) {
		if spec.Target == nil {
			continue
		}
		value := ds.Value(spec.Column)
		if value == "" {
			continue
		}
		if spec.Column == domain.ColTemporalEnd && ds.Value(domain.ColTemporalStart) == "" {
			logger.Debug("%s without %s ignored", domain.ColTemporalEnd, domain.ColTemporalStart)
			continue
		}
		// columns sharing a target: the first one declared wins
		if _, taken := doc.Lookup(spec.Target); taken {
			logger.Debug("%s ignored, %s already set", spec.Column, spec.Target)
			continue
		}
		doc.Set(spec.Target, value)
	}

	for _, spec := range b.fields.Specs(domain.EntityDataset) {
		var err error
		switch m := spec.Mapping.(type) {
		case domain.GroupCollect:
			err = b.writeGroups(ctx, doc, m, ds.References(spec.Column))
		case domain.TagList:
			err = b.writeTerms(ctx, doc, m.Field, m.Vocabulary, ds.References(spec.Column))
		case domain.RelatedList:
			writeRelated(doc, m.Field, ds.Related(spec.Column))
		}
		if err != nil {
			return nil, err
		}
	}

	writeExtensions(doc, ds.Extensions())
	return doc, nil
}

// lineBreaks converts newlines to <br /> in text without markup.
func lineBreaks(text string) string {
	if strings.Contains(text, "\n") && !strings.Contains(text, "<") {
		return strings.ReplaceAll(text, "\n", "<br />")
	}
	return text
}

func (b *DocumentBuilder) writeGroups(ctx context.Context, doc domain.Document, m domain.GroupCollect, refs []domain.Reference) error {
	if len(refs) == 0 {
		return nil
	}

	items := make([]map[string]any, 0, len(refs))
	for _, ref := range refs {
		id := ref.ID
		if id == "" {
			ids, _, err := b.resolver.ResolveToIDs(ctx, domain.VocabularyGroups, []domain.Reference{ref})
			if err != nil {
				return domain.Abort(err)
			}
			if len(ids) == 0 {
				return domain.Abort(fmt.Errorf("%w: %q", domain.ErrUnknownGroup, ref.Name))
			}
			id = ids[0]
		}

		group, err := b.nodes.FetchNode(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Abort(fmt.Errorf("%w: %q (%s) does not exist", domain.ErrUnknownGroup, ref.Name, id))
		}
		if err != nil {
			return domain.Abort(fmt.Errorf("fetch group %s: %w", id, err))
		}
		if t := group.String(domain.Path{domain.Key("type")}); t != "group" {
			return domain.Abort(fmt.Errorf("%w: node %s (%q) is a %q", domain.ErrUnknownGroup, id, ref.Name, t))
		}
		if title := group.String(domain.Path{domain.Key("title")}); title != ref.Name {
			logger.Warn("group %s is named %q, sheet says %q", id, title, ref.Name)
		}
		items = append(items, map[string]any{"target_id": id})
	}
	doc[m.Field] = domain.Wrap(items...)
	return nil
}

func (b *DocumentBuilder) writeTerms(ctx context.Context, doc domain.Document, field, vocabulary string, refs []domain.Reference) error {
	if len(refs) == 0 {
		return nil
	}
	ids, _, err := b.resolver.ResolveToIDs(ctx, vocabulary, refs)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	items := make([]map[string]any, len(ids))
	for i, id := range ids {
		items[i] = map[string]any{"tid": id}
	}
	doc[field] = domain.Wrap(items...)
	return nil
}

func writeRelated(doc domain.Document, field string, links []domain.RelatedLink) {
	if len(links) == 0 {
		return
	}
	items := make([]map[string]any, len(links))
	for i, l := range links {
		items[i] = map[string]any{"title": l.Title, "url": l.URL, "attributes": []any{}}
	}
	doc[field] = domain.Wrap(items...)
}

// writeExtensions emits extension fields with a zero-based weight in
// column order. Entries with an empty key or value are skipped.
func writeExtensions(doc domain.Document, fields []domain.ExtensionField) {
	if len(fields) == 0 {
		return
	}
	items := make([]map[string]any, 0, len(fields))
	weight := 0
	for _, f := range fields {
		if f.Key == "" || f.Value == "" {
			continue
		}
		items = append(items, map[string]any{"first": f.Key, "second": f.Value, "_weight": weight})
		weight++
	}
	doc[domain.FieldAdditionalInfo] = domain.Wrap(items...)
}

// ResourceContext is the dataset a resource is built for.
type ResourceContext struct {
	DatasetNodeID string
	DatasetTitle  string

	// Previous is the existing resource node on update, nil on create.
	Previous domain.Document
}

// BuildResource builds a resource node payload. Datastore resources are
// not supported and abort the build.
func (b *DocumentBuilder) BuildResource(ctx context.Context, r *domain.Resource, rc ResourceContext) (*domain.ResourcePayload, error) {
	format := normaliseFormat(r.Format())

	formatID := "0"
	if format != "" {
		id, ok, err := b.resolver.LookupFormat(ctx, format)
		if err != nil {
			return nil, err
		}
		if ok {
			formatID = id
		} else {
			logger.Warn("row %d: %v: %q, register it in the portal to use it", r.Position(), domain.ErrUnknownFormat, format)
		}
	}

	title := r.Name()
	if title == "" {
		title = rc.DatasetTitle + " - " + r.Format()
		if format == "HTML" {
			title = rc.DatasetTitle + " - Vorschau"
		}
	}

	textFormat := r.TextFormat()
	if textFormat == "" {
		textFormat = string(b.portal.ResourceTextFormat)
	}

	doc := domain.Document{
		"type":                 "resource",
		domain.FieldDatasetRef: domain.Wrap(map[string]any{"target_id": rc.DatasetNodeID}),
		"title":                title,
		"body":                 domain.Wrap(map[string]any{"value": r.Description(), "format": textFormat}),
		domain.FieldFormat:     domain.Wrap(map[string]any{"tid": formatID}),
		domain.FieldLinkRemoteFile: domain.Wrap(map[string]any{
			"filefield_dkan_remotefile": map[string]any{"url": ""},
			"fid":                       0,
			"display":                   1,
		}),
		domain.FieldLinkAPI: domain.Wrap(map[string]any{"url": ""}),
	}

	kind := r.Type()
	copied := false
	if rc.Previous != nil && kind == domain.ResourceUploaded {
		if upload, ok := rc.Previous.Lookup(domain.Path{domain.Key(domain.FieldUpload), domain.LangSlot}); ok {
			if list, isList := upload.([]any); isList && len(list) > 0 {
				doc[domain.FieldUpload] = rc.Previous[domain.FieldUpload]
				copied = true
			}
		}
	}

	payload := &domain.ResourcePayload{Document: doc}
	switch upload := b.uploadPath(ctx, r); {
	case upload != "":
		payload.UploadPath = upload
	case kind == domain.ResourceDatastore:
		return nil, domain.Abort(fmt.Errorf("row %d: datastore resources: %w", r.Position(), domain.ErrNotImplemented))
	case kind == domain.ResourceRemoteFile:
		doc[domain.FieldLinkRemoteFile] = domain.Wrap(map[string]any{
			"filefield_dkan_remotefile": map[string]any{"url": r.URL()},
			"fid":                       0,
			"display":                   1,
		})
	case !copied:
		doc[domain.FieldLinkAPI] = domain.Wrap(map[string]any{"url": r.URL()})
	}

	for _, spec := range b.fields.Specs(domain.EntityResource) {
		switch m := spec.Mapping.(type) {
		case domain.TagList:
			refs, err := domain.ParseReferences(r.Value(spec.Column))
			if err != nil {
				logger.Warn("row %d, column %q: %v, value ignored", r.Position(), spec.Column, err)
				continue
			}
			if err := b.writeTerms(ctx, doc, m.Field, m.Vocabulary, refs); err != nil {
				return nil, err
			}
		case domain.NodePath:
			if spec.Target != nil {
				if value := r.Value(spec.Column); value != "" {
					doc.Set(spec.Target, value)
				}
			}
		}
	}

	return payload, nil
}

// normaliseFormat drops the version qualifier of WFS and WMS formats.
func normaliseFormat(format string) string {
	for _, prefix := range []string{"WFS", "WMS"} {
		if strings.HasPrefix(format, prefix) {
			return prefix
		}
	}
	return format
}

// uploadPath returns the local file to attach, or "" when the resource
// url is a link.
func (b *DocumentBuilder) uploadPath(ctx context.Context, r *domain.Resource) string {
	name := r.URL()
	if name == "" || remoteURLPattern.MatchString(name) {
		return ""
	}

	path := filepath.Join(b.downloadDir, name)
	if !b.fileExists(path) {
		logger.Warn("row %d: %q looks like a file name but %s does not exist", r.Position(), name, path)
		return ""
	}

	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		logger.Warn("row %d: upload %s has no file extension", r.Position(), path)
		return path
	}
	if _, ok, err := b.resolver.LookupFormat(ctx, ext); err == nil && !ok {
		logger.Warn("row %d: file extension %q is not registered in the portal", r.Position(), ext)
	}
	return path
}
