package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb/encoding/wkt"

	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/core/ports/driven"
	"github.com/custodia-labs/dkansync/internal/logger"
)

// Minimum number of non-empty declared columns for a row to hold an entity.
const (
	datasetThreshold  = 3
	resourceThreshold = 1
)

// maxProbe bounds the probing of multi-valued node fields.
const maxProbe = 10

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// RecordCodec converts between spreadsheet rows and entities, and between
// remote documents and rows.
type RecordCodec struct {
	fields   *domain.FieldMap
	resolver *ReferenceResolver
	portal   domain.PortalSettings
}

// NewRecordCodec creates a codec. resolver is only needed by ToRows.
func NewRecordCodec(fields *domain.FieldMap, resolver *ReferenceResolver, portal domain.PortalSettings) *RecordCodec {
	return &RecordCodec{fields: fields, resolver: resolver, portal: portal}
}

// DatasetFromRow decodes a dataset header row. It returns nil, nil when
// the row carries too few dataset columns to be a dataset. A row without
// a mandatory column yields a *domain.RecordError.
func (c *RecordCodec) DatasetFromRow(row *domain.Row, position int) (*domain.Dataset, error) {
	if c.filled(row, domain.EntityDataset) < datasetThreshold {
		return nil, nil
	}
	if err := c.checkMandatory(row, position, domain.EntityDataset); err != nil {
		return nil, err
	}

	ds := domain.NewDataset(row.Clone(), position)
	for _, spec := range c.fields.Specs(domain.EntityDataset) {
		raw, ok := ds.Raw(spec.Column)
		if !ok {
			continue
		}
		c.validate(ds, spec, raw)

		switch spec.Mapping.(type) {
		case domain.TagList, domain.GroupCollect:
			refs, err := domain.ParseReferences(ds.Value(spec.Column))
			if err != nil {
				c.flag(ds, spec.Column, raw, err)
				continue
			}
			ds.SetReferences(spec.Column, refs)
		case domain.RelatedList:
			links, err := domain.ParseRelated(ds.Value(spec.Column))
			if err != nil {
				c.flag(ds, spec.Column, raw, err)
				continue
			}
			ds.SetRelated(spec.Column, links)
		}
	}

	logger.Debug("row %d: dataset %q", position, ds.Title())
	return ds, nil
}

// ResourceFromRow decodes a resource row, with the same contract as
// DatasetFromRow.
func (c *RecordCodec) ResourceFromRow(row *domain.Row, position int) (*domain.Resource, error) {
	if c.filled(row, domain.EntityResource) < resourceThreshold {
		return nil, nil
	}
	if err := c.checkMandatory(row, position, domain.EntityResource); err != nil {
		return nil, err
	}

	res := domain.NewResource(row.Clone(), position)
	for _, spec := range c.fields.Specs(domain.EntityResource) {
		if raw, ok := res.Raw(spec.Column); ok {
			c.validate(res, spec, raw)
		}
	}

	for _, col := range []string{domain.ColResourceType, domain.ColResourceTypeDetailed} {
		v := res.Value(col)
		if v != "" && !domain.ResourceType(strings.ToLower(v)).IsValid() {
			c.flag(res, col, v, fmt.Errorf("%w: unknown resource type", domain.ErrInvalidInput))
		}
	}

	logger.Debug("row %d: resource %q", position, res.Name())
	return res, nil
}

func (c *RecordCodec) filled(row *domain.Row, kind domain.EntityKind) int {
	n := 0
	for _, col := range c.fields.AllFields(kind) {
		if row.Value(col) != "" {
			n++
		}
	}
	return n
}

// checkMandatory only requires the mandatory columns to be present. An
// empty Resource-Name is filled in by DocumentBuilder.
func (c *RecordCodec) checkMandatory(row *domain.Row, position int, kind domain.EntityKind) error {
	for _, col := range c.fields.Mandatory(kind) {
		if _, ok := row.Get(col); !ok {
			err := &domain.RecordError{Position: position, Column: col, Err: domain.ErrMissingMandatory}
			logger.Warn("%s row ignored: %v", kind, err)
			return err
		}
	}
	return nil
}

// validate blanks a typed value that fails validation.
func (c *RecordCodec) validate(e domain.Entity, spec domain.FieldSpec, raw string) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return
	}

	var err error
	switch spec.Type {
	case domain.TypeDate:
		if !datePattern.MatchString(value) {
			err = fmt.Errorf("%w: expected YYYY-MM-DD", domain.ErrInvalidDate)
		}
	case domain.TypeWKT:
		if _, perr := wkt.Unmarshal(value); perr != nil {
			err = fmt.Errorf("%w: %v", domain.ErrInvalidGeometry, perr)
		}
	case domain.TypeTextFormat:
		if !domain.TextFormat(value).IsValid() {
			err = fmt.Errorf("%w: allowed are html, bbcode, plain_text, full_html", domain.ErrInvalidTextFormat)
		}
	}
	if err != nil {
		c.flag(e, spec.Column, raw, err)
	}
}

func (c *RecordCodec) flag(e domain.Entity, column, raw string, err error) {
	problem := &domain.RecordError{Position: e.Position(), Column: column, Raw: raw, Err: err}
	logger.Warn("%v, value ignored", problem)
	e.Flag(problem)
	e.Set(column, "")
}

// ExportInput is everything ToRows reads for one dataset.
type ExportInput struct {
	// Package is the entry from the package list, resources included.
	Package domain.Document

	// Node is the dataset node; nil leaves node columns empty.
	Node domain.Document

	// Number is the 1-based dataset counter used in Lfd-Nr.
	Number int

	// ExtensionKeys are the extension columns to fill.
	ExtensionKeys []string

	SkipResources bool

	// ResourceNodes holds resource nodes by resource id. When non-nil the
	// optional detailed columns are written.
	ResourceNodes map[string]domain.Document

	// Links holds probe results by resource id.
	Links map[string]driven.LinkStatus
}

// ToRows renders one dataset and its resources as rows. The first row
// carries the dataset columns; a dataset without resources yields one row.
func (c *RecordCodec) ToRows(ctx context.Context, in ExportInput) ([]*domain.Row, error) {
	head := domain.NewRow()
	for _, spec := range c.fields.Specs(domain.EntityDataset) {
		value, err := c.datasetValue(ctx, spec, in)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", spec.Column, err)
		}
		head.Set(spec.Column, value)
	}
	for _, key := range in.ExtensionKeys {
		head.Set(domain.ExtensionColumn(key), extraValue(in.Package, key))
	}

	resources := packageList(in.Package, "resources")
	if in.SkipResources || len(resources) == 0 {
		return []*domain.Row{head}, nil
	}

	rows := make([]*domain.Row, 0, len(resources))
	for i, item := range resources {
		res, _ := item.(map[string]any)
		row := domain.NewRow()
		if i == 0 {
			row = head
		}
		if err := c.resourceValues(ctx, row, domain.Document(res), i, in); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *RecordCodec) datasetValue(ctx context.Context, spec domain.FieldSpec, in ExportInput) (string, error) {
	switch m := spec.Mapping.(type) {
	case domain.PackageKey:
		return in.Package.String(domain.Path{domain.Key(m.Key)}), nil

	case domain.NodePath:
		return lookupNode(in.Node, m.Path), nil

	case domain.TagList:
		if m.PackageKey != "" {
			return namedReferences(in.Package, m.PackageKey, "name", in.Node, m.Field, "tid"), nil
		}
		return c.resolvedTags(ctx, in.Node, m)

	case domain.GroupCollect:
		return namedReferences(in.Package, m.PackageKey, "title", in.Node, m.Field, "target_id"), nil

	case domain.RelatedList:
		var links []domain.RelatedLink
		for i := 0; i < maxProbe; i++ {
			title := in.Node.String(domain.FieldItem(m.Field, i, "title"))
			url := in.Node.String(domain.FieldItem(m.Field, i, "url"))
			if title == "" && url == "" {
				continue
			}
			links = append(links, domain.RelatedLink{Title: title, URL: url})
		}
		return domain.FormatRelated(links), nil

	default:
		return "", nil
	}
}

func (c *RecordCodec) resolvedTags(ctx context.Context, node domain.Document, m domain.TagList) (string, error) {
	ids := probeIDs(node, m.Field, "tid")
	if len(ids) == 0 {
		return "", nil
	}
	refs, err := c.resolver.ResolveIDsToNames(ctx, m.Vocabulary, ids)
	if err != nil {
		return "", err
	}
	return domain.FormatReferences(refs), nil
}

func (c *RecordCodec) resourceValues(ctx context.Context, row *domain.Row, res domain.Document, index int, in ExportInput) error {
	id := res.String(domain.Path{domain.Key("id")})
	detailed := in.ResourceNodes != nil
	node := in.ResourceNodes[id]
	link, probed := in.Links[id]

	for _, spec := range c.fields.Specs(domain.EntityResource) {
		if spec.Optional && !detailed {
			continue
		}

		var value string
		switch m := spec.Mapping.(type) {
		case domain.PackageKey:
			value = res.String(domain.Path{domain.Key(m.Key)})
		case domain.NodePath:
			value = lookupNode(node, m.Path)
		case domain.TagList:
			v, err := c.resolvedTags(ctx, node, m)
			if err != nil {
				return fmt.Errorf("column %q: %w", spec.Column, err)
			}
			value = v
		case domain.Derived:
			switch m.Name {
			case domain.DerivedSequence:
				value = fmt.Sprintf("%03d-%02d", in.Number, index+1)
			case domain.DerivedKind:
				value = string(c.kindFromURL(res.String(domain.Path{domain.Key("url")})))
			case domain.DerivedKindDetailed:
				_, kind := domain.ExtractLink(node)
				value = string(kind)
			case domain.DerivedCheckOK:
				if probed {
					value = strconv.FormatBool(link.OK)
				}
			case domain.DerivedResponseCode:
				if probed {
					value = link.Code
				}
			}
		}
		row.Set(spec.Column, value)
	}
	return nil
}

// kindFromURL classifies a package-list url by the configured path markers.
func (c *RecordCodec) kindFromURL(url string) domain.ResourceType {
	switch {
	case c.portal.UploadedPathMarker != "" && strings.Contains(url, c.portal.UploadedPathMarker):
		return domain.ResourceUploaded
	case c.portal.DatastorePathMarker != "" && strings.Contains(url, c.portal.DatastorePathMarker):
		return domain.ResourceDatastore
	default:
		return domain.ResourceURL
	}
}

func lookupNode(node domain.Document, path domain.Path) string {
	if node == nil {
		return ""
	}
	v, ok := node.Lookup(path)
	if !ok {
		logger.Debug(" [ ] %s", path)
		return ""
	}
	return domain.ScalarString(v)
}

// namedReferences pairs display names from a package list with ids from the
// node field at the same position.
func namedReferences(pkg domain.Document, listKey, nameKey string, node domain.Document, field, idKey string) string {
	items := packageList(pkg, listKey)
	refs := make([]domain.Reference, 0, len(items))
	for i, item := range items {
		m, _ := item.(map[string]any)
		name := domain.ScalarString(m[nameKey])
		refs = append(refs, domain.Reference{Name: name, ID: node.String(domain.FieldItem(field, i, idKey))})
	}
	return domain.FormatReferences(refs)
}

func probeIDs(node domain.Document, field, key string) []string {
	var ids []string
	for i := 0; i < maxProbe; i++ {
		if id := node.String(domain.FieldItem(field, i, key)); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func packageList(pkg domain.Document, key string) []any {
	v, ok := pkg.Lookup(domain.Path{domain.Key(key)})
	if !ok {
		return nil
	}
	list, _ := v.([]any)
	return list
}

func extraValue(pkg domain.Document, key string) string {
	for _, item := range packageList(pkg, "extras") {
		m, _ := item.(map[string]any)
		if domain.ScalarString(m["key"]) == key {
			return domain.ScalarString(m["value"])
		}
	}
	return ""
}

// ExtensionKeys collects the extra keys used by packages with their usage
// count, in first-seen order.
func ExtensionKeys(packages []domain.Document) ([]string, map[string]int) {
	var keys []string
	usage := make(map[string]int)
	for _, pkg := range packages {
		for _, item := range packageList(pkg, "extras") {
			m, _ := item.(map[string]any)
			key := domain.ScalarString(m["key"])
			if key == "" {
				continue
			}
			if _, seen := usage[key]; !seen {
				keys = append(keys, key)
			}
			usage[key]++
		}
	}
	return keys, usage
}
