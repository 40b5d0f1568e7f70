package domain

import (
	"fmt"
	"path"
	"strings"
)

// Entity is the capability shared by datasets and resources: typed access
// to the underlying spreadsheet row.
type Entity interface {
	// Kind returns the entity kind.
	Kind() EntityKind

	// Row returns the underlying spreadsheet row.
	Row() *Row

	// Position returns the 1-based spreadsheet row number.
	Position() int

	// Raw returns the untrimmed cell and whether the column is present.
	Raw(column string) (string, bool)

	// Value returns the trimmed cell, "" when absent.
	Value(column string) string

	// Set overwrites a cell.
	Set(column, value string)

	// Flag records a recoverable problem found while decoding.
	Flag(problem *RecordError)

	// Problems returns the flagged problems.
	Problems() []*RecordError
}

type record struct {
	row      *Row
	position int
	problems []*RecordError
}

func (r *record) Row() *Row     { return r.row }
func (r *record) Position() int { return r.position }

// Flag records a recoverable data-quality problem found while decoding.
func (r *record) Flag(problem *RecordError) {
	r.problems = append(r.problems, problem)
}

// Problems returns the problems flagged while decoding, in order.
func (r *record) Problems() []*RecordError {
	return r.problems
}

func (r *record) Raw(column string) (string, bool) {
	return r.row.Get(column)
}

func (r *record) Value(column string) string {
	return r.row.Value(column)
}

func (r *record) Set(column, value string) {
	r.row.Set(column, value)
}

// Reference is a named pointer into a vocabulary or to a group node.
// ID is empty until resolved.
type Reference struct {
	Name string `yaml:"name" json:"name"`
	ID   string `yaml:"id,omitempty" json:"id,omitempty"`
}

// RelatedLink is one entry of a related-content list.
type RelatedLink struct {
	Title string `yaml:"title" json:"title"`
	URL   string `yaml:"url" json:"url"`
}

// ExtensionField is a free key/value pair.
type ExtensionField struct {
	Key   string
	Value string
}

// Dataset is a dataset header row with its parsed multi-valued fields.
type Dataset struct {
	record
	references map[string][]Reference
	related    map[string][]RelatedLink
}

// Ensure Dataset implements Entity.
var _ Entity = (*Dataset)(nil)

// NewDataset wraps a row as a dataset.
func NewDataset(row *Row, position int) *Dataset {
	return &Dataset{
		record:     record{row: row, position: position},
		references: make(map[string][]Reference),
		related:    make(map[string][]RelatedLink),
	}
}

// Kind returns EntityDataset.
func (d *Dataset) Kind() EntityKind { return EntityDataset }

// NodeID returns the node id, "" when the dataset is not yet known remotely.
func (d *Dataset) NodeID() string { return d.Value(ColNodeID) }

// PackageID returns the package uuid.
func (d *Dataset) PackageID() string { return d.Value(ColDatasetID) }

// Title returns the dataset title.
func (d *Dataset) Title() string { return d.Value(ColTitle) }

// Name returns the dataset machine name.
func (d *Dataset) Name() string { return d.Value(ColDatasetName) }

// References returns the parsed references of a column.
func (d *Dataset) References(column string) []Reference {
	return d.references[column]
}

// SetReferences stores parsed references for a column.
func (d *Dataset) SetReferences(column string, refs []Reference) {
	d.references[column] = refs
}

// Related returns the parsed related links of a column.
func (d *Dataset) Related(column string) []RelatedLink {
	return d.related[column]
}

// SetRelated stores parsed related links for a column.
func (d *Dataset) SetRelated(column string, links []RelatedLink) {
	d.related[column] = links
}

// Extensions returns the extension fields in column order.
func (d *Dataset) Extensions() []ExtensionField {
	var out []ExtensionField
	for _, col := range d.row.Columns() {
		key, ok := ExtensionKey(col)
		if !ok {
			continue
		}
		out = append(out, ExtensionField{Key: key, Value: d.Value(col)})
	}
	return out
}

func (d *Dataset) String() string {
	return fmt.Sprintf("dataset %q (row %d)", d.Title(), d.position)
}

// ResourceType is how a resource's content is delivered.
type ResourceType string

// Resource types.
const (
	ResourceURL        ResourceType = "url"
	ResourceUploaded   ResourceType = "uploaded"
	ResourceDatastore  ResourceType = "datastore"
	ResourceRemoteFile ResourceType = "remote_file"
)

// IsValid returns true if the resource type is recognised.
func (t ResourceType) IsValid() bool {
	switch t {
	case ResourceURL, ResourceUploaded, ResourceDatastore, ResourceRemoteFile:
		return true
	default:
		return false
	}
}

// IdentitySource tells which column produced a resource identity key.
type IdentitySource int

// Identity sources in priority order.
const (
	IdentityNone IdentitySource = iota
	IdentityURL
	IdentityID
	IdentityName
)

// Resource is a resource row belonging to the preceding dataset.
type Resource struct {
	record
}

// Ensure Resource implements Entity.
var _ Entity = (*Resource)(nil)

// NewResource wraps a row as a resource.
func NewResource(row *Row, position int) *Resource {
	return &Resource{record: record{row: row, position: position}}
}

// Kind returns EntityResource.
func (r *Resource) Kind() EntityKind { return EntityResource }

// Name returns the resource name.
func (r *Resource) Name() string { return r.Value(ColResourceName) }

// URL returns the resource url or local file name.
func (r *Resource) URL() string { return r.Value(ColResourceURL) }

// ID returns the resource uuid.
func (r *Resource) ID() string { return r.Value(ColResourceID) }

// Format returns the declared format.
func (r *Resource) Format() string { return r.Value(ColFormat) }

// Description returns the resource description.
func (r *Resource) Description() string { return r.Value(ColResourceDescription) }

// TextFormat returns the description text format.
func (r *Resource) TextFormat() string { return r.Value(ColResourceTextFormat) }

// Type returns the delivery type, from Resource-Typ, then
// Resource-Typ-Detail, defaulting to url.
func (r *Resource) Type() ResourceType {
	for _, col := range []string{ColResourceType, ColResourceTypeDetailed} {
		t := ResourceType(strings.ToLower(r.Value(col)))
		if t.IsValid() {
			return t
		}
	}
	return ResourceURL
}

// IdentityKey returns the first non-empty of URL, Resource-ID and Name.
func (r *Resource) IdentityKey() (string, IdentitySource) {
	if v := r.URL(); v != "" {
		return v, IdentityURL
	}
	if v := r.ID(); v != "" {
		return v, IdentityID
	}
	if v := r.Name(); v != "" {
		return v, IdentityName
	}
	return "", IdentityNone
}

// MatchesExisting reports whether an existing remote resource node is the
// one this row describes.
func (r *Resource) MatchesExisting(existing Document) bool {
	key, source := r.IdentityKey()
	link, linkType := ExtractLink(existing)

	switch source {
	case IdentityURL:
		if link != "" {
			if key == link {
				return true
			}
			return linkType == ResourceUploaded && path.Base(key) == link
		}
	case IdentityID:
		if uuid := existing.String(Path{Key("uuid")}); uuid != "" {
			return key == uuid
		}
	case IdentityNone:
		return false
	}

	title := existing.String(Path{Key("title")})
	return title != "" && title == r.Name()
}

func (r *Resource) String() string {
	return fmt.Sprintf("resource %q (row %d)", r.Name(), r.position)
}

// ExtractLink returns the populated link of a resource node and its type,
// checking API link, remote file and upload in that order.
func ExtractLink(doc Document) (string, ResourceType) {
	if v := doc.String(FieldValue(FieldLinkAPI, "url")); v != "" {
		return v, ResourceURL
	}
	if v := doc.String(FieldValue(FieldLinkRemoteFile, "uri")); v != "" {
		return v, ResourceRemoteFile
	}
	remote := append(FieldValue(FieldLinkRemoteFile, "filefield_dkan_remotefile"), Key("url"))
	if v := doc.String(remote); v != "" {
		return v, ResourceRemoteFile
	}
	if v := doc.String(FieldValue(FieldUpload, "filename")); v != "" {
		return v, ResourceUploaded
	}
	if v := doc.String(FieldValue(FieldDatastore, "value")); v != "" {
		return v, ResourceDatastore
	}
	return "", ""
}
