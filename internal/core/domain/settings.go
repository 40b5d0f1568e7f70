package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// TextFormat is a Drupal text format identifier.
type TextFormat string

// Supported text formats.
const (
	TextFormatHTML     TextFormat = "html"
	TextFormatBBCode   TextFormat = "bbcode"
	TextFormatPlain    TextFormat = "plain_text"
	TextFormatFullHTML TextFormat = "full_html"
)

// IsValid returns true if the text format is one the portal accepts.
func (f TextFormat) IsValid() bool {
	switch f {
	case TextFormatHTML, TextFormatBBCode, TextFormatPlain, TextFormatFullHTML:
		return true
	default:
		return false
	}
}

// PortalSettings holds connection details for the DKAN instance.
type PortalSettings struct {
	// URL is the portal base URL, e.g. https://opendata.example.org.
	URL string

	// Username and Password are the Drupal account used for writes.
	Username string
	Password string

	// InsecureSkipVerify disables TLS certificate checks.
	InsecureSkipVerify bool

	// RequestsPerSecond throttles API calls.
	RequestsPerSecond int

	// DatasetTextFormat is the default body format of datasets.
	DatasetTextFormat TextFormat

	// ResourceTextFormat is the default body format of resources.
	ResourceTextFormat TextFormat

	// UploadedPathMarker and DatastorePathMarker identify resource types
	// from package-list urls when resource nodes are not fetched.
	UploadedPathMarker  string
	DatastorePathMarker string
}

// IsConfigured returns true if the portal can be contacted.
func (p PortalSettings) IsConfigured() bool {
	return p.URL != ""
}

// CanWrite returns true if credentials for writes are present.
func (p PortalSettings) CanWrite() bool {
	return p.IsConfigured() && p.Username != "" && p.Password != ""
}

// SheetSettings holds spreadsheet locations.
type SheetSettings struct {
	// Filename is the default spreadsheet (.xlsx or .csv).
	Filename string

	// DownloadDir holds uploaded and downloaded resource files.
	DownloadDir string
}

// FeatureSettings toggles optional behaviour of import and export.
type FeatureSettings struct {
	SkipResources       bool
	CheckResources      bool
	DetailedResources   bool
	DownloadResources   bool
	ForceResourceUpdate bool

	// DatasetIDs restricts runs to these package or node ids.
	DatasetIDs []string

	// Limit stops after this many datasets; 0 means no limit.
	Limit int
}

// CompareField is a resource node value compared during reconciliation,
// read from field.<lang>.0.Key.
type CompareField struct {
	Field string
	Key   string
}

func (c CompareField) String() string {
	return c.Field + ":" + c.Key
}

// Path returns the node path of the compared value.
func (c CompareField) Path() Path {
	return FieldValue(c.Field, c.Key)
}

// ParseCompareField parses "field:key".
func ParseCompareField(s string) (CompareField, error) {
	field, key, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || field == "" || key == "" {
		return CompareField{}, fmt.Errorf("%w: compare field %q, expected field:key", ErrInvalidInput, s)
	}
	return CompareField{Field: field, Key: key}, nil
}

// DefaultCompareFields are the DCAT-AP.de resource values whose change
// triggers a resource update.
func DefaultCompareFields() []CompareField {
	return []CompareField{
		{Field: "field_dcatapde_licatt", Key: "value"},
		{Field: "field_dcatapde_avail", Key: "tid"},
		{Field: "field_dcatapde_status", Key: "tid"},
		{Field: "field_dcatapde_license", Key: "tid"},
		{Field: "field_dcatapde_languagesingle", Key: "tid"},
		{Field: "field_dcatapde_rights", Key: "url"},
		{Field: "field_conforms_to", Key: "url"},
	}
}

// ReconcileSettings tunes resource reconciliation.
type ReconcileSettings struct {
	CompareFields []CompareField
}

// CacheSettings controls the response cache.
type CacheSettings struct {
	Enabled bool
}

// AppSettings holds all application settings.
type AppSettings struct {
	Portal    PortalSettings
	Sheet     SheetSettings
	Features  FeatureSettings
	Reconcile ReconcileSettings
	Cache     CacheSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// The portal is left unconfigured.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Portal: PortalSettings{
			RequestsPerSecond:   5,
			DatasetTextFormat:   TextFormatFullHTML,
			ResourceTextFormat:  TextFormatPlain,
			UploadedPathMarker:  "/sites/default/files/",
			DatastorePathMarker: "/api/action/datastore/",
		},
		Sheet: SheetSettings{
			Filename:    "dkan.xlsx",
			DownloadDir: "downloads",
		},
		Reconcile: ReconcileSettings{
			CompareFields: DefaultCompareFields(),
		},
		Cache: CacheSettings{
			Enabled: true,
		},
	}
}

// SplitDatasetFilter separates a "limit=N" token from dataset ids.
func SplitDatasetFilter(entries []string) ([]string, int, error) {
	var ids []string
	limit := 0
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if v, ok := strings.CutPrefix(e, "limit="); ok {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return nil, 0, fmt.Errorf("%w: dataset filter %q", ErrInvalidInput, e)
			}
			limit = n
			continue
		}
		ids = append(ids, e)
	}
	return ids, limit, nil
}
