package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/core/ports/driven"
	"github.com/custodia-labs/dkansync/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyPortalURL            = "portal.url"
	keyPortalUsername       = "portal.username"
	keyPortalPassword       = "portal.password"
	keyPortalInsecure       = "portal.insecure_skip_verify"
	keyPortalRPS            = "portal.requests_per_second"
	keyPortalTextFormat     = "portal.default_text_format"
	keyPortalResourceFormat = "portal.resource_text_format"
	keyPortalUploadMarker   = "portal.uploaded_path_marker"
	keyPortalDatastore      = "portal.datastore_path_marker"
	keySheetFilename        = "sheet.filename"
	keySheetDownloadDir     = "sheet.download_dir"
	keySkipResources        = "features.skip_resources"
	keyCheckResources       = "features.check_resources"
	keyDetailedResources    = "features.detailed_resources"
	keyDownloadResources    = "features.resources_download"
	keyForceUpdate          = "features.force_resource_update"
	keyDatasetIDs           = "features.dataset_ids"
	keyLimit                = "features.limit"
	keyCompareFields        = "reconcile.compare_fields"
	keyCacheEnabled         = "cache.enabled"
)

type valueKind int

const (
	kindString valueKind = iota
	kindBool
	kindInt
	kindList
	kindTextFormat
	kindCompareFields
)

var settingKinds = map[string]valueKind{
	keyPortalURL:            kindString,
	keyPortalUsername:       kindString,
	keyPortalPassword:       kindString,
	keyPortalInsecure:       kindBool,
	keyPortalRPS:            kindInt,
	keyPortalTextFormat:     kindTextFormat,
	keyPortalResourceFormat: kindTextFormat,
	keyPortalUploadMarker:   kindString,
	keyPortalDatastore:      kindString,
	keySheetFilename:        kindString,
	keySheetDownloadDir:     kindString,
	keySkipResources:        kindBool,
	keyCheckResources:       kindBool,
	keyDetailedResources:    kindBool,
	keyDownloadResources:    kindBool,
	keyForceUpdate:          kindBool,
	keyDatasetIDs:           kindList,
	keyLimit:                kindInt,
	keyCompareFields:        kindCompareFields,
	keyCacheEnabled:         kindBool,
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	compare, err := s.getCompareFields(defaults.Reconcile.CompareFields)
	if err != nil {
		return nil, err
	}

	settings := &domain.AppSettings{
		Portal: domain.PortalSettings{
			URL:                 strings.TrimRight(s.configStore.GetString(keyPortalURL), "/"),
			Username:            s.configStore.GetString(keyPortalUsername),
			Password:            s.configStore.GetString(keyPortalPassword),
			InsecureSkipVerify:  s.getBool(keyPortalInsecure, defaults.Portal.InsecureSkipVerify),
			RequestsPerSecond:   s.getInt(keyPortalRPS, defaults.Portal.RequestsPerSecond),
			DatasetTextFormat:   s.getTextFormat(keyPortalTextFormat, defaults.Portal.DatasetTextFormat),
			ResourceTextFormat:  s.getTextFormat(keyPortalResourceFormat, defaults.Portal.ResourceTextFormat),
			UploadedPathMarker:  s.getString(keyPortalUploadMarker, defaults.Portal.UploadedPathMarker),
			DatastorePathMarker: s.getString(keyPortalDatastore, defaults.Portal.DatastorePathMarker),
		},
		Sheet: domain.SheetSettings{
			Filename:    s.getString(keySheetFilename, defaults.Sheet.Filename),
			DownloadDir: s.getString(keySheetDownloadDir, defaults.Sheet.DownloadDir),
		},
		Features: domain.FeatureSettings{
			SkipResources:       s.getBool(keySkipResources, defaults.Features.SkipResources),
			CheckResources:      s.getBool(keyCheckResources, defaults.Features.CheckResources),
			DetailedResources:   s.getBool(keyDetailedResources, defaults.Features.DetailedResources),
			DownloadResources:   s.getBool(keyDownloadResources, defaults.Features.DownloadResources),
			ForceResourceUpdate: s.getBool(keyForceUpdate, defaults.Features.ForceResourceUpdate),
			DatasetIDs:          s.configStore.GetStringSlice(keyDatasetIDs),
			Limit:               s.getInt(keyLimit, defaults.Features.Limit),
		},
		Reconcile: domain.ReconcileSettings{
			CompareFields: compare,
		},
		Cache: domain.CacheSettings{
			Enabled: s.getBool(keyCacheEnabled, defaults.Cache.Enabled),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyPortalURL, settings.Portal.URL},
		{keyPortalUsername, settings.Portal.Username},
		{keyPortalInsecure, settings.Portal.InsecureSkipVerify},
		{keyPortalRPS, settings.Portal.RequestsPerSecond},
		{keyPortalTextFormat, string(settings.Portal.DatasetTextFormat)},
		{keyPortalResourceFormat, string(settings.Portal.ResourceTextFormat)},
		{keyPortalUploadMarker, settings.Portal.UploadedPathMarker},
		{keyPortalDatastore, settings.Portal.DatastorePathMarker},
		{keySheetFilename, settings.Sheet.Filename},
		{keySheetDownloadDir, settings.Sheet.DownloadDir},
		{keySkipResources, settings.Features.SkipResources},
		{keyCheckResources, settings.Features.CheckResources},
		{keyDetailedResources, settings.Features.DetailedResources},
		{keyDownloadResources, settings.Features.DownloadResources},
		{keyForceUpdate, settings.Features.ForceResourceUpdate},
		{keyDatasetIDs, settings.Features.DatasetIDs},
		{keyLimit, settings.Features.Limit},
		{keyCompareFields, compareFieldStrings(settings.Reconcile.CompareFields)},
		{keyCacheEnabled, settings.Cache.Enabled},
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// An empty password keeps the stored one
	if settings.Portal.Password != "" {
		if err := s.configStore.Set(keyPortalPassword, settings.Portal.Password); err != nil {
			return fmt.Errorf("save %s: %w", keyPortalPassword, err)
		}
	}

	return nil
}

// SetPortal configures the portal connection.
func (s *SettingsService) SetPortal(url, username, password string) error {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("%w: portal url must start with http:// or https://", domain.ErrInvalidInput)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Portal.URL = strings.TrimRight(url, "/")
	settings.Portal.Username = username
	settings.Portal.Password = password

	return s.Save(settings)
}

// SetValue parses value according to the key's type and stores it.
func (s *SettingsService) SetValue(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	value = strings.TrimSpace(value)

	var stored any
	switch kind {
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s expects true or false, got %q", domain.ErrInvalidInput, key, value)
		}
		stored = b
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s expects a non-negative number, got %q", domain.ErrInvalidInput, key, value)
		}
		stored = n
	case kindList:
		stored = splitList(value)
	case kindTextFormat:
		if !domain.TextFormat(value).IsValid() {
			return fmt.Errorf("%w: %s: %q", domain.ErrInvalidTextFormat, key, value)
		}
		stored = value
	case kindCompareFields:
		fields := splitList(value)
		for _, f := range fields {
			if _, err := domain.ParseCompareField(f); err != nil {
				return err
			}
		}
		stored = fields
	default:
		stored = value
	}

	if err := s.configStore.Set(key, stored); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Keys lists the config keys SetValue accepts, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks that the portal is configured.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.Portal.IsConfigured() {
		return fmt.Errorf("portal url not configured, run 'dkansync settings portal'")
	}
	if settings.Portal.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: %s must be positive", domain.ErrInvalidInput, keyPortalRPS)
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getTextFormat(key string, defaultVal domain.TextFormat) domain.TextFormat {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	format := domain.TextFormat(val)
	if !format.IsValid() {
		return defaultVal
	}
	return format
}

func (s *SettingsService) getCompareFields(defaultVal []domain.CompareField) ([]domain.CompareField, error) {
	raw := s.configStore.GetStringSlice(keyCompareFields)
	if len(raw) == 0 {
		return defaultVal, nil
	}
	fields := make([]domain.CompareField, 0, len(raw))
	for _, r := range raw {
		f, err := domain.ParseCompareField(r)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", keyCompareFields, err)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func compareFieldStrings(fields []domain.CompareField) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.String()
	}
	return out
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
