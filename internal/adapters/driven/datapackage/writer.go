// Package datapackage exports portal metadata as a frictionless data
// package descriptor (datapackage.json). Every resource of every package
// becomes a remote resource of the descriptor.
package datapackage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/frictionlessdata/datapackage-go/datapackage"
	"github.com/frictionlessdata/datapackage-go/validator"

	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/core/ports/driven"
	"github.com/custodia-labs/dkansync/internal/logger"
)

// Ensure Writer implements the interface.
var _ driven.PackageWriter = (*Writer)(nil)

var invalidName = regexp.MustCompile(`[^a-z0-9._-]+`)

// Writer writes data package descriptors.
type Writer struct {
	now func() time.Time
}

// NewWriter creates a descriptor writer.
func NewWriter() *Writer {
	return &Writer{now: time.Now}
}

// WritePackage validates the descriptor against the data-package profile
// and saves it at path.
func (w *Writer) WritePackage(path, title string, packages []domain.Document) error {
	descriptor := w.Descriptor(title, packages)
	resources, _ := descriptor["resources"].([]any)
	if len(resources) == 0 {
		return fmt.Errorf("%w: no resource with a url to describe", domain.ErrInvalidInput)
	}

	pkg, err := datapackage.New(descriptor, filepath.Dir(path), validator.InMemoryLoader())
	if err != nil {
		return fmt.Errorf("build data package: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := pkg.SaveDescriptor(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	logger.Info("Data package with %d resources written to %s", len(resources), path)
	return nil
}

// Descriptor builds the descriptor map without validating it.
func (w *Writer) Descriptor(title string, packages []domain.Document) map[string]any {
	names := make(map[string]int)
	var resources []any
	var keywords []any
	seenKeyword := make(map[string]bool)

	for _, pkg := range packages {
		pkgName := field(pkg, "name")
		if pkgName == "" {
			pkgName = field(pkg, "id")
		}
		for _, tag := range listOf(pkg, "tags") {
			if name := field(tag, "name"); name != "" && !seenKeyword[name] {
				seenKeyword[name] = true
				keywords = append(keywords, name)
			}
		}

		for _, res := range listOf(pkg, "resources") {
			url := field(res, "url")
			if url == "" {
				logger.Debug("Resource %s of %s has no url", field(res, "id"), pkgName)
				continue
			}
			resource := map[string]any{
				"name":  uniqueName(names, pkgName+"-"+field(res, "name")),
				"path":  url,
				"title": field(res, "name"),
				"dkan": map[string]any{
					"package_id":    field(pkg, "id"),
					"package_title": field(pkg, "title"),
					"resource_id":   field(res, "id"),
				},
			}
			if format := strings.ToLower(field(res, "format")); format != "" {
				resource["format"] = format
			}
			if desc := field(res, "description"); desc != "" {
				resource["description"] = desc
			}
			resources = append(resources, resource)
		}
	}

	descriptor := map[string]any{
		"name":      slug(title),
		"title":     title,
		"profile":   "data-package",
		"created":   w.now().UTC().Format(time.RFC3339),
		"resources": resources,
	}
	if len(keywords) > 0 {
		descriptor["keywords"] = keywords
	}
	return descriptor
}

func uniqueName(names map[string]int, raw string) string {
	name := slug(raw)
	names[name]++
	if n := names[name]; n > 1 {
		return name + "-" + strconv.Itoa(n)
	}
	return name
}

// slug lowers s into a valid descriptor name.
func slug(s string) string {
	r := strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss", " ", "-")
	name := invalidName.ReplaceAllString(r.Replace(strings.ToLower(s)), "")
	name = strings.Trim(name, "-.")
	if name == "" {
		return "package"
	}
	return name
}

func field(doc map[string]any, key string) string {
	return strings.TrimSpace(domain.ScalarString(doc[key]))
}

func listOf(doc map[string]any, key string) []map[string]any {
	items, _ := doc[key].([]any)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
