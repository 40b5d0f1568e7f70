// Package schema checks remote DKAN documents against the structure the
// field map expects. A mismatch means the portal runs a version the field
// map was not written for.
package schema

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/core/ports/driven"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// ErrIncompatible indicates a document that does not match its schema.
var ErrIncompatible = errors.New("incompatible document")

// maxReported limits the violations listed in one error.
const maxReported = 5

// Ensure Validator implements the interface.
var _ driven.DocumentValidator = (*Validator)(nil)

// Validator validates package list entries and dataset nodes.
type Validator struct {
	pkg  *gojsonschema.Schema
	node *gojsonschema.Schema
}

// NewValidator compiles the embedded schemas.
func NewValidator() (*Validator, error) {
	pkg, err := load("schemas/package.json")
	if err != nil {
		return nil, err
	}
	node, err := load("schemas/node.json")
	if err != nil {
		return nil, err
	}
	return &Validator{pkg: pkg, node: node}, nil
}

func load(name string) (*gojsonschema.Schema, error) {
	data, err := schemaFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", name, err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schema, nil
}

// ValidatePackage checks an entry of the package list.
func (v *Validator) ValidatePackage(doc domain.Document) error {
	return validate(v.pkg, "package", doc)
}

// ValidateNode checks a dataset node.
func (v *Validator) ValidateNode(doc domain.Document) error {
	return validate(v.node, "node", doc)
}

func validate(schema *gojsonschema.Schema, kind string, doc domain.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: empty %s", ErrIncompatible, kind)
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(map[string]any(doc)))
	if err != nil {
		return fmt.Errorf("validate %s: %w", kind, err)
	}
	if result.Valid() {
		return nil
	}

	var problems []string
	for i, desc := range result.Errors() {
		if i == maxReported {
			problems = append(problems, fmt.Sprintf("and %d more", len(result.Errors())-maxReported))
			break
		}
		problems = append(problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return fmt.Errorf("%w: %s %s", ErrIncompatible, kind, strings.Join(problems, "; "))
}
