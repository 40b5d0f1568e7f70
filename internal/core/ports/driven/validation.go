package driven

import "github.com/custodia-labs/dkansync/internal/core/domain"

// DocumentValidator checks remote documents against the structure the
// field map expects. A failure means the portal version is incompatible.
type DocumentValidator interface {
	// ValidatePackage checks an entry of the package list.
	ValidatePackage(doc domain.Document) error

	// ValidateNode checks a dataset node.
	ValidateNode(doc domain.Document) error
}

// PackageWriter exports package metadata as a data package descriptor.
type PackageWriter interface {
	WritePackage(path, title string, packages []domain.Document) error
}
