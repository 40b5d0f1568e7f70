package driven

import (
	"context"

	"github.com/custodia-labs/dkansync/internal/core/domain"
)

// NodeFetcher reads single nodes from the portal.
type NodeFetcher interface {
	// FetchNode returns the node document for a node id.
	// Returns domain.ErrNotFound if the node does not exist.
	FetchNode(ctx context.Context, nid string) (domain.Document, error)
}

// Portal is the DKAN instance: package listing, node CRUD and file upload.
// Network and 5xx failures are wrapped with domain.ErrTransient.
type Portal interface {
	NodeFetcher

	// Login opens an authenticated session. Calls before Login are anonymous.
	Login(ctx context.Context) error

	// ListPackages returns every package with its resources.
	ListPackages(ctx context.Context) ([]domain.Document, error)

	// FetchPackage returns one package by uuid or name.
	FetchPackage(ctx context.Context, id string) (domain.Document, error)

	// FindNodeIDByPackageID discovers the node id of a package uuid.
	// Returns domain.ErrNotFound if no node carries the uuid.
	FindNodeIDByPackageID(ctx context.Context, packageID string) (string, error)

	// CreateNode creates a node and returns its id.
	CreateNode(ctx context.Context, doc domain.Document) (string, error)

	// UpdateNode replaces the fields present in doc.
	UpdateNode(ctx context.Context, nid string, doc domain.Document) error

	// DeleteNode removes a node.
	DeleteNode(ctx context.Context, nid string) error

	// AttachFile uploads a local file into a file field of a node.
	AttachFile(ctx context.Context, nid, field, path string) error
}

// VocabularyFetcher loads a vocabulary as id → display name.
type VocabularyFetcher interface {
	FetchVocabulary(ctx context.Context, name string) (map[string]string, error)
}

// LinkStatus is the outcome of probing a url.
type LinkStatus struct {
	OK   bool
	Code string
}

// LinkProber checks whether urls are reachable.
type LinkProber interface {
	Probe(ctx context.Context, url string) LinkStatus
}

// Downloader fetches a remote file to a local path.
type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}
