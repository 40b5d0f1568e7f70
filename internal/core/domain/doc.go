// Package domain defines the core business entities for dkansync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Row, Sheet: Spreadsheet lines keyed by column header
//   - Dataset, Resource: Typed views over rows
//   - FieldMap, FieldSpec: The static column-to-remote-field table
//   - Document, Path: Decoded remote JSON and routes into it
//   - Reference, RelatedLink: Parsed multi-valued cell contents
//   - Operation: One step of a resource reconciliation plan
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
