// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Portal: DKAN node and package access (includes NodeFetcher)
//   - VocabularyFetcher: Taxonomy and group name lookup
//   - Spreadsheet: Reading and writing .xlsx/.csv sheets
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - ResponseCache: Without it every read goes to the portal.
//   - RunStore: Without it run history is not kept.
//   - DocumentValidator: Without it export skips the compatibility check.
//   - LinkProber, Downloader: Needed only for link checks and downloads.
//   - PackageWriter: Needed only for data package export.
//   - FileWatcher: Needed only for import --watch.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
