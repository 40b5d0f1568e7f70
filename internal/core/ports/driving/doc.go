// Package driving defines what the cli and tui adapters call into:
// import and export runs, checks, the run history and settings.
//
// Requests are plain structs so the CLI flags map onto them one to one.
// Implementations live in internal/core/services.
package driving
