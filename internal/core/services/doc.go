// Package services holds the sync engine: the record codec, reference
// resolver, document builder and resource reconciler, and the import,
// export, check, maintenance and settings services built from them.
//
// Services see the portal, spreadsheets and stores only through the
// driven ports; cmd/dkansync injects the adapters.
package services
