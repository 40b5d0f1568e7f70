// Package dkan implements the portal ports against a DKAN 7.x instance.
//
// Reads use the public CKAN-compatible API (/api/3/action/...) and the
// services module (/api/dataset/node). Writes need a session: Login posts
// the configured account to /api/dataset/user/login and keeps the session
// cookie plus the CSRF token for every following request.
//
// Taxonomy terms have no API in DKAN 7. They are scraped from the
// taxonomy admin pages, which is why FetchVocabulary logs in first.
//
// All requests pass one rate limiter. GET requests are retried on
// network errors, 429 and 5xx. Successful GET responses are stored in
// the optional ResponseCache; a client returned by Cached serves reads
// from that cache before asking the portal.
package dkan
