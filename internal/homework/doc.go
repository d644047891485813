// Package homework holds the pure part of the review-status notifier: the
// status catalog, the API response and record validation, notification
// rendering and a single fetch-validate-extract poll cycle.
//
// Nothing here keeps state between calls. The watermark and the last-sent
// text belong to the caller (see internal/poller).
package homework
