// Package event provides the in-memory data model for a PULEP query run.
//
// Filter options discovered on the search page, the summary rows parsed from
// the results table and the detail records fetched from each row's link all
// live here. Field sets are kept in first-seen order so exports are
// deterministic. Rows carry a deterministic SHA1-based key derived from their
// detail link (or their cells when no link exists), enabling comparison of
// two runs.
package event
