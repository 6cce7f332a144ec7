// Package scraper fetches the PULEP public events reports.
//
// A Scraper discovers the search form's filter options, runs a query with
// the chosen filters, walks the results across pages as a lazy sequence of
// rows and fetches the detail page behind each row. Markup knowledge lives
// in the site package; this package deals with requests, pacing, retries,
// pagination and the error types callers branch on.
//
// Two result sources exist: the paginated HTML table and the jqGrid JSON
// endpoint the site's own page uses. Mode selects one, or tries the grid
// first and falls back to the table.
package scraper
