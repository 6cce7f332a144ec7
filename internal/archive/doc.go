// Package archive keeps a history of scrape runs in a SQLite database.
//
// Archiving is opt-in (scrape --archive). Each run stores its filter
// selection, the summary rows and the detail records as JSON columns so a
// past run can be exported again or compared with a newer one without
// touching the registry. The database lives in the XDG data directory and
// uses the pure-Go modernc.org/sqlite driver in WAL mode.
package archive
