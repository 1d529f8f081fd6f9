// Package database stores the history of clone runs in SQLite.
//
// Every finished job is written as one row in runs, holding the summary
// columns used for listing plus the full job as JSON, and one row per
// attempted asset in assets. The database is a single file in the XDG data
// directory, opened through the CGO-free modernc.org/sqlite driver.
package database
