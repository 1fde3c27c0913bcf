/*
Package sqlite provides a storage provider on a single SQLite database
(github.com/mattn/go-sqlite3, cgo).

All collections share one documents table; records are stored as JSON.
Scalar equality conditions are pushed down with json_extract, the remaining
filtering, sorting and paging happens in the process. AddIndex creates a
json_extract expression index and enforces uniqueness on every write.

Configuration (provider settings):

	path: data/main.db   # default $DCOL_SQLITE_PATH or ":memory:"
	wal: true
*/
package sqlite
