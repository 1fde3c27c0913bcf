// Package cmd implements the command-line interface of dCol. It provides a
// hierarchical command structure for running the cache server and for working
// with the collections of a configured database.
//
// The package is organized into several subpackages:
//
//   - col: Collection operations (find, get, insert, update, remove, count,
//     drop) and a performance test
//   - serve: Starting and configuring the dcol cache server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dcol -help for a list of all commands.
package cmd
