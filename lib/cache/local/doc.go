// Package local implements the process local cache backends.
package local
