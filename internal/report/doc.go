// Package report renders screen results into the timestamped JSON artifact
// and writes it to disk.
package report
