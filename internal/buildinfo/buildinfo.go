// Package buildinfo prints the version stamped into a binary at link time.
package buildinfo

import (
	"fmt"
	"io"
	"os"
)

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// Fprint writes the build banner to w. Empty values print as "N/A".
func Fprint(w io.Writer, version, date, commit string) {
	fmt.Fprintf(w, "Build version: %s\n", orNA(version))
	fmt.Fprintf(w, "Build date: %s\n", orNA(date))
	fmt.Fprintf(w, "Build commit: %s\n", orNA(commit))
}

// PrintBuildInfo writes the build banner to stdout.
func PrintBuildInfo(version, date, commit string) {
	Fprint(os.Stdout, version, date, commit)
}
