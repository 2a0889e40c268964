// Command gh-search runs a GitHub code search and downloads every matching
// file to <output-dir>/<owner>/<repo>/<path>.
//
// Result pages are cached on disk, so repeated runs of the same query stay
// within the search API rate limit.
package main

import (
	"os"
)

func main() {
	cmd := newRootCmd(os.LookupEnv, ghAuthToken)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
