package main

import (
	"streamrec/internal/checker"
	"streamrec/plugins/hls"
	"streamrec/plugins/httplive"
)

// catalog lists the built-in checkers. Specific plugins go first: the first
// enabled match owns a URL.
func catalog() checker.Catalog {
	return checker.Catalog{
		hls.Plugin(),
		httplive.Plugin(),
	}
}
