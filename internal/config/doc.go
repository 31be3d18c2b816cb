// Package config loads the streamrec configuration file (YAML or JSON) with
// strict key checking, applies defaults and reports when the file on disk has
// drifted from the loaded content.
package config
