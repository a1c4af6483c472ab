// Package config provides the configuration of a pdfscrub run: output
// location, concurrency, report format, scanner toggles and the external
// tool chain. Values come from defaults, an optional YAML file and the
// command line, in that order of precedence.
package config
