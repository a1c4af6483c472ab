package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoInput is returned when no PDF file was given on the command line.
	ErrNoInput = errors.New("no input specified: provide one or more PDF files")

	// ErrEmptyOutputDir is returned when the output directory is empty.
	ErrEmptyOutputDir = errors.New("invalid output directory: must not be empty")

	// ErrInvalidConcurrency is returned when the concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidReportFormat is returned for an unknown report format.
	ErrInvalidReportFormat = errors.New("invalid report format: must be text, json, markdown or none")

	// ErrInvalidToolTimeout is returned when the tool timeout is negative.
	// Zero disables the timeout.
	ErrInvalidToolTimeout = errors.New("invalid tool timeout: must be non-negative")

	// ErrInvalidTool is returned when a tool entry lacks a name or command,
	// or its arguments do not reference both placeholders.
	ErrInvalidTool = errors.New("invalid external tool configuration")

	// ErrInvalidConfigFile is returned when the YAML file does not pass
	// validation.
	ErrInvalidConfigFile = errors.New("invalid configuration file")
)
