package model

import "errors"

// ErrEnvironment is wrapped by errors about the machine the program runs
// on rather than about an input file: a missing tool, an output directory
// that cannot be written. Such errors stop the program before any file is
// processed.
var ErrEnvironment = errors.New("environment error")
