package pipeline

import (
	"errors"
	"fmt"

	"github.com/nao1215/pdfscrub/internal/model"
)

var (
	// ErrInputMissing is returned for an input path that does not exist.
	ErrInputMissing = errors.New("input file does not exist")

	// ErrInputNotRegular is returned for directories and other non-files.
	ErrInputNotRegular = errors.New("input is not a regular file")

	// ErrInputUnreadable is returned when the input cannot be opened.
	ErrInputUnreadable = errors.New("input file is not readable")

	// ErrInputExtension is returned when the input does not end in .pdf.
	ErrInputExtension = errors.New("input file does not have a .pdf extension")

	// ErrInputMagic is returned when the input does not start with %PDF.
	ErrInputMagic = errors.New("input file does not start with %PDF")

	// ErrOutputCollision is returned for an input whose published name is
	// already taken by an earlier input of the same batch.
	ErrOutputCollision = errors.New("output name already used by another input")

	// ErrOutputMissing is returned when a stage did not produce its
	// declared artifact.
	ErrOutputMissing = errors.New("stage output missing")

	// ErrOutputNotWritable is returned when the output directory cannot
	// be created or written.
	ErrOutputNotWritable = fmt.Errorf("%w: output directory is not writable", model.ErrEnvironment)
)
