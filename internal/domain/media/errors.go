package media

import "errors"

var (
	ErrRecordNotFound     = errors.New("media record not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidMimeType    = errors.New("only video files are accepted")
	ErrEmptyFile          = errors.New("file is empty")
	ErrStorage            = errors.New("storage failure")
	ErrInvalidTransition  = errors.New("invalid processing state transition")
	ErrProcessingRejected = errors.New("processing could not be scheduled")
)
