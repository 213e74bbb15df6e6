package dedupe

import "fmt"

// FileAccessError reports a document file that could not be sized or read.
type FileAccessError struct {
	Op         string
	Path       string
	DocumentID int
	Err        error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("%s %s (document %d): %v", e.Op, e.Path, e.DocumentID, e.Err)
}

func (e *FileAccessError) Unwrap() error {
	return e.Err
}
