package image

import "fmt"

// FetchError is returned when an image could not be downloaded, either
// because the URL is not resolvable or the server replied with a
// non-success status.
type FetchError struct {
	URL        string
	StatusCode int // 0 unless the server replied
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ExtractError is returned when a staged archive could not be extracted.
// The staged archive file is left in place for inspection.
type ExtractError struct {
	Archive string // path to the staged archive
	Err     error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Archive, e.Err)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}
