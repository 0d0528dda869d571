package fetch

import "fmt"

// ErrorKind classifies a fetch failure
type ErrorKind string

const (
	KindNetwork  ErrorKind = "network"   // Transport failure before a response
	KindTimeout  ErrorKind = "timeout"   // Per-fetch deadline hit
	KindStatus   ErrorKind = "status"    // Non-2xx response; HTML bodies still yield links
	KindNotHTML  ErrorKind = "non_html"  // Content-Type is not HTML
	KindBodyRead ErrorKind = "body_read" // Body could not be read, decoded, or exceeded the size cap
	KindParse    ErrorKind = "parse"     // HTML could not be parsed
)

// FetchError is the typed failure returned in Result.Err
// Err wraps one of the utils sentinels so utils.CategorizeError can classify it.
type FetchError struct {
	URL        string
	Kind       ErrorKind
	StatusCode int // Set for KindStatus
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
