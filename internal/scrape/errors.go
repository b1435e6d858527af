package scrape

import "fmt"

// FetchError means the page could not be retrieved or holds no visible text.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.URL, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// CredentialError means the API credential is missing or was rejected.
type CredentialError struct {
	Reason string
	Err    error
}

func (e *CredentialError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("credentials: %s: %v", e.Reason, e.Err)
	}
	return "credentials: " + e.Reason
}

func (e *CredentialError) Unwrap() error { return e.Err }

// ModelError means the completion call failed or its answer could not be
// turned into a valid range over the page text.
type ModelError struct {
	Model string
	Err   error
}

func (e *ModelError) Error() string { return fmt.Sprintf("model %s: %v", e.Model, e.Err) }
func (e *ModelError) Unwrap() error { return e.Err }
