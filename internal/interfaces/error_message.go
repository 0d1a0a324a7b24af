// Package interfaces defines the request, response and error shapes shared by the
// relay's handlers, executors and the Go client.
package interfaces

// ErrorMessage encapsulates an error with an associated HTTP status code.
type ErrorMessage struct {
	// StatusCode is the HTTP status code to report to the client.
	StatusCode int

	// Error is the underlying error that occurred.
	Error error
}
