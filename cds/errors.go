package cds

import "fmt"

// APIError represents an error response from the CDS API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("CDS API error %d: %s", e.StatusCode, e.Message)
}

// TaskError represents a retrieval task that entered the failed state.
type TaskError struct {
	RequestID string
	Message   string
	Reason    string
}

func (e *TaskError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("CDS task %s failed: %s (%s)", e.RequestID, e.Message, e.Reason)
	}
	return fmt.Sprintf("CDS task %s failed: %s", e.RequestID, e.Message)
}
