package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AuthenticationError is returned when the token endpoint answers with an
// error payload. Payload is the "error" object exactly as received.
type AuthenticationError struct {
	Payload json.RawMessage
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %s", string(e.Payload))
}

// APIError is a portal error payload ({"error": {...}}) returned by any
// content or job endpoint.
type APIError struct {
	Code    int
	Message string
	Details []string
	Payload json.RawMessage
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("portal error %d: %s", e.Code, e.Message)
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	return msg
}

// JobFailureError is returned when a job reaches the failed state. Status holds
// the last status response for diagnostics.
type JobFailureError struct {
	Status JobStatus
}

func (e *JobFailureError) Error() string {
	msg := fmt.Sprintf("%s job %s on item %s failed", e.Status.Ref.Type, e.Status.Ref.JobID, e.Status.Ref.ItemID)
	if e.Status.Message != "" {
		msg += ": " + e.Status.Message
	}
	return msg
}

// JobTimeoutError is returned when a job is still not terminal after the
// configured number of attempts or elapsed time. Last is nil if no status
// call completed.
type JobTimeoutError struct {
	Ref      JobRef
	Attempts int
	Elapsed  time.Duration
	Last     *JobStatus
}

func (e *JobTimeoutError) Error() string {
	last := "none"
	if e.Last != nil {
		last = e.Last.Status
	}
	return fmt.Sprintf("%s job %s on item %s not finished after %d attempts in %s (last status %q)",
		e.Ref.Type, e.Ref.JobID, e.Ref.ItemID, e.Attempts, e.Elapsed.Round(time.Millisecond), last)
}

// PublishError wraps a failure of the publish step. The original cause stays
// reachable through errors.As / errors.Is.
type PublishError struct {
	ItemID string
	Err    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish item %s: %v", e.ItemID, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// MultipleResultsError is returned when a search expected to match at most one
// item matched several.
type MultipleResultsError struct {
	Query   ItemQuery
	Results []Item
}

func (e *MultipleResultsError) Error() string {
	ids := make([]string, 0, len(e.Results))
	for _, it := range e.Results {
		ids = append(ids, it.ID)
	}
	return fmt.Sprintf("too many results for %s %q owned by %s: only a single result was expected, got %s",
		e.Query.Type, e.Query.Title, e.Query.Owner, strings.Join(ids, ", "))
}

// ItemAddFailError wraps a failure to add an item to the portal.
type ItemAddFailError struct {
	Item NewItem
	Err  error
}

func (e *ItemAddFailError) Error() string {
	return fmt.Sprintf("add %s item %q: %v", e.Item.Type, e.Item.Title, e.Err)
}

func (e *ItemAddFailError) Unwrap() error { return e.Err }
