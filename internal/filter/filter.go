// Package filter narrows an extracted lead list before personalization:
// revenue range, cross-campaign duplicate emails, and intent-signal
// qualification.
package filter

import "fmt"

// EmptyResultError reports that a filter removed every lead. The run fails
// with this error so the caller can tell the user which stage emptied the
// list.
type EmptyResultError struct {
	Filter string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("no leads remaining after %s filter", e.Filter)
}
