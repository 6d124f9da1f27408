package reconcile

import "net/http"

// MissingEmail is the identity sentinel used when no customer email could be
// resolved from the event.
const MissingEmail = "missing email"

// Report is the caller-facing summary of a single event's processing. It is
// always well-formed: Updates and Errors are present even when empty, in the
// order the internal steps produced them.
type Report struct {
	Received bool     `json:"received"`
	Email    string   `json:"email"`
	Updates  []string `json:"updates"`
	Errors   []string `json:"errors"`
}

// NewReport creates an empty acknowledged report with the identity sentinel
// in place.
func NewReport() *Report {
	return &Report{
		Received: true,
		Email:    MissingEmail,
		Updates:  []string{},
		Errors:   []string{},
	}
}

func (r *Report) setEmail(email string) {
	if email != "" {
		r.Email = email
	}
}

func (r *Report) addUpdate(msg string) {
	r.Updates = append(r.Updates, msg)
}

func (r *Report) addError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// StatusCode maps the report to an HTTP status. Acknowledged outcomes are
// 200 even when errors are present: the provider must stop retrying an event
// the system understood but could not apply. Only unacknowledged outcomes
// (storage faults) are 500 so the provider's retry mechanism resends.
func (r *Report) StatusCode() int {
	if !r.Received {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}
