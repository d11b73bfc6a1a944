// Package audit records every login attempt into a durable trail without
// blocking the request path. Attempts are queued in memory by Buffer and
// written to the login_audit table in periodic bulk inserts.
//
// Audit is best-effort: a failed write drops that batch and is logged.
package audit

import "time"

// UnknownIP is stored when the client address could not be determined.
const UnknownIP = "unknown"

// Failure reasons recorded on unsuccessful logins.
const (
	ReasonUserNotFound    = "User not found"
	ReasonInvalidPassword = "Invalid password"
	ReasonUserBlocked     = "User blocked"
)

// perPage is the number of audit rows per page in the admin listing.
const perPage = 50

// LoginAuditEvent is a single login attempt. Events are append-only.
type LoginAuditEvent struct {
	ID      int64     `json:"id,omitempty"`
	Time    time.Time `json:"time"`
	IP      string    `json:"ip"`
	Email   string    `json:"email"`
	Success bool      `json:"success"`

	// FailReason is nil on success.
	FailReason *string `json:"failReason,omitempty"`
}

// Failed builds an unsuccessful attempt with the given reason.
func Failed(email, ip, reason string) LoginAuditEvent {
	return LoginAuditEvent{Email: email, IP: ip, FailReason: &reason}
}

// Succeeded builds a successful attempt.
func Succeeded(email, ip string) LoginAuditEvent {
	return LoginAuditEvent{Email: email, IP: ip, Success: true}
}

// EventPage is one page of the admin audit listing.
type EventPage struct {
	Events  []LoginAuditEvent `json:"events"`
	Total   int               `json:"total"`
	Page    int               `json:"page"`
	PerPage int               `json:"perPage"`
}
