// Package portal implements the authenticated session and page parsing for
// the university results portal.
package portal

import "context"

// LoginStatus classifies the outcome of a login attempt.
type LoginStatus int

const (
	// LoginSuccess means the session is authenticated and pages can be fetched.
	LoginSuccess LoginStatus = iota
	// LoginBadCredentials means the portal rejected the identifier/password pair.
	LoginBadCredentials
	// LoginPortalDown means the portal did not respond usefully. This is a
	// global condition, not specific to the account being tried.
	LoginPortalDown
)

// String returns the wire label for the status.
func (s LoginStatus) String() string {
	switch s {
	case LoginSuccess:
		return "success"
	case LoginBadCredentials:
		return "bad_credentials"
	case LoginPortalDown:
		return "portal_down"
	default:
		return "unknown"
	}
}

// DetailRef carries the opaque identifiers needed to fetch one course's
// assessment breakdown.
type DetailRef struct {
	AcademicYearID string
	SemesterID     string
	CourseID       string
}

// Valid reports whether all three identifiers are present.
func (r DetailRef) Valid() bool {
	return r.AcademicYearID != "" && r.SemesterID != "" && r.CourseID != ""
}

// Session is one authenticated browsing session against the portal.
// Implementations are not safe for concurrent use; the orchestrator opens one
// session per user scrape and must close it on every exit path.
type Session interface {
	Login(ctx context.Context, portalID, password string) (LoginStatus, error)
	GradeReport(ctx context.Context) ([]byte, error)
	AssessmentDetail(ctx context.Context, ref DetailRef) ([]byte, error)
	Close()
}

// Connector opens fresh portal sessions.
type Connector interface {
	Connect() Session
}
