package portal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

const (
	loginPath       = "/login"
	gradeReportPath = "/Grade/GradeReport"
	detailPath      = "/Grade/GradeReport/AssessmentDetail"

	csrfField = "__RequestVerificationToken"

	// Body marker the portal serves while its backend is offline.
	unavailableMarker = "Server is not available"
)

// HTTPConnector builds cookie-jar sessions against a portal base URL.
type HTTPConnector struct {
	baseURL string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewHTTPConnector constructs the connector used in production.
func NewHTTPConnector(baseURL string, timeout time.Duration, logger zerolog.Logger) *HTTPConnector {
	return &HTTPConnector{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger.With().Str("component", "portal_connector").Logger(),
	}
}

// Connect opens a fresh unauthenticated session.
func (c *HTTPConnector) Connect() Session {
	jar, _ := cookiejar.New(nil)

	return &httpSession{
		baseURL: c.baseURL,
		client: &http.Client{
			Jar:     jar,
			Timeout: c.timeout,
		},
		logger: c.logger,
	}
}

type httpSession struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// Login performs the CSRF-token form login and probes the grade report page
// to tell a rejected password apart from a silently failed login.
func (s *httpSession) Login(ctx context.Context, portalID, password string) (LoginStatus, error) {
	loginURL := s.baseURL + loginPath

	page, status, err := s.get(ctx, loginURL)
	if err != nil || status != http.StatusOK || strings.Contains(string(page), unavailableMarker) {
		return LoginPortalDown, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(page)))
	if err != nil {
		return LoginPortalDown, nil
	}

	token, ok := doc.Find(fmt.Sprintf("input[name=%q]", csrfField)).Attr("value")
	if !ok || token == "" {
		return LoginPortalDown, nil
	}

	form := url.Values{
		csrfField:  {token},
		"UserName": {portalID},
		"Password": {password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return LoginPortalDown, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return LoginPortalDown, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	// The portal answers the login POST with a redirect either way. A probe of
	// the report page reveals whether the session actually authenticated.
	probe, status, err := s.get(ctx, s.baseURL+gradeReportPath)
	if err != nil || status != http.StatusOK {
		return LoginPortalDown, nil
	}

	head := strings.ToLower(string(probe[:min(len(probe), 2048)]))
	if strings.Contains(head, "login") {
		s.logger.Warn().Str("portal_id", portalID).Msg("portal rejected credentials")
		return LoginBadCredentials, nil
	}

	return LoginSuccess, nil
}

// GradeReport fetches the raw grade report page for the logged-in account.
func (s *httpSession) GradeReport(ctx context.Context) ([]byte, error) {
	page, status, err := s.get(ctx, s.baseURL+gradeReportPath)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("grade report returned status %d", status)
	}

	return page, nil
}

// AssessmentDetail fetches the mark breakdown fragment for one course.
func (s *httpSession) AssessmentDetail(ctx context.Context, ref DetailRef) ([]byte, error) {
	if !ref.Valid() {
		return nil, fmt.Errorf("incomplete assessment detail reference")
	}

	query := url.Values{
		"academicYearId": {ref.AcademicYearID},
		"semesterId":     {ref.SemesterID},
		"courseId":       {ref.CourseID},
	}

	page, status, err := s.get(ctx, s.baseURL+detailPath+"?"+query.Encode())
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("assessment detail returned status %d", status)
	}

	return page, nil
}

// Close drops the session's connections. The portal has no logout endpoint
// worth calling; abandoning the cookie jar is sufficient.
func (s *httpSession) Close() {
	s.client.CloseIdleConnections()
}

func (s *httpSession) get(ctx context.Context, target string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	return body, resp.StatusCode, nil
}
