package service

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/gradewatch-api/internal/config"
	"github.com/noah-isme/gradewatch-api/internal/dto"
	"github.com/noah-isme/gradewatch-api/internal/models"
	"github.com/noah-isme/gradewatch-api/internal/portal"
	"github.com/noah-isme/gradewatch-api/internal/repository"
)

const reportTemplate = `<html><body>
<table class="table-bordered">
<tr class="yrsm"><td colspan="7">Academic Year : 2017/18, Year III, Semester : I</td></tr>
<tr><td>1</td><td>Operating Systems</td><td>SECT-3082</td><td>3</td><td>5</td><td>{LETTER}</td><td></td></tr>
<tr class="yrsm"><td colspan="7">SGP : 11.64 SGPA : {SGPA} CGP : 85.60 CGPA : {CGPA} Academic Status : Promoted !</td></tr>
</table>
</body></html>`

func gradeReportHTML(letter, sgpa, cgpa string) []byte {
	page := strings.ReplaceAll(reportTemplate, "{LETTER}", letter)
	page = strings.ReplaceAll(page, "{SGPA}", sgpa)
	page = strings.ReplaceAll(page, "{CGPA}", cgpa)
	return []byte(page)
}

const newerTermReport = `<html><body>
<table class="table-bordered">
<tr class="yrsm"><td colspan="7">Academic Year : 2018/19, Year IV, Semester : II</td></tr>
<tr><td>1</td><td>Distributed Systems</td><td>SECT-4082</td><td>3</td><td>5</td><td>A</td><td></td></tr>
</table>
</body></html>`

type sentNotification struct {
	chatID  int64
	kind    string
	message string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Send(_ context.Context, chatID int64, kind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{chatID: chatID, kind: kind, message: message})
}

func (n *recordingNotifier) all() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentNotification, len(n.sent))
	copy(out, n.sent)
	return out
}

func (n *recordingNotifier) ofKind(kind string) []sentNotification {
	var out []sentNotification
	for _, item := range n.all() {
		if item.kind == kind {
			out = append(out, item)
		}
	}
	return out
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

type fakeConnector struct {
	mu            sync.Mutex
	report        []byte
	detail        []byte
	perUser       map[string]portal.LoginStatus
	perUserReport map[string][]byte
	script        []portal.LoginStatus
	connects      int
	closes        int
	fetches       int
}

func (c *fakeConnector) Connect() portal.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	return &fakeSession{connector: c}
}

func (c *fakeConnector) connectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

func (c *fakeConnector) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func (c *fakeConnector) fetchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

func (c *fakeConnector) setReport(report []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report = report
}

type fakeSession struct {
	connector *fakeConnector
	portalID  string
}

func (s *fakeSession) Login(_ context.Context, portalID, _ string) (portal.LoginStatus, error) {
	c := s.connector
	c.mu.Lock()
	defer c.mu.Unlock()
	s.portalID = portalID
	if status, ok := c.perUser[portalID]; ok {
		return status, nil
	}
	if len(c.script) > 0 {
		status := c.script[0]
		c.script = c.script[1:]
		return status, nil
	}
	return portal.LoginSuccess, nil
}

func (s *fakeSession) GradeReport(_ context.Context) ([]byte, error) {
	s.connector.mu.Lock()
	defer s.connector.mu.Unlock()
	s.connector.fetches++
	if report, ok := s.connector.perUserReport[s.portalID]; ok {
		return report, nil
	}
	return s.connector.report, nil
}

func (s *fakeSession) AssessmentDetail(_ context.Context, _ portal.DetailRef) ([]byte, error) {
	s.connector.mu.Lock()
	defer s.connector.mu.Unlock()
	return s.connector.detail, nil
}

func (s *fakeSession) Close() {
	s.connector.mu.Lock()
	defer s.connector.mu.Unlock()
	s.connector.closes++
}

type syncHarness struct {
	svc        *syncService
	connector  *fakeConnector
	notifier   *recordingNotifier
	users      repository.UserRepository
	syncStatus repository.SyncStatusRepository
	userSvc    UserService
	cfg        *config.Config
	clock      time.Time
	sleeps     []time.Duration
	asyncRuns  []int64
}

func newSyncHarness(t *testing.T) *syncHarness {
	t.Helper()

	db := openTestDB(t)
	vault := testVault(t)

	users := repository.NewUserRepository(db)
	grades := repository.NewGradeRepository(db)
	courses := repository.NewCourseRepository(db)
	statusRepo := repository.NewSyncStatusRepository(db)
	settings := repository.NewSettingRepository(db)
	audit := NewAuditService(repository.NewAuditRepository(db), "test", zerolog.Nop())
	userSvc := NewUserService(users, vault, audit, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
	detector := NewChangeDetector(grades, courses, vault, zerolog.Nop())

	connector := &fakeConnector{
		report:        gradeReportHTML("A", "3.88", "3.64"),
		perUser:       map[string]portal.LoginStatus{},
		perUserReport: map[string][]byte{},
	}
	notifier := &recordingNotifier{}

	cfg := &config.Config{
		PortalTimezone:        "UTC",
		SweepEnabledByDefault: true,
		GroupCooldown:         30 * time.Minute,
		FullSyncMaxAge:        24 * time.Hour,
		UserSyncCooldown:      30 * time.Minute,
		MaxPortalSessions:     2,
		RetryDelays:           []time.Duration{2 * time.Minute, 5 * time.Minute, 10 * time.Minute},
	}

	raw, err := NewSyncService(users, statusRepo, settings, userSvc, detector, connector, notifier, audit, nil, cfg, zerolog.Nop())
	require.NoError(t, err)
	svc := raw.(*syncService)

	h := &syncHarness{
		svc:        svc,
		connector:  connector,
		notifier:   notifier,
		users:      users,
		syncStatus: statusRepo,
		userSvc:    userSvc,
		cfg:        cfg,
		// Audit rows carry wall-clock timestamps, so the fake clock starts
		// at the real time and only moves forward.
		clock: time.Now().UTC(),
	}

	svc.rng = rand.New(rand.NewSource(7))
	svc.now = func() time.Time { return h.clock }
	svc.sleep = func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	}
	svc.runAsync = func(chatID int64, _ string) {
		h.asyncRuns = append(h.asyncRuns, chatID)
	}

	return h
}

func (h *syncHarness) register(t *testing.T, chatID int64, portalID string) models.User {
	t.Helper()

	_, err := h.userSvc.Register(context.Background(), dto.RegisterRequest{
		ChatID:       chatID,
		PortalID:     portalID,
		Password:     "portal-secret",
		CampusID:     "main",
		DepartmentID: "cs",
	})
	require.NoError(t, err)

	user, err := h.users.FindByChatID(context.Background(), chatID)
	require.NoError(t, err)
	// Matches the context the parser derives from the fake report, so the
	// first scrape does not reshuffle group membership.
	user.AcademicYear = "2017/18, Year III"
	user.Semester = "I"
	require.NoError(t, h.users.Update(context.Background(), &user))
	return user
}

func (h *syncHarness) advance(d time.Duration) {
	h.clock = h.clock.Add(d)
}

func TestSweepFirstRunSyncsWholeGroup(t *testing.T) {
	h := newSyncHarness(t)
	h.register(t, 100, "ugr/100")
	h.register(t, 200, "ugr/200")

	require.NoError(t, h.svc.RunSweep(context.Background()))

	// No status row existed, so the canary probe escalates to a full sync.
	require.Equal(t, 2, h.connector.connectCount())
	require.Equal(t, h.connector.connectCount(), h.connector.closeCount())

	grades := h.notifier.ofKind(models.NotificationGrade)
	require.Len(t, grades, 2)
	summaries := h.notifier.ofKind(models.NotificationSummary)
	require.Len(t, summaries, 2)

	status, err := h.syncStatus.Find(context.Background(), models.GroupKey{
		CampusID: "main", DepartmentID: "cs", AcademicYear: "2017/18, Year III", Semester: "I",
	})
	require.NoError(t, err)
	require.NotNil(t, status.LastFullSyncAt)
	require.WithinDuration(t, h.clock, status.LastCheckedAt, time.Second)
}

func TestSweepQuietCanarySkipsPeers(t *testing.T) {
	h := newSyncHarness(t)
	h.register(t, 100, "ugr/100")
	h.register(t, 200, "ugr/200")

	require.NoError(t, h.svc.RunSweep(context.Background()))
	h.notifier.reset()

	h.advance(31 * time.Minute)
	require.NoError(t, h.svc.RunSweep(context.Background()))

	// Only the canary logged in on the second pass.
	require.Equal(t, 3, h.connector.connectCount())
	require.Empty(t, h.notifier.all())
}

func TestSweepGroupCooldownSuppressesScrape(t *testing.T) {
	h := newSyncHarness(t)
	h.register(t, 100, "ugr/100")

	require.NoError(t, h.svc.RunSweep(context.Background()))
	fetches := h.connector.fetchCount()

	// Inside the cooldown window the canary still logs in, but the report is
	// never fetched and no state advances.
	h.advance(5 * time.Minute)
	require.NoError(t, h.svc.RunSweep(context.Background()))
	require.Equal(t, fetches, h.connector.fetchCount())
	require.Equal(t, h.connector.connectCount(), h.connector.closeCount())
}

func TestSweepCooldownStillSuspendsBadCredentials(t *testing.T) {
	h := newSyncHarness(t)
	h.register(t, 100, "ugr/100")

	require.NoError(t, h.svc.RunSweep(context.Background()))
	h.notifier.reset()

	// The portal starts rejecting the saved password right after a check.
	h.connector.perUser["ugr/100"] = portal.LoginBadCredentials
	h.advance(5 * time.Minute)
	require.NoError(t, h.svc.RunSweep(context.Background()))

	suspended, err := h.users.FindByChatID(context.Background(), 100)
	require.NoError(t, err)
	require.False(t, suspended.CredentialValid)

	notices := h.notifier.ofKind(models.NotificationCredential)
	require.Len(t, notices, 1)
}

func TestSweepCanaryChangePropagatesToPeers(t *testing.T) {
	h := newSyncHarness(t)
	h.register(t, 100, "ugr/100")
	h.register(t, 200, "ugr/200")

	require.NoError(t, h.svc.RunSweep(context.Background()))
	h.notifier.reset()

	h.advance(31 * time.Minute)
	h.connector.setReport(gradeReportHTML("A+", "3.95", "3.70"))
	require.NoError(t, h.svc.RunSweep(context.Background()))

	require.Equal(t, 4, h.connector.connectCount())

	grades := h.notifier.ofKind(models.NotificationGrade)
	require.Len(t, grades, 2)
	chatIDs := []int64{grades[0].chatID, grades[1].chatID}
	require.ElementsMatch(t, []int64{100, 200}, chatIDs)
	for _, item := range grades {
		require.Contains(t, item.message, "A -> A+")
	}
}

func TestSweepFullSyncAfterStalenessCeiling(t *testing.T) {
	h := newSyncHarness(t)
	h.register(t, 100, "ugr/100")
	h.register(t, 200, "ugr/200")

	require.NoError(t, h.svc.RunSweep(context.Background()))
	h.notifier.reset()

	// Unchanged data, but the 24h ceiling forces a full pass anyway.
	h.advance(25 * time.Hour)
	require.NoError(t, h.svc.RunSweep(context.Background()))

	require.Equal(t, 4, h.connector.connectCount())
	require.Empty(t, h.notifier.all())
}

func TestSweepPropagationFlagsLaggingRecord(t *testing.T) {
	h := newSyncHarness(t)
	h.register(t, 100, "ugr/100")
	h.register(t, 200, "ugr/200")
	// User 200's report is missing the course the canary just got.
	h.connector.perUserReport["ugr/200"] = []byte(newerTermReport)

	members, err := h.users.ListGroupMembers(context.Background(), models.GroupKey{
		CampusID: "main", DepartmentID: "cs", AcademicYear: "2017/18, Year III", Semester: "I",
	})
	require.NoError(t, err)
	require.Len(t, members, 2)

	h.svc.propagate(context.Background(), members, 100, []string{"SECT-3082"})

	notices := h.notifier.ofKind(models.NotificationSync)
	require.Len(t, notices, 1)
	require.Equal(t, int64(200), notices[0].chatID)
	require.Contains(t, notices[0].message, "SECT-3082")
}

func TestSweepBadCredentialCanaryFallsThrough(t *testing.T) {
	h := newSyncHarness(t)
	h.register(t, 100, "ugr/100")
	h.register(t, 200, "ugr/200")
	h.connector.perUser["ugr/100"] = portal.LoginBadCredentials

	require.NoError(t, h.svc.RunSweep(context.Background()))

	// Whoever was drawn first, user 100 ends up suspended and 200 still syncs.
	suspended, err := h.users.FindByChatID(context.Background(), 100)
	require.NoError(t, err)
	require.False(t, suspended.CredentialValid)

	credentialNotices := h.notifier.ofKind(models.NotificationCredential)
	require.Len(t, credentialNotices, 1)
	require.Equal(t, int64(100), credentialNotices[0].chatID)

	grades := h.notifier.ofKind(models.NotificationGrade)
	require.Len(t, grades, 1)
	require.Equal(t, int64(200), grades[0].chatID)
}

func TestSweepPortalDownAbortsGroup(t *testing.T) {
	h := newSyncHarness(t)
	h.register(t, 100, "ugr/100")
	h.register(t, 200, "ugr/200")
	h.connector.perUser["ugr/100"] = portal.LoginPortalDown
	h.connector.perUser["ugr/200"] = portal.LoginPortalDown

	require.NoError(t, h.svc.RunSweep(context.Background()))

	require.Empty(t, h.notifier.all())
	require.Equal(t, 1, h.connector.connectCount())

	_, err := h.syncStatus.Find(context.Background(), models.GroupKey{
		CampusID: "main", DepartmentID: "cs", AcademicYear: "2017/18, Year III", Semester: "I",
	})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSweepDisabledByToggle(t *testing.T) {
	h := newSyncHarness(t)
	h.register(t, 100, "ugr/100")

	require.NoError(t, h.svc.SetSweepEnabled(context.Background(), false))
	require.NoError(t, h.svc.RunSweep(context.Background()))
	require.Zero(t, h.connector.connectCount())

	require.NoError(t, h.svc.SetSweepEnabled(context.Background(), true))
	require.NoError(t, h.svc.RunSweep(context.Background()))
	require.NotZero(t, h.connector.connectCount())
}

func TestSweepSkipsDuringMaintenanceWindow(t *testing.T) {
	h := newSyncHarness(t)
	h.register(t, 100, "ugr/100")
	h.cfg.MaintenanceStartHour = 0
	h.cfg.MaintenanceEndHour = 6
	h.clock = time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)

	require.NoError(t, h.svc.RunSweep(context.Background()))
	require.Zero(t, h.connector.connectCount())

	h.clock = time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	require.NoError(t, h.svc.RunSweep(context.Background()))
	require.Equal(t, 1, h.connector.connectCount())
}

func TestUserSyncRetriesThroughOutage(t *testing.T) {
	h := newSyncHarness(t)
	h.register(t, 100, "ugr/100")
	h.connector.script = []portal.LoginStatus{portal.LoginPortalDown, portal.LoginPortalDown}

	require.NoError(t, h.svc.RunUserSync(context.Background(), 100, ""))

	require.Equal(t, []time.Duration{2 * time.Minute, 5 * time.Minute}, h.sleeps)
	require.Equal(t, 3, h.connector.connectCount())

	grades := h.notifier.ofKind(models.NotificationGrade)
	require.Len(t, grades, 1)

	notices := h.notifier.ofKind(models.NotificationSync)
	require.Len(t, notices, 1)
	require.Contains(t, notices[0].message, "Sync finished")
}

func TestUserSyncAdvancesStoredTermContext(t *testing.T) {
	h := newSyncHarness(t)
	h.register(t, 100, "ugr/100")
	h.connector.setReport([]byte(newerTermReport))

	require.NoError(t, h.svc.RunUserSync(context.Background(), 100, ""))

	user, err := h.users.FindByChatID(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, "2018/19, Year IV", user.AcademicYear)
	require.Equal(t, "II", user.Semester)
}

func TestUserSyncGivesUpWhenRetriesExhausted(t *testing.T) {
	h := newSyncHarness(t)
	h.register(t, 100, "ugr/100")
	h.connector.perUser["ugr/100"] = portal.LoginPortalDown

	require.NoError(t, h.svc.RunUserSync(context.Background(), 100, ""))

	require.Equal(t, []time.Duration{2 * time.Minute, 5 * time.Minute, 10 * time.Minute}, h.sleeps)
	require.Equal(t, 4, h.connector.connectCount())

	notices := h.notifier.ofKind(models.NotificationSync)
	require.Len(t, notices, 1)
	require.Contains(t, notices[0].message, "not responding")
}

func TestUserSyncReportsUnreleasedScope(t *testing.T) {
	h := newSyncHarness(t)
	h.register(t, 100, "ugr/100")

	// The stored report only has Year III rows.
	require.NoError(t, h.svc.RunUserSync(context.Background(), 100, "Year I"))

	notices := h.notifier.ofKind(models.NotificationSync)
	require.Len(t, notices, 1)
	require.Contains(t, notices[0].message, "not published")
}

func TestUserSyncReportsNoNewUpdates(t *testing.T) {
	h := newSyncHarness(t)
	h.register(t, 100, "ugr/100")

	require.NoError(t, h.svc.RunUserSync(context.Background(), 100, ""))
	h.notifier.reset()

	require.NoError(t, h.svc.RunUserSync(context.Background(), 100, ""))

	notices := h.notifier.ofKind(models.NotificationSync)
	require.Len(t, notices, 1)
	require.Contains(t, notices[0].message, "no new updates")
}

func TestRequestUserSyncEnforcesCooldown(t *testing.T) {
	h := newSyncHarness(t)
	h.register(t, 100, "ugr/100")

	require.NoError(t, h.svc.RequestUserSync(context.Background(), 100, ""))
	require.Equal(t, []int64{100}, h.asyncRuns)

	err := h.svc.RequestUserSync(context.Background(), 100, "")
	require.ErrorIs(t, err, ErrSyncCooldown)
	require.Len(t, h.asyncRuns, 1)

	h.advance(31 * time.Minute)
	require.NoError(t, h.svc.RequestUserSync(context.Background(), 100, ""))
	require.Len(t, h.asyncRuns, 2)
}

func TestMatchesYearScope(t *testing.T) {
	cases := []struct {
		yearLevel string
		year      string
		scope     string
		want      bool
	}{
		{"Year III", "2017/18, Year III", "", true},
		{"Year III", "2017/18, Year III", "3", true},
		{"Year III", "2017/18, Year III", "Year 3", true},
		{"Year III", "2017/18, Year III", "Year III", true},
		{"Year III", "2017/18, Year III", "2", false},
		{"Year II", "2016/17, Year II", "Year 2", true},
		{"", "2017/18", "2017/18", true},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, matchesYear(tc.yearLevel, tc.year, tc.scope),
			"yearLevel=%q scope=%q", tc.yearLevel, tc.scope)
	}
}
