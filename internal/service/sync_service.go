package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/noah-isme/gradewatch-api/internal/config"
	"github.com/noah-isme/gradewatch-api/internal/models"
	"github.com/noah-isme/gradewatch-api/internal/observability"
	"github.com/noah-isme/gradewatch-api/internal/portal"
	"github.com/noah-isme/gradewatch-api/internal/repository"
)

// ErrSyncCooldown is returned when a user requests a sync before their
// cooldown window has elapsed.
var ErrSyncCooldown = errors.New("sync recently requested, try again later")

const userSyncCooldownKeyPrefix = "gradewatch:user_sync:"

// SyncService runs the periodic group sweep and on-demand per-user syncs.
type SyncService interface {
	RunSweep(ctx context.Context) error
	RequestUserSync(ctx context.Context, chatID int64, yearScope string) error
	RunUserSync(ctx context.Context, chatID int64, yearScope string) error
	SweepEnabled(ctx context.Context) (bool, error)
	SetSweepEnabled(ctx context.Context, enabled bool) error
}

type syncService struct {
	users      repository.UserRepository
	syncStatus repository.SyncStatusRepository
	settings   repository.SettingRepository
	userSvc    UserService
	detector   ChangeDetector
	connector  portal.Connector
	notifier   Notifier
	audit      AuditService
	redis      *redis.Client
	cfg        *config.Config
	location   *time.Location
	logger     zerolog.Logger
	tracer     trace.Tracer

	rngMu sync.Mutex
	rng   *rand.Rand

	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	runAsync func(chatID int64, yearScope string)
}

// NewSyncService constructs the sync orchestrator.
func NewSyncService(
	users repository.UserRepository,
	syncStatus repository.SyncStatusRepository,
	settings repository.SettingRepository,
	userSvc UserService,
	detector ChangeDetector,
	connector portal.Connector,
	notifier Notifier,
	audit AuditService,
	redisClient *redis.Client,
	cfg *config.Config,
	logger zerolog.Logger,
) (SyncService, error) {
	location, err := time.LoadLocation(cfg.PortalTimezone)
	if err != nil {
		return nil, fmt.Errorf("load portal timezone: %w", err)
	}

	svc := &syncService{
		users:      users,
		syncStatus: syncStatus,
		settings:   settings,
		userSvc:    userSvc,
		detector:   detector,
		connector:  connector,
		notifier:   notifier,
		audit:      audit,
		redis:      redisClient,
		cfg:        cfg,
		location:   location,
		logger:     logger.With().Str("component", "sync_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/gradewatch-api/internal/service/sync"),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		now:        time.Now,
		sleep:      sleepContext,
	}
	svc.runAsync = svc.spawnUserSync
	return svc, nil
}

func (s *syncService) spawnUserSync(chatID int64, yearScope string) {
	go func() {
		syncCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := s.RunUserSync(syncCtx, chatID, yearScope); err != nil {
			s.logger.Error().Err(err).Int64("chat_id", chatID).Msg("on-demand sync failed")
		}
	}()
}

// RunSweep checks every context group once. Groups are processed concurrently
// up to the portal session ceiling; a failure in one group never aborts the
// others.
func (s *syncService) RunSweep(ctx context.Context) error {
	spanCtx, span := s.tracer.Start(ctx, "sync.sweep")
	defer span.End()

	enabled, err := s.SweepEnabled(spanCtx)
	if err != nil {
		return fmt.Errorf("read sweep toggle: %w", err)
	}
	if !enabled {
		observability.SweepRuns().WithLabelValues("disabled").Inc()
		s.audit.Log(spanCtx, nil, models.AuditSweepSkipped, map[string]interface{}{"reason": "disabled"})
		s.logger.Info().Msg("sweep disabled, skipping")
		return nil
	}

	if s.inMaintenanceWindow() {
		observability.SweepRuns().WithLabelValues("maintenance").Inc()
		s.audit.Log(spanCtx, nil, models.AuditSweepSkipped, map[string]interface{}{"reason": "maintenance"})
		s.logger.Info().Msg("inside portal maintenance window, skipping sweep")
		return nil
	}

	groups, err := s.users.ListContextGroups(spanCtx)
	if err != nil {
		observability.SweepRuns().WithLabelValues("error").Inc()
		return fmt.Errorf("list context groups: %w", err)
	}

	started := s.now()
	s.audit.Log(spanCtx, nil, models.AuditSweepStart, map[string]interface{}{"groups": len(groups)})
	s.logger.Info().Int("groups", len(groups)).Msg("sweep started")

	eg, groupCtx := errgroup.WithContext(spanCtx)
	eg.SetLimit(s.cfg.MaxPortalSessions)

	for _, key := range groups {
		key := key
		eg.Go(func() error {
			if err := s.checkGroup(groupCtx, key); err != nil {
				s.logger.Error().Err(err).
					Str("campus", key.CampusID).
					Str("department", key.DepartmentID).
					Str("academic_year", key.AcademicYear).
					Str("semester", key.Semester).
					Msg("group check failed")
				observability.GroupChecks().WithLabelValues("error").Inc()
			}
			return nil
		})
	}

	_ = eg.Wait()

	elapsed := s.now().Sub(started)
	observability.SweepDuration().Observe(elapsed.Seconds())
	observability.SweepRuns().WithLabelValues("success").Inc()
	s.audit.Log(spanCtx, nil, models.AuditSweepEnd, map[string]interface{}{
		"groups":           len(groups),
		"duration_seconds": int(elapsed.Seconds()),
	})
	s.logger.Info().Dur("elapsed", elapsed).Msg("sweep finished")
	return nil
}

// checkGroup probes one context group through a randomly elected canary and
// propagates a full-group sync when the canary shows movement or the group is
// overdue for one.
func (s *syncService) checkGroup(ctx context.Context, key models.GroupKey) error {
	members, err := s.users.ListGroupMembers(ctx, key)
	if err != nil {
		return fmt.Errorf("list group members: %w", err)
	}
	if len(members) == 0 {
		observability.GroupChecks().WithLabelValues("empty").Inc()
		return nil
	}

	// Election runs before the cooldown gate so members whose credentials the
	// portal now rejects get suspended even inside the cooldown window.
	canary, session, outcome := s.electCanary(ctx, members)
	if session != nil {
		defer session.Close()
	}
	switch outcome {
	case portal.LoginPortalDown:
		observability.GroupChecks().WithLabelValues("portal_down").Inc()
		return nil
	case portal.LoginBadCredentials:
		// Every member failed login; nothing left to probe with.
		observability.GroupChecks().WithLabelValues("no_canary").Inc()
		return nil
	}

	now := s.now()

	status, err := s.syncStatus.Find(ctx, key)
	statusExists := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("load group status: %w", err)
	}
	if statusExists && now.Sub(status.LastCheckedAt) < s.cfg.GroupCooldown {
		observability.GroupChecks().WithLabelValues("cooldown").Inc()
		return nil
	}

	canaryResult, err := s.syncUser(ctx, canary, session, "")
	if err != nil {
		return fmt.Errorf("canary sync: %w", err)
	}
	canaryUpdates := canaryResult.updates

	if !statusExists {
		status = models.GroupSyncStatus{
			CampusID:     key.CampusID,
			DepartmentID: key.DepartmentID,
			AcademicYear: key.AcademicYear,
			Semester:     key.Semester,
		}
	}

	fullSync := canaryUpdates > 0 ||
		status.LastFullSyncAt == nil ||
		now.Sub(*status.LastFullSyncAt) > s.cfg.FullSyncMaxAge

	if fullSync {
		released := s.propagate(ctx, members, canary.ChatID, canaryResult.changedCourses)
		if canaryUpdates > 0 {
			s.logger.Info().
				Int64("canary", canary.ChatID).
				Int("released_peers", released).
				Str("campus", key.CampusID).
				Str("department", key.DepartmentID).
				Msg("canary change released for group peers")
		}
		fullSyncAt := s.now()
		status.LastFullSyncAt = &fullSyncAt
		observability.GroupChecks().WithLabelValues("full_sync").Inc()
	} else {
		observability.GroupChecks().WithLabelValues("unchanged").Inc()
	}

	status.LastCheckedAt = s.now()
	if err := s.syncStatus.Save(ctx, &status); err != nil {
		return fmt.Errorf("save group status: %w", err)
	}
	return nil
}

// electCanary shuffles the group and returns the first member whose login
// succeeds together with the open session. Members with rejected credentials
// are marked invalid and skipped; a portal outage aborts the election since it
// affects every account equally.
func (s *syncService) electCanary(ctx context.Context, members []models.User) (models.User, portal.Session, portal.LoginStatus) {
	shuffled := make([]models.User, len(members))
	copy(shuffled, members)
	s.rngMu.Lock()
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	s.rngMu.Unlock()

	for _, member := range shuffled {
		password, err := s.userSvc.DecryptedPassword(ctx, member.ID)
		if err != nil {
			s.logger.Warn().Err(err).Int64("chat_id", member.ChatID).Msg("skipping member without usable credential")
			continue
		}

		session := s.connector.Connect()
		loginStatus, err := session.Login(ctx, member.PortalID, password)
		if err != nil {
			s.logger.Warn().Err(err).Int64("chat_id", member.ChatID).Msg("portal login failed")
			loginStatus = portal.LoginPortalDown
		}
		observability.PortalLogins().WithLabelValues(loginStatus.String()).Inc()

		switch loginStatus {
		case portal.LoginSuccess:
			return member, session, portal.LoginSuccess
		case portal.LoginBadCredentials:
			session.Close()
			s.suspendMember(ctx, member)
		case portal.LoginPortalDown:
			session.Close()
			return models.User{}, nil, portal.LoginPortalDown
		}
	}

	return models.User{}, nil, portal.LoginBadCredentials
}

// propagate syncs every remaining group member after a positive canary probe.
// Members whose report is missing a course the canary just got are told their
// record lags the group. Returns the number of peers synced.
func (s *syncService) propagate(ctx context.Context, members []models.User, canaryChatID int64, canaryChanged []string) int {
	released := 0
	for _, member := range members {
		if member.ChatID == canaryChatID {
			continue
		}

		// The canary election may have suspended this member moments ago.
		current, err := s.users.FindByChatID(ctx, member.ChatID)
		if err != nil || !current.CredentialValid {
			continue
		}

		password, err := s.userSvc.DecryptedPassword(ctx, current.ID)
		if err != nil {
			s.logger.Warn().Err(err).Int64("chat_id", current.ChatID).Msg("skipping member without usable credential")
			continue
		}

		session := s.connector.Connect()
		loginStatus, err := session.Login(ctx, current.PortalID, password)
		if err != nil {
			s.logger.Warn().Err(err).Int64("chat_id", current.ChatID).Msg("portal login failed during propagation")
			loginStatus = portal.LoginPortalDown
		}
		observability.PortalLogins().WithLabelValues(loginStatus.String()).Inc()

		switch loginStatus {
		case portal.LoginBadCredentials:
			session.Close()
			s.suspendMember(ctx, current)
			continue
		case portal.LoginPortalDown:
			session.Close()
			s.logger.Warn().Int64("chat_id", current.ChatID).Msg("portal went down mid-propagation, stopping group")
			return released
		}

		result, err := s.syncUser(ctx, current, session, "")
		if err != nil {
			s.logger.Error().Err(err).Int64("chat_id", current.ChatID).Msg("member sync failed")
		} else {
			released++
			s.notifyLaggingRecord(ctx, current.ChatID, canaryChanged, result.seenCourses)
		}
		session.Close()
	}
	return released
}

// notifyLaggingRecord tells a member when their classmates received a course
// update that is not on the member's own report yet.
func (s *syncService) notifyLaggingRecord(ctx context.Context, chatID int64, canaryChanged []string, seen map[string]bool) {
	var missing []string
	for _, code := range canaryChanged {
		if !seen[code] {
			missing = append(missing, code)
		}
	}
	if len(missing) == 0 {
		return
	}
	s.notifier.Send(ctx, chatID, models.NotificationSync,
		fmt.Sprintf("Your classmates received an update for %s, but it is not on your record yet.",
			strings.Join(missing, ", ")))
}

// scrapeResult summarizes one scrape of a user's grade report.
type scrapeResult struct {
	updates        int
	matched        int
	changedCourses []string
	seenCourses    map[string]bool
}

// syncUser scrapes the full grade report through an already authenticated
// session and applies every row in scope.
func (s *syncService) syncUser(ctx context.Context, user models.User, session portal.Session, yearScope string) (scrapeResult, error) {
	raw, err := session.GradeReport(ctx)
	if err != nil {
		return scrapeResult{}, fmt.Errorf("fetch grade report: %w", err)
	}
	report, err := portal.ParseGradeReport(raw)
	if err != nil {
		return scrapeResult{}, fmt.Errorf("parse grade report: %w", err)
	}

	result := scrapeResult{seenCourses: make(map[string]bool, len(report.Courses))}

	for _, course := range report.Courses {
		result.seenCourses[course.CourseCode] = true
		if !matchesYear(course.YearLevel, course.AcademicYear, yearScope) {
			continue
		}
		result.matched++

		changed, message, err := s.detector.ApplyGrade(ctx, user, course)
		if err != nil {
			s.logger.Error().Err(err).Int64("chat_id", user.ChatID).Str("course", course.CourseCode).Msg("failed to apply grade")
			continue
		}
		if changed {
			result.updates++
			result.changedCourses = append(result.changedCourses, course.CourseCode)
			s.notifier.Send(ctx, user.ChatID, models.NotificationGrade, message)
			s.audit.Log(ctx, &user.ChatID, models.AuditGradeUpdated, map[string]interface{}{
				"course_code": course.CourseCode,
			})
		}

		if course.Detail.Valid() {
			if n := s.syncAssessment(ctx, user, session, course); n > 0 {
				result.updates += n
			}
		}
	}

	for _, summary := range report.Summaries {
		if !matchesYear(summary.YearLevel, summary.AcademicYear, yearScope) {
			continue
		}
		result.matched++

		changed, message, err := s.detector.ApplySummary(ctx, user, summary)
		if err != nil {
			s.logger.Error().Err(err).Int64("chat_id", user.ChatID).Msg("failed to apply semester summary")
			continue
		}
		if changed {
			result.updates++
			s.notifier.Send(ctx, user.ChatID, models.NotificationSummary, message)
			s.audit.Log(ctx, &user.ChatID, models.AuditGPAUpdated, map[string]interface{}{
				"academic_year": summary.AcademicYear,
				"semester":      summary.Semester,
			})
		}
	}

	s.refreshTermContext(ctx, user, report)

	return result, nil
}

// refreshTermContext advances the user's stored academic year and semester to
// the newest term on their report, so group membership follows the student
// through the program.
func (s *syncService) refreshTermContext(ctx context.Context, user models.User, report portal.Report) {
	year, semester, yearNumber := "", "", 0
	for _, course := range report.Courses {
		if course.YearNumber >= yearNumber {
			year, semester, yearNumber = course.AcademicYear, course.Semester, course.YearNumber
		}
	}
	for _, summary := range report.Summaries {
		if summary.YearNumber >= yearNumber {
			year, semester, yearNumber = summary.AcademicYear, summary.Semester, summary.YearNumber
		}
	}
	if year == "" || (user.AcademicYear == year && user.Semester == semester) {
		return
	}

	user.AcademicYear = year
	user.Semester = semester
	if err := s.users.Update(ctx, &user); err != nil {
		s.logger.Warn().Err(err).Int64("chat_id", user.ChatID).Msg("failed to refresh term context")
	}
}

func (s *syncService) syncAssessment(ctx context.Context, user models.User, session portal.Session, course portal.ParsedCourse) int {
	raw, err := session.AssessmentDetail(ctx, course.Detail)
	if err != nil {
		s.logger.Warn().Err(err).Int64("chat_id", user.ChatID).Str("course", course.CourseCode).Msg("failed to fetch assessment detail")
		return 0
	}
	detail, err := portal.ParseAssessmentDetail(raw)
	if err != nil {
		s.logger.Warn().Err(err).Int64("chat_id", user.ChatID).Str("course", course.CourseCode).Msg("failed to parse assessment detail")
		return 0
	}

	changed, message, err := s.detector.ApplyAssessment(ctx, user, course, detail)
	if err != nil {
		s.logger.Error().Err(err).Int64("chat_id", user.ChatID).Str("course", course.CourseCode).Msg("failed to apply assessment")
		return 0
	}
	if !changed {
		return 0
	}

	s.notifier.Send(ctx, user.ChatID, models.NotificationAssessment, message)
	return 1
}

// suspendMember marks a member's credential invalid so sweeps stop trying it,
// and tells them how to recover.
func (s *syncService) suspendMember(ctx context.Context, member models.User) {
	if err := s.users.MarkCredentialInvalid(ctx, member.ID); err != nil {
		s.logger.Error().Err(err).Int64("chat_id", member.ChatID).Msg("failed to suspend member credential")
		return
	}
	s.notifier.Send(ctx, member.ChatID, models.NotificationCredential,
		"The portal rejected your saved password, so automatic checking is paused. Update your password to resume.")
}

// RequestUserSync enforces the per-user cooldown and schedules the sync in
// the background. Callers get an immediate answer; results arrive as
// notifications.
func (s *syncService) RequestUserSync(ctx context.Context, chatID int64, yearScope string) error {
	onCooldown, err := s.userOnCooldown(ctx, chatID)
	if err != nil {
		return err
	}
	if onCooldown {
		return ErrSyncCooldown
	}

	s.audit.Log(ctx, &chatID, models.AuditRefreshRequested, map[string]interface{}{
		"year_scope": yearScope,
	})
	if s.redis != nil {
		key := userSyncCooldownKeyPrefix + strconv.FormatInt(chatID, 10)
		if err := s.redis.Set(ctx, key, "1", s.cfg.UserSyncCooldown).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to record sync cooldown in redis")
		}
	}

	s.runAsync(chatID, yearScope)
	return nil
}

// RunUserSync performs one on-demand sync with a bounded retry ladder for
// portal outages.
func (s *syncService) RunUserSync(ctx context.Context, chatID int64, yearScope string) error {
	attrs := []attribute.KeyValue{attribute.Int64("sync.chat_id", chatID)}
	spanCtx, span := s.tracer.Start(ctx, "sync.user", trace.WithAttributes(attrs...))
	defer span.End()

	if s.inMaintenanceWindow() {
		observability.UserSyncs().WithLabelValues("maintenance").Inc()
		s.notifier.Send(spanCtx, chatID, models.NotificationSync,
			"The portal is under its nightly maintenance right now. Please try again in a few hours.")
		return nil
	}

	user, err := s.users.FindByChatID(spanCtx, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	password, err := s.userSvc.DecryptedPassword(spanCtx, user.ID)
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}

	attempts := len(s.cfg.RetryDelays) + 1
	for attempt := 0; attempt < attempts; attempt++ {
		session := s.connector.Connect()
		loginStatus, err := session.Login(spanCtx, user.PortalID, password)
		if err != nil {
			s.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("portal login failed")
			loginStatus = portal.LoginPortalDown
		}
		observability.PortalLogins().WithLabelValues(loginStatus.String()).Inc()

		switch loginStatus {
		case portal.LoginSuccess:
			result, err := s.syncUser(spanCtx, user, session, yearScope)
			session.Close()
			if err != nil {
				observability.UserSyncs().WithLabelValues("error").Inc()
				return err
			}
			s.reportUserSyncResult(spanCtx, chatID, result.updates, result.matched)
			return nil

		case portal.LoginBadCredentials:
			session.Close()
			s.suspendMember(spanCtx, user)
			observability.UserSyncs().WithLabelValues("bad_credentials").Inc()
			return nil

		case portal.LoginPortalDown:
			session.Close()
			if attempt < len(s.cfg.RetryDelays) {
				delay := s.cfg.RetryDelays[attempt]
				s.logger.Info().Dur("delay", delay).Int("attempt", attempt+1).Msg("portal down, will retry")
				if err := s.sleep(spanCtx, delay); err != nil {
					return err
				}
				continue
			}
			observability.UserSyncs().WithLabelValues("portal_down").Inc()
			s.notifier.Send(spanCtx, chatID, models.NotificationSync,
				"The portal is not responding right now. Please try again later.")
			return nil
		}
	}
	return nil
}

func (s *syncService) reportUserSyncResult(ctx context.Context, chatID int64, updates, matched int) {
	switch {
	case updates > 0:
		observability.UserSyncs().WithLabelValues("updated").Inc()
		noun := "updates"
		if updates == 1 {
			noun = "update"
		}
		s.notifier.Send(ctx, chatID, models.NotificationSync,
			fmt.Sprintf("Sync finished: %d new %s applied.", updates, noun))
	case matched == 0:
		observability.UserSyncs().WithLabelValues("not_released").Inc()
		s.notifier.Send(ctx, chatID, models.NotificationSync,
			"Your results are not published on the portal yet. You will be notified as soon as they appear.")
	default:
		observability.UserSyncs().WithLabelValues("no_updates").Inc()
		s.notifier.Send(ctx, chatID, models.NotificationSync,
			"Checked the portal: no new updates since the last sync.")
	}
}

// SweepEnabled reads the persisted toggle, falling back to the configured
// default when it was never set.
func (s *syncService) SweepEnabled(ctx context.Context) (bool, error) {
	setting, err := s.settings.Get(ctx, models.SettingSweepEnabled)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.cfg.SweepEnabledByDefault, nil
		}
		return false, err
	}
	return setting.Value == "true", nil
}

func (s *syncService) SetSweepEnabled(ctx context.Context, enabled bool) error {
	value := "false"
	if enabled {
		value = "true"
	}
	return s.settings.Set(ctx, models.SettingSweepEnabled, value, "Gates the periodic grade sweep.")
}

func (s *syncService) userOnCooldown(ctx context.Context, chatID int64) (bool, error) {
	if s.redis != nil {
		key := userSyncCooldownKeyPrefix + strconv.FormatInt(chatID, 10)
		exists, err := s.redis.Exists(ctx, key).Result()
		if err == nil && exists > 0 {
			return true, nil
		}
		if err != nil {
			s.logger.Warn().Err(err).Msg("redis cooldown check failed, falling back to audit trail")
		}
	}

	since := s.now().Add(-s.cfg.UserSyncCooldown)
	entry, err := s.audit.LatestSince(ctx, chatID, models.AuditRefreshRequested, since)
	if err != nil {
		return false, fmt.Errorf("check sync cooldown: %w", err)
	}
	return entry != nil, nil
}

// inMaintenanceWindow reports whether the portal-local wall clock falls in
// the nightly maintenance window.
func (s *syncService) inMaintenanceWindow() bool {
	hour := s.now().In(s.location).Hour()
	start, end := s.cfg.MaintenanceStartHour, s.cfg.MaintenanceEndHour
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

var yearNumberRe = regexp.MustCompile(`\d+`)

var romanYearNumbers = map[string]int{
	"i": 1, "ii": 2, "iii": 3, "iv": 4, "v": 5, "vi": 6, "vii": 7, "viii": 8,
}

// matchesYear reports whether a parsed row belongs to the requested year
// scope. Scope values may use digits ("3", "Year 3") or roman numerals
// ("Year III"); an empty scope matches everything.
func matchesYear(yearLevel, academicYear, scope string) bool {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return true
	}

	// A small number names a year level; anything else is matched textually.
	scopeNumber := yearTokenNumber(scope)
	if scopeNumber >= 1 && scopeNumber <= 8 {
		return yearTokenNumber(yearLevel) == scopeNumber
	}

	lowerScope := strings.ToLower(scope)
	return strings.Contains(strings.ToLower(yearLevel), lowerScope) ||
		strings.Contains(strings.ToLower(academicYear), lowerScope)
}

func yearTokenNumber(value string) int {
	for _, field := range strings.Fields(strings.ToLower(value)) {
		trimmed := strings.Trim(field, ".,()")
		if n, ok := romanYearNumbers[trimmed]; ok {
			return n
		}
	}
	if digits := yearNumberRe.FindString(value); digits != "" {
		if n, err := strconv.Atoi(digits); err == nil {
			return n
		}
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
