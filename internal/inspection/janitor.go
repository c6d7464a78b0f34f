package inspection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSweepSchedule runs the session sweep every five minutes
const DefaultSweepSchedule = "@every 5m"

// SessionJanitor closes live sessions whose article is no longer CHECKING in
// the store, e.g. after another replica decided or released it.
type SessionJanitor struct {
	cron     *cron.Cron
	repo     Repository
	sessions *SessionStore
	timeout  time.Duration
	logger   *zap.Logger
	mu       sync.Mutex
	running  bool
}

func NewSessionJanitor(repo Repository, sessions *SessionStore, timeout time.Duration, logger *zap.Logger) *SessionJanitor {
	return &SessionJanitor{
		cron:     cron.New(),
		repo:     repo,
		sessions: sessions,
		timeout:  timeout,
		logger:   logger,
	}
}

// Start schedules the sweep with a standard cron expression or descriptor
func (j *SessionJanitor) Start(ctx context.Context, schedule string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return fmt.Errorf("session janitor already running")
	}
	if _, err := j.cron.AddFunc(schedule, func() { j.run(ctx) }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	j.logger.Info("Starting session janitor", zap.String("schedule", schedule))
	j.cron.Start()
	j.running = true
	return nil
}

// Stop waits for a running sweep to finish
func (j *SessionJanitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.running {
		return
	}
	<-j.cron.Stop().Done()
	j.running = false
}

func (j *SessionJanitor) run(ctx context.Context) {
	closed, err := j.Sweep(ctx)
	if err != nil {
		j.logger.Error("Session sweep failed", zap.Int("closed", closed), zap.Error(err))
		return
	}
	if closed > 0 {
		j.logger.Info("Session sweep closed stale sessions", zap.Int("closed", closed))
	}
}

// Sweep checks every live session against the persisted article status and
// returns how many sessions it closed. A failure for one tenant does not stop
// the others.
func (j *SessionJanitor) Sweep(ctx context.Context) (int, error) {
	byTenant := make(map[string][]LiveSession)
	var tenants []string
	for _, live := range j.sessions.List() {
		if _, ok := byTenant[live.TenantID]; !ok {
			tenants = append(tenants, live.TenantID)
		}
		byTenant[live.TenantID] = append(byTenant[live.TenantID], live)
	}

	closed := 0
	var firstErr error
	for _, tenantID := range tenants {
		n, err := j.sweepTenant(ctx, tenantID, byTenant[tenantID])
		closed += n
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return closed, firstErr
}

func (j *SessionJanitor) sweepTenant(ctx context.Context, tenantID string, live []LiveSession) (int, error) {
	ids := make([]int64, len(live))
	for i, l := range live {
		ids[i] = l.ArticleID
	}

	lookupCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	articles, err := j.repo.GetArticles(lookupCtx, tenantID, ids)
	if err != nil {
		return 0, upstream("load articles for session sweep", err)
	}

	status := make(map[int64]ArticleStatus, len(articles))
	for _, a := range articles {
		status[a.ID] = a.Status
	}

	closed := 0
	for _, l := range live {
		if s, ok := status[l.ArticleID]; ok && s == StatusChecking {
			continue
		}
		if j.sessions.CloseIf(tenantID, l.ArticleID, l.Session) {
			closed++
			j.logger.Info("Closed stale inspection session",
				zap.String("tenant_id", tenantID),
				zap.Int64("article_id", l.ArticleID),
				zap.String("status", string(status[l.ArticleID])))
		}
	}
	return closed, nil
}
