package services

import (
	"fmt"
	"sync"
	"time"

	"fiduciaire/pkg/config"
	"fiduciaire/pkg/logger"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CleanupScheduler periodic maintenance: stale unverified accounts and
// old read notifications.
type CleanupScheduler struct {
	users         *UserService
	notifications *NotificationService
	cfg           config.AccountConfig
	cron          *cron.Cron
	mu            sync.Mutex
	running       bool
	now           func() time.Time

	statusMu   sync.Mutex
	lastRun    *time.Time
	lastReport CleanupReport
	lastError  string
}

// CleanupReport result of one run
type CleanupReport struct {
	UnverifiedAccounts int64 `json:"unverified_accounts"`
	Notifications      int64 `json:"notifications"`
}

// SchedulerStatus snapshot for the system endpoint
type SchedulerStatus struct {
	Running    bool          `json:"running"`
	Cron       string        `json:"cron"`
	NextRun    *time.Time    `json:"next_run,omitempty"`
	LastRun    *time.Time    `json:"last_run,omitempty"`
	LastReport CleanupReport `json:"last_report"`
	LastError  string        `json:"last_error,omitempty"`
}

func NewCleanupScheduler(users *UserService, notifications *NotificationService, cfg config.AccountConfig) *CleanupScheduler {
	return &CleanupScheduler{
		users:         users,
		notifications: notifications,
		cfg:           cfg,
		cron:          cron.New(),
		now:           time.Now,
	}
}

// Start registers the job on cfg.CleanupCron and starts the cron.
func (s *CleanupScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("le planificateur de nettoyage est déjà démarré")
	}

	if _, err := s.cron.AddFunc(s.cfg.CleanupCron, s.runLogged); err != nil {
		return fmt.Errorf("expression cron %q invalide: %w", s.cfg.CleanupCron, err)
	}
	s.cron.Start()
	s.running = true

	logger.Component("cleanup").Infof("Cleanup scheduler started (%s)", s.cfg.CleanupCron)
	return nil
}

// Stop waits for a running job to finish.
func (s *CleanupScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	logger.Component("cleanup").Info("Cleanup scheduler stopped")
}

// RunOnce executes the maintenance immediately.
func (s *CleanupScheduler) RunOnce() (report CleanupReport, err error) {
	now := s.now()
	defer func() {
		s.statusMu.Lock()
		s.lastRun = &now
		s.lastReport = report
		s.lastError = ""
		if err != nil {
			s.lastError = err.Error()
		}
		s.statusMu.Unlock()
	}()

	n, err := s.users.PurgeUnverified(now.Add(-s.cfg.UnverifiedRetention))
	if err != nil {
		return report, fmt.Errorf("purge des comptes non vérifiés: %w", err)
	}
	report.UnverifiedAccounts = n

	n, err = s.notifications.PurgeReadBefore(now.Add(-s.cfg.NotificationRetention))
	if err != nil {
		return report, fmt.Errorf("purge des notifications: %w", err)
	}
	report.Notifications = n
	return report, nil
}

// Status running state, next planned run and outcome of the last run.
func (s *CleanupScheduler) Status() SchedulerStatus {
	s.mu.Lock()
	status := SchedulerStatus{Running: s.running, Cron: s.cfg.CleanupCron}
	if s.running {
		for _, e := range s.cron.Entries() {
			next := e.Next
			status.NextRun = &next
			break
		}
	}
	s.mu.Unlock()

	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	status.LastRun = s.lastRun
	status.LastReport = s.lastReport
	status.LastError = s.lastError
	return status
}

func (s *CleanupScheduler) runLogged() {
	log := logger.Component("cleanup")
	report, err := s.RunOnce()
	if err != nil {
		log.WithError(err).Error("Cleanup run failed")
		return
	}
	if report.UnverifiedAccounts > 0 || report.Notifications > 0 {
		log.WithFields(logrus.Fields{
			"unverified_accounts": report.UnverifiedAccounts,
			"notifications":       report.Notifications,
		}).Info("Cleanup run purged records")
	}
}
