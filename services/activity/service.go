// Package activity persists session activity and filter decisions for
// audit, off the request path.
package activity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quorumhq/chatgate/models"
	"github.com/quorumhq/chatgate/repositories"
	"go.uber.org/zap"
)

// Service handles asynchronous activity logging
type Service struct {
	activityRepo repositories.ActivityRepository
	logger       *zap.Logger
	eventChan    chan *models.ActivityLog
	workerCount  int
	bufferSize   int
	wg           sync.WaitGroup
	started      bool
	mu           sync.Mutex
}

// Config holds configuration for the activity Service
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  10000,
		WorkerCount: 5,
	}
}

// NewService creates a new activity Service instance
func NewService(activityRepo repositories.ActivityRepository, logger *zap.Logger, config Config) *Service {
	return &Service{
		activityRepo: activityRepo,
		logger:       logger,
		eventChan:    make(chan *models.ActivityLog, config.BufferSize),
		workerCount:  config.WorkerCount,
		bufferSize:   config.BufferSize,
	}
}

// Start starts the background workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("activity service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started activity service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop gracefully stops the service, waiting for pending events.
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("activity service not started")
	}
	s.started = false
	s.mu.Unlock()

	s.logger.Info("stopping activity service", zap.Int("pending_events", len(s.eventChan)))

	close(s.eventChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("activity service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("activity service stop timeout after %v", timeout)
	}
}

// Log enqueues an activity record without blocking the request path.
// A full buffer drops the event with a warning.
func (s *Service) Log(log *models.ActivityLog) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("activity service not started")
	}
	s.mu.Unlock()

	select {
	case s.eventChan <- log:
		return nil
	default:
		s.logger.Warn("activity event channel full, dropping event",
			zap.String("action", string(log.Action)),
			zap.String("user_id", log.UserID.String()))
		return fmt.Errorf("activity event buffer full")
	}
}

// worker processes events from the channel
func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("activity worker started", zap.Int("worker_id", id))

	for log := range s.eventChan {
		if err := s.processEvent(log); err != nil {
			s.logger.Error("failed to persist activity event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", string(log.Action)))
		}
	}

	s.logger.Debug("activity worker stopped", zap.Int("worker_id", id))
}

// processEvent persists a single activity record
func (s *Service) processEvent(log *models.ActivityLog) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.activityRepo.Insert(ctx, log); err != nil {
		return fmt.Errorf("failed to insert activity log: %w", err)
	}

	return nil
}

// Stats represents activity service statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
}

// GetStats returns statistics about the activity service
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started,
	}
}

// Convenience methods for logging common events

// LogMessageBlocked records a filter veto. This record is the audit
// trail for FILTER_BLOCKED and must never be silently swallowed by
// callers: a failed enqueue is surfaced as an error.
func (s *Service) LogMessageBlocked(auth *models.AuthContext, flags []string, requestID, ipAddress, userAgent string) error {
	log := models.NewActivityLog(auth.UserID, models.ActivityActionMessageBlocked, models.ActivityStatusBlocked)
	log.WithCompany(auth.CompanyID)
	log.WithFlags(flags)
	log.WithRequest(requestID, ipAddress, userAgent)
	return s.Log(log)
}

// LogMessageSent records a message that passed the filter
func (s *Service) LogMessageSent(auth *models.AuthContext, provider, requestID, ipAddress, userAgent string) error {
	log := models.NewActivityLog(auth.UserID, models.ActivityActionMessageSent, models.ActivityStatusOK)
	log.WithCompany(auth.CompanyID)
	log.WithDetails(map[string]interface{}{"provider": provider})
	log.WithRequest(requestID, ipAddress, userAgent)
	return s.Log(log)
}

// LogLogin records a session issuance
func (s *Service) LogLogin(userID uuid.UUID, companyID *uuid.UUID, requestID, ipAddress, userAgent string) error {
	log := models.NewActivityLog(userID, models.ActivityActionLogin, models.ActivityStatusOK)
	log.WithCompany(companyID)
	log.WithRequest(requestID, ipAddress, userAgent)
	return s.Log(log)
}

// LogLogout records a session deletion
func (s *Service) LogLogout(userID uuid.UUID, companyID *uuid.UUID, status, requestID, ipAddress, userAgent string) error {
	log := models.NewActivityLog(userID, models.ActivityActionLogout, status)
	log.WithCompany(companyID)
	log.WithRequest(requestID, ipAddress, userAgent)
	return s.Log(log)
}

// LogRoleSwitch records a developer test-role change
func (s *Service) LogRoleSwitch(userID uuid.UUID, companyID *uuid.UUID, testRole string, effectiveLevel int, requestID string) error {
	log := models.NewActivityLog(userID, models.ActivityActionRoleSwitch, models.ActivityStatusOK)
	log.WithCompany(companyID)
	log.WithDetails(map[string]interface{}{
		"test_role":       testRole,
		"effective_level": effectiveLevel,
	})
	log.WithRequest(requestID, "", "")
	return s.Log(log)
}
