// Package app orchestrates submission intake and vote handling between the
// platform adapters, the persistence store and the sheets gateway. Local
// persistence is the source of truth; spreadsheet sync is best-effort and
// never fails a user-facing action.
package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/metrics"
	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/store"
)

var (
	// ErrMissionNotActive rejects submissions to closed or exported missions.
	ErrMissionNotActive = errors.New("mission is no longer accepting submissions")
	// ErrInvalidScore rejects votes outside the 1-5 domain.
	ErrInvalidScore = errors.New("score must be between 1 and 5")
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>()]+`)

// ExtractURLs returns the URLs found in content, in order of appearance. The
// first one is the canonical submission link.
func ExtractURLs(content string) []string {
	return urlPattern.FindAllString(content, -1)
}

// SyncGateway is the incremental sync surface the service drives.
type SyncGateway interface {
	Configured() bool
	AppendRow(ctx context.Context, mission store.Mission, sub store.Submission) error
	UpdateVotes(ctx context.Context, missionID, submissionID string, votes []store.Vote) error
	AppendTelegramRow(ctx context.Context, sub store.Submission) error
}

// ProcessedCache is an optional fast-path dedup of redelivered platform
// events. The store's message-ID lookup remains the authoritative check.
type ProcessedCache interface {
	Seen(ctx context.Context, messageID string) (bool, error)
}

type Service struct {
	store *store.FileStore
	sync  SyncGateway // nil when sheets sync is not configured
	cache ProcessedCache
	log   *logrus.Logger

	mu       sync.Mutex
	rowLocks map[string]*sync.Mutex // per-submission sync serialization
}

func New(st *store.FileStore, gateway SyncGateway, cache ProcessedCache, log *logrus.Logger) *Service {
	return &Service{
		store:    st,
		sync:     gateway,
		cache:    cache,
		log:      log,
		rowLocks: map[string]*sync.Mutex{},
	}
}

func (s *Service) Store() *store.FileStore {
	return s.store
}

// SubmitInput is a platform-agnostic inbound submission event.
type SubmitInput struct {
	MessageID   string
	ChannelID   string
	ThreadID    string
	ThreadTitle string // used to register the mission on first submission
	UserID      string
	UserTag     string
	Content     string
	Source      string

	// DefaultDeadline applies when the submission implicitly registers the
	// mission for its thread.
	DefaultDeadline time.Time
}

// SubmitEntry registers the thread's mission if absent, gates on mission
// status, persists the submission and appends its sheet row best-effort.
// Re-delivered messages return the existing record unchanged.
func (s *Service) SubmitEntry(ctx context.Context, in SubmitInput) (store.Submission, error) {
	if s.cache != nil {
		if seen, err := s.cache.Seen(ctx, in.MessageID); err != nil {
			s.log.WithError(err).Warn("processed cache unavailable")
		} else if seen {
			if existing, ok, err := s.store.GetSubmissionByMessage(in.MessageID); err == nil && ok {
				return existing, nil
			}
		}
	}
	if existing, ok, err := s.store.GetSubmissionByMessage(in.MessageID); err != nil {
		return store.Submission{}, err
	} else if ok {
		return existing, nil
	}

	mission, ok, err := s.store.GetMissionByThread(in.ThreadID)
	if err != nil {
		return store.Submission{}, err
	}
	if !ok {
		mission, err = s.store.RegisterMission(in.ThreadID, in.ThreadTitle, "", in.DefaultDeadline)
		if err != nil {
			return store.Submission{}, err
		}
	}
	if mission.Status != store.MissionActive {
		metrics.SubmissionsRejected.Inc()
		return store.Submission{}, ErrMissionNotActive
	}

	sub, err := s.store.CreateSubmission(store.SubmissionInput{
		MessageID: in.MessageID,
		ChannelID: in.ChannelID,
		ThreadID:  in.ThreadID,
		MissionID: mission.ID,
		UserID:    in.UserID,
		UserTag:   in.UserTag,
		Content:   in.Content,
		URLs:      ExtractURLs(in.Content),
		Source:    in.Source,
	})
	if err != nil {
		return store.Submission{}, err
	}
	metrics.SubmissionsTotal.WithLabelValues(sub.Source).Inc()

	if s.sync != nil && s.sync.Configured() {
		if err := s.sync.AppendRow(ctx, mission, sub); err != nil {
			metrics.SyncFailuresTotal.WithLabelValues("append").Inc()
			s.log.WithError(err).WithField("submission", sub.ID).Error("sheet append failed")
		}
		if sub.Source == store.SourceTelegram {
			if err := s.sync.AppendTelegramRow(ctx, sub); err != nil {
				metrics.SyncFailuresTotal.WithLabelValues("append_telegram").Inc()
				s.log.WithError(err).WithField("submission", sub.ID).Error("telegram sheet append failed")
			}
		}
	}
	return sub, nil
}

// RecordVote upserts a judge's score for the submission behind messageID and
// pushes the new aggregates to the sheet.
func (s *Service) RecordVote(ctx context.Context, messageID, judgeID string, score int) error {
	if score < 1 || score > 5 {
		return ErrInvalidScore
	}
	sub, ok, err := s.store.GetSubmissionByMessage(messageID)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrSubmissionNotFound
	}
	if err := s.store.RecordVote(sub.ID, judgeID, score); err != nil {
		return err
	}
	metrics.VotesTotal.Inc()
	s.syncVotes(ctx, sub.MissionID, sub.ID)
	return nil
}

// RemoveVote deletes a judge's vote for the submission behind messageID.
func (s *Service) RemoveVote(ctx context.Context, messageID, judgeID string) error {
	sub, ok, err := s.store.GetSubmissionByMessage(messageID)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrSubmissionNotFound
	}
	if err := s.store.RemoveVote(sub.ID, judgeID); err != nil {
		return err
	}
	metrics.VoteRemovalsTotal.Inc()
	s.syncVotes(ctx, sub.MissionID, sub.ID)
	return nil
}

// syncVotes pushes the submission's current vote aggregates to the sheet.
// Calls for the same submission are serialized so rapid reaction events
// cannot interleave their read-modify-write against the remote row.
func (s *Service) syncVotes(ctx context.Context, missionID, submissionID string) {
	if s.sync == nil || !s.sync.Configured() {
		return
	}
	lock := s.rowLock(submissionID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock so the last writer pushes the final state.
	sub, ok, err := s.store.GetSubmissionByID(submissionID)
	if err != nil || !ok {
		return
	}
	if err := s.sync.UpdateVotes(ctx, missionID, submissionID, sub.Votes); err != nil {
		metrics.SyncFailuresTotal.WithLabelValues("update_votes").Inc()
		s.log.WithError(err).WithField("submission", submissionID).Error("vote sync failed")
	}
}

func (s *Service) rowLock(submissionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.rowLocks[submissionID]
	if !ok {
		lock = &sync.Mutex{}
		s.rowLocks[submissionID] = lock
	}
	return lock
}

// CreateMission registers a mission explicitly, as done by the brief flow.
func (s *Service) CreateMission(threadID, title, description string, deadline time.Time) (store.Mission, error) {
	return s.store.RegisterMission(threadID, title, description, deadline)
}

// ExtendDeadline moves an active mission's deadline forward by d.
func (s *Service) ExtendDeadline(threadID string, d time.Duration) (time.Time, error) {
	mission, ok, err := s.store.GetMissionByThread(threadID)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, store.ErrMissionNotFound
	}
	deadline := mission.Deadline.Add(d)
	updated, err := s.store.UpdateMissionDeadline(mission.ID, deadline)
	if err != nil {
		return time.Time{}, err
	}
	if !updated {
		return time.Time{}, fmt.Errorf("deadline can only change while the mission is active")
	}
	return deadline, nil
}
