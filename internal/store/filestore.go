package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/util"
)

var (
	ErrMissionNotFound    = errors.New("mission not found")
	ErrSubmissionNotFound = errors.New("submission not found")
)

const (
	missionsFile    = "missions.json"
	submissionsFile = "submissions.json"
)

// FileStore persists missions and submissions as two whole JSON documents on
// disk. Every mutation is a full load-mutate-save of the affected document;
// there are no partial updates. A single mutex serializes all access, so the
// store is safe for concurrent use within one process. Multiple processes
// sharing the same data directory are not supported.
type FileStore struct {
	mu  sync.Mutex
	dir string
	log *logrus.Logger
}

func NewFileStore(dir string, log *logrus.Logger) *FileStore {
	return &FileStore{dir: dir, log: log}
}

type missionsDoc struct {
	Missions []Mission `json:"missions"`
}

type submissionsDoc struct {
	Submissions []Submission `json:"submissions"`
}

// loadMissions reads the missions document. A missing file is an empty
// collection; a malformed file is an error surfaced to the caller.
func (s *FileStore) loadMissions() ([]Mission, error) {
	path := filepath.Join(s.dir, missionsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc missionsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc.Missions, nil
}

func (s *FileStore) saveMissions(missions []Mission) error {
	return s.writeDoc(missionsFile, missionsDoc{Missions: missions})
}

func (s *FileStore) loadSubmissions() ([]Submission, error) {
	path := filepath.Join(s.dir, submissionsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc submissionsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range doc.Submissions {
		if doc.Submissions[i].Source == "" {
			doc.Submissions[i].Source = SourceDiscord
		}
	}
	return doc.Submissions, nil
}

func (s *FileStore) saveSubmissions(subs []Submission) error {
	return s.writeDoc(submissionsFile, submissionsDoc{Submissions: subs})
}

func (s *FileStore) writeDoc(name string, doc any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RegisterMission creates a mission for the thread, or returns the existing
// one unchanged when the thread is already registered.
func (s *FileStore) RegisterMission(threadID, title, description string, deadline time.Time) (Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	missions, err := s.loadMissions()
	if err != nil {
		return Mission{}, err
	}
	for _, m := range missions {
		if m.ThreadID == threadID {
			return m, nil
		}
	}

	m := Mission{
		ID:          util.NewID("mission"),
		Title:       title,
		Description: description,
		ThreadID:    threadID,
		Deadline:    deadline,
		Status:      MissionActive,
		CreatedAt:   time.Now().UTC(),
	}
	missions = append(missions, m)
	if err := s.saveMissions(missions); err != nil {
		return Mission{}, err
	}
	s.log.WithFields(logrus.Fields{"mission": m.ID, "thread": threadID}).Info("mission registered")
	return m, nil
}

func (s *FileStore) GetMissionByThread(threadID string) (Mission, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	missions, err := s.loadMissions()
	if err != nil {
		return Mission{}, false, err
	}
	for _, m := range missions {
		if m.ThreadID == threadID {
			return m, true, nil
		}
	}
	return Mission{}, false, nil
}

func (s *FileStore) GetMissionByID(id string) (Mission, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	missions, err := s.loadMissions()
	if err != nil {
		return Mission{}, false, err
	}
	for _, m := range missions {
		if m.ID == id {
			return m, true, nil
		}
	}
	return Mission{}, false, nil
}

// GetMissionByAnnouncement resolves a mission from its Telegram announcement
// message, used to route channel replies back to the mission.
func (s *FileStore) GetMissionByAnnouncement(chatID int64, messageID int) (Mission, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	missions, err := s.loadMissions()
	if err != nil {
		return Mission{}, false, err
	}
	for _, m := range missions {
		if m.AnnounceChatID == chatID && m.AnnounceMessageID == messageID {
			return m, true, nil
		}
	}
	return Mission{}, false, nil
}

// SetMissionAnnouncement records the Telegram announcement linkage.
func (s *FileStore) SetMissionAnnouncement(id string, chatID int64, messageID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	missions, err := s.loadMissions()
	if err != nil {
		return err
	}
	for i := range missions {
		if missions[i].ID == id {
			missions[i].AnnounceChatID = chatID
			missions[i].AnnounceMessageID = messageID
			return s.saveMissions(missions)
		}
	}
	return ErrMissionNotFound
}

// UpdateMissionDeadline moves the deadline of an active mission. Returns false
// when the mission is missing or no longer active.
func (s *FileStore) UpdateMissionDeadline(id string, deadline time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	missions, err := s.loadMissions()
	if err != nil {
		return false, err
	}
	for i := range missions {
		if missions[i].ID == id {
			if missions[i].Status != MissionActive {
				return false, nil
			}
			missions[i].Deadline = deadline
			if err := s.saveMissions(missions); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// MarkMissionClosed transitions a mission to closed. Missing missions are
// logged and ignored.
func (s *FileStore) MarkMissionClosed(id string) error {
	return s.setStatus(id, MissionClosed)
}

// MarkMissionExported transitions a mission to its terminal exported state and
// stamps ExportedAt.
func (s *FileStore) MarkMissionExported(id string) error {
	return s.setStatus(id, MissionExported)
}

func (s *FileStore) setStatus(id string, status MissionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	missions, err := s.loadMissions()
	if err != nil {
		return err
	}
	for i := range missions {
		if missions[i].ID == id {
			if statusRank[status] < statusRank[missions[i].Status] {
				s.log.WithField("mission", id).Warnf("refusing status downgrade %s -> %s", missions[i].Status, status)
				return nil
			}
			missions[i].Status = status
			if status == MissionExported {
				now := time.Now().UTC()
				missions[i].ExportedAt = &now
			}
			return s.saveMissions(missions)
		}
	}
	s.log.WithField("mission", id).Warnf("status change to %s for unknown mission", status)
	return nil
}

// statusRank orders the one-way lifecycle; setStatus never moves backwards.
var statusRank = map[MissionStatus]int{
	MissionActive:   0,
	MissionClosed:   1,
	MissionExported: 2,
}

func (s *FileStore) GetActiveMissions() ([]Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	missions, err := s.loadMissions()
	if err != nil {
		return nil, err
	}
	var out []Mission
	for _, m := range missions {
		if m.Status == MissionActive {
			out = append(out, m)
		}
	}
	return out, nil
}

// GetMissionsPastDeadline returns active missions whose deadline has elapsed:
// the close-eligibility predicate.
func (s *FileStore) GetMissionsPastDeadline(now time.Time) ([]Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	missions, err := s.loadMissions()
	if err != nil {
		return nil, err
	}
	var out []Mission
	for _, m := range missions {
		if m.Status == MissionActive && m.PastDeadline(now) {
			out = append(out, m)
		}
	}
	return out, nil
}

// GetMissionsAwaitingExport returns missions past deadline that are not yet
// exported: the export-eligibility predicate. This includes missions already
// closed by a previous sweep whose export failed, so export is retried.
func (s *FileStore) GetMissionsAwaitingExport(now time.Time) ([]Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	missions, err := s.loadMissions()
	if err != nil {
		return nil, err
	}
	var out []Mission
	for _, m := range missions {
		if m.Status != MissionExported && m.PastDeadline(now) {
			out = append(out, m)
		}
	}
	return out, nil
}

// SubmissionInput carries the fields of a new submission as provided by the
// platform adapters.
type SubmissionInput struct {
	MessageID string
	ChannelID string
	ThreadID  string
	MissionID string
	UserID    string
	UserTag   string
	Content   string
	URLs      []string
	Source    string
}

func (s *FileStore) CreateSubmission(in SubmissionInput) (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.loadSubmissions()
	if err != nil {
		return Submission{}, err
	}

	source := in.Source
	if source == "" {
		source = SourceDiscord
	}
	sub := Submission{
		ID:          util.NewID("sub"),
		MessageID:   in.MessageID,
		ChannelID:   in.ChannelID,
		ThreadID:    in.ThreadID,
		MissionID:   in.MissionID,
		UserID:      in.UserID,
		UserTag:     in.UserTag,
		Content:     in.Content,
		URLs:        in.URLs,
		Votes:       []Vote{},
		SubmittedAt: time.Now().UTC(),
		Source:      source,
	}
	subs = append(subs, sub)
	if err := s.saveSubmissions(subs); err != nil {
		return Submission{}, err
	}
	s.log.WithFields(logrus.Fields{
		"submission": sub.ID,
		"mission":    sub.MissionID,
		"user":       sub.UserID,
		"source":     sub.Source,
	}).Info("submission created")
	return sub, nil
}

func (s *FileStore) GetSubmissionByMessage(messageID string) (Submission, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.loadSubmissions()
	if err != nil {
		return Submission{}, false, err
	}
	for _, sub := range subs {
		if sub.MessageID == messageID {
			return sub, true, nil
		}
	}
	return Submission{}, false, nil
}

func (s *FileStore) GetSubmissionByID(id string) (Submission, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.loadSubmissions()
	if err != nil {
		return Submission{}, false, err
	}
	for _, sub := range subs {
		if sub.ID == id {
			return sub, true, nil
		}
	}
	return Submission{}, false, nil
}

func (s *FileStore) GetSubmissionsByMission(missionID string) ([]Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.loadSubmissions()
	if err != nil {
		return nil, err
	}
	var out []Submission
	for _, sub := range subs {
		if sub.MissionID == missionID {
			out = append(out, sub)
		}
	}
	return out, nil
}

// RecordVote upserts a judge's vote on a submission. A second vote from the
// same judge overwrites score and timestamp rather than appending.
func (s *FileStore) RecordVote(submissionID, judgeID string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.loadSubmissions()
	if err != nil {
		return err
	}
	for i := range subs {
		if subs[i].ID != submissionID {
			continue
		}
		now := time.Now().UTC()
		for j := range subs[i].Votes {
			if subs[i].Votes[j].JudgeID == judgeID {
				subs[i].Votes[j].Score = score
				subs[i].Votes[j].Timestamp = now
				return s.saveSubmissions(subs)
			}
		}
		subs[i].Votes = append(subs[i].Votes, Vote{JudgeID: judgeID, Score: score, Timestamp: now})
		return s.saveSubmissions(subs)
	}
	s.log.WithField("submission", submissionID).Error("vote for unknown submission")
	return ErrSubmissionNotFound
}

// RemoveVote deletes a judge's vote. Removing an absent vote is a no-op.
func (s *FileStore) RemoveVote(submissionID, judgeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.loadSubmissions()
	if err != nil {
		return err
	}
	for i := range subs {
		if subs[i].ID != submissionID {
			continue
		}
		for j := range subs[i].Votes {
			if subs[i].Votes[j].JudgeID == judgeID {
				subs[i].Votes = append(subs[i].Votes[:j], subs[i].Votes[j+1:]...)
				return s.saveSubmissions(subs)
			}
		}
		return nil
	}
	return nil
}

// MarkSubmissionsExported flips the exported flag on every submission of a
// mission, as part of the mission's export transition.
func (s *FileStore) MarkSubmissionsExported(missionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.loadSubmissions()
	if err != nil {
		return err
	}
	changed := false
	for i := range subs {
		if subs[i].MissionID == missionID && !subs[i].Exported {
			subs[i].Exported = true
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.saveSubmissions(subs)
}
