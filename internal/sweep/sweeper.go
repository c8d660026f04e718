// Package sweep runs the periodic deadline sweep: missions past deadline get
// their thread closed and their sheet exported, with per-mission error
// isolation so one failure never aborts the cycle.
package sweep

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/metrics"
	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/sheets"
	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/store"
)

// Store is the slice of the persistence store the sweeper drives.
type Store interface {
	GetMissionsAwaitingExport(now time.Time) ([]store.Mission, error)
	GetSubmissionsByMission(missionID string) ([]store.Submission, error)
	MarkMissionClosed(id string) error
	MarkMissionExported(id string) error
	MarkSubmissionsExported(missionID string) error
}

// Exporter performs the batch export of a mission.
type Exporter interface {
	Configured() bool
	ExportMission(ctx context.Context, mission store.Mission, subs []store.Submission) sheets.ExportResult
}

// ThreadCloser locks the mission's discussion thread.
type ThreadCloser interface {
	CloseThread(ctx context.Context, threadID string) error
}

// Archiver uploads a snapshot of an exported mission. Optional; may be nil.
type Archiver interface {
	Upload(ctx context.Context, mission store.Mission, subs []store.Submission) error
}

type Sweeper struct {
	store    Store
	exporter Exporter
	threads  ThreadCloser
	archive  Archiver
	interval time.Duration
	log      *logrus.Logger

	done chan struct{}
	wg   sync.WaitGroup
}

func New(st Store, exporter Exporter, threads ThreadCloser, archive Archiver, interval time.Duration, log *logrus.Logger) *Sweeper {
	return &Sweeper{
		store:    st,
		exporter: exporter,
		threads:  threads,
		archive:  archive,
		interval: interval,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Start launches the periodic sweep loop.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				s.RunCycle(context.Background())
			}
		}
	}()
	s.log.WithField("interval", s.interval.String()).Info("deadline sweeper started")
}

// Stop cancels the periodic timer. An in-flight cycle is allowed to complete.
func (s *Sweeper) Stop() {
	close(s.done)
	s.wg.Wait()
}

// RunCycle performs one sweep. Missions are processed sequentially to avoid
// interleaved writes against the same spreadsheet.
func (s *Sweeper) RunCycle(ctx context.Context) {
	if s.exporter == nil || !s.exporter.Configured() {
		s.log.Debug("sweep skipped, sheets sync not configured")
		return
	}
	metrics.SweepCyclesTotal.Inc()

	missions, err := s.store.GetMissionsAwaitingExport(time.Now())
	if err != nil {
		s.log.WithError(err).Error("sweep: load missions")
		return
	}
	for _, m := range missions {
		if err := s.processMission(ctx, m); err != nil {
			s.log.WithError(err).WithField("mission", m.ID).Error("sweep: mission processing failed")
		}
	}
}

func (s *Sweeper) processMission(ctx context.Context, m store.Mission) error {
	log := s.log.WithFields(logrus.Fields{"mission": m.ID, "title": m.Title})

	// Close the thread only on the first pass; export retries skip it.
	if m.Status == store.MissionActive {
		if err := s.threads.CloseThread(ctx, m.ThreadID); err != nil {
			log.WithError(err).Warn("sweep: thread close failed, exporting anyway")
		} else {
			if err := s.store.MarkMissionClosed(m.ID); err != nil {
				return err
			}
			m.Status = store.MissionClosed
			log.Info("mission closed")
		}
	}

	subs, err := s.store.GetSubmissionsByMission(m.ID)
	if err != nil {
		return err
	}

	res := s.exporter.ExportMission(ctx, m, subs)
	if !res.Success {
		metrics.ExportsTotal.WithLabelValues("failure").Inc()
		log.WithField("error", res.Err).Error("sweep: export failed, will retry next cycle")
		return nil
	}

	if err := s.store.MarkMissionExported(m.ID); err != nil {
		return err
	}
	if err := s.store.MarkSubmissionsExported(m.ID); err != nil {
		return err
	}
	metrics.ExportsTotal.WithLabelValues("success").Inc()
	log.WithField("rows", res.RowCount).Info("mission exported")

	if s.archive != nil {
		if err := s.archive.Upload(ctx, m, subs); err != nil {
			log.WithError(err).Warn("sweep: archive upload failed")
		}
	}
	return nil
}
