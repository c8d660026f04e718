// Package sheets projects mission state onto spreadsheet rows. While a
// mission is active, rows are appended and vote aggregates updated in place;
// at export time the whole sheet is recomputed and rewritten. The remote
// backend is reached through the narrow ValuesAPI so it can be faked in tests.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/store"
)

// ErrMissionNotActive is returned when an incremental write targets a mission
// that is no longer accepting live updates.
var ErrMissionNotActive = errors.New("mission is not active")

// ValuesAPI is the slice of the spreadsheet backend the gateway needs. All
// coordinates are zero-based.
type ValuesAPI interface {
	// EnsureSheet creates the named sheet (tab) if absent and reports
	// whether it was created.
	EnsureSheet(ctx context.Context, title string) (bool, error)
	ReadAll(ctx context.Context, title string) ([][]string, error)
	Append(ctx context.Context, title string, row []string) error
	Update(ctx context.Context, title string, startRow, startCol int, rows [][]string) error
	Clear(ctx context.Context, title string) error
}

// MissionSource resolves mission records for vote updates.
type MissionSource interface {
	GetMissionByID(id string) (store.Mission, bool, error)
}

// ExportResult is the outcome of a batch export. Remote errors are carried
// here rather than raised, so the sweep loop never crashes on sync failure.
type ExportResult struct {
	Success  bool
	RowCount int
	Err      string
}

type Gateway struct {
	api      ValuesAPI
	missions MissionSource
	log      *logrus.Logger

	mu    sync.Mutex
	ready map[string]bool // sheets known to exist with a current header
}

func NewGateway(api ValuesAPI, missions MissionSource, log *logrus.Logger) *Gateway {
	return &Gateway{api: api, missions: missions, log: log, ready: map[string]bool{}}
}

// Configured reports whether a spreadsheet backend is attached. Callers skip
// sync entirely when it is not.
func (g *Gateway) Configured() bool {
	return g != nil && g.api != nil
}

// AppendRow appends one submission row to the mission's sheet, creating the
// sheet with a header row if absent. Fails without touching the remote sheet
// when the mission is not active.
func (g *Gateway) AppendRow(ctx context.Context, mission store.Mission, sub store.Submission) error {
	if !g.Configured() {
		return fmt.Errorf("sheets sync not configured")
	}
	if mission.Status != store.MissionActive {
		return ErrMissionNotActive
	}
	title := SanitizeSheetTitle(mission.Title)
	if err := g.ensureMissionSheet(ctx, title); err != nil {
		return err
	}
	if err := g.api.Append(ctx, title, incrementalRow(sub)); err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return nil
}

// UpdateVotes rewrites the vote aggregate cells of a submission's row. A
// missing mission, an inactive mission or a missing row is a logged no-op.
func (g *Gateway) UpdateVotes(ctx context.Context, missionID, submissionID string, votes []store.Vote) error {
	if !g.Configured() {
		return fmt.Errorf("sheets sync not configured")
	}
	mission, ok, err := g.missions.GetMissionByID(missionID)
	if err != nil {
		return err
	}
	if !ok {
		g.log.WithField("mission", missionID).Warn("vote update for unknown mission")
		return nil
	}
	if mission.Status != store.MissionActive {
		g.log.WithField("mission", missionID).Debug("vote update skipped, mission not active")
		return nil
	}

	title := SanitizeSheetTitle(mission.Title)
	rows, err := g.api.ReadAll(ctx, title)
	if err != nil {
		return fmt.Errorf("read sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}
	schema := newRowSchema(rows[0])
	idCol, ok := schema.col("Submission ID")
	if !ok {
		idCol = 0
	}

	rowIdx := -1
	for i := 1; i < len(rows); i++ {
		if idCol < len(rows[i]) && rows[i][idCol] == submissionID {
			rowIdx = i
			break
		}
	}
	if rowIdx == -1 {
		g.log.WithField("submission", submissionID).Warn("vote update for submission with no sheet row")
		return nil
	}

	cells := map[string]string{
		"Vote Count":    fmt.Sprintf("%d", len(votes)),
		"Average Score": AverageScore(votes),
		"Votes":         serializeVotes(votes),
	}
	countCol, _ := schema.col("Vote Count")
	avgCol, _ := schema.col("Average Score")
	votesCol, haveVotesCol := schema.col("Votes")
	if haveVotesCol && avgCol == countCol+1 && votesCol == avgCol+1 {
		return g.api.Update(ctx, title, rowIdx, countCol,
			[][]string{{cells["Vote Count"], cells["Average Score"], cells["Votes"]}})
	}
	// Non-contiguous layout (foreign sheet edits): update cell by cell.
	for name, value := range cells {
		col, ok := schema.col(name)
		if !ok {
			continue
		}
		if err := g.api.Update(ctx, title, rowIdx, col, [][]string{{value}}); err != nil {
			return fmt.Errorf("update %s: %w", name, err)
		}
	}
	return nil
}

// ExportMission clears and rewrites the mission's sheet with the full batch
// row set. Idempotent; safe to re-run after a failed attempt. A mission with
// no submissions succeeds with zero rows and no sheet mutation.
func (g *Gateway) ExportMission(ctx context.Context, mission store.Mission, subs []store.Submission) ExportResult {
	if !g.Configured() {
		return ExportResult{Err: "sheets sync not configured"}
	}
	if len(subs) == 0 {
		return ExportResult{Success: true}
	}

	title := SanitizeSheetTitle(mission.Title)
	if _, err := g.api.EnsureSheet(ctx, title); err != nil {
		return ExportResult{Err: fmt.Sprintf("ensure sheet: %v", err)}
	}

	header, rows := BatchRows(subs)
	all := make([][]string, 0, len(rows)+1)
	all = append(all, header)
	all = append(all, rows...)

	if err := g.api.Clear(ctx, title); err != nil {
		return ExportResult{Err: fmt.Sprintf("clear sheet: %v", err)}
	}
	if err := g.api.Update(ctx, title, 0, 0, all); err != nil {
		return ExportResult{Err: fmt.Sprintf("write rows: %v", err)}
	}
	return ExportResult{Success: true, RowCount: len(rows)}
}

// AppendTelegramRow appends a submission from the secondary surface to the
// fixed side sheet.
func (g *Gateway) AppendTelegramRow(ctx context.Context, sub store.Submission) error {
	if !g.Configured() {
		return fmt.Errorf("sheets sync not configured")
	}
	g.mu.Lock()
	ready := g.ready[telegramSheet]
	g.mu.Unlock()
	if !ready {
		created, err := g.api.EnsureSheet(ctx, telegramSheet)
		if err != nil {
			return fmt.Errorf("ensure telegram sheet: %w", err)
		}
		if created {
			if err := g.api.Update(ctx, telegramSheet, 0, 0, [][]string{telegramHeader()}); err != nil {
				return fmt.Errorf("write telegram header: %w", err)
			}
		}
		g.mu.Lock()
		g.ready[telegramSheet] = true
		g.mu.Unlock()
	}
	if err := g.api.Append(ctx, telegramSheet, telegramRow(sub)); err != nil {
		return fmt.Errorf("append telegram row: %w", err)
	}
	return nil
}

// ensureMissionSheet creates the sheet with the incremental header when it is
// new, and upgrades pre-existing sheets written by the old schema (no Source
// column). The check runs once per sheet per process.
func (g *Gateway) ensureMissionSheet(ctx context.Context, title string) error {
	g.mu.Lock()
	if g.ready[title] {
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()

	created, err := g.api.EnsureSheet(ctx, title)
	if err != nil {
		return fmt.Errorf("ensure sheet: %w", err)
	}
	if created {
		if err := g.api.Update(ctx, title, 0, 0, [][]string{incrementalHeader()}); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	} else if err := g.migrateIfNeeded(ctx, title); err != nil {
		return err
	}

	g.mu.Lock()
	g.ready[title] = true
	g.mu.Unlock()
	return nil
}

// migrateIfNeeded rebuilds a sheet written before the Source column existed:
// the column is inserted at its fixed position, existing data rows get the
// discord default, and every original cell value is preserved.
func (g *Gateway) migrateIfNeeded(ctx context.Context, title string) error {
	rows, err := g.api.ReadAll(ctx, title)
	if err != nil {
		return fmt.Errorf("read sheet for migration check: %w", err)
	}
	if len(rows) == 0 {
		return g.api.Update(ctx, title, 0, 0, [][]string{incrementalHeader()})
	}
	schema := newRowSchema(rows[0])
	if _, ok := schema.col("Source"); ok {
		return nil
	}

	g.log.WithField("sheet", title).Info("migrating sheet to schema with Source column")
	migrated := make([][]string, 0, len(rows))
	for i, row := range rows {
		inserted := "Source"
		if i > 0 {
			inserted = store.SourceDiscord
		}
		newRow := make([]string, 0, len(row)+1)
		if len(row) <= sourceCol {
			newRow = append(newRow, row...)
			newRow = append(newRow, inserted)
		} else {
			newRow = append(newRow, row[:sourceCol]...)
			newRow = append(newRow, inserted)
			newRow = append(newRow, row[sourceCol:]...)
		}
		migrated = append(migrated, newRow)
	}
	if err := g.api.Clear(ctx, title); err != nil {
		return fmt.Errorf("clear sheet for migration: %w", err)
	}
	if err := g.api.Update(ctx, title, 0, 0, migrated); err != nil {
		return fmt.Errorf("rewrite migrated sheet: %w", err)
	}
	return nil
}
