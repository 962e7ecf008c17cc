package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/pathfinder/internal/docstore"
	"github.com/dharsanguruparan/pathfinder/internal/logger"
	"github.com/dharsanguruparan/pathfinder/internal/metrics"
	"github.com/dharsanguruparan/pathfinder/internal/model"
	pdfutil "github.com/dharsanguruparan/pathfinder/internal/pdf"
	"github.com/dharsanguruparan/pathfinder/internal/queue"
	"github.com/dharsanguruparan/pathfinder/internal/repository"
)

// Applications is the persistence the background jobs need.
type Applications interface {
	Get(ctx context.Context, id int64) (*model.Application, error)
	SetCVText(ctx context.Context, id int64, text string) error
	ReferencedFiles(ctx context.Context) (cvs, letters map[string]struct{}, err error)
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	apps    Applications
	docs    docstore.Store
	maxSize int64
	grace   time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

// NewProcessor constructs a worker processor. Documents younger than grace
// are never swept.
func NewProcessor(apps Applications, docs docstore.Store, maxSize int64, grace time.Duration) *Processor {
	return &Processor{apps: apps, docs: docs, maxSize: maxSize, grace: grace, now: time.Now, log: logger.Get("worker")}
}

// Handler registers the task handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.IndexCVTask, p.handleIndexCV)
	mux.HandleFunc(queue.SweepOrphansTask, p.handleSweep)
	return mux
}

func (p *Processor) handleIndexCV(ctx context.Context, task *asynq.Task) error {
	var payload queue.IndexCVPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w: %w", err, asynq.SkipRetry)
	}
	err := p.IndexCV(ctx, payload.ApplicationID, payload.CVFile)
	if err != nil {
		metrics.CVIndexedTotal.WithLabelValues("failed").Inc()
		p.log.Error().Err(err).Int64("application_id", payload.ApplicationID).Msg("cv indexing failed")
		return err
	}
	return nil
}

// IndexCV extracts the text of a PDF CV and stores it on the application.
// Errors that a retry cannot fix are wrapped with asynq.SkipRetry.
func (p *Processor) IndexCV(ctx context.Context, applicationID int64, cvFile string) error {
	if !strings.EqualFold(filepath.Ext(cvFile), ".pdf") {
		metrics.CVIndexedTotal.WithLabelValues("skipped").Inc()
		return nil
	}
	app, err := p.apps.Get(ctx, applicationID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("application %d: %w: %w", applicationID, err, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}
	if app.CVFile != cvFile {
		return fmt.Errorf("application %d no longer references %s: %w", applicationID, cvFile, asynq.SkipRetry)
	}
	rc, err := p.docs.Open(ctx, docstore.CategoryCV, cvFile)
	if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrInvalidReference) {
		return fmt.Errorf("open cv: %w: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("open cv: %w", err)
	}
	defer rc.Close()
	text, err := pdfutil.ExtractFromReader(rc, p.maxSize)
	if err != nil {
		return fmt.Errorf("extract cv text: %w: %w", err, asynq.SkipRetry)
	}
	if err := p.apps.SetCVText(ctx, applicationID, text); err != nil {
		return fmt.Errorf("store cv text: %w", err)
	}
	metrics.CVIndexedTotal.WithLabelValues("indexed").Inc()
	p.log.Info().Int64("application_id", applicationID).Int("bytes", len(text)).Msg("cv indexed")
	return nil
}

func (p *Processor) handleSweep(ctx context.Context, task *asynq.Task) error {
	var payload queue.SweepPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("decode payload: %w: %w", err, asynq.SkipRetry)
		}
	}
	_, err := p.Sweep(ctx, payload.DryRun)
	return err
}

// SweepReport lists what one sweep found per category directory.
type SweepReport struct {
	Scanned int
	Orphans map[docstore.Category][]string
}

// Sweep removes stored documents that no application references and that are
// older than the grace period. With dryRun set nothing is removed.
func (p *Processor) Sweep(ctx context.Context, dryRun bool) (SweepReport, error) {
	report := SweepReport{Orphans: map[docstore.Category][]string{}}
	cvs, letters, err := p.apps.ReferencedFiles(ctx)
	if err != nil {
		return report, fmt.Errorf("load references: %w", err)
	}
	referenced := map[docstore.Category]map[string]struct{}{
		docstore.CategoryCV:         cvs,
		docstore.CategoryMotivation: letters,
	}
	cutoff := p.now().Add(-p.grace)
	for _, cat := range docstore.Categories {
		objects, err := p.docs.List(ctx, cat)
		if err != nil {
			return report, fmt.Errorf("list %s: %w", cat.Dir(), err)
		}
		for _, obj := range objects {
			report.Scanned++
			if _, ok := referenced[cat][obj.Ref]; ok || obj.ModTime.After(cutoff) {
				continue
			}
			report.Orphans[cat] = append(report.Orphans[cat], obj.Ref)
			if dryRun {
				continue
			}
			p.docs.Remove(ctx, cat, obj.Ref)
			metrics.OrphansRemovedTotal.WithLabelValues(string(cat)).Inc()
		}
	}
	p.log.Info().
		Int("scanned", report.Scanned).
		Int("orphan_cvs", len(report.Orphans[docstore.CategoryCV])).
		Int("orphan_letters", len(report.Orphans[docstore.CategoryMotivation])).
		Bool("dry_run", dryRun).
		Msg("orphan sweep finished")
	return report, nil
}
