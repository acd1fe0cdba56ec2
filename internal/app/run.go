package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/kpisync/internal/adapters/graph"
	"github.com/okian/kpisync/internal/adapters/notify"
	"github.com/okian/kpisync/internal/adapters/xlsx"
	"github.com/okian/kpisync/internal/domain/configbook"
	"github.com/okian/kpisync/internal/domain/kpiload"
	"github.com/okian/kpisync/internal/domain/model"
	"github.com/okian/kpisync/pkg/logger"
	"github.com/okian/kpisync/pkg/metrics"
)

// Individual sheet outcomes.
const (
	sheetSuccess = "success"
	sheetFailed  = "failed"
	sheetSkipped = "skipped"
)

// run is the state of one sync.
type run struct {
	id     string
	req    model.RunRequest
	drive  Drive
	cfg    *model.Config
	year   int
	data   kpiload.Data
	result model.Result
	log    logger.Logger
}

// Run executes one sync and records it. Failures to reach the credentials,
// the config workbook or the Team Leader workbook abort the run and are
// returned; everything else is counted in the result.
func (s *Service) Run(ctx context.Context, req model.RunRequest) (model.Result, error) {
	started := s.now()
	r := &run{
		id:     uuid.NewString(),
		req:    req,
		result: model.Result{Status: model.StatusSuccess, PendingChanges: []model.PendingChange{}},
	}
	r.log = s.logger.Named("run")
	r.log.Info(ctx, "kpi sync started",
		logger.String("run", r.id),
		logger.String("trigger", string(req.Trigger)),
		logger.Bool("individual", req.ProcessIndividual),
		logger.Bool("teamLeader", req.ProcessTeamLeader),
		logger.String("therapist", req.Therapist))

	err := s.execute(ctx, r)
	if err != nil {
		r.result.Status = model.StatusError
		r.result.Error = err.Error()
		metrics.RecordErrorByComponent("service", "run")
		r.log.Error(ctx, "kpi sync failed", logger.String("run", r.id), logger.Error(err))
	} else {
		r.log.Info(ctx, "kpi sync completed",
			logger.String("run", r.id),
			logger.Int("success", r.result.Individual.Success),
			logger.Int("failed", r.result.Individual.Failed),
			logger.Int("skipped", r.result.Individual.Skipped),
			logger.Int("pending", len(r.result.PendingChanges)))
	}

	finished := s.now()
	metrics.RecordRun(string(req.Trigger), r.result.Status, finished.Sub(started))
	record := model.RunRecord{ID: r.id, Trigger: req.Trigger, Year: r.year, StartedAt: started, FinishedAt: finished, Result: r.result}
	// The caller's context may already be done; the record is still wanted.
	if serr := s.store.SaveRun(context.WithoutCancel(ctx), record); serr != nil {
		r.log.Warn(ctx, "save run record failed", logger.Error(serr))
	}
	return r.result, err
}

func (s *Service) execute(ctx context.Context, r *run) error {
	drive, err := s.drives(ctx)
	if err != nil {
		if errors.Is(err, ErrMissingCredentials) {
			return err
		}
		return fmt.Errorf("connect to drive: %w", err)
	}
	r.drive = drive

	cfg, err := s.loadConfig(ctx, r)
	if err != nil {
		return err
	}
	r.cfg = cfg

	tl, err := s.openWorkbook(ctx, r, s.cfg.TeamLeaderPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTeamLeaderUnavailable, err)
	}
	defer tl.Close()

	r.year = s.year()
	r.data = s.loader.Load(ctx, tl)
	r.log.Info(ctx, "master data loaded", logger.Int("records", r.data.Count()), logger.Int("year", r.year))

	var errs []error
	if r.req.ProcessTeamLeader {
		if err := s.teamLeader(ctx, r, tl); err != nil {
			errs = append(errs, err)
		}
	}
	if r.req.ProcessIndividual {
		s.individuals(ctx, r)
	}
	return errors.Join(errs...)
}

func (s *Service) loadConfig(ctx context.Context, r *run) (*model.Config, error) {
	doc, err := s.openWorkbook(ctx, r, s.cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigUnavailable, err)
	}
	defer doc.Close()
	cfg, err := configbook.Load(ctx, doc, configbook.WithLogger(r.log.Named("configbook")))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigUnavailable, err)
	}
	r.log.Info(ctx, "config loaded", logger.Int("therapists", len(cfg.Therapists)))
	return cfg, nil
}

func (s *Service) openWorkbook(ctx context.Context, r *run, p string) (*xlsx.Document, error) {
	data, err := s.fetch(ctx, r, p)
	if err != nil {
		return nil, err
	}
	return xlsx.Open(data)
}

// fetch downloads the file at p. A download that no longer finds the cached
// id forgets it and resolves the path once more. Only a resolve that finds
// nothing is reported as ErrNoFile.
func (s *Service) fetch(ctx context.Context, r *run, p string) ([]byte, error) {
	id, err := s.resolve(ctx, r, p)
	if err != nil {
		return nil, err
	}
	data, err := r.drive.Download(ctx, id)
	if !errors.Is(err, graph.ErrNotFound) {
		return data, err
	}
	r.log.Warn(ctx, "cached item id is stale, resolving again", logger.String("path", p), logger.String("id", id))
	metrics.RecordErrorByComponent("service", "stale_item")
	r.drive.Forget(p)
	id, err = s.resolve(ctx, r, p)
	if err != nil {
		return nil, err
	}
	return r.drive.Download(ctx, id)
}

func (s *Service) resolve(ctx context.Context, r *run, p string) (string, error) {
	id, err := r.drive.Resolve(ctx, p)
	if errors.Is(err, graph.ErrNotFound) {
		return "", fmt.Errorf("%w: %w", ErrNoFile, err)
	}
	return id, err
}

// year comes from the Team Leader file name, else the current local year.
func (s *Service) year() int {
	if y, ok := model.YearFromFilename(path.Base(s.cfg.TeamLeaderPath)); ok {
		return y
	}
	return s.now().In(s.window.Location).Year()
}

// teamLeader reconciles, formats and uploads the Team Leader workbook, then
// tells a human about rows only they can add or delete.
func (s *Service) teamLeader(ctx context.Context, r *run, doc *xlsx.Document) error {
	sum := s.reconciler.SyncAll(ctx, doc, r.cfg)
	stats := s.formatter.Format(ctx, doc, r.cfg, r.year)
	r.result.TeamLeader = model.TeamLeaderStats{Synced: sum.Tables, Formatted: stats.Tables}
	r.result.PendingChanges = append(r.result.PendingChanges, sum.Pending...)

	metrics.ResetPendingChanges()
	for _, p := range sum.Pending {
		metrics.UpdatePendingChange(string(p.Team), string(p.Action), p.RowCount)
	}

	data, err := doc.Bytes()
	if err != nil {
		return fmt.Errorf("serialise team leader workbook: %w", err)
	}
	if _, err := r.drive.Upload(ctx, s.cfg.TeamLeaderPath, data); err != nil {
		metrics.RecordErrorByComponent("service", "team_leader_upload")
		return fmt.Errorf("upload team leader workbook: %w", err)
	}
	r.log.Info(ctx, "team leader workbook uploaded",
		logger.Int("synced", sum.Tables),
		logger.Int("formatted", stats.Tables),
		logger.Int("rows", stats.Rows))

	if len(sum.Pending) > 0 {
		s.notifier(r).Notify(ctx, sum.Pending)
	}
	return nil
}

func (s *Service) notifier(r *run) *notify.Notifier {
	opts := []notify.Option{
		notify.WithLog(s.store),
		notify.WithClock(s.now),
		notify.WithLogger(r.log.Named("notify")),
	}
	if s.cfg.NotifyEmailFrom != "" {
		opts = append(opts, notify.WithSender(notify.NewMailSender(r.drive, s.cfg.NotifyEmailFrom, s.cfg.Recipients()...)))
	}
	if s.cfg.NotifySlackHook != "" {
		opts = append(opts, notify.WithSender(notify.NewSlackSender(s.cfg.NotifySlackHook, s.httpClient())))
	}
	return notify.New(s.window, opts...)
}

func (s *Service) individuals(ctx context.Context, r *run) {
	therapists := r.cfg.Active(r.req.Therapist)
	r.log.Info(ctx, "processing individual sheets", logger.Int("therapists", len(therapists)))
	for i, t := range therapists {
		if ctx.Err() != nil {
			r.log.Warn(ctx, "run cancelled, remaining sheets not processed", logger.Int("remaining", len(therapists)-i))
			return
		}
		outcome := sheetSuccess
		if strings.TrimSpace(t.FilePath) == "" {
			r.log.Warn(ctx, "no file path, skipping", logger.String("name", t.Name))
			outcome = sheetSkipped
		} else if err := s.individual(ctx, r, t); err != nil {
			r.log.Error(ctx, "individual sheet failed", logger.String("name", t.Name), logger.Error(err))
			outcome = sheetFailed
		}
		metrics.RecordIndividualSheet(outcome)
		switch outcome {
		case sheetSuccess:
			r.result.Individual.Success++
		case sheetFailed:
			r.result.Individual.Failed++
		default:
			r.result.Individual.Skipped++
		}
	}
}

func (s *Service) individual(ctx context.Context, r *run, t model.Therapist) error {
	doc, err := s.openWorkbook(ctx, r, t.FilePath)
	if errors.Is(err, ErrNoFile) {
		r.log.Warn(ctx, "individual file not found, creating from template", logger.String("path", t.FilePath))
		doc, err = s.fromTemplate(ctx, r, t)
	}
	if err != nil {
		return err
	}
	defer doc.Close()

	if err := s.writer.Update(ctx, doc, t, r.data.For(t.Team, t.Name), r.cfg, r.year); err != nil {
		return err
	}
	data, err := doc.Bytes()
	if err != nil {
		return fmt.Errorf("serialise %s: %w", t.FilePath, err)
	}
	if _, err := r.drive.Upload(ctx, t.FilePath, data); err != nil {
		return fmt.Errorf("upload %s: %w", t.FilePath, err)
	}
	return nil
}

// TemplatePath is the team template for a team type.
func (s *Service) TemplatePath(tt model.TeamType) string {
	return path.Join(s.cfg.TemplateDir, "Template_"+string(tt)+".xlsx")
}

func (s *Service) fromTemplate(ctx context.Context, r *run, t model.Therapist) (*xlsx.Document, error) {
	tpl := s.TemplatePath(t.Team.Type())
	doc, err := s.openWorkbook(ctx, r, tpl)
	if err != nil {
		return nil, fmt.Errorf("open template %s: %w", tpl, err)
	}
	if err := s.writer.Init(ctx, doc, t); err != nil {
		doc.Close()
		return nil, err
	}
	if dir := path.Dir(t.FilePath); dir != "/" && dir != "." {
		if _, err := r.drive.CreateFolder(ctx, dir); err != nil {
			doc.Close()
			return nil, fmt.Errorf("create folder %s: %w", dir, err)
		}
	}
	return doc, nil
}
