package jobs

import (
    "context"
    "sync/atomic"
    "time"

    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/config"
    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/domain"
    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/services"
    "github.com/robfig/cron/v3"
    "github.com/rs/zerolog"
)

type extractor interface {
    Run(ctx context.Context, p services.Params, sink services.EventSink) (*domain.Report, error)
}

// Cron runs unattended extractions against the configured Taiga account and
// logs the resulting summary. One run at a time per process.
type Cron struct {
    cfg     config.Config
    log     zerolog.Logger
    svc     extractor
    c       *cron.Cron
    running atomic.Bool
}

func NewCron(cfg config.Config, log zerolog.Logger, svc extractor) *Cron {
    loc, _ := time.LoadLocation(cfg.TZ)
    c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
    cr := &Cron{cfg: cfg, log: log, svc: svc, c: c}
    _, _ = c.AddFunc(cfg.CronSpec, cr.extract)
    return cr
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { cr.c.Stop() }

func (cr *Cron) extract() {
    if !cr.running.CompareAndSwap(false, true) {
        cr.log.Info().Msg("cron: extraction already running")
        return
    }
    defer cr.running.Store(false)

    ctx, cancel := context.WithTimeout(context.Background(), cr.cfg.ExtractTimeout)
    defer cancel()
    p := services.Params{BaseURL: cr.cfg.TaigaBaseURL, AuthToken: cr.cfg.TaigaToken, UserID: cr.cfg.TaigaUserID}
    cr.log.Info().Str("user_id", p.UserID).Msg("cron: scheduled extraction")
    report, err := cr.svc.Run(ctx, p, nil)
    if err != nil {
        cr.log.Error().Err(err).Msg("cron: extraction failed")
        return
    }
    cr.log.Info().
        Int("items", report.Summary.TotalItems).
        Str("total_time", report.Summary.TotalTimeFormatted).
        Int("pages", report.Summary.PagesProcessed).
        Msg("cron: extraction completed")
}
