// Package app wires configuration, logging, storage and the services into
// one runnable unit. Nothing here is global; every dependency travels by
// constructor argument.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"aisocials/internal/config"
	"aisocials/internal/eventbus"
	"aisocials/internal/generator"
	"aisocials/internal/moderation"
	"aisocials/internal/publisher"
	"aisocials/internal/reviewer"
	"aisocials/internal/scheduler"
	"aisocials/internal/store"
	logx "aisocials/pkg/logx"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager

	log    logx.Logger
	logSvc *logx.Service
	bus    eventbus.Bus
	jstore store.JobStore

	sched    *scheduler.Scheduler
	pipeline *generator.Pipeline
	review   *reviewer.Bot

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(func(_ context.Context, c *config.Config) error {
		return c.Validate()
	})

	bus := eventbus.New()

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	jstore, err := store.Open(store.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "store")))
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}

	schedCfg, err := mapSchedulerConfig(cfg.Scheduler)
	if err != nil {
		return nil, err
	}
	tasks := scheduler.NewTaskSet()
	sched := scheduler.New(schedCfg, jstore, tasks, log.With(logx.String("comp", "scheduler")), bus)

	genTimeout, err := config.ParseDurationOrDefault("generator.timeout", cfg.Generator.Timeout, 2*time.Minute)
	if err != nil {
		return nil, err
	}
	ollama := generator.NewOllama(generator.OllamaConfig{
		BaseURL:     cfg.Generator.BaseURL,
		Model:       cfg.Generator.Model,
		Timeout:     genTimeout,
		Temperature: cfg.Generator.Temperature,
		MaxHashtags: cfg.Generator.MaxHashtags,
	}, log.With(logx.String("comp", "generator")))

	var img generator.ImageGenerator
	if ic := cfg.Generator.Images; ic != nil {
		imgTimeout, err := config.ParseDurationOrDefault("generator.images.timeout", ic.Timeout, 2*time.Minute)
		if err != nil {
			return nil, err
		}
		img, err = generator.NewImages(generator.ImagesConfig{
			BaseURL:   ic.BaseURL,
			APIKey:    ic.APIKey,
			Model:     ic.Model,
			Size:      ic.Size,
			OutputDir: ic.OutputDir,
			Timeout:   imgTimeout,
		}, log.With(logx.String("comp", "images")))
		if err != nil {
			return nil, fmt.Errorf("image generator: %w", err)
		}
	}

	mod := moderation.New(moderation.Config{
		MaxHashtags:       cfg.Moderation.MaxHashtags,
		ExtraBlockedTerms: cfg.Moderation.ExtraBlockedTerms,
	}, log.With(logx.String("comp", "moderation")))

	pub, err := buildPublisher(cfg, log)
	if err != nil {
		return nil, err
	}

	var (
		review *reviewer.Bot
		rev    generator.Reviewer
	)
	if cfg.Reviewer != nil {
		pollTimeout, err := config.ParseDurationOrDefault("reviewer.poll_timeout", cfg.Reviewer.PollTimeout, 10*time.Second)
		if err != nil {
			return nil, err
		}
		decTimeout, err := config.ParseDurationOrDefault("reviewer.decision_timeout", cfg.Reviewer.DecisionTimeout, time.Hour)
		if err != nil {
			return nil, err
		}
		review, err = reviewer.New(reviewer.Config{
			Token:           cfg.Reviewer.Token,
			ReviewerIDs:     cfg.Reviewer.ReviewerIDs,
			PollTimeout:     pollTimeout,
			DecisionTimeout: decTimeout,
		}, log.With(logx.String("comp", "reviewer")))
		if err != nil {
			return nil, fmt.Errorf("reviewer: %w", err)
		}
		rev = reviewAdapter{review}
	}

	minConfidence := 0.7
	if cfg.Moderation.MinScore > 0 {
		minConfidence = float64(cfg.Moderation.MinScore) / 100
	}
	pipeline := generator.NewPipeline(generator.PipelineConfig{
		Topics:        cfg.Generator.Topics,
		Style:         cfg.Generator.Style,
		MinConfidence: minConfidence,
	}, ollama, img, mod, rev, pub, bus, log.With(logx.String("comp", "pipeline")))

	a := &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logSvc:   logSvc,
		bus:      bus,
		jstore:   jstore,
		sched:    sched,
		pipeline: pipeline,
		review:   review,
	}
	a.registerTasks(tasks)
	return a, nil
}

// Scheduler exposes the job engine for operational commands and tests.
func (a *App) Scheduler() *scheduler.Scheduler { return a.sched }

func buildPublisher(cfg *config.Config, log logx.Logger) (publisher.Publisher, error) {
	plog := log.With(logx.String("comp", "publisher"))
	var base publisher.Publisher
	if cfg.Publisher.DryRun {
		base = publisher.NewDryRun(plog)
	} else {
		timeout, err := config.ParseDurationOrDefault("publisher.timeout", cfg.Publisher.Timeout, 30*time.Second)
		if err != nil {
			return nil, err
		}
		g, err := publisher.NewGraph(publisher.GraphConfig{
			Account:     cfg.Publisher.Account,
			AccessToken: cfg.Publisher.AccessToken,
			BaseURL:     cfg.Publisher.BaseURL,
			Timeout:     timeout,
		}, plog)
		if err != nil {
			return nil, fmt.Errorf("publisher: %w", err)
		}
		base = g
	}
	return publisher.NewRateLimited(base, cfg.Publisher.RatePerDay, plog), nil
}

func mapSchedulerConfig(sc config.SchedulerConfig) (scheduler.Config, error) {
	retryBase, err := config.ParseDurationOrDefault("scheduler.retry_base", sc.RetryBase, time.Minute)
	if err != nil {
		return scheduler.Config{}, err
	}
	retryMax, err := config.ParseDurationOrDefault("scheduler.retry_max_delay", sc.RetryMaxDelay, time.Hour)
	if err != nil {
		return scheduler.Config{}, err
	}
	grace, err := config.ParseDurationOrDefault("scheduler.misfire_grace", sc.MisfireGrace, 5*time.Minute)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Workers:       sc.Workers,
		QueueSize:     sc.QueueSize,
		MaxRetries:    sc.MaxRetries,
		RetryBase:     retryBase,
		RetryMaxDelay: retryMax,
		MisfireGrace:  grace,
		HistorySize:   sc.HistorySize,
		Timezone:      sc.Timezone,
	}, nil
}

// reviewAdapter maps the reviewer bot onto the pipeline's approval port.
type reviewAdapter struct {
	bot *reviewer.Bot
}

func (r reviewAdapter) Submit(ctx context.Context, id, caption string, score float64, warnings []string) (bool, error) {
	v, err := r.bot.Submit(ctx, reviewer.Submission{
		ID:       id,
		Caption:  caption,
		Score:    score,
		Warnings: warnings,
	})
	if err != nil {
		return false, err
	}
	return v == reviewer.VerdictApproved, nil
}

func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return fmt.Errorf("app already started")
	}
	a.started = true
	a.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.review != nil {
		a.review.Start()
	}

	if err := a.sched.Start(runCtx); err != nil {
		return err
	}
	if err := a.registerConfiguredJobs(runCtx); err != nil {
		return err
	}

	// config hot reload: watch the file and re-register declared jobs.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()
	sub := a.cfgm.Subscribe(4)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(runCtx, cfg)
			}
		}
	}()

	// debug visibility into bus traffic
	events, unsub := a.bus.Subscribe(128)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer unsub()
		for {
			select {
			case <-runCtx.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	}()

	a.log.Info("app started")
	return nil
}

// applyConfig handles a hot reload: logging level changes take effect
// immediately, declared jobs are re-registered. Service endpoints (store,
// publisher, reviewer) need a restart.
func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	a.logSvc.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	for _, jc := range cfg.Jobs {
		if err := a.registerJob(ctx, jc); err != nil {
			a.log.Warn("job re-register failed", logx.String("job", jc.ID), logx.Err(err))
		}
	}
	a.log.Info("config reloaded", logx.Int("jobs", len(cfg.Jobs)))
}

func (a *App) registerConfiguredJobs(ctx context.Context) error {
	cfg := a.cfgm.Get()
	if cfg == nil {
		return nil
	}
	for _, jc := range cfg.Jobs {
		if err := a.registerJob(ctx, jc); err != nil {
			return fmt.Errorf("register job %q: %w", jc.ID, err)
		}
	}
	return nil
}

func (a *App) registerJob(ctx context.Context, jc config.JobConfig) error {
	trig, err := triggerFromConfig(jc.Trigger)
	if err != nil {
		return err
	}
	id, err := a.sched.AddJob(ctx, scheduler.JobRequest{
		ID:      jc.ID,
		Type:    scheduler.JobType(jc.Type),
		Task:    jc.Task,
		Trigger: trig,
	})
	if err != nil {
		return err
	}
	a.log.Debug("configured job registered", logx.String("job", id), logx.String("task", jc.Task))
	return nil
}

func triggerFromConfig(tc config.TriggerConfig) (scheduler.Trigger, error) {
	switch strings.ToLower(strings.TrimSpace(tc.Type)) {
	case "interval":
		d := time.Duration(tc.Seconds)*time.Second +
			time.Duration(tc.Minutes)*time.Minute +
			time.Duration(tc.Hours)*time.Hour +
			time.Duration(tc.Days)*24*time.Hour
		return scheduler.Interval(d), nil
	case "cron":
		return scheduler.Cron(tc.Expression), nil
	case "date":
		at, err := time.Parse(time.RFC3339, tc.RunDate)
		if err != nil {
			return scheduler.Trigger{}, fmt.Errorf("run_date: %w", err)
		}
		return scheduler.Date(at), nil
	default:
		return scheduler.Trigger{}, fmt.Errorf("unknown trigger type %q", tc.Type)
	}
}

func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = false
	cancel := a.cancel
	a.mu.Unlock()

	err := a.sched.Stop(ctx, true)

	if cancel != nil {
		cancel()
	}
	if a.review != nil {
		a.review.Stop()
	}
	a.wg.Wait()

	if cerr := a.jstore.Close(); cerr != nil && err == nil {
		err = cerr
	}
	a.log.Info("app stopped")
	return err
}
