package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	gocron "github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/CZERTAINLY/Piper/internal/invoke"
	"github.com/CZERTAINLY/Piper/internal/log"
	"github.com/CZERTAINLY/Piper/internal/model"
)

// Service executes the configured invocation and delivers captured
// output to the configured uploaders: once per Once call, repeatedly in
// Do. One command, one process at a time; a schedule tick firing while
// a run is still in flight is skipped.
type Service struct {
	req       invoke.Request
	schedule  *model.Schedule
	uploaders []Uploader
}

func New(ctx context.Context, cfg model.Config) (*Service, error) {
	req, err := Request(cfg)
	if err != nil {
		return nil, err
	}
	return NewFromRequest(ctx, req, cfg.Service)
}

// NewFromRequest builds a Service around an already resolved request.
// Run overrides like profiles or a command given on the command line
// use it to bypass the configured command.
func NewFromRequest(ctx context.Context, req invoke.Request, cfg model.Service) (*Service, error) {
	ups, err := uploaders(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing uploaders: %w", err)
	}

	return &Service{
		req:       req,
		schedule:  cfg.Schedule,
		uploaders: ups,
	}, nil
}

// WithUploaders replaces the delivery targets of an initialized
// Service. This method exists for unit testing only.
func (s *Service) WithUploaders(ctx context.Context, uploaders ...Uploader) *Service {
	s.closeUploaders(ctx)
	s.uploaders = uploaders
	return s
}

// Once runs a single invocation. Captured output of a clean exit is
// delivered to every uploader; a non-zero exit skips delivery but is
// still a regular result, not an error.
func (s *Service) Once(ctx context.Context) (*invoke.Result, error) {
	ctx = log.ContextAttrs(ctx, slog.String("invocation", uuid.NewString()))

	res, err := invoke.Run(ctx, s.req)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "process finished", "exit_code", res.ExitCode, "lines", len(res.Output))

	if res.ExitCode != 0 {
		slog.WarnContext(ctx, "skipping delivery", "reason", "exit code "+strconv.Itoa(res.ExitCode))
		return res, nil
	}
	if err := s.deliver(ctx, res.Output); err != nil {
		return res, fmt.Errorf("delivering output: %w", err)
	}
	return res, nil
}

// Do runs the service loop for serve mode: build a scheduler from the
// configured schedule and run the invocation on every tick until the
// context is cancelled. Returns nil on graceful cancellation.
func (s *Service) Do(ctx context.Context) error {
	defer s.closeUploaders(ctx)

	if s.schedule == nil {
		return errors.New("service.schedule is required for serve mode")
	}
	job, err := scheduleJob(*s.schedule)
	if err != nil {
		return err
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("initializing scheduler: %w", err)
	}

	// a tick only pokes the loop, runs stay sequential
	ticks := make(chan struct{}, 1)
	_, err = scheduler.NewJob(job, gocron.NewTask(func() {
		select {
		case ticks <- struct{}{}:
		default:
			slog.WarnContext(ctx, "previous run still in flight, skipping tick")
		}
	}))
	if err != nil {
		return fmt.Errorf("initializing scheduler job: %w", err)
	}

	slog.DebugContext(ctx, "starting the scheduler")
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			slog.ErrorContext(ctx, "shutting down the scheduler failed", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticks:
			res, err := s.Once(ctx)
			switch {
			case ctx.Err() != nil:
				return nil
			case err != nil:
				slog.ErrorContext(ctx, "run failed", "error", err)
			case res.ExitCode != 0:
				slog.ErrorContext(ctx, "run exited non-zero", "exit_code", res.ExitCode)
			}
		}
	}
}

func (s *Service) deliver(ctx context.Context, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	raw := []byte(strings.Join(lines, "\n") + "\n")

	var errs []error
	for _, u := range s.uploaders {
		if err := u.Upload(ctx, raw); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) closeUploaders(ctx context.Context) {
	for _, uploader := range s.uploaders {
		if closer, ok := uploader.(UploadCloser); ok {
			if err := closer.Close(); err != nil {
				slog.ErrorContext(ctx, "closing uploader failed", "error", err)
			}
		}
	}
}

func scheduleJob(cfg model.Schedule) (gocron.JobDefinition, error) {
	switch {
	case cfg.Cron != "":
		fields, err := ParseFlexible(cfg.Cron)
		if err != nil {
			return nil, fmt.Errorf("parsing service.schedule.cron: %w", err)
		}
		return gocron.CronJob(cfg.Cron, fields == 6), nil
	case cfg.Every != "":
		var d model.Duration
		if err := d.UnmarshalText([]byte(cfg.Every)); err != nil {
			return nil, fmt.Errorf("parsing service.schedule.every: %w", err)
		}
		return gocron.DurationJob(d.AsDuration()), nil
	default:
		return nil, errors.New("schedule needs either cron or every")
	}
}

// Request resolves the validated configuration into an invocation
// request. Env values starting with $ are expanded from the parent
// environment, grace and charset go through their human types.
func Request(cfg model.Config) (invoke.Request, error) {
	cmd := cfg.Command
	req := invoke.Request{
		Path: cmd.Path,
		Args: cmd.Args,
		Dir:  cmd.Dir,
	}

	if len(cmd.Env) > 0 {
		env := make(map[string]string, len(cmd.Env))
		for k, v := range cmd.Env {
			if strings.HasPrefix(v, "$") {
				v = os.ExpandEnv(v)
			}
			env[k] = v
		}
		req.Env = env
	}

	if cmd.Forceful != nil {
		req.Forceful = *cmd.Forceful
	}
	if cmd.Grace != "" {
		var d model.Duration
		if err := d.UnmarshalText([]byte(cmd.Grace)); err != nil {
			return invoke.Request{}, fmt.Errorf("command.grace: %w", err)
		}
		req.Grace = d.AsDuration()
	}
	if cmd.Charset != "" {
		var c model.Charset
		if err := c.UnmarshalText([]byte(cmd.Charset)); err != nil {
			return invoke.Request{}, fmt.Errorf("command.charset: %w", err)
		}
		req.Charset = c.AsEncoding()
	}

	stdin, err := input(cfg.Stdin)
	if err != nil {
		return invoke.Request{}, err
	}
	req.Stdin = stdin

	req.Stdout, err = sink(cfg.Stdout, "stdout")
	if err != nil {
		return invoke.Request{}, err
	}
	req.Stderr, err = sink(cfg.Stderr, "stderr")
	if err != nil {
		return invoke.Request{}, err
	}
	return req, nil
}

func input(cfg *model.StdinConfig) (invoke.Input, error) {
	if cfg == nil {
		return nil, nil
	}
	switch cfg.From {
	case "", model.StdinNone:
		return nil, nil
	case model.StdinText:
		return invoke.FromString(cfg.Text), nil
	case model.StdinFile:
		return invoke.FromFile{Path: cfg.Path}, nil
	default:
		return nil, fmt.Errorf("stdin: unsupported source %q", cfg.From)
	}
}

func sink(cfg *model.SinkConfig, name string) (invoke.Sink, error) {
	if cfg == nil {
		// invoke defaults an absent sink to inherit
		return nil, nil
	}
	switch cfg.To {
	case "", model.SinkInherit:
		return invoke.Inherit{}, nil
	case model.SinkDiscard:
		return invoke.Discard{}, nil
	case model.SinkCapture:
		return invoke.Capture{}, nil
	case model.SinkFile:
		return invoke.ToFile{Path: cfg.Path, Append: cfg.Append}, nil
	default:
		return nil, fmt.Errorf("%s: unsupported sink %q", name, cfg.To)
	}
}
