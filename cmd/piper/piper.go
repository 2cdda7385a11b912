package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/CZERTAINLY/Piper/internal/log"
	"github.com/CZERTAINLY/Piper/internal/profile"
	"github.com/CZERTAINLY/Piper/internal/service"
)

func doRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	attrs := slog.Group("piper",
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	req, err := service.Request(config)
	if err != nil {
		return err
	}
	strict := flagStrict || config.Service.Strict

	if flagProfile != "" {
		p, err := profile.Load(profilesPath(), flagProfile)
		if err != nil {
			return err
		}
		req = p.Request()
		strict = strict || p.Strict
		if p.Command.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.Command.Timeout)
			defer cancel()
		}
	}

	// everything after -- replaces the configured command
	if at := cmd.ArgsLenAtDash(); at > 0 {
		return fmt.Errorf("unexpected arguments before --: %v", args[:at])
	}
	if len(args) > 0 {
		req.Path = args[0]
		req.Args = args[1:]
	}

	svc, err := service.NewFromRequest(ctx, req, config.Service)
	if err != nil {
		return err
	}
	res, err := svc.Once(ctx)
	if err != nil {
		return err
	}
	if strict {
		if _, err := res.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func doServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	attrs := slog.Group("piper",
		slog.String("cmd", "serve"),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	svc, err := service.New(ctx, config)
	if err != nil {
		return err
	}
	return svc.Do(ctx)
}

// profiles.yaml lives next to the loaded config file
func profilesPath() string {
	return filepath.Join(filepath.Dir(configPath), "profiles.yaml")
}
