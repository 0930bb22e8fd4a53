package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/neomorfeo/schoolhub/internal/bootstrap"
	"github.com/neomorfeo/schoolhub/internal/config"
	"github.com/neomorfeo/schoolhub/internal/logging"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "schoolhubctl",
		Short:         "SchoolHub operator CLI",
		Long:          "Administrative utilities for SchoolHub: provision admins, convert them into school tenants, roll back and sweep orphans.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(adminCommand(), convertCommand(), conversionCommand(), sweepCommand())
	return root
}

// withApp loads configuration, wires the services and runs fn with them.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *bootstrap.App) error) (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Component: "ctl",
		Level:     cfg.LogLevel,
		Output:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := logging.WithLogger(cmd.Context(), logger)

	a, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("closing resources", zap.Error(cerr))
			err = errors.Join(err, cerr)
		}
	}()

	return fn(ctx, a)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
