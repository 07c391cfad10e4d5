package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/ExportReady-Intelligence/internal/config"
	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
	"github.com/turtacn/ExportReady-Intelligence/pkg/types/common"
)

func newChangesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Work with the significant change event stream",
	}
	var group string
	follow := &cobra.Command{
		Use:   "follow",
		Short: "Print significant change events from Kafka until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			rt, err := c.Runtime(cmd.Context())
			if err != nil {
				return err
			}
			out := json.NewEncoder(cmd.OutOrStdout())
			printer := business.ChangeSubscriberFunc(func(_ context.Context, e *business.SignificantChangeEvent) error {
				return out.Encode(e)
			})
			consumer, err := kafka.NewChangeEventConsumer(c.Config.Kafka, group, printer, c.Logger)
			if err != nil {
				return err
			}
			defer consumer.Close()
			consumer.WithObserver(rt.Metrics)
			c.Logger.Info("following change events", logging.String("group", group))
			return consumer.Run(cmd.Context())
		},
	}
	follow.Flags().StringVar(&group, "group", "exportready-cli", "consumer group id")
	cmd.AddCommand(follow)
	return cmd
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	withMigrator := func(cmd *cobra.Command, fn func(*postgres.Migrator) error) error {
		c, err := GetCLIContext(cmd)
		if err != nil {
			return err
		}
		if c.Config.Storage.Backend != config.BackendPostgres {
			return errors.Newf(errors.ErrCodeBadRequest, "migrations apply to the postgres backend, configured backend is %q", c.Config.Storage.Backend)
		}
		m, err := postgres.NewMigrator(c.Config.Database, c.Logger)
		if err != nil {
			return err
		}
		defer m.Close()
		return fn(m)
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *postgres.Migrator) error { return m.Up() })
		},
	}
	down := &cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back the given number of migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return errors.Wrap(err, errors.ErrCodeBadRequest, "steps must be an integer")
				}
				steps = n
			}
			return withMigrator(cmd, func(m *postgres.Migrator) error { return m.Rollback(steps) })
		},
	}
	status := &cobra.Command{
		Use:   "status",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *postgres.Migrator) error {
				version, dirty, err := m.Status()
				if err != nil {
					return err
				}
				return PrintResult(cmd, map[string]interface{}{"version": version, "dirty": dirty})
			})
		},
	}
	force := &cobra.Command{
		Use:   "force <version>",
		Short: "Mark the schema as being at version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeBadRequest, "version must be an integer")
			}
			return withMigrator(cmd, func(m *postgres.Migrator) error { return m.Force(v) })
		},
	}
	cmd.AddCommand(up, down, status, force)
	return cmd
}

type healthReport []common.ComponentHealth

func (h healthReport) TableHeaders() []string {
	return []string{"COMPONENT", "STATUS", "LATENCY", "MESSAGE"}
}

func (h healthReport) TableRows() [][]string {
	rows := make([][]string, 0, len(h))
	for _, c := range h {
		rows = append(rows, []string{c.Name, string(c.Status), c.Latency.String(), c.Message})
	}
	return rows
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the configured backing services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, rt, ctx, cancel, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			report := healthReport(rt.Health(ctx))
			if err := PrintResult(cmd, report); err != nil {
				return err
			}
			for _, c := range report {
				if c.Status != common.HealthUp {
					return fmt.Errorf("%s is %s", c.Name, c.Status)
				}
			}
			return nil
		},
	}
}
