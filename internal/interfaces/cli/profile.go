package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
	"github.com/turtacn/ExportReady-Intelligence/pkg/types/common"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage business profiles and their change history",
	}
	cmd.AddCommand(newProfileUpdateCmd(), newProfileGetCmd(), newProfileHistoryCmd())
	return cmd
}

func newProfileUpdateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Save a profile snapshot and print the detected changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var p business.Profile
			if err := readJSON(cmd, file, &p); err != nil {
				return err
			}
			_, rt, ctx, cancel, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			changes, err := rt.Profiles.UpdateProfile(ctx, &p)
			if err != nil {
				return err
			}
			return PrintResult(cmd, changeList(changes))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "profile JSON file, - for stdin (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newProfileGetCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the stored profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, rt, ctx, cancel, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			p, err := rt.Profiles.GetProfile(ctx, id)
			if err != nil {
				return err
			}
			return PrintResult(cmd, p)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "business identifier (required)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newProfileHistoryCmd() *cobra.Command {
	var id, from, to string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the change log of a business, optionally within [from, to)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := parseRange(from, to)
			if err != nil {
				return err
			}
			_, rt, ctx, cancel, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			changes, err := rt.Profiles.ChangeHistory(ctx, id, r)
			if err != nil {
				return err
			}
			return PrintResult(cmd, changeList(changes))
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "business identifier (required)")
	cmd.Flags().StringVar(&from, "from", "", "inclusive start, RFC 3339")
	cmd.Flags().StringVar(&to, "to", "", "exclusive end, RFC 3339")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

// parseRange requires both bounds or neither.
func parseRange(from, to string) (common.TimeRange, error) {
	if from == "" && to == "" {
		return common.TimeRange{}, nil
	}
	if from == "" || to == "" {
		return common.TimeRange{}, errors.New(errors.ErrCodeBadRequest, "--from and --to must be given together")
	}
	f, err := time.Parse(time.RFC3339, from)
	if err != nil {
		return common.TimeRange{}, errors.Wrap(err, errors.ErrCodeBadRequest, "invalid --from")
	}
	t, err := time.Parse(time.RFC3339, to)
	if err != nil {
		return common.TimeRange{}, errors.Wrap(err, errors.ErrCodeBadRequest, "invalid --to")
	}
	return common.TimeRange{From: f, To: t}, nil
}

type changeList []business.ProfileChange

func (l changeList) TableHeaders() []string {
	return []string{"TIMESTAMP", "FIELD", "TYPE", "SIGNIFICANCE", "OLD", "NEW"}
}

func (l changeList) TableRows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, c := range l {
		rows = append(rows, []string{
			c.Timestamp.Format(time.RFC3339), c.Field, string(c.ChangeType), string(c.Significance), c.OldValue, c.NewValue,
		})
	}
	return rows
}
