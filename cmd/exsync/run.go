package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/beekhof/exchange-sync/internal/domain"
	"github.com/beekhof/exchange-sync/internal/ics"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newRunCommand(opts *globalOptions) *cobra.Command {
	var (
		taskID  string
		pretty  bool
		icsPath string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch today's events and print the resulting tasks",
		Long: `Run one invocation of the connector. Tasks are written to stdout as JSON,
one object per line, or as a single indented array with --pretty. Any failure
aborts the whole batch and nothing is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.setup(cmd)
			if err != nil {
				return err
			}

			c, err := newRegistry().New(opts.connector, cfg, logger)
			if err != nil {
				return err
			}

			if taskID == "" {
				taskID = uuid.NewString()
			}
			payload, err := json.Marshal(domain.Invocation{TaskID: taskID, Options: map[string]any{}})
			if err != nil {
				return fmt.Errorf("failed to encode invocation: %w", err)
			}

			tasks, err := c.Process(cmd.Context(), payload)
			if err != nil {
				return err
			}

			if err := writeTasks(cmd.OutOrStdout(), tasks, pretty); err != nil {
				return err
			}

			if icsPath != "" {
				if len(tasks) == 0 {
					logger.Info("no tasks, skipping iCalendar export", "path", icsPath)
					return nil
				}
				if err := writeICS(icsPath, tasks); err != nil {
					return err
				}
				logger.Info("exported tasks as iCalendar", "path", icsPath, "tasks", len(tasks))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&taskID, "task-id", "", "Invocation id (default: a random UUID)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Print tasks as an indented JSON array")
	cmd.Flags().StringVar(&icsPath, "ics", "", "Also write the tasks as VTODOs to this iCalendar file")
	return cmd
}

func writeTasks(w io.Writer, tasks []domain.Task, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
		if err := enc.Encode(tasks); err != nil {
			return fmt.Errorf("failed to write tasks: %w", err)
		}
		return nil
	}

	for _, t := range tasks {
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("failed to write task: %w", err)
		}
	}
	return nil
}

func writeICS(path string, tasks []domain.Task) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create iCalendar file: %w", err)
	}
	if err := ics.Encode(f, tasks); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write iCalendar file: %w", err)
	}
	return nil
}
