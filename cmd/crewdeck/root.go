package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crewdeck/crewdeck-go/internal/api"
	"github.com/crewdeck/crewdeck-go/internal/config"
	"github.com/crewdeck/crewdeck-go/internal/scope"
)

func newRootCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "crewdeck",
		Short:         "Crewdeck client tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newWatchCmd(cfg, logger))
	root.AddCommand(newTasksCmd(cfg, logger))
	return root
}

// newWatchCmd opens a project scope and prints each collection as change
// events reconcile into it.
func newWatchCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow live changes in a project scope",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := api.NewClient(cfg.API.BaseURL, cfg.API.Token, logger)

			ctrl, err := scope.Open(cmd.Context(), client, projectID, logger)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			proj, _ := ctrl.Store().Project()
			fmt.Printf("watching %q (%d tasks, %d members)\n",
				proj.Name, len(ctrl.Store().Tasks()), len(ctrl.Store().Members()))

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-sig:
			case <-ctrl.Done():
				logger.Warn("live channel closed, exiting")
			case <-cmd.Context().Done():
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project id (required)")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newTasksCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	var projectID string
	var archived bool

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List a project's tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := api.NewClient(cfg.API.BaseURL, cfg.API.Token, logger)

			ctrl, err := scope.Open(cmd.Context(), client, projectID, logger)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			tasks := ctrl.Store().Tasks()
			if archived {
				if err := ctrl.LoadArchived(cmd.Context()); err != nil {
					return err
				}
				tasks = ctrl.Store().ArchivedTasks()
			}
			for _, t := range tasks {
				fmt.Printf("%s  %-12s  %s (%d subtasks)\n", t.ID, t.Status, t.Title, len(t.SubTasks))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project id (required)")
	cmd.Flags().BoolVar(&archived, "archived", false, "list archived tasks instead of active ones")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}
