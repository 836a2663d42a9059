package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"videovault/internal/app"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, progress websocket and processing pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, log, err := ctx.ensure()
			if err != nil {
				return err
			}
			db, err := ctx.openDatabase()
			if err != nil {
				return err
			}

			a, err := app.New(cfg, db, log)
			if err != nil {
				return err
			}
			return a.Run(signalCtx)
		},
	}
}
