package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/nerrad567/mqttwaker/internal/history"
	"github.com/nerrad567/mqttwaker/internal/infrastructure/config"
	"github.com/nerrad567/mqttwaker/internal/infrastructure/database"
)

// printHistory writes the n most recent command history events to w as a
// table, newest first.
func printHistory(ctx context.Context, cfg *config.Config, n int, w io.Writer) error {
	if !cfg.Database.Enabled {
		return errors.New("command history is disabled (database.enabled is false)")
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	events, err := history.NewSQLiteRepository(db.DB).List(ctx, history.Filter{Limit: n})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RECEIVED\tCOMMAND\tOUTCOME\tTOPIC\tREASON")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.ReceivedAt.Local().Format(time.DateTime), e.Command, e.Outcome, e.Topic, e.Reason)
	}
	return tw.Flush()
}
