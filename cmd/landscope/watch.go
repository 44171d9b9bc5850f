package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"landScope/internal/aggregate"
	"landScope/internal/live"
	"landScope/internal/model"
	"landScope/internal/publish"
	"landScope/internal/pubsub"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Refresh a read view on every new block and stream the results",
		RunE:  runWatch,
	}
	addReadFlags(cmd)
	cmd.Flags().String("view", "history", "view to keep fresh: history or market")
	cmd.Flags().Int("limit", 50, "keep only the most recent N rows, 0 keeps all")
	cmd.Flags().String("account", "", "only rows where the account is a counterparty")
	cmd.Flags().StringSlice("types", nil, "only these event types")
	cmd.Flags().Bool("timestamps", true, "resolve block timestamps")
	cmd.Flags().String("heads", "poll", "head source: poll or ws")
	cmd.Flags().Duration("poll-interval", 4*time.Second, "head polling interval")
	cmd.Flags().Duration("debounce", live.DefaultDebounce, "collapse heads arriving within this window")
	cmd.Flags().String("policy", "drop", "trigger during a refresh: drop or coalesce")
	cmd.Flags().String("nats-url", "", "NATS server to publish results to")
	cmd.Flags().String("nats-subject", "landscope", "NATS subject prefix")
	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	view, _ := cmd.Flags().GetString("view")

	session, err := openReadSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer session.Close()

	switch view {
	case "history":
		refresh := func(ctx context.Context, block uint64) (aggregate.Page, error) {
			return session.agg.Rows(ctx, session.queryAt(block))
		}
		sameRows := func(a, b aggregate.Page) bool {
			return sameEventRows(a.Rows, b.Rows)
		}
		return watchView(ctx, session, view, refresh, sameRows)
	case "market":
		refresh := func(ctx context.Context, block uint64) (model.MarketSnapshot, error) {
			return session.agg.MarketSnapshot(ctx, session.queryAt(block))
		}
		sameAsks := func(a, b model.MarketSnapshot) bool {
			return a.Balance == b.Balance && sameSellOrders(a.Asks, b.Asks)
		}
		return watchView(ctx, session, view, refresh, sameAsks)
	default:
		return fmt.Errorf("view must be history or market, got %q", view)
	}
}

// queryAt pins the read window to a head; block 0 reads at the latest block.
func (s *readSession) queryAt(block uint64) aggregate.Query {
	q := s.query()
	if block > 0 {
		q.ToBlock = block
	}
	return q
}

func (s *readSession) headSource() live.HeadSource {
	if s.cfg.Heads == "ws" {
		return live.NewNewHeads(s.client, retryPolicy(s.cfg.Common), s.logger)
	}
	return live.NewPollingHeads(s.client, s.cfg.PollInterval, s.logger)
}

func watchView[T any](
	ctx context.Context,
	session *readSession,
	view string,
	refresh live.RefreshFunc[T],
	equal func(a, b T) bool,
) (err error) {
	policy, err := live.ParsePolicy(session.cfg.Policy)
	if err != nil {
		return err
	}

	bus := pubsub.New[live.Result[T]]()
	defer bus.Close()

	out, err := session.output()
	if err != nil {
		return err
	}
	defer closeOutput(out, &err)

	printer, err := bus.Subscribe(16)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		printResults(out, printer, session.logger)
	}()

	if session.cfg.NATSURL != "" {
		publisher, err := publish.Connect(publish.Config{
			URL:            session.cfg.NATSURL,
			SubjectPrefix:  session.cfg.NATSSubject,
			ConnectionName: "landscope-watch",
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
		}, session.logger)
		if err != nil {
			return err
		}
		defer publisher.Close()

		forward, err := bus.Subscribe(16)
		if err != nil {
			return err
		}
		subject := publisher.Subject(session.chainID, view)
		wg.Add(1)
		go func() {
			defer wg.Done()
			publish.Forward(ctx, publisher, forward, subject)
		}()
		session.logger.Info("publishing to nats", zap.String("subject", subject))
	}

	subscriber := live.NewSubscriber(session.headSource(), refresh, live.Options[T]{
		Debounce:           session.cfg.Debounce,
		Policy:             policy,
		RefreshOnSubscribe: true,
		Equal:              equal,
		Bus:                bus,
		Logger:             session.logger,
	})
	if err := subscriber.Subscribe(ctx); err != nil {
		return err
	}
	session.logger.Info("watching",
		zap.String("view", view),
		zap.String("heads", session.cfg.Heads),
		zap.Duration("debounce", session.cfg.Debounce),
		zap.String("policy", session.cfg.Policy),
	)

	select {
	case <-ctx.Done():
	case <-subscriber.Done():
	}
	subscriber.Unsubscribe()
	bus.Close()
	wg.Wait()

	session.logger.Info("watch stopped",
		zap.Uint64("refreshes", subscriber.Refreshes()),
		zap.Uint64("dropped_triggers", subscriber.Dropped()),
		zap.Uint64("dropped_messages", printer.Dropped()),
	)
	if stopErr := subscriber.Err(); stopErr != nil {
		return fmt.Errorf("watch %s: %w", view, stopErr)
	}
	return nil
}

func printResults[T any](out *jsonlWriter, sub *pubsub.Subscription[live.Result[T]], logger *zap.Logger) {
	for result := range sub.C() {
		if result.Outcome == live.OutcomeUnchanged {
			continue
		}
		if err := out.Write(publish.NewMessage(result)); err != nil {
			logger.Warn("write result failed", zap.Error(err))
			continue
		}
		if err := out.Flush(); err != nil {
			logger.Warn("flush output failed", zap.Error(err))
		}
	}
}

func sameEventRows(a, b []model.EventRow) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || timestampOf(a[i]) != timestampOf(b[i]) {
			return false
		}
	}
	return true
}

func timestampOf(row model.EventRow) uint64 {
	if row.Timestamp == nil {
		return 0
	}
	return *row.Timestamp
}

func sameSellOrders(a, b []model.SellOrder) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
