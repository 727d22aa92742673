package main

import (
	"context"
	"fmt"

	"github.com/aiaimg/taxcollecotr-sub000/internal/config"
	"github.com/aiaimg/taxcollecotr-sub000/internal/infra"
	"github.com/aiaimg/taxcollecotr-sub000/internal/worker"

	"github.com/spf13/cobra"
)

var jobQueues = []string{worker.QueueReceipt, worker.QueueNotification}

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and replay background job dead letters",
	}
	cmd.AddCommand(jobsStatusCmd(), jobsReplayCmd())
	return cmd
}

func openBroker() (*worker.RedisBroker, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	return worker.NewRedisBroker(rdb), func() { _ = rdb.Close() }, nil
}

func jobsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pending and dead-lettered job counts per queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			broker, closeFn, err := openBroker()
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := context.Background()
			for _, q := range jobQueues {
				pending, err := broker.Len(ctx, q)
				if err != nil {
					return err
				}
				dead, err := worker.DLQLength(ctx, broker, q)
				if err != nil {
					return err
				}
				fmt.Printf("%-20s pending=%d dead=%d\n", q, pending, dead)
			}
			return nil
		},
	}
}

func jobsReplayCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "replay <queue>",
		Short: "Move dead letters back onto their queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queue := args[0]
			known := false
			for _, q := range jobQueues {
				known = known || q == queue
			}
			if !known {
				return fmt.Errorf("unknown queue %q (want one of %v)", queue, jobQueues)
			}

			broker, closeFn, err := openBroker()
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := worker.ReplayDeadLetters(context.Background(), broker, queue, limit)
			if err != nil {
				return err
			}
			fmt.Printf("requeued %d, dropped %d malformed\n", res.Requeued, res.Dropped)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "replay at most N letters (0 = all)")
	return cmd
}
