package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/config"
	"github.com/aiaimg/taxcollecotr-sub000/internal/infra"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"
	"github.com/aiaimg/taxcollecotr-sub000/internal/service"
	"github.com/aiaimg/taxcollecotr-sub000/internal/worker"

	"github.com/spf13/cobra"
)

func paymentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "Repair payments whose success step did not finish",
	}
	cmd.AddCommand(paymentsResumeCmd())
	return cmd
}

func paymentsResumeCmd() *cobra.Command {
	var (
		grace time.Duration
		limit int
	)
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Issue the missing verification artifact of paid payments",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := infra.NewDatabase(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to postgres: %w", err)
			}
			rdb, err := infra.NewRedis(cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("connect to redis: %w", err)
			}
			defer rdb.Close()

			// Receipts and payer emails go through the same queues the server drains.
			dispatcher := worker.NewDispatcher(worker.NewRedisBroker(rdb))
			success := service.NewPaymentSuccessService(
				repository.NewTransactor(db),
				repository.NewTaxPaymentRepository(db),
				repository.NewVerificationArtifactRepository(db),
				dispatcher, dispatcher, service.SystemClock(),
			)
			n, err := success.ResumeIncomplete(context.Background(), grace, limit)
			fmt.Printf("completed %d payment(s)\n", n)
			return err
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 2*time.Minute, "skip payments paid more recently than this")
	cmd.Flags().IntVar(&limit, "limit", 500, "maximum payments to process")
	return cmd
}
