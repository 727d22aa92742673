// Command cashctl is the operator CLI of the cash collection service.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/config"
	"github.com/aiaimg/taxcollecotr-sub000/internal/infra"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"
	"github.com/aiaimg/taxcollecotr-sub000/internal/service"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	rootCmd := &cobra.Command{
		Use:           "cashctl",
		Short:         "cashctl - operator tooling for vehicle-tax cash collection",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(unreconciledCmd())
	rootCmd.AddCommand(hashPasswordCmd())
	rootCmd.AddCommand(jobsCmd())
	rootCmd.AddCommand(paymentsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// backend is the slice of the service graph the CLI needs.
type backend struct {
	cfg   *config.Config
	loc   *time.Location
	audit service.AuditService
	recon service.ReconciliationService
}

func openBackend() (*backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	cipher, err := infra.NewFieldCipher(cfg)
	if err != nil {
		return nil, err
	}

	tx := repository.NewTransactor(db)
	clock := service.SystemClock()
	audit := service.NewAuditService(repository.NewAuditRepository(db), cipher, clock)
	cfgSvc := service.NewSystemConfigService(tx, repository.NewSystemConfigRepository(db), audit, cfg.CashDefaults(), nil)
	recon := service.NewReconciliationService(
		tx,
		repository.NewCashSessionRepository(db),
		repository.NewCashTransactionRepository(db),
		cfgSvc, audit, clock, loc,
	)
	return &backend{cfg: cfg, loc: loc, audit: audit, recon: recon}, nil
}

// parseDay reads an optional YYYY-MM-DD flag as midnight in loc.
func parseDay(raw string, loc *time.Location) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: want YYYY-MM-DD", raw)
	}
	return &d, nil
}

// dayRange turns inclusive calendar days into a half-open [from, to) range.
func dayRange(fromRaw, toRaw string, loc *time.Location) (*time.Time, *time.Time, error) {
	from, err := parseDay(fromRaw, loc)
	if err != nil {
		return nil, nil, err
	}
	to, err := parseDay(toRaw, loc)
	if err != nil {
		return nil, nil, err
	}
	if to != nil {
		next := to.AddDate(0, 0, 1)
		to = &next
	}
	return from, to, nil
}
