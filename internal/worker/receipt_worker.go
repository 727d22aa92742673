package worker

// receipt_worker.go
// Processes receipt jobs from QueueReceipt:
//  1. Load the artifact, its payment and vehicle
//  2. Render the PDF receipt (go-pdf/fpdf)
//  3. Store the file path on the artifact
//  4. Email the receipt to the payer when they have an address

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aiaimg/taxcollecotr-sub000/internal/infra"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type ReceiptWorker struct {
	artifacts     repository.VerificationArtifactRepository
	payments      repository.TaxPaymentRepository
	vehicles      repository.VehicleRepository
	users         repository.UserRepository
	mailer        Mailer // optional
	storagePath   string
	verifyBaseURL string
}

func NewReceiptWorker(
	artifacts repository.VerificationArtifactRepository,
	payments repository.TaxPaymentRepository,
	vehicles repository.VehicleRepository,
	users repository.UserRepository,
	mailer Mailer,
	storagePath string,
	verifyBaseURL string,
) *ReceiptWorker {
	return &ReceiptWorker{
		artifacts:     artifacts,
		payments:      payments,
		vehicles:      vehicles,
		users:         users,
		mailer:        mailer,
		storagePath:   storagePath,
		verifyBaseURL: verifyBaseURL,
	}
}

func (w *ReceiptWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var job ReceiptJob
	if err := json.Unmarshal(raw, &job); err != nil {
		log.Error().Err(err).Msg("receipt_worker: invalid payload")
		return nil
	}

	artifact, err := w.artifacts.FindByID(ctx, job.ArtifactID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn().Str("artifact_id", job.ArtifactID.String()).Msg("receipt_worker: artifact not found, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	if artifact.RevokedAt != nil {
		log.Info().Str("artifact_id", artifact.ID.String()).Msg("receipt_worker: artifact revoked, skipping")
		return nil
	}
	if artifact.ReceiptPath != nil {
		return nil
	}

	payment, err := w.payments.FindByID(ctx, nil, artifact.PaymentID)
	if err != nil {
		return fmt.Errorf("receipt_worker: load payment: %w", err)
	}
	vehicle, err := w.vehicles.FindByID(ctx, artifact.VehicleID)
	if err != nil {
		return fmt.Errorf("receipt_worker: load vehicle: %w", err)
	}

	data := infra.ReceiptData{
		ArtifactID:   artifact.ID.String(),
		ArtifactCode: artifact.Code,
		Plate:        vehicle.Plate,
		OwnerName:    vehicle.OwnerName,
		TaxYear:      artifact.TaxYear,
		Amount:       payment.Amount,
		Method:       payment.Method,
		Reference:    payment.Reference,
		PaidAt:       artifact.IssuedAt,
	}
	if payment.PaidAt != nil {
		data.PaidAt = *payment.PaidAt
	}
	if w.verifyBaseURL != "" {
		data.VerifyURL = strings.TrimRight(w.verifyBaseURL, "/") + "/" + artifact.Code
	}

	path, err := infra.GenerateReceiptPDF(data, w.storagePath)
	if err != nil {
		return err
	}
	if err := w.artifacts.SetReceiptPath(ctx, artifact.ID, path); err != nil {
		return fmt.Errorf("receipt_worker: store path: %w", err)
	}
	log.Info().Str("artifact_id", artifact.ID.String()).Str("path", path).Msg("receipt_worker: receipt rendered")

	w.emailReceipt(ctx, payment.PayerUserID, data, path)
	return nil
}

// emailReceipt is best effort: the receipt stays downloadable either way.
func (w *ReceiptWorker) emailReceipt(ctx context.Context, payerID *uuid.UUID, data infra.ReceiptData, path string) {
	if w.mailer == nil || payerID == nil {
		return
	}
	payer, err := w.users.FindByID(ctx, *payerID)
	if err != nil || payer.Email == nil || *payer.Email == "" {
		return
	}
	subject := fmt.Sprintf("Vehicle tax receipt %s (%d)", data.Plate, data.TaxYear)
	body := fmt.Sprintf("Your %d vehicle tax payment of %s MGA for %s is recorded.\nVerification code: %s\n",
		data.TaxYear, data.Amount.StringFixed(2), data.Plate, data.ArtifactCode)
	if err := w.mailer.Send(*payer.Email, subject, body, path); err != nil {
		log.Warn().Err(err).Str("artifact_id", data.ArtifactID).Msg("receipt_worker: email failed")
	}
}
