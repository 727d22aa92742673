package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/metrics"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// auditPageSize bounds how many entries verification and export hold in memory.
const auditPageSize = 500

// AuditRecord is what a business operation hands to the audit log.
type AuditRecord struct {
	Action        string
	UserID        uuid.UUID
	SessionID     *uuid.UUID
	TransactionID *uuid.UUID
	Data          map[string]any
}

type AuditService interface {
	// LogAction appends one entry to the global hash chain. Passing a live tx
	// makes the entry part of the caller's unit of work.
	LogAction(ctx context.Context, tx *gorm.DB, rec AuditRecord) (*model.CashAuditLogEntry, error)
	// VerifyAuditTrail recomputes every hash in [from, to). Nil bounds are open.
	VerifyAuditTrail(ctx context.Context, from, to *time.Time) (*dto.AuditVerification, error)
	GetAuditTrail(ctx context.Context, filter dto.AuditFilter, decrypt bool) ([]dto.AuditEntryView, error)
	// ExportAuditTrail streams entries as stored (sensitive fields stay
	// encrypted) and returns how many were written.
	ExportAuditTrail(ctx context.Context, w io.Writer, from, to *time.Time, format string) (int, error)
}

type auditService struct {
	repo   repository.AuditRepository
	cipher FieldCipher
	clock  Clock
}

func NewAuditService(repo repository.AuditRepository, cipher FieldCipher, clock Clock) AuditService {
	if clock == nil {
		clock = SystemClock()
	}
	return &auditService{repo: repo, cipher: cipher, clock: clock}
}

// ── LogAction ─────────────────────────────────────────────────────────────────

func (s *auditService) LogAction(ctx context.Context, tx *gorm.DB, rec AuditRecord) (*model.CashAuditLogEntry, error) {
	payload, err := normalizePayload(rec.Data)
	if err != nil {
		return nil, err
	}
	protected, err := encryptFields(s.cipher, payload)
	if err != nil {
		return nil, fmt.Errorf("encrypt audit fields: %w", err)
	}
	raw, err := json.Marshal(protected)
	if err != nil {
		return nil, fmt.Errorf("encode action data: %w", err)
	}
	data, err := canonicalJSON(raw)
	if err != nil {
		return nil, err
	}

	client := ClientInfoFrom(ctx)
	return s.repo.Append(ctx, tx, func(tail model.AuditChainTail) (*model.CashAuditLogEntry, error) {
		ts := utcNow(s.clock)
		if tail.LastTimestamp != nil && ts.Before(*tail.LastTimestamp) {
			ts = tail.LastTimestamp.UTC()
		}
		e := &model.CashAuditLogEntry{
			ID:            uuid.New(),
			Sequence:      tail.LastSequence + 1,
			Action:        rec.Action,
			UserID:        rec.UserID,
			SessionID:     rec.SessionID,
			TransactionID: rec.TransactionID,
			ActionData:    datatypes.JSON(data),
			ClientIP:      client.IP,
			UserAgent:     client.UserAgent,
			Timestamp:     ts,
			PreviousHash:  tail.LastHash,
		}
		h, err := entryHash(e)
		if err != nil {
			return nil, err
		}
		e.CurrentHash = h
		return e, nil
	})
}

// recordAudit is the best-effort wrapper used by business operations: an
// audit failure is logged and counted but never fails the operation.
func recordAudit(ctx context.Context, a AuditService, tx *gorm.DB, rec AuditRecord) {
	if a == nil {
		return
	}
	if _, err := a.LogAction(ctx, tx, rec); err != nil {
		metrics.AuditWriteFailuresTotal.WithLabelValues(rec.Action).Inc()
		log.Error().Err(err).
			Str("action", rec.Action).
			Str("user_id", rec.UserID.String()).
			Msg("audit: append failed, operation continues")
	}
}

// ── VerifyAuditTrail ──────────────────────────────────────────────────────────

func (s *auditService) VerifyAuditTrail(ctx context.Context, from, to *time.Time) (*dto.AuditVerification, error) {
	res := &dto.AuditVerification{Valid: true, Issues: []dto.AuditIssue{}}
	var (
		expectedPrev string
		started      bool
	)

	for offset := 0; ; offset += auditPageSize {
		page, err := s.repo.List(ctx, dto.AuditFilter{From: from, To: to, Limit: auditPageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		for i := range page {
			e := &page[i]
			if !started {
				started = true
				expectedPrev, err = s.predecessorHash(ctx, e.Sequence)
				if err != nil {
					return nil, err
				}
			}
			res.Checked++

			if e.PreviousHash != expectedPrev {
				res.Issues = append(res.Issues, dto.AuditIssue{
					EntryID:  e.ID.String(),
					Sequence: e.Sequence,
					Kind:     dto.IssueBrokenChainLink,
					Expected: expectedPrev,
					Actual:   e.PreviousHash,
				})
			}
			h, err := entryHash(e)
			if err != nil {
				return nil, err
			}
			if h != e.CurrentHash {
				res.Issues = append(res.Issues, dto.AuditIssue{
					EntryID:  e.ID.String(),
					Sequence: e.Sequence,
					Kind:     dto.IssueContentHashMismatch,
					Expected: h,
					Actual:   e.CurrentHash,
				})
			}
			expectedPrev = e.CurrentHash
		}
		if len(page) < auditPageSize {
			break
		}
	}

	// A full-chain run also checks that nothing was cut off the end.
	if to == nil && from == nil {
		tail, err := s.repo.Tail(ctx)
		if err == nil && tail.LastHash != expectedPrev {
			res.Issues = append(res.Issues, dto.AuditIssue{
				EntryID:  "chain_tail",
				Sequence: tail.LastSequence,
				Kind:     dto.IssueBrokenChainLink,
				Expected: tail.LastHash,
				Actual:   expectedPrev,
			})
		}
	}

	res.Valid = len(res.Issues) == 0
	return res, nil
}

// predecessorHash returns the hash the entry at seq must link to.
func (s *auditService) predecessorHash(ctx context.Context, seq int64) (string, error) {
	prev, err := s.repo.FindBefore(ctx, seq)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return prev.CurrentHash, nil
}

// ── GetAuditTrail ─────────────────────────────────────────────────────────────

func (s *auditService) GetAuditTrail(ctx context.Context, filter dto.AuditFilter, decrypt bool) ([]dto.AuditEntryView, error) {
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]dto.AuditEntryView, 0, len(entries))
	for i := range entries {
		v, err := s.toView(&entries[i], decrypt)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *auditService) toView(e *model.CashAuditLogEntry, decrypt bool) (dto.AuditEntryView, error) {
	data := map[string]any{}
	if len(e.ActionData) > 0 {
		v, err := decodeJSON(e.ActionData)
		if err != nil {
			return dto.AuditEntryView{}, err
		}
		if m, ok := v.(map[string]any); ok {
			data = m
		}
	}

	view := dto.AuditEntryView{
		ID:           e.ID.String(),
		Sequence:     e.Sequence,
		Action:       e.Action,
		UserID:       e.UserID.String(),
		ClientIP:     e.ClientIP,
		UserAgent:    e.UserAgent,
		Timestamp:    e.Timestamp.UTC(),
		PreviousHash: e.PreviousHash,
		CurrentHash:  e.CurrentHash,
		ActionData:   data,
	}
	if e.SessionID != nil {
		id := e.SessionID.String()
		view.SessionID = &id
	}
	if e.TransactionID != nil {
		id := e.TransactionID.String()
		view.TransactionID = &id
	}
	if decrypt {
		var failed []string
		view.ActionData, _ = decryptFields(s.cipher, data, "", &failed).(map[string]any)
		view.UndecryptableFields = sortedUnique(failed)
	}
	return view, nil
}

// ── ExportAuditTrail ──────────────────────────────────────────────────────────

func (s *auditService) ExportAuditTrail(ctx context.Context, w io.Writer, from, to *time.Time, format string) (int, error) {
	if format != dto.ExportJSONLines && format != dto.ExportJSON {
		return 0, ErrUnsupportedExportFormat.WithMessage(fmt.Sprintf("unsupported export format %q", format))
	}

	if format == dto.ExportJSON {
		head, err := json.Marshal(map[string]any{
			"exported_at": utcNow(s.clock),
			"from":        from,
			"to":          to,
		})
		if err != nil {
			return 0, err
		}
		// Reopen the header object so entries can be streamed into it.
		if _, err := fmt.Fprintf(w, "%s,\"entries\":[", head[:len(head)-1]); err != nil {
			return 0, err
		}
	}

	count := 0
	for offset := 0; ; offset += auditPageSize {
		page, err := s.repo.List(ctx, dto.AuditFilter{From: from, To: to, Limit: auditPageSize, Offset: offset})
		if err != nil {
			return count, err
		}
		for i := range page {
			v, err := s.toView(&page[i], false)
			if err != nil {
				return count, err
			}
			line, err := json.Marshal(v)
			if err != nil {
				return count, err
			}
			sep := "\n"
			if format == dto.ExportJSON {
				sep = ""
				if count > 0 {
					if _, err := io.WriteString(w, ","); err != nil {
						return count, err
					}
				}
			}
			if _, err := fmt.Fprintf(w, "%s%s", line, sep); err != nil {
				return count, err
			}
			count++
		}
		if len(page) < auditPageSize {
			break
		}
	}

	if format == dto.ExportJSON {
		if _, err := fmt.Fprintf(w, "],\"count\":%d}\n", count); err != nil {
			return count, err
		}
	}
	return count, nil
}
