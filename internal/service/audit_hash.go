package service

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/model"

	"github.com/google/uuid"
)

// canonicalJSON re-encodes raw JSON with sorted object keys and untouched
// number literals, so a payload hashes the same before and after a JSONB
// round trip.
func canonicalJSON(raw []byte) ([]byte, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []byte("{}"), nil
	}
	v, err := decodeJSON(raw)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode action data: %w", err)
	}
	return v, nil
}

// normalizePayload converts typed values (decimals, UUIDs, times) to their
// JSON form so encryption and hashing only ever see plain JSON values.
func normalizePayload(data map[string]any) (map[string]any, error) {
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode action data: %w", err)
	}
	v, err := decodeJSON(raw)
	if err != nil {
		return nil, err
	}
	m, _ := v.(map[string]any)
	return m, nil
}

func optionalUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

// entryHash computes hex(SHA-256(previous_hash || canonical entry)).
// Every persisted field except current_hash is covered.
func entryHash(e *model.CashAuditLogEntry) (string, error) {
	data, err := canonicalJSON(e.ActionData)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(map[string]any{
		"id":             e.ID.String(),
		"sequence":       e.Sequence,
		"action":         e.Action,
		"user_id":        e.UserID.String(),
		"session_id":     optionalUUID(e.SessionID),
		"transaction_id": optionalUUID(e.TransactionID),
		"action_data":    json.RawMessage(data),
		"client_ip":      e.ClientIP,
		"user_agent":     e.UserAgent,
		"timestamp":      e.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", fmt.Errorf("encode audit entry: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(e.PreviousHash))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}
