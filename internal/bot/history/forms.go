package history

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"
)

// CompletedForm is an archived form submission.
type CompletedForm struct {
	ID        int64
	Timestamp time.Time
	// Reference is the short code quoted back to the customer.
	Reference string
	Kind      string
	UserKey   string
	Fields    map[string]string
}

// referenceAlphabet matches the codes the bot has always quoted to customers.
const referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewReference generates a 6-character form reference code.
func NewReference() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%06d", time.Now().UnixNano()%1000000)
	}
	for i := range b {
		b[i] = referenceAlphabet[int(b[i])%len(referenceAlphabet)]
	}
	return string(b)
}

// SaveForm archives a completed form and returns its reference code.
func (s *Store) SaveForm(ctx context.Context, kind, userKey string, fields map[string]string) (string, error) {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to marshal form fields: %w", err)
	}
	ref := NewReference()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO forms (ts, reference, form_kind, user_key, fields_json) VALUES (?, ?, ?, ?, ?)
	`, time.Now().UTC(), ref, kind, userKey, string(fieldsJSON)); err != nil {
		return "", fmt.Errorf("failed to archive form: %w", err)
	}
	return ref, nil
}

// FormsFor returns the archived forms submitted by userKey, newest first.
func (s *Store) FormsFor(ctx context.Context, userKey string) ([]CompletedForm, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, reference, form_kind, user_key, fields_json
		FROM forms WHERE user_key = ? ORDER BY id DESC
	`, userKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query forms: %w", err)
	}
	defer rows.Close()

	var out []CompletedForm
	for rows.Next() {
		var f CompletedForm
		var fieldsJSON string
		if err := rows.Scan(&f.ID, &f.Timestamp, &f.Reference, &f.Kind, &f.UserKey, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan form: %w", err)
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &f.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode form fields: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
