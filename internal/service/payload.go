package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"payrecon/internal/domain"
)

var occurredAtLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// DecodeMutations normalizes a delivery body into a list of mutation events.
// The body may be a single mutation object, {"mutations": [...]}, or a bare
// array. Items that cannot be interpreted are counted in rejected rather than
// failing the batch; only an unparseable body returns ErrMalformedPayload.
func DecodeMutations(raw []byte) (events []domain.MutationEvent, rejected int, err error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := dec.Decode(new(any)); err != io.EOF {
		return nil, 0, fmt.Errorf("%w: trailing data after body", ErrMalformedPayload)
	}

	var items []any
	switch v := body.(type) {
	case []any:
		items = v
	case map[string]any:
		if wrapped, ok := v["mutations"]; ok {
			list, ok := wrapped.([]any)
			if !ok {
				return nil, 0, fmt.Errorf("%w: mutations must be an array", ErrMalformedPayload)
			}
			items = list
		} else {
			items = []any{v}
		}
	default:
		return nil, 0, fmt.Errorf("%w: expected object or array", ErrMalformedPayload)
	}

	events = make([]domain.MutationEvent, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			rejected++
			continue
		}
		event, err := decodeMutation(obj)
		if err != nil {
			rejected++
			continue
		}
		events = append(events, event)
	}

	return events, rejected, nil
}

func decodeMutation(obj map[string]any) (domain.MutationEvent, error) {
	amount, err := parseAmount(obj["amount"])
	if err != nil {
		return domain.MutationEvent{}, err
	}

	direction, err := parseDirection(stringField(obj, "type"))
	if err != nil {
		return domain.MutationEvent{}, err
	}

	return domain.MutationEvent{
		ID:            stringField(obj, "id", "mutation_id"),
		ReferenceText: stringField(obj, "description", "reference", "note"),
		Amount:        amount,
		Direction:     direction,
		BankAccountID: stringField(obj, "bank_id", "account_id"),
		OccurredAt:    parseOccurredAt(stringField(obj, "created_at", "date")),
	}, nil
}

// stringField returns the first non-empty value among keys. Numeric ids are
// rendered in their original JSON form.
func stringField(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := obj[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func parseAmount(v any) (decimal.Decimal, error) {
	switch a := v.(type) {
	case json.Number:
		return decimal.NewFromString(a.String())
	case string:
		clean := strings.ReplaceAll(strings.TrimSpace(a), ",", "")
		return decimal.NewFromString(clean)
	default:
		return decimal.Zero, fmt.Errorf("amount missing or not numeric")
	}
}

func parseDirection(s string) (domain.Direction, error) {
	switch strings.ToUpper(s) {
	case "CR", "CREDIT":
		return domain.DirectionCredit, nil
	case "DB", "DEBIT":
		return domain.DirectionDebit, nil
	default:
		return "", fmt.Errorf("unknown mutation type %q", s)
	}
}

func parseOccurredAt(s string) time.Time {
	for _, layout := range occurredAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
