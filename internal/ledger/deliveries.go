package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Source values for delivery rows.
const (
	SourcePipeline = "pipeline"
	SourceImport   = "import"
)

// Delivery is one append-only ledger row.
type Delivery struct {
	ID           int64
	EditionID    string
	DeliveredAt  time.Time
	Destinations []string
	Success      bool
	Source       string
}

// Filter narrows listing queries.
type Filter struct {
	EditionID   string
	SuccessOnly bool
	Limit       uint64
}

// IsDelivered reports whether id has a successful delivery row.
func (s *Store) IsDelivered(ctx context.Context, id string) (bool, error) {
	query, args, err := sq.Select("COUNT(1)").
		From("deliveries").
		Where(sq.Eq{"edition_id": id, "success": 1}).
		ToSql()
	if err != nil {
		return false, ioError("is delivered", err)
	}
	ctx = ensureContext(ctx)
	var count int
	if err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	}); err != nil {
		return false, ioError("is delivered", err)
	}
	return count > 0, nil
}

// RecordDelivered appends a successful delivery for id and confirms every
// destination in the same transaction.
func (s *Store) RecordDelivered(ctx context.Context, id string, destinations []string, at time.Time) error {
	return s.Append(ctx, Delivery{
		EditionID:    id,
		DeliveredAt:  at,
		Destinations: destinations,
		Success:      true,
		Source:       SourcePipeline,
	})
}

// Append writes one delivery row. Rows with Success false document partial
// deliveries and never count towards membership. Destinations on any
// pipeline row are confirmed receipts and are recorded alongside.
func (s *Store) Append(ctx context.Context, d Delivery) error {
	if strings.TrimSpace(d.EditionID) == "" {
		return ioError("append", fmt.Errorf("edition id is required"))
	}
	if d.Source == "" {
		d.Source = SourcePipeline
	}
	dests, err := json.Marshal(nonNil(d.Destinations))
	if err != nil {
		return ioError("append", fmt.Errorf("encode destinations: %w", err))
	}
	at := formatTime(d.DeliveredAt)
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO deliveries (edition_id, delivered_at, destinations, success, source) VALUES (?, ?, ?, ?, ?)`,
			d.EditionID, at, string(dests), boolToInt(d.Success), d.Source,
		); err != nil {
			return fmt.Errorf("insert delivery: %w", err)
		}
		if d.Source != SourcePipeline {
			return nil
		}
		return insertReceipts(ctx, tx, d.EditionID, d.Destinations, at)
	})
	if err != nil {
		return ioError("append", err)
	}
	return nil
}

// Deliveries lists ledger rows, newest first.
func (s *Store) Deliveries(ctx context.Context, filter Filter) ([]Delivery, error) {
	builder := sq.Select("id", "edition_id", "delivered_at", "destinations", "success", "source").
		From("deliveries").
		OrderBy("delivered_at DESC", "id DESC")
	if filter.EditionID != "" {
		builder = builder.Where(sq.Eq{"edition_id": filter.EditionID})
	}
	if filter.SuccessOnly {
		builder = builder.Where(sq.Eq{"success": 1})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(filter.Limit)
	}

	var out []Delivery
	err := s.query(ctx, builder, func(rows *sql.Rows) error {
		var (
			d       Delivery
			at      string
			dests   string
			success int
		)
		if err := rows.Scan(&d.ID, &d.EditionID, &at, &dests, &success, &d.Source); err != nil {
			return err
		}
		d.DeliveredAt = parseTime(at)
		d.Success = success == 1
		if err := json.Unmarshal([]byte(dests), &d.Destinations); err != nil {
			return fmt.Errorf("decode destinations for %s: %w", d.EditionID, err)
		}
		out = append(out, d)
		return nil
	})
	if err != nil {
		return nil, ioError("list deliveries", err)
	}
	return out, nil
}

// DeliveredSet returns every edition ID with a successful delivery.
func (s *Store) DeliveredSet(ctx context.Context) (map[string]struct{}, error) {
	builder := sq.Select("DISTINCT edition_id").From("deliveries").Where(sq.Eq{"success": 1})
	out := make(map[string]struct{})
	err := s.query(ctx, builder, func(rows *sql.Rows) error {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		out[id] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, ioError("delivered set", err)
	}
	return out, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
