package clickhouse

import (
	"context"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/domain"
	"farm-ledger/internal/observability"
	"farm-ledger/internal/storage"
)

// chRows is the subset of driver.Rows the scanners need.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// EventStore implements storage.EventStore using ClickHouse.
type EventStore struct {
	conn *Conn
}

// NewEventStore creates a new EventStore.
func NewEventStore(conn *Conn) *EventStore {
	return &EventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

const eventColumns = `seq, kind, pool_id, holder, amount, fee, block, timestamp, detail`

// Insert adds one event. Returns ErrDuplicateKey if seq exists.
func (s *EventStore) Insert(ctx context.Context, ev *domain.Event) error {
	return s.InsertBulk(ctx, []*domain.Event{ev})
}

// InsertBulk adds multiple events. Fails entire batch on any duplicate.
// MergeTree does not enforce keys, so duplicates are checked first.
func (s *EventStore) InsertBulk(ctx context.Context, evs []*domain.Event) (err error) {
	if len(evs) == 0 {
		return nil
	}
	defer observe("insert_events", time.Now(), &err)

	seen := make(map[uint64]struct{}, len(evs))
	seqs := make([]uint64, 0, len(evs))
	for _, ev := range evs {
		if ev == nil || ev.Seq == 0 {
			return storage.ErrInvalidInput
		}
		if _, dup := seen[ev.Seq]; dup {
			return storage.ErrDuplicateKey
		}
		seen[ev.Seq] = struct{}{}
		seqs = append(seqs, ev.Seq)
	}

	var existing uint64
	if err := s.conn.QueryRow(ctx, `SELECT count(*) FROM ledger_events WHERE seq IN (?)`, seqs).Scan(&existing); err != nil {
		return fmt.Errorf("check existing seqs: %w", err)
	}
	if existing > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO ledger_events (`+eventColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, ev := range evs {
		err = batch.Append(
			ev.Seq, string(ev.Kind), int32(ev.PoolID), ev.Holder.Hex(),
			amount.Or0(ev.Amount).String(), amount.Or0(ev.Fee).String(),
			ev.Block, ev.Timestamp, ev.Detail,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

func (s *EventStore) query(ctx context.Context, where string, args ...any) (_ []*domain.Event, err error) {
	defer observe("query_events", time.Now(), &err)

	rows, err := s.conn.Query(ctx, `SELECT `+eventColumns+` FROM ledger_events WHERE `+where+` ORDER BY seq ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetByHolder retrieves a holder's events, ordered by seq ASC.
func (s *EventStore) GetByHolder(ctx context.Context, holder common.Address) ([]*domain.Event, error) {
	return s.query(ctx, `holder = ?`, holder.Hex())
}

// GetByPool retrieves a pool's events, ordered by seq ASC.
func (s *EventStore) GetByPool(ctx context.Context, poolID int) ([]*domain.Event, error) {
	return s.query(ctx, `pool_id = ?`, int32(poolID))
}

// GetByTimeRange retrieves events with timestamp in [start, end] (inclusive).
func (s *EventStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Event, error) {
	return s.query(ctx, `timestamp >= ? AND timestamp <= ?`, start, end)
}

// MaxSeq returns the highest stored seq, zero when empty.
func (s *EventStore) MaxSeq(ctx context.Context) (uint64, error) {
	var max uint64
	if err := s.conn.QueryRow(ctx, `SELECT max(seq) FROM ledger_events`).Scan(&max); err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return max, nil
}

func observe(op string, start time.Time, err *error) {
	observability.RecordDBQuery("clickhouse", op, time.Since(start).Seconds(), *err)
}

// scanEvents scans multiple rows.
func scanEvents(rows chRows) ([]*domain.Event, error) {
	var evs []*domain.Event

	for rows.Next() {
		var (
			ev           domain.Event
			kind, holder string
			poolID       int32
			amt, fee     string
		)
		err := rows.Scan(&ev.Seq, &kind, &poolID, &holder, &amt, &fee, &ev.Block, &ev.Timestamp, &ev.Detail)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		ev.Kind = domain.EventKind(kind)
		ev.PoolID = int(poolID)
		ev.Holder = common.HexToAddress(holder)
		if ev.Amount, err = sdkmath.ParseUint(amt); err != nil {
			return nil, fmt.Errorf("parse amount of event %d: %w", ev.Seq, err)
		}
		if ev.Fee, err = sdkmath.ParseUint(fee); err != nil {
			return nil, fmt.Errorf("parse fee of event %d: %w", ev.Seq, err)
		}
		evs = append(evs, &ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return evs, nil
}
