package limits

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"

	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/feeder"
)

// Source yields the current-limit table for one line, keyed by line mRID.
type Source interface {
	Limits(ctx context.Context, lineName string) (map[string]feeder.CurrentLimit, error)
}

// Querier is the slice of a pgx pool the store needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const selectLimits = `SELECT mrid, normal, emergency FROM current_limits WHERE line_name = $1 ORDER BY mrid`

// PGStore reads limits from the current_limits table.
type PGStore struct {
	q Querier
}

func NewPGStore(q Querier) *PGStore {
	return &PGStore{q: q}
}

func (s *PGStore) Limits(ctx context.Context, lineName string) (map[string]feeder.CurrentLimit, error) {
	rows, err := s.q.Query(ctx, selectLimits, lineName)
	if err != nil {
		return nil, fmt.Errorf("query current limits: %w", err)
	}

	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (feeder.CurrentLimit, error) {
		var l feeder.CurrentLimit
		err := row.Scan(&l.MRID, &l.Normal, &l.Emergency)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan current limits: %w", err)
	}

	return Index(list), nil
}

// FileStore serves one static table, loaded from JSON, to every line.
type FileStore struct {
	limits map[string]feeder.CurrentLimit
}

// LoadFile reads a JSON array of current limits.
func LoadFile(path string) (*FileStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read limits file: %w", err)
	}

	var list []feeder.CurrentLimit
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode limits file %s: %w", path, err)
	}

	return &FileStore{limits: Index(list)}, nil
}

func (s *FileStore) Limits(_ context.Context, _ string) (map[string]feeder.CurrentLimit, error) {
	out := make(map[string]feeder.CurrentLimit, len(s.limits))
	for k, v := range s.limits {
		out[k] = v
	}
	return out, nil
}

// Index keys limits by mRID. Entries without an mRID are dropped; a later
// duplicate wins.
func Index(list []feeder.CurrentLimit) map[string]feeder.CurrentLimit {
	out := make(map[string]feeder.CurrentLimit, len(list))
	for _, l := range list {
		if l.MRID == "" {
			continue
		}
		out[l.MRID] = l
	}
	return out
}
