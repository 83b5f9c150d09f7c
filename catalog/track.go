package catalog

import (
	"context"
	"database/sql"
	"strconv"
)

// Track is the flat record served to clients and stored in the cache.
// Field order is part of the cache wire format.
type Track struct {
	Name     string `json:"name" msgpack:"name"`
	Album    string `json:"album" msgpack:"album"`
	Artist   string `json:"artist" msgpack:"artist"`
	Duration string `json:"duration" msgpack:"duration"`
	Genre    string `json:"genre" msgpack:"genre"`
}

// RecordStore is the source of truth for tracks. An empty filter returns
// every track; otherwise tracks whose name contains filter, ignoring case.
type RecordStore interface {
	Fetch(ctx context.Context, filter string) ([]Track, error)
}

// StoreFunc adapts a function to RecordStore.
type StoreFunc func(ctx context.Context, filter string) ([]Track, error)

func (f StoreFunc) Fetch(ctx context.Context, filter string) ([]Track, error) {
	return f(ctx, filter)
}

// Seconds renders a millisecond count as whole seconds, rounding toward
// negative infinity. NULL renders as "0".
func Seconds(ms sql.NullInt64) string {
	if !ms.Valid {
		return "0"
	}
	return strconv.FormatInt(floorDiv(ms.Int64, 1000), 10)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
