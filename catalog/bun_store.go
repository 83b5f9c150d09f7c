package catalog

import (
	"context"
	"fmt"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NewTrackRepository returns a generic repository over the Track table.
// Chinook keys are integers, so the UUID handlers are inert.
func NewTrackRepository(db *bun.DB) repository.Repository[*TrackModel] {
	return repository.NewRepository[*TrackModel](db, repository.ModelHandlers[*TrackModel]{
		NewRecord: func() *TrackModel {
			return &TrackModel{}
		},
		GetID: func(*TrackModel) uuid.UUID {
			return uuid.Nil
		},
		SetID: func(*TrackModel, uuid.UUID) {},
		GetIdentifier: func() string {
			return "Name"
		},
	})
}

// BunStore is the RecordStore backed by the relational catalog.
type BunStore struct {
	tracks repository.Repository[*TrackModel]
}

var _ RecordStore = (*BunStore)(nil)

// NewBunStore creates a store over db.
func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{tracks: NewTrackRepository(db)}
}

// NewBunStoreFromRepository creates a store over an existing repository.
func NewBunStoreFromRepository(tracks repository.Repository[*TrackModel]) *BunStore {
	return &BunStore{tracks: tracks}
}

// Fetch joins every track with its album, artist and genre. Tracks missing
// any of the three are omitted. The result is never nil.
func (s *BunStore) Fetch(ctx context.Context, filter string) ([]Track, error) {
	criteria := []repository.SelectCriteria{withRelations}
	if filter != "" {
		criteria = append(criteria, nameContains(filter))
	}

	rows, _, err := s.tracks.List(ctx, criteria...)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}

	out := make([]Track, 0, len(rows))
	for _, row := range rows {
		if t, ok := row.Flatten(); ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func withRelations(q *bun.SelectQuery) *bun.SelectQuery {
	return q.
		Relation("Album").
		Relation("Album.Artist").
		Relation("Genre").
		Where(`"album"."AlbumId" IS NOT NULL`).
		Where(`"album__artist"."ArtistId" IS NOT NULL`).
		Where(`"genre"."GenreId" IS NOT NULL`).
		OrderExpr(`"track"."TrackId" ASC`)
}

func nameContains(filter string) repository.SelectCriteria {
	pattern := "%" + strings.ToLower(filter) + "%"
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where(`lower("track"."Name") LIKE ?`, pattern)
	}
}
