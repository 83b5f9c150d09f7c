package catalog

import (
	"database/sql"

	"github.com/uptrace/bun"
)

// ArtistModel maps the Artist table.
type ArtistModel struct {
	bun.BaseModel `bun:"table:Artist,alias:artist"`

	ArtistID int64  `bun:"ArtistId,pk,autoincrement"`
	Name     string `bun:"Name"`
}

// AlbumModel maps the Album table.
type AlbumModel struct {
	bun.BaseModel `bun:"table:Album,alias:album"`

	AlbumID  int64         `bun:"AlbumId,pk,autoincrement"`
	Title    string        `bun:"Title"`
	ArtistID sql.NullInt64 `bun:"ArtistId"`

	Artist *ArtistModel `bun:"rel:belongs-to,join:ArtistId=ArtistId"`
}

// GenreModel maps the Genre table.
type GenreModel struct {
	bun.BaseModel `bun:"table:Genre,alias:genre"`

	GenreID int64  `bun:"GenreId,pk,autoincrement"`
	Name    string `bun:"Name"`
}

// TrackModel maps the Track table.
type TrackModel struct {
	bun.BaseModel `bun:"table:Track,alias:track"`

	TrackID      int64         `bun:"TrackId,pk,autoincrement"`
	Name         string        `bun:"Name"`
	AlbumID      sql.NullInt64 `bun:"AlbumId"`
	GenreID      sql.NullInt64 `bun:"GenreId"`
	Milliseconds sql.NullInt64 `bun:"Milliseconds"`

	Album *AlbumModel `bun:"rel:belongs-to,join:AlbumId=AlbumId"`
	Genre *GenreModel `bun:"rel:belongs-to,join:GenreId=GenreId"`
}

// Flatten converts a joined row into a Track. It reports false when a
// relation is missing, matching inner join semantics.
func (m *TrackModel) Flatten() (Track, bool) {
	if m == nil || m.Album == nil || m.Album.Artist == nil || m.Genre == nil {
		return Track{}, false
	}
	return Track{
		Name:     m.Name,
		Album:    m.Album.Title,
		Artist:   m.Album.Artist.Name,
		Duration: Seconds(m.Milliseconds),
		Genre:    m.Genre.Name,
	}, true
}
