package model

// Event is something that can be shown at a scheduled time with its own
// seat inventory: a movie, or a trip such as a bus route when IsMovie is
// false.  Events are created by the seeding step and are read-only to the
// booking server.  Rows live in the `movies` table.
//
// Fields:
//
//	ID      – primary key identifier.
//	Title   – display title.
//	IsMovie – category flag (true for movies, false for trips).
type Event struct {
	ID      uint64 `json:"id"`       // movies.id
	Title   string `json:"title"`    // movies.title
	IsMovie bool   `json:"is_movie"` // movies.is_movie
}
