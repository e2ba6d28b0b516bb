package persist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// PlayerRecord 是玩家位置存檔列。
type PlayerRecord struct {
	Name      string
	MapID     string
	TileX     int32
	TileY     int32
	Elevation int16
}

type PlayerRepo struct {
	db *DB
}

func NewPlayerRepo(db *DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

// Load returns nil, nil when the player has never been saved.
func (r *PlayerRepo) Load(ctx context.Context, name string) (*PlayerRecord, error) {
	rec := &PlayerRecord{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT name, map_id, tile_x, tile_y, elevation
		 FROM players WHERE name = $1`, name,
	).Scan(&rec.Name, &rec.MapID, &rec.TileX, &rec.TileY, &rec.Elevation)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Save upserts the player's current map and tile position.
func (r *PlayerRepo) Save(ctx context.Context, rec *PlayerRecord) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO players (name, map_id, tile_x, tile_y, elevation, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (name) DO UPDATE SET
			map_id = EXCLUDED.map_id,
			tile_x = EXCLUDED.tile_x,
			tile_y = EXCLUDED.tile_y,
			elevation = EXCLUDED.elevation,
			updated_at = now()`,
		rec.Name, rec.MapID, rec.TileX, rec.TileY, rec.Elevation,
	)
	return err
}

func (r *PlayerRepo) NameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM players WHERE name = $1)`, name,
	).Scan(&exists)
	return exists, err
}
