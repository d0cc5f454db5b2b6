package privacy

import (
	"context"
	"time"

	"backend-strideup/internal/apperr"
	"backend-strideup/internal/db"
	"backend-strideup/internal/shared/geo"

	"github.com/google/uuid"
)

// MaxZonesPerUser caps how many privacy zones one user may keep.
const MaxZonesPerUser = 10

// ZoneSource yields the active privacy zones of a user.
type ZoneSource interface {
	ActiveZonesOf(ctx context.Context, userID string) ([]Zone, error)
}

type UserZone struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	RadiusMeters float64   `json:"radius_meters"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

type Store struct {
	db db.Querier
}

func NewStore(db db.Querier) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, input UserZone) (UserZone, error) {
	if err := geo.ValidateCoordinate(input.Lat, input.Lng); err != nil {
		return UserZone{}, apperr.Validation("%v", err)
	}
	if input.RadiusMeters <= 0 {
		return UserZone{}, apperr.Validation("radius_meters must be positive")
	}

	var count int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM privacy_zones WHERE user_id=$1`, input.UserID).Scan(&count); err != nil {
		return UserZone{}, err
	}
	if count >= MaxZonesPerUser {
		return UserZone{}, apperr.Validation("maximum %d privacy zones allowed", MaxZonesPerUser)
	}

	input.ID = uuid.NewString()
	input.IsActive = true
	row := s.db.QueryRow(ctx, `
		INSERT INTO privacy_zones (id, user_id, name, center, radius_meters, is_active)
		VALUES ($1,$2,$3, ST_SetSRID(ST_MakePoint($4,$5), 4326)::geography, $6, $7)
		RETURNING created_at
	`, input.ID, input.UserID, input.Name, input.Lng, input.Lat, input.RadiusMeters, input.IsActive)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return UserZone{}, err
	}
	return input, nil
}

func (s *Store) List(ctx context.Context, userID string) ([]UserZone, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, name, ST_Y(center::geometry), ST_X(center::geometry), radius_meters, is_active, created_at
		FROM privacy_zones WHERE user_id=$1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []UserZone
	for rows.Next() {
		var z UserZone
		if err := rows.Scan(&z.ID, &z.UserID, &z.Name, &z.Lat, &z.Lng, &z.RadiusMeters, &z.IsActive, &z.CreatedAt); err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

func (s *Store) Delete(ctx context.Context, userID, zoneID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM privacy_zones WHERE id=$1 AND user_id=$2`, zoneID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("privacy zone not found")
	}
	return nil
}

func (s *Store) ActiveZonesOf(ctx context.Context, userID string) ([]Zone, error) {
	rows, err := s.db.Query(ctx, `
		SELECT ST_Y(center::geometry), ST_X(center::geometry), radius_meters
		FROM privacy_zones WHERE user_id=$1 AND is_active
		LIMIT $2
	`, userID, MaxZonesPerUser)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []Zone
	for rows.Next() {
		var z Zone
		if err := rows.Scan(&z.Center.Lat, &z.Center.Lng, &z.RadiusMeters); err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}
