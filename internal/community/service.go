package community

import (
	"context"
	"errors"

	"backend-strideup/internal/apperr"
	"backend-strideup/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const statusActive = "active"

// Capabilities is the single lookup every permission check goes through.
type Capabilities interface {
	IsActiveMember(ctx context.Context, userID, communityID string) (bool, error)
	RoleOf(ctx context.Context, userID, communityID string) (Role, error)
}

type Service struct {
	db db.TxQuerier
}

func NewService(db db.TxQuerier) *Service {
	return &Service{db: db}
}

// Create stores the community and makes its creator the owner in one
// transaction.
func (s *Service) Create(ctx context.Context, input Community) (Community, error) {
	if input.Name == "" {
		return Community{}, apperr.Validation("name required")
	}
	if input.Visibility == "" {
		input.Visibility = "public"
	}
	input.ID = uuid.NewString()

	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO communities (id, name, description, visibility, created_by)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING created_at
		`, input.ID, input.Name, input.Description, input.Visibility, input.CreatedBy)
		if err := row.Scan(&input.CreatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO community_memberships (community_id, user_id, role, status)
			VALUES ($1,$2,$3,$4)
		`, input.ID, input.CreatedBy, RoleOwner, statusActive)
		return err
	})
	if err != nil {
		return Community{}, err
	}
	return input, nil
}

func (s *Service) Get(ctx context.Context, id string) (Community, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, description, visibility, COALESCE(created_by, ''), created_at
		FROM communities WHERE id=$1
	`, id)
	var c Community
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Visibility, &c.CreatedBy, &c.CreatedAt); err != nil {
		return Community{}, apperr.NotFoundIfNoRows(err, "community")
	}
	return c, nil
}

func (s *Service) Join(ctx context.Context, communityID, userID string) (Membership, error) {
	if _, err := s.Get(ctx, communityID); err != nil {
		return Membership{}, err
	}
	m := Membership{CommunityID: communityID, UserID: userID, Role: RoleMember, Status: statusActive}
	row := s.db.QueryRow(ctx, `
		INSERT INTO community_memberships (community_id, user_id, role, status)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (community_id, user_id) DO UPDATE SET status=EXCLUDED.status
		RETURNING role, joined_at
	`, communityID, userID, m.Role, m.Status)
	if err := row.Scan(&m.Role, &m.JoinedAt); err != nil {
		return Membership{}, err
	}
	return m, nil
}

func (s *Service) Leave(ctx context.Context, communityID, userID string) error {
	role, err := s.RoleOf(ctx, userID, communityID)
	if err != nil {
		return err
	}
	if role == RoleNone {
		return apperr.NotFound("membership not found")
	}
	if role == RoleOwner {
		return apperr.StateConflict("owner cannot leave the community")
	}
	_, err = s.db.Exec(ctx, `
		UPDATE community_memberships SET status='left'
		WHERE community_id=$1 AND user_id=$2
	`, communityID, userID)
	return err
}

// SetRole changes a member's role. Only owners and admins may do it, and the
// owner role cannot be granted.
func (s *Service) SetRole(ctx context.Context, actorID, communityID, userID string, role Role) error {
	if !role.Valid() || role == RoleOwner {
		return apperr.Validation("invalid role %q", role)
	}
	actorRole, err := s.RoleOf(ctx, actorID, communityID)
	if err != nil {
		return err
	}
	if !CanManageChallenges(actorRole) {
		return apperr.Permission("only owners and admins can change roles")
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE community_memberships SET role=$3
		WHERE community_id=$1 AND user_id=$2 AND status='active' AND role <> 'owner'
	`, communityID, userID, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("membership not found")
	}
	return nil
}

func (s *Service) Members(ctx context.Context, communityID string) ([]Membership, error) {
	rows, err := s.db.Query(ctx, `
		SELECT community_id, user_id, role, status, joined_at
		FROM community_memberships WHERE community_id=$1 AND status='active'
		ORDER BY joined_at
	`, communityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []Membership{}
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.CommunityID, &m.UserID, &m.Role, &m.Status, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *Service) IsActiveMember(ctx context.Context, userID, communityID string) (bool, error) {
	role, err := s.RoleOf(ctx, userID, communityID)
	if err != nil {
		return false, err
	}
	return role != RoleNone, nil
}

// RoleOf returns RoleNone for users without an active membership.
func (s *Service) RoleOf(ctx context.Context, userID, communityID string) (Role, error) {
	var role Role
	err := s.db.QueryRow(ctx, `
		SELECT role FROM community_memberships
		WHERE community_id=$1 AND user_id=$2 AND status='active'
	`, communityID, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return RoleNone, nil
	}
	if err != nil {
		return RoleNone, err
	}
	return role, nil
}
