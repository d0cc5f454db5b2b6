package social

import (
	"context"

	"backend-strideup/internal/apperr"
	"backend-strideup/internal/db"
)

// FollowChecker answers whether viewer follows owner. Activity visibility
// depends on it for followers-only records.
type FollowChecker interface {
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
}

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) Follow(ctx context.Context, followerID, followingID string) error {
	if followerID == followingID {
		return apperr.Validation("cannot follow yourself")
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_follows (follower_id, following_id)
		VALUES ($1,$2)
		ON CONFLICT DO NOTHING
	`, followerID, followingID)
	return err
}

func (s *Service) Unfollow(ctx context.Context, followerID, followingID string) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM user_follows WHERE follower_id=$1 AND following_id=$2
	`, followerID, followingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("not following user")
	}
	return nil
}

func (s *Service) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM user_follows WHERE follower_id=$1 AND following_id=$2)
	`, followerID, followingID).Scan(&ok)
	return ok, err
}

// Followers lists who follows userID, newest first.
func (s *Service) Followers(ctx context.Context, userID string) ([]Follow, error) {
	return s.list(ctx, `
		SELECT follower_id, following_id, created_at
		FROM user_follows WHERE following_id=$1
		ORDER BY created_at DESC
	`, userID)
}

// Following lists who userID follows, newest first.
func (s *Service) Following(ctx context.Context, userID string) ([]Follow, error) {
	return s.list(ctx, `
		SELECT follower_id, following_id, created_at
		FROM user_follows WHERE follower_id=$1
		ORDER BY created_at DESC
	`, userID)
}

func (s *Service) Counts(ctx context.Context, userID string) (Counts, error) {
	var c Counts
	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM user_follows WHERE following_id=$1),
			(SELECT COUNT(*) FROM user_follows WHERE follower_id=$1)
	`, userID).Scan(&c.Followers, &c.Following)
	return c, err
}

func (s *Service) list(ctx context.Context, sql, userID string) ([]Follow, error) {
	rows, err := s.db.Query(ctx, sql, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	follows := []Follow{}
	for rows.Next() {
		var f Follow
		if err := rows.Scan(&f.FollowerID, &f.FollowingID, &f.CreatedAt); err != nil {
			return nil, err
		}
		follows = append(follows, f)
	}
	return follows, rows.Err()
}
