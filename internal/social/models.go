package social

import "time"

type Follow struct {
	FollowerID  string    `json:"follower_id"`
	FollowingID string    `json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type Counts struct {
	Followers int `json:"followers"`
	Following int `json:"following"`
}
