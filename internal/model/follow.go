package model

import "time"

type Follow struct {
	FollowerID  string    `db:"follower_id" json:"followerId"`
	FollowingID string    `db:"following_id" json:"followingId"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// FollowState is the result of toggling a follow edge.
type FollowState struct {
	Following      bool `json:"following"`
	FollowerCount  int  `json:"followerCount"`
	FollowingCount int  `json:"followingCount"`
}
