package model

import "time"

type Profile struct {
	ID        string `db:"id" json:"id"`
	UserID    string `db:"user_id" json:"userId"`
	Name      string `db:"name" json:"name"`
	Bio       string `db:"bio" json:"bio"`
	AvatarURL string `db:"avatar_url" json:"avatarUrl"`
	IsPublic  bool   `db:"is_public" json:"isPublic"`

	// Academic metadata and social links live in a later migration and may be
	// absent on older databases.
	Branch      *string `db:"branch" json:"branch"`
	Section     *string `db:"section" json:"section"`
	Year        *int    `db:"year" json:"year"`
	GitHubURL   *string `db:"github_url" json:"githubUrl"`
	LinkedInURL *string `db:"linkedin_url" json:"linkedinUrl"`
	TwitterURL  *string `db:"twitter_url" json:"twitterUrl"`
	WebsiteURL  *string `db:"website_url" json:"websiteUrl"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// ProfileStats is the aggregate shown next to a profile.
type ProfileStats struct {
	FollowerCount   int `json:"followerCount"`
	FollowingCount  int `json:"followingCount"`
	QuestCount      int `json:"questCount"`
	AverageProgress int `json:"averageProgress"`
}
