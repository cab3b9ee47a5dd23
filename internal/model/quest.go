package model

import (
	"time"
)

const (
	QuestStatusActive    = "active"
	QuestStatusCompleted = "completed"
	QuestStatusPaused    = "paused"
	QuestStatusArchived  = "archived"
)

// QuestStatuses lists every status a quest may hold.
var QuestStatuses = []string{
	QuestStatusActive,
	QuestStatusCompleted,
	QuestStatusPaused,
	QuestStatusArchived,
}

func ValidQuestStatus(status string) bool {
	for _, s := range QuestStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type Quest struct {
	ID          string    `db:"id" json:"id"`
	ProfileID   string    `db:"profile_id" json:"profileId"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Status      string    `db:"status" json:"status"`
	Progress    int       `db:"progress" json:"progress"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// QuestStatusCounts groups a profile's quests by status.
type QuestStatusCounts struct {
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Paused    int `json:"paused"`
	Archived  int `json:"archived"`
}

func (c QuestStatusCounts) Total() int {
	return c.Active + c.Completed + c.Paused + c.Archived
}
