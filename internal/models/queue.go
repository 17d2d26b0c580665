package models

import "time"

// Queue is a named batch of submissions graded together. Queues are created
// implicitly by the importer and never mutated afterwards.
type Queue struct {
	ID        string    `gorm:"primaryKey;size:128" json:"queue_id"`
	CreatedAt time.Time `json:"created_at"`
}
