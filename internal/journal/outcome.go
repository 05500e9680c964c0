package journal

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Kind string

const (
	KindGameStarted    Kind = "game_started"
	KindAcceptFailed   Kind = "accept_failed"
	KindLoadFailed     Kind = "load_failed"
	KindDraftCancelled Kind = "draft_cancelled"
)

// Outcome is one terminal step of a matchmaking session.
type Outcome struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Kind            Kind      `gorm:"size:32;index;not null" json:"kind"`
	MatchmakingType string    `gorm:"size:64" json:"matchmakingType,omitempty"`
	GameID          string    `gorm:"size:64" json:"gameId,omitempty"`
	Reason          string    `gorm:"size:255" json:"reason,omitempty"`
	CreatedAt       time.Time `gorm:"index" json:"createdAt"`
}

func (o *Outcome) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
