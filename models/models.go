package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"gorm.io/datatypes"
)

// Request records one served retrieval request for later inspection.
type Request struct {
	ID string `gorm:"primaryKey;type:varchar(20)"`

	// Operation details
	Kind     string `gorm:"type:varchar(20);not null;index"` // generate or refactor
	Language string `gorm:"type:varchar(50);not null"`
	Prompt   string `gorm:"type:text"`
	TopK     int

	// Outcome
	ResultCount int
	Results     datatypes.JSON `gorm:"type:jsonb"`
	ErrorCode   string         `gorm:"type:varchar(40)"`
	DurationMS  int64

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Session tracks one transport session and its request volume.
type Session struct {
	ID        string    `gorm:"primaryKey;type:varchar(20)"`
	StartedAt time.Time `gorm:"autoCreateTime"`
	EndedAt   *time.Time

	// Statistics
	GenerateCount int `gorm:"default:0"`
	RefactorCount int `gorm:"default:0"`

	// Client info
	ClientInfo datatypes.JSON `gorm:"type:jsonb"`
}

// TableName customizations for cleaner names
func (Request) TableName() string { return "requests" }
func (Session) TableName() string { return "sessions" }

// NewID returns a short random identifier for primary keys.
func NewID() string {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return hex.EncodeToString([]byte(time.Now().Format("150405.000")))[:20]
	}
	return hex.EncodeToString(buf)
}
