package domain

import (
	"time"

	"gorm.io/datatypes"
)

const (
	CreationTypeArticle = "article"
	CreationTypeTitle   = "title"
	CreationTypeImage   = "image"
	CreationTypeResume  = "resume"
)

const (
	ToolWriteArticle   = "Write Article"
	ToolBlogTitle      = "Blog Title"
	ToolGenerateImages = "Generate Images"
	ToolReviewResume   = "Review Resume"
)

// Creation is one persisted output of a content tool.
type Creation struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    uint              `gorm:"index;not null" json:"-"`
	Type      string            `gorm:"size:64;not null" json:"type"`
	Prompt    string            `gorm:"type:text;not null" json:"prompt"`
	Output    string            `gorm:"type:text;not null" json:"output"`
	Tool      string            `gorm:"size:128;not null" json:"tool"`
	Metadata  datatypes.JSONMap `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type CreationStats struct {
	TotalCreations   int64 `json:"totalCreations"`
	CreditsUsed      int64 `json:"creditsUsed"`
	CreditsRemaining int64 `json:"creditsRemaining"`
	ToolsUsed        int64 `json:"toolsUsed"`
}
