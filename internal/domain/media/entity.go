package media

import (
	"time"

	"videovault/internal/access"
)

type ProcessingState string

const (
	StateUploading  ProcessingState = "uploading"
	StateProcessing ProcessingState = "processing"
	StateCompleted  ProcessingState = "completed"
	StateFailed     ProcessingState = "failed"
)

func (s ProcessingState) Valid() bool {
	switch s {
	case StateUploading, StateProcessing, StateCompleted, StateFailed:
		return true
	}
	return false
}

func (s ProcessingState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransition reports whether moving from s to next is allowed.
// processing -> processing is a progress update.
func (s ProcessingState) CanTransition(next ProcessingState) bool {
	switch s {
	case StateUploading:
		return next == StateProcessing || next == StateFailed
	case StateProcessing:
		return next == StateProcessing || next == StateCompleted || next == StateFailed
	default:
		return false
	}
}

type SensitivityState string

const (
	SensitivityPending SensitivityState = "pending"
	SensitivitySafe    SensitivityState = "safe"
	SensitivityFlagged SensitivityState = "flagged"
)

func (s SensitivityState) Valid() bool {
	switch s {
	case SensitivityPending, SensitivitySafe, SensitivityFlagged:
		return true
	}
	return false
}

// Record is an uploaded media file and its processing outcome.
type Record struct {
	ID                 string           `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	OwnerID            int64            `gorm:"column:owner_id;not null;index:idx_media_owner_created,priority:1" json:"ownerId"`
	Title              string           `gorm:"column:title;not null" json:"title"`
	Filename           string           `gorm:"column:filename;not null" json:"filename"`
	OriginalName       string           `gorm:"column:original_name;not null" json:"originalName"`
	FilePath           string           `gorm:"column:file_path;not null" json:"-"`
	FileSize           int64            `gorm:"column:file_size;not null" json:"fileSize"`
	MimeType           string           `gorm:"column:mime_type;not null" json:"mimeType"`
	Duration           int              `gorm:"column:duration;not null;default:0" json:"duration"`
	Resolution         string           `gorm:"column:resolution;not null;default:unknown" json:"resolution"`
	ProcessingState    ProcessingState  `gorm:"column:processing_state;not null;default:uploading;index" json:"processingState"`
	ProcessingProgress int              `gorm:"column:processing_progress;not null;default:0" json:"processingProgress"`
	SensitivityState   SensitivityState `gorm:"column:sensitivity_state;not null;default:pending;index" json:"sensitivityState"`
	SensitivityScore   int              `gorm:"column:sensitivity_score;not null;default:0" json:"sensitivityScore"`
	SensitivityDetail  string           `gorm:"column:sensitivity_detail" json:"sensitivityDetail"`
	CreatedAt          time.Time        `gorm:"column:created_at;index:idx_media_owner_created,priority:2" json:"createdAt"`
	ProcessedAt        *time.Time       `gorm:"column:processed_at" json:"processedAt,omitempty"`
}

func (Record) TableName() string { return "media_records" }

// Resource is the view of the record the access guard needs.
func (r *Record) Resource() *access.Resource {
	return &access.Resource{OwnerID: r.OwnerID}
}
