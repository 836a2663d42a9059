package media

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"videovault/internal/analyzer"
)

// ListFilter narrows a listing. A nil OwnerID lists every owner.
type ListFilter struct {
	OwnerID     *int64
	Status      ProcessingState
	Sensitivity SensitivityState
	Search      string
	Sort        string
}

type Stats struct {
	TotalVideos      int64
	ProcessingVideos int64
	FlaggedVideos    int64
	SafeVideos       int64
	TotalStorage     int64
}

type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, f ListFilter) ([]*Record, error)
	Delete(ctx context.Context, id string) error
	DeleteByOwner(ctx context.Context, ownerID int64) ([]*Record, error)
	Stats(ctx context.Context) (Stats, error)

	UpdateProgress(ctx context.Context, id string, progress int) error
	Complete(ctx context.Context, id string, res analyzer.Result, processedAt time.Time) error
	MarkFailed(ctx context.Context, id string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, rec *Record) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *repository) GetByID(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repository) List(ctx context.Context, f ListFilter) ([]*Record, error) {
	q := r.db.WithContext(ctx).Model(&Record{})
	if f.OwnerID != nil {
		q = q.Where("owner_id = ?", *f.OwnerID)
	}
	if f.Status != "" {
		q = q.Where("processing_state = ?", string(f.Status))
	}
	if f.Sensitivity != "" {
		q = q.Where("sensitivity_state = ?", string(f.Sensitivity))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(original_name) LIKE ?", like, like)
	}

	switch f.Sort {
	case "oldest":
		q = q.Order("created_at ASC")
	case "title":
		q = q.Order("title ASC")
	case "size":
		q = q.Order("file_size DESC")
	default:
		q = q.Order("created_at DESC")
	}

	var out []*Record
	err := q.Find(&out).Error
	return out, err
}

func (r *repository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Record{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DeleteByOwner removes every record of ownerID and returns what was removed
// so the caller can clean up the files.
func (r *repository) DeleteByOwner(ctx context.Context, ownerID int64) ([]*Record, error) {
	var removed []*Record
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ?", ownerID).Find(&removed).Error; err != nil {
			return err
		}
		return tx.Where("owner_id = ?", ownerID).Delete(&Record{}).Error
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (r *repository) Stats(ctx context.Context) (Stats, error) {
	var row struct {
		Total      int64
		Processing int64
		Flagged    int64
		Safe       int64
		Storage    int64
	}
	err := r.db.WithContext(ctx).Model(&Record{}).Select(
		"COUNT(*) AS total, "+
			"COALESCE(SUM(CASE WHEN processing_state = ? THEN 1 ELSE 0 END), 0) AS processing, "+
			"COALESCE(SUM(CASE WHEN sensitivity_state = ? THEN 1 ELSE 0 END), 0) AS flagged, "+
			"COALESCE(SUM(CASE WHEN sensitivity_state = ? THEN 1 ELSE 0 END), 0) AS safe, "+
			"COALESCE(SUM(file_size), 0) AS storage",
		string(StateProcessing), string(SensitivityFlagged), string(SensitivitySafe),
	).Scan(&row).Error
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalVideos:      row.Total,
		ProcessingVideos: row.Processing,
		FlaggedVideos:    row.Flagged,
		SafeVideos:       row.Safe,
		TotalStorage:     row.Storage,
	}, nil
}

// UpdateProgress only moves progress forward on a non-terminal record.
func (r *repository) UpdateProgress(ctx context.Context, id string, progress int) error {
	res := r.db.WithContext(ctx).Model(&Record{}).
		Where("id = ? AND processing_state IN ? AND processing_progress < ?",
			id, []string{string(StateUploading), string(StateProcessing)}, progress).
		Updates(map[string]any{
			"processing_state":    string(StateProcessing),
			"processing_progress": progress,
		})
	return r.checkTransition(ctx, id, res)
}

func (r *repository) Complete(ctx context.Context, id string, a analyzer.Result, processedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&Record{}).
		Where("id = ? AND processing_state = ?", id, string(StateProcessing)).
		Updates(map[string]any{
			"processing_state":    string(StateCompleted),
			"processing_progress": 100,
			"duration":            a.DurationSeconds,
			"resolution":          a.Resolution,
			"sensitivity_state":   string(a.Verdict),
			"sensitivity_score":   a.Score,
			"sensitivity_detail":  a.Detail,
			"processed_at":        processedAt,
		})
	return r.checkTransition(ctx, id, res)
}

func (r *repository) MarkFailed(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&Record{}).
		Where("id = ? AND processing_state IN ?", id, []string{string(StateUploading), string(StateProcessing)}).
		Update("processing_state", string(StateFailed))
	return r.checkTransition(ctx, id, res)
}

// checkTransition turns a guarded update that touched no row into
// ErrRecordNotFound or ErrInvalidTransition.
func (r *repository) checkTransition(ctx context.Context, id string, res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&Record{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrRecordNotFound
	}
	return ErrInvalidTransition
}
