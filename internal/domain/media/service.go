package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"videovault/internal/access"
	"videovault/internal/pipeline"
	"videovault/internal/pkg/logger"
	"videovault/internal/storage"
	"videovault/internal/streaming"
)

// sniffLen is how much of the upload is inspected to detect its type.
const sniffLen = 3072

type Submitter interface {
	Submit(job pipeline.Job) (<-chan pipeline.Result, error)
}

// UploadInput is an incoming file. DeclaredSize is the client-reported size,
// checked before any byte is stored.
type UploadInput struct {
	Title        string
	OriginalName string
	DeclaredSize int64
	Content      io.Reader
}

type ListQuery struct {
	Status      string `form:"status" validate:"omitempty,oneof=all uploading processing completed failed"`
	Sensitivity string `form:"sensitivity" validate:"omitempty,oneof=all pending safe flagged"`
	Search      string `form:"search" validate:"max=200"`
	Sort        string `form:"sort" validate:"omitempty,oneof=newest oldest title size"`
}

func (q ListQuery) Filter() ListFilter {
	f := ListFilter{Search: q.Search, Sort: q.Sort}
	if q.Status != "" && q.Status != "all" {
		f.Status = ProcessingState(q.Status)
	}
	if q.Sensitivity != "" && q.Sensitivity != "all" {
		f.Sensitivity = SensitivityState(q.Sensitivity)
	}
	return f
}

type Service struct {
	repo     Repository
	files    *storage.FileStore
	guard    *access.Guard
	runner   Submitter
	maxBytes int64
	log      *zap.Logger
	now      func() time.Time
}

func NewService(repo Repository, files *storage.FileStore, guard *access.Guard, runner Submitter, maxBytes int64, log *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		files:    files,
		guard:    guard,
		runner:   runner,
		maxBytes: maxBytes,
		log:      logger.Component(log, "media"),
		now:      time.Now,
	}
}

// Accept stores the upload and creates its record in state processing. The
// file is removed again if the record cannot be created.
func (s *Service) Accept(ctx context.Context, ident access.Identity, in UploadInput) (*Record, error) {
	if err := s.guard.Authorize(ident, nil, access.ActionUpload).Err(); err != nil {
		return nil, err
	}
	if in.DeclaredSize > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(in.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: read upload: %v", ErrStorage, err)
	}
	head = head[:n]
	if n == 0 {
		return nil, ErrEmptyFile
	}
	mimeType, ok := videoMime(head)
	if !ok {
		return nil, ErrInvalidMimeType
	}

	originalName := path.Base(strings.ReplaceAll(strings.TrimSpace(in.OriginalName), "\\", "/"))
	if originalName == "" || originalName == "." || originalName == "/" {
		originalName = "video"
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = originalName
	}

	relPath, written, err := s.files.Save(originalName, io.MultiReader(bytes.NewReader(head), in.Content), s.maxBytes)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, ErrFileTooLarge
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	rec := &Record{
		ID:               uuid.NewString(),
		OwnerID:          ident.ID,
		Title:            title,
		Filename:         path.Base(relPath),
		OriginalName:     originalName,
		FilePath:         relPath,
		FileSize:         written,
		MimeType:         mimeType,
		Resolution:       "unknown",
		ProcessingState:  StateProcessing,
		SensitivityState: SensitivityPending,
		CreatedAt:        s.now(),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		if rmErr := s.files.Remove(relPath); rmErr != nil {
			s.log.Error("rollback stored file", zap.String("path", relPath), zap.Error(rmErr))
		}
		return nil, fmt.Errorf("%w: create record: %v", ErrStorage, err)
	}

	s.log.Info("media accepted",
		zap.String("record_id", rec.ID),
		zap.Int64("owner_id", rec.OwnerID),
		zap.Int64("size", written),
		zap.String("mime_type", mimeType),
	)
	return rec, nil
}

// StartProcessing schedules the pipeline for rec. If the runner refuses the
// job the record is marked failed so it does not stay in processing forever.
func (s *Service) StartProcessing(rec *Record) (<-chan pipeline.Result, error) {
	ch, err := s.runner.Submit(pipeline.Job{RecordID: rec.ID, OwnerID: rec.OwnerID, FilePath: rec.FilePath})
	if err != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if mErr := s.repo.MarkFailed(ctx, rec.ID); mErr != nil {
			s.log.Error("mark unscheduled record failed", zap.String("record_id", rec.ID), zap.Error(mErr))
		}
		return nil, fmt.Errorf("%w: %v", ErrProcessingRejected, err)
	}
	return ch, nil
}

// Get returns the record if ident may read it.
func (s *Service) Get(ctx context.Context, ident access.Identity, id string) (*Record, error) {
	return s.authorized(ctx, ident, id, access.ActionRead)
}

// List returns the caller's own records.
func (s *Service) List(ctx context.Context, ident access.Identity, q ListQuery) ([]*Record, error) {
	if err := s.guard.Authorize(ident, nil, access.ActionList).Err(); err != nil {
		return nil, err
	}
	f := q.Filter()
	f.OwnerID = &ident.ID
	return s.repo.List(ctx, f)
}

// Delete removes the record and its file.
func (s *Service) Delete(ctx context.Context, ident access.Identity, id string) error {
	rec, err := s.authorized(ctx, ident, id, access.ActionDelete)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, rec.ID); err != nil {
		return err
	}
	if err := s.files.Remove(rec.FilePath); err != nil {
		s.log.Warn("remove media file", zap.String("record_id", rec.ID), zap.Error(err))
	}
	return nil
}

// StreamSource resolves the stored file for playback.
func (s *Service) StreamSource(ctx context.Context, ident access.Identity, id string) (streaming.Source, error) {
	rec, err := s.authorized(ctx, ident, id, access.ActionStream)
	if err != nil {
		return streaming.Source{}, err
	}
	return streaming.Source{Path: rec.FilePath, ContentType: rec.MimeType}, nil
}

// authorized loads the record first so a missing id is reported as not
// found even to callers who would be denied.
func (s *Service) authorized(ctx context.Context, ident access.Identity, id string, action access.Action) (*Record, error) {
	if !ident.Valid() {
		return nil, access.ErrUnauthenticated
	}
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ident, rec.Resource(), action).Err(); err != nil {
		return nil, err
	}
	return rec, nil
}

func videoMime(head []byte) (string, bool) {
	for mt := mimetype.Detect(head); mt != nil; mt = mt.Parent() {
		if strings.HasPrefix(mt.String(), "video/") {
			return strings.SplitN(mt.String(), ";", 2)[0], true
		}
	}
	return "", false
}
