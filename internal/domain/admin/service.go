package admin

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"videovault/internal/domain/media"
	"videovault/internal/domain/user"
	"videovault/internal/pkg/logger"
)

var ErrSelfDelete = errors.New("admins cannot delete their own account")

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
	List(ctx context.Context) ([]user.User, error)
	UpdateRole(ctx context.Context, id int64, role user.Role) (*user.User, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

// FileRemover deletes stored media files; *storage.FileStore satisfies it.
type FileRemover interface {
	Remove(relPath string) error
}

type Owner struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type VideoWithOwner struct {
	*media.Record
	Owner *Owner `json:"owner,omitempty"`
}

type Stats struct {
	TotalUsers       int64  `json:"totalUsers"`
	TotalVideos      int64  `json:"totalVideos"`
	ProcessingVideos int64  `json:"processingVideos"`
	FlaggedVideos    int64  `json:"flaggedVideos"`
	SafeVideos       int64  `json:"safeVideos"`
	TotalStorage     int64  `json:"totalStorage"`
	TotalStorageGB   string `json:"totalStorageGB"`
}

type Service struct {
	users UserRepository
	media media.Repository
	files FileRemover
	log   *zap.Logger
}

func NewService(users UserRepository, mediaRepo media.Repository, files FileRemover, log *zap.Logger) *Service {
	return &Service{users: users, media: mediaRepo, files: files, log: logger.Component(log, "admin")}
}

func (s *Service) ListUsers(ctx context.Context) ([]user.User, error) {
	return s.users.List(ctx)
}

func (s *Service) UpdateRole(ctx context.Context, id int64, raw string) (*user.User, error) {
	role, err := user.ParseRole(raw)
	if err != nil {
		return nil, err
	}
	u, err := s.users.UpdateRole(ctx, id, role)
	if err != nil {
		return nil, err
	}
	s.log.Info("role updated", zap.Int64("user_id", id), zap.String("role", string(role)))
	return u, nil
}

// DeleteUser removes the user, their records and the stored files.
func (s *Service) DeleteUser(ctx context.Context, actorID, id int64) error {
	if actorID == id {
		return ErrSelfDelete
	}
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return err
	}

	// User row first: from here on the user's tokens no longer authenticate.
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	removed, err := s.media.DeleteByOwner(ctx, id)
	if err != nil {
		return fmt.Errorf("delete user media: %w", err)
	}
	for _, rec := range removed {
		if err := s.files.Remove(rec.FilePath); err != nil {
			s.log.Warn("remove media file", zap.String("record_id", rec.ID), zap.Error(err))
		}
	}
	s.log.Info("user deleted", zap.Int64("user_id", id), zap.Int("videos_removed", len(removed)))
	return nil
}

// ListVideos returns every record, newest first, with its owner attached.
func (s *Service) ListVideos(ctx context.Context) ([]VideoWithOwner, error) {
	records, err := s.media.List(ctx, media.ListFilter{})
	if err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	owners := make(map[int64]*Owner, len(users))
	for _, u := range users {
		owners[u.ID] = &Owner{ID: u.ID, Username: u.Username, Email: u.Email}
	}

	out := make([]VideoWithOwner, 0, len(records))
	for _, rec := range records {
		out = append(out, VideoWithOwner{Record: rec, Owner: owners[rec.OwnerID]})
	}
	return out, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	totalUsers, err := s.users.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	ms, err := s.media.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalUsers:       totalUsers,
		TotalVideos:      ms.TotalVideos,
		ProcessingVideos: ms.ProcessingVideos,
		FlaggedVideos:    ms.FlaggedVideos,
		SafeVideos:       ms.SafeVideos,
		TotalStorage:     ms.TotalStorage,
		TotalStorageGB:   fmt.Sprintf("%.2f", float64(ms.TotalStorage)/(1<<30)),
	}, nil
}
