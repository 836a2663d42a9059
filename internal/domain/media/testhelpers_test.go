package media_test

import (
	. "videovault/internal/domain/media"

	"bytes"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"videovault/internal/access"
	"videovault/internal/database"
	"videovault/internal/domain/user"
	"videovault/internal/pipeline"
	"videovault/internal/storage"
)

type stubSubmitter struct {
	mu   sync.Mutex
	jobs []pipeline.Job
	err  error
}

func (s *stubSubmitter) Submit(job pipeline.Job) (<-chan pipeline.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.jobs = append(s.jobs, job)
	ch := make(chan pipeline.Result, 1)
	ch <- pipeline.Result{RecordID: job.RecordID}
	close(ch)
	return ch, nil
}

func (s *stubSubmitter) submitted() []pipeline.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pipeline.Job(nil), s.jobs...)
}

type testEnv struct {
	repo   Repository
	fs     afero.Fs
	files  *storage.FileStore
	runner *stubSubmitter
	svc    *Service
}

func newTestEnv(t *testing.T, maxBytes int64) *testEnv {
	t.Helper()
	db, err := database.Connect(":memory:", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	fs := afero.NewMemMapFs()
	files := storage.New(fs, "")
	repo := NewRepository(db)
	runner := &stubSubmitter{}
	return &testEnv{
		repo:   repo,
		fs:     fs,
		files:  files,
		runner: runner,
		svc:    NewService(repo, files, access.NewGuard(), runner, maxBytes, zap.NewNop()),
	}
}

var (
	editor = access.Identity{ID: 1, Role: user.RoleEditor}
	other  = access.Identity{ID: 2, Role: user.RoleEditor}
	viewer = access.Identity{ID: 3, Role: user.RoleViewer}
	admin  = access.Identity{ID: 9, Role: user.RoleAdmin}
	nobody = access.Identity{}
)

// mp4Bytes returns size bytes starting with an ISO base media header.
func mp4Bytes(size int) []byte {
	header := []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'i', 's', 'o', '2'}
	if size < len(header) {
		size = len(header)
	}
	out := make([]byte, size)
	copy(out, header)
	return out
}

func uploadOf(name string, content []byte) UploadInput {
	return UploadInput{OriginalName: name, DeclaredSize: int64(len(content)), Content: bytes.NewReader(content)}
}
