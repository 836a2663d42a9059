// Package streaming serves stored media over HTTP with single byte-range
// support. Files are read lazily: only the requested span is copied and the
// handle is closed whether the copy finishes or the client goes away.
package streaming

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"videovault/internal/metrics"
	"videovault/internal/pkg/logger"
)

var (
	ErrFileNotFound = errors.New("media file not found")
	// ErrStreamAborted is returned when the body copy fails after headers
	// were sent, typically because the client disconnected.
	ErrStreamAborted = errors.New("stream aborted")
)

// Source identifies the stored file to serve.
type Source struct {
	Path        string
	ContentType string
}

// Response describes how a request will be answered before any byte is read.
type Response struct {
	Status int
	Header http.Header
	Offset int64
	Length int64
}

// Plan computes status, headers and the byte window for a file of the given
// size. An empty rangeHeader yields a full 200 response.
func Plan(size int64, contentType, rangeHeader string) (Response, error) {
	h := http.Header{}
	h.Set("Content-Type", contentType)
	h.Set("Accept-Ranges", "bytes")

	if rangeHeader == "" {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
		return Response{Status: http.StatusOK, Header: h, Offset: 0, Length: size}, nil
	}

	br, err := ParseRange(rangeHeader, size)
	if err != nil {
		return Response{}, err
	}
	h.Set("Content-Range", br.ContentRange(size))
	h.Set("Content-Length", strconv.FormatInt(br.Length(), 10))
	return Response{Status: http.StatusPartialContent, Header: h, Offset: br.Start, Length: br.Length()}, nil
}

type Streamer struct {
	fs  afero.Fs
	log *zap.Logger
}

func NewStreamer(fs afero.Fs, log *zap.Logger) *Streamer {
	return &Streamer{fs: fs, log: logger.Component(log, "streamer")}
}

// Serve writes src to w honouring rangeHeader. Errors returned before any
// byte is written (ErrFileNotFound, ErrInvalidRange, ErrUnsatisfiableRange,
// open failures) leave w untouched apart from the Content-Range header set
// for unsatisfiable ranges, so the caller can still send an error body.
func (s *Streamer) Serve(w http.ResponseWriter, src Source, rangeHeader string) error {
	info, err := s.fs.Stat(src.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrFileNotFound
		}
		return fmt.Errorf("stat media file: %w", err)
	}
	if info.IsDir() {
		return ErrFileNotFound
	}
	size := info.Size()

	plan, err := Plan(size, src.ContentType, rangeHeader)
	if err != nil {
		if errors.Is(err, ErrInvalidRange) || errors.Is(err, ErrUnsatisfiableRange) {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		}
		return err
	}

	f, err := s.fs.Open(src.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrFileNotFound
		}
		return fmt.Errorf("open media file: %w", err)
	}
	defer f.Close()

	if plan.Offset > 0 {
		if _, err := f.Seek(plan.Offset, io.SeekStart); err != nil {
			return fmt.Errorf("seek media file: %w", err)
		}
	}

	for k, v := range plan.Header {
		w.Header()[k] = v
	}
	w.WriteHeader(plan.Status)
	metrics.StreamRequestsTotal.WithLabelValues(strconv.Itoa(plan.Status)).Inc()

	n, err := io.CopyN(w, f, plan.Length)
	metrics.StreamBytesTotal.Add(float64(n))
	if err != nil {
		s.log.Debug("stream interrupted",
			zap.String("path", src.Path),
			zap.Int64("offset", plan.Offset),
			zap.Int64("written", n),
			zap.Int64("expected", plan.Length),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrStreamAborted, err)
	}
	return nil
}
