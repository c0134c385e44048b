// Package predict holds the state of one prediction screen: the universe it
// was opened for, the last result, and whether a submission is in flight.
package predict

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"sound-predict/api/internal/inference"
	"sound-predict/api/internal/universe"
)

var (
	ErrNoFile     = errors.New("no file selected")
	ErrEmptyURL   = errors.New("empty youtube url")
	ErrPrediction = errors.New("prediction failed")
)

// Notice is the blocking message shown to the user for a submission error.
func Notice(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoFile):
		return "Veuillez sélectionner un fichier."
	case errors.Is(err, ErrEmptyURL):
		return "Veuillez entrer un lien YouTube."
	default:
		return "Erreur de prédiction."
	}
}

type Predictor interface {
	PredictFile(ctx context.Context, u universe.Universe, filename string, r io.Reader) (inference.Result, error)
	PredictYouTube(ctx context.Context, u universe.Universe, link string) (inference.Result, error)
}

// File is an opaque upload. Its contents are forwarded without inspection.
type File struct {
	Name string
	Body io.Reader
}

type Screen struct {
	Universe universe.Universe

	pred Predictor
	log  *slog.Logger

	mu       sync.Mutex
	result   *inference.Result
	inflight int
	issued   uint64 // generation handed to the latest submission
	applied  uint64 // generation of the result currently shown
}

func NewScreen(u universe.Universe, pred Predictor, log *slog.Logger) *Screen {
	if log == nil {
		log = slog.Default()
	}
	return &Screen{Universe: u, pred: pred, log: log}
}

// SubmitFile sends f to the service. With no file it returns ErrNoFile and
// makes no call.
func (s *Screen) SubmitFile(ctx context.Context, f *File) error {
	if f == nil || f.Body == nil {
		return ErrNoFile
	}
	return s.submit(ctx, "file", func(ctx context.Context) (inference.Result, error) {
		return s.pred.PredictFile(ctx, s.Universe, f.Name, f.Body)
	})
}

// SubmitYouTube sends link to the service. A blank link returns ErrEmptyURL
// and makes no call. The link is otherwise forwarded as typed.
func (s *Screen) SubmitYouTube(ctx context.Context, link string) error {
	if strings.TrimSpace(link) == "" {
		return ErrEmptyURL
	}
	return s.submit(ctx, "youtube", func(ctx context.Context) (inference.Result, error) {
		return s.pred.PredictYouTube(ctx, s.Universe, link)
	})
}

func (s *Screen) submit(ctx context.Context, kind string, call func(context.Context) (inference.Result, error)) error {
	gen := s.begin()
	var out *inference.Result
	defer func() { s.finish(gen, out) }()

	res, err := call(ctx)
	if err != nil {
		s.log.Error("prediction request failed",
			"kind", kind, "universe", s.Universe.Token(), "error", err)
		return fmt.Errorf("%w: %w", ErrPrediction, err)
	}
	out = &res
	return nil
}

func (s *Screen) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight++
	s.issued++
	return s.issued
}

// finish clears the in-flight mark and applies res unless a newer
// submission's result is already on screen. A nil res leaves the old one.
func (s *Screen) finish(gen uint64, res *inference.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if res == nil {
		return
	}
	if gen < s.applied {
		s.log.Debug("discarding superseded prediction", "generation", gen, "applied", s.applied)
		return
	}
	s.result = res
	s.applied = gen
}

// Loading reports whether any submission from this screen is in flight.
func (s *Screen) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// Result returns the result on screen, or nil before the first success.
func (s *Screen) Result() *inference.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}
