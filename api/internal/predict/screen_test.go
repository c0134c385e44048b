package predict

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sound-predict/api/internal/inference"
	"sound-predict/api/internal/universe"
)

const (
	timeout = time.Second
	tick    = 5 * time.Millisecond
)

// fakePredictor records calls and answers from a queue.
type fakePredictor struct {
	mu      sync.Mutex
	calls   int
	links   []string
	names   []string
	results []inference.Result
	errs    []error
	screen  *Screen
	loading []bool
}

func (f *fakePredictor) next() (inference.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.screen != nil {
		f.loading = append(f.loading, f.screen.Loading())
	}
	var res inference.Result
	var err error
	if len(f.results) > 0 {
		res, f.results = f.results[0], f.results[1:]
	}
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	return res, err
}

func (f *fakePredictor) PredictFile(_ context.Context, _ universe.Universe, name string, r io.Reader) (inference.Result, error) {
	_, _ = io.ReadAll(r)
	f.mu.Lock()
	f.names = append(f.names, name)
	f.mu.Unlock()
	return f.next()
}

func (f *fakePredictor) PredictYouTube(_ context.Context, _ universe.Universe, link string) (inference.Result, error) {
	f.mu.Lock()
	f.links = append(f.links, link)
	f.mu.Unlock()
	return f.next()
}

func dogResult() inference.Result {
	return inference.Result{
		Label:      "dog",
		Confidence: "91%",
		AllConfidences: inference.Confidences{
			{Label: "dog", Percent: "91%"},
			{Label: "cat", Percent: "9%"},
		},
	}
}

func sirenResult() inference.Result {
	return inference.Result{
		Label:      "siren",
		Confidence: "70%",
		AllConfidences: inference.Confidences{
			{Label: "siren", Percent: "70%"},
		},
	}
}

func TestSubmitFile_NoFile(t *testing.T) {
	fp := &fakePredictor{}
	s := NewScreen(universe.ESC10, fp, nil)

	err := s.SubmitFile(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoFile)
	err = s.SubmitFile(context.Background(), &File{Name: "x.wav"})
	assert.ErrorIs(t, err, ErrNoFile)

	assert.Zero(t, fp.calls)
	assert.False(t, s.Loading())
	assert.Nil(t, s.Result())
	assert.Equal(t, "Veuillez sélectionner un fichier.", Notice(err))
}

func TestSubmitYouTube_Blank(t *testing.T) {
	fp := &fakePredictor{}
	s := NewScreen(universe.UrbanSound, fp, nil)

	for _, link := range []string{"", "   ", "\t\n"} {
		err := s.SubmitYouTube(context.Background(), link)
		assert.ErrorIs(t, err, ErrEmptyURL)
	}
	assert.Zero(t, fp.calls)
	assert.False(t, s.Loading())
	assert.Equal(t, "Veuillez entrer un lien YouTube.", Notice(ErrEmptyURL))
}

func TestSubmit_LoadingDuringCall(t *testing.T) {
	fp := &fakePredictor{results: []inference.Result{dogResult()}}
	s := NewScreen(universe.ESC10, fp, nil)
	fp.screen = s

	require.NoError(t, s.SubmitFile(context.Background(), &File{Name: "a.wav", Body: strings.NewReader("x")}))
	assert.Equal(t, []bool{true}, fp.loading)
	assert.False(t, s.Loading())
	assert.Equal(t, []string{"a.wav"}, fp.names)

	res := s.Result()
	require.NotNil(t, res)
	assert.Equal(t, "dog", res.Label)
	assert.Equal(t, inference.Display("91%"), res.Confidence)
	require.Len(t, res.AllConfidences, 2)
	assert.Equal(t, "dog", res.AllConfidences[0].Label)
	assert.Equal(t, "cat", res.AllConfidences[1].Label)
}

func TestSubmit_FailureKeepsStaleResult(t *testing.T) {
	boom := errors.New("connection refused")
	fp := &fakePredictor{
		results: []inference.Result{dogResult(), {}, {}},
		errs:    []error{nil, boom, boom},
	}
	s := NewScreen(universe.ESC10, fp, nil)

	require.NoError(t, s.SubmitYouTube(context.Background(), "https://youtu.be/x"))
	before := s.Result()

	err := s.SubmitFile(context.Background(), &File{Name: "a.wav", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrPrediction)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "Erreur de prédiction.", Notice(err))
	assert.False(t, s.Loading())
	assert.Same(t, before, s.Result())

	err = s.SubmitYouTube(context.Background(), "https://youtu.be/y")
	assert.ErrorIs(t, err, ErrPrediction)
	assert.False(t, s.Loading())
	assert.Same(t, before, s.Result())
}

func TestSubmit_SecondSuccessReplacesWholesale(t *testing.T) {
	fp := &fakePredictor{results: []inference.Result{dogResult(), sirenResult()}}
	s := NewScreen(universe.UrbanSound, fp, nil)

	require.NoError(t, s.SubmitYouTube(context.Background(), "a"))
	require.NoError(t, s.SubmitYouTube(context.Background(), "b"))

	res := s.Result()
	require.NotNil(t, res)
	assert.Equal(t, "siren", res.Label)
	assert.Equal(t, inference.Confidences{{Label: "siren", Percent: "70%"}}, res.AllConfidences)
	assert.Equal(t, []string{"a", "b"}, fp.links)
}

func TestSubmit_LinkForwardedUntrimmed(t *testing.T) {
	fp := &fakePredictor{}
	s := NewScreen(universe.ESC10, fp, nil)
	require.NoError(t, s.SubmitYouTube(context.Background(), " https://youtu.be/x "))
	assert.Equal(t, []string{" https://youtu.be/x "}, fp.links)
}

// blockingPredictor holds each call until released, so tests can control
// the order in which concurrent submissions complete.
type blockingPredictor struct {
	started chan string
	release map[string]chan inference.Result
}

func (b *blockingPredictor) PredictFile(context.Context, universe.Universe, string, io.Reader) (inference.Result, error) {
	panic("unused")
}

func (b *blockingPredictor) PredictYouTube(_ context.Context, _ universe.Universe, link string) (inference.Result, error) {
	b.started <- link
	return <-b.release[link], nil
}

func TestSubmit_LateResponseIsDiscarded(t *testing.T) {
	bp := &blockingPredictor{
		started: make(chan string, 2),
		release: map[string]chan inference.Result{
			"old": make(chan inference.Result),
			"new": make(chan inference.Result),
		},
	}
	s := NewScreen(universe.ESC10, bp, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.SubmitYouTube(context.Background(), "old"))
	}()
	require.Equal(t, "old", <-bp.started)

	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.SubmitYouTube(context.Background(), "new"))
	}()
	require.Equal(t, "new", <-bp.started)
	assert.True(t, s.Loading())

	bp.release["new"] <- sirenResult()
	require.Eventually(t, func() bool { return s.Result() != nil }, timeout, tick)
	assert.True(t, s.Loading())

	bp.release["old"] <- dogResult()
	wg.Wait()

	assert.False(t, s.Loading())
	assert.Equal(t, "siren", s.Result().Label)
}
