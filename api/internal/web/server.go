// Package web serves the selector and prediction screens as server-rendered
// HTML pages.
package web

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"sound-predict/api/internal/inference"
	"sound-predict/api/internal/predict"
	"sound-predict/api/internal/universe"
)

//go:embed templates/*.html
var templateFS embed.FS

const sessionCookie = "sp_session"

// maxMemory is how much of a multipart upload is held in memory before the
// rest spills to temporary files. It is not a size limit.
const maxMemory = 32 << 20

type Options struct {
	Strict    bool
	ImagesDir string
	Limiter   *RateLimiter
	Logger    *slog.Logger
}

type Server struct {
	sessions *predict.Sessions
	opts     Options
	tmpl     *template.Template
	log      *slog.Logger
}

func New(sessions *predict.Sessions, opts Options) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{sessions: sessions, opts: opts, tmpl: tmpl, log: log}, nil
}

// Routes registers the screens on mux. Submissions go through the rate
// limiter when one is configured.
func (s *Server) Routes(mux *http.ServeMux) {
	submit := func(h http.HandlerFunc) http.Handler {
		if s.opts.Limiter == nil {
			return h
		}
		return s.opts.Limiter.Middleware(h)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /predict", s.handlePredictPage)
	mux.Handle("POST /predict/file", submit(s.handleSubmitFile))
	mux.Handle("POST /predict/youtube", submit(s.handleSubmitYouTube))
	if s.opts.ImagesDir != "" {
		mux.Handle("GET /images/", http.StripPrefix("/images/", http.FileServer(http.Dir(s.opts.ImagesDir))))
	}
}

type pageData struct {
	UniverseName string
	Token        string
	Loading      bool
	Notice       string
	URL          string
	Result       *inference.Result
	ImageSrc     string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "index", universe.All())
}

func (s *Server) handlePredictPage(w http.ResponseWriter, r *http.Request) {
	u, ok := s.resolve(w, r)
	if !ok {
		return
	}
	id, screen := s.sessions.Open(cookieValue(r), u)
	s.setSession(w, id)
	s.renderScreen(w, http.StatusOK, screen, "", "")
}

func (s *Server) handleSubmitFile(w http.ResponseWriter, r *http.Request) {
	u, ok := s.resolve(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeProblem(w, r, http.StatusBadRequest, "Bad Request", "could not read upload")
		return
	}
	id, screen := s.sessions.Lookup(cookieValue(r), u)
	s.setSession(w, id)

	var f *predict.File
	if file, hdr, err := r.FormFile(inference.FileField); err == nil {
		defer file.Close()
		if hdr.Filename != "" {
			f = &predict.File{Name: hdr.Filename, Body: file}
		}
	}

	err := screen.SubmitFile(r.Context(), f)
	s.renderScreen(w, statusFor(err), screen, predict.Notice(err), "")
}

func (s *Server) handleSubmitYouTube(w http.ResponseWriter, r *http.Request) {
	u, ok := s.resolve(w, r)
	if !ok {
		return
	}
	link := r.PostFormValue("url")
	id, screen := s.sessions.Lookup(cookieValue(r), u)
	s.setSession(w, id)

	err := screen.SubmitYouTube(r.Context(), link)
	s.renderScreen(w, statusFor(err), screen, predict.Notice(err), link)
}

// resolve reads the model parameter once per request. In strict mode an
// unknown value gets a 400 page pointing back to the selector.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (universe.Universe, bool) {
	token := r.URL.Query().Get("model")
	u, err := universe.Resolve(token, s.opts.Strict)
	if err != nil {
		s.log.Warn("rejecting unknown universe", "model", token)
		s.render(w, http.StatusBadRequest, "unknown", token)
		return 0, false
	}
	return u, true
}

func (s *Server) renderScreen(w http.ResponseWriter, status int, screen *predict.Screen, notice, link string) {
	data := pageData{
		UniverseName: screen.Universe.DisplayName(),
		Token:        screen.Universe.Token(),
		Loading:      screen.Loading(),
		Notice:       notice,
		URL:          link,
		Result:       screen.Result(),
	}
	if data.Result != nil {
		data.ImageSrc = ImagePath(screen.Universe, data.Result.Label)
	}
	s.render(w, status, "predict", data)
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.log.Error("render failed", "template", name, "error", err)
	}
}

func (s *Server) setSession(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((24 * time.Hour).Seconds()),
	})
}

func cookieValue(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// ImagePath is the static asset shown next to a result. Nothing checks that
// the file exists.
func ImagePath(u universe.Universe, label string) string {
	return "/images/" + u.ImageName(label)
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, predict.ErrNoFile), errors.Is(err, predict.ErrEmptyURL):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
