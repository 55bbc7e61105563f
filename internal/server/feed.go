package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ayusman/jabcam/internal/app"
	"github.com/ayusman/jabcam/internal/logging"
	"github.com/ayusman/jabcam/internal/punch"
	"github.com/ayusman/jabcam/internal/render"
	"github.com/ayusman/jabcam/internal/session"
)

// maxPageSize bounds the requested output dimensions.
const maxPageSize = 4096

// FeedOptions tune a FeedHandler.
type FeedOptions struct {
	// FPS caps the frames sent per second. Zero sends every frame.
	FPS int
	// Quality is the JPEG quality, 1..100.
	Quality int
	Logger  *slog.Logger
}

// FeedHandler serves /boxing_feed: an MJPEG stream of annotated frames.
// Every request plays its own session over the shared pose stream.
type FeedHandler struct {
	engine   Engine
	interval time.Duration
	quality  int
	logger   *slog.Logger
}

// NewFeedHandler creates a FeedHandler streaming from engine.
func NewFeedHandler(engine Engine, opts FeedOptions) *FeedHandler {
	h := &FeedHandler{
		engine:  engine,
		quality: opts.Quality,
		logger:  logging.OrDiscard(opts.Logger),
	}
	if opts.FPS > 0 {
		h.interval = time.Second / time.Duration(opts.FPS)
	}
	return h
}

// ServeHTTP handles GET /boxing_feed?mode=&page_width=&page_height=.
func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")

	q := r.URL.Query()
	width, err := pageSize(q, "page_width")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	height, err := pageSize(q, "page_height")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s, err := h.engine.StartSession(session.ParseMode(q.Get("mode")))
	if err != nil {
		h.logger.Error("starting feed session", "error", err)
		http.Error(w, "Failed to start session", http.StatusInternalServerError)
		return
	}
	defer h.engine.FinishSession(s)

	frames, cancel := h.engine.Subscribe(2)
	defer cancel()

	h.logger.Info("feed opened", "session", s.ID(), "mode", string(s.Mode()),
		"remote", r.RemoteAddr, "width", width, "height", height)
	defer h.logger.Info("feed closed", "session", s.ID())

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flush(w)

	var last time.Time
	for {
		var f *app.Frame
		var ok bool
		select {
		case <-r.Context().Done():
			return
		case f, ok = <-frames:
			if !ok {
				return
			}
		}

		// Every frame feeds the session so speeds stay correct; only
		// the streamed ones are drawn.
		u, err := s.HandleSample(f.Sample())
		if err != nil && !errors.Is(err, punch.ErrMissingLandmark) && !errors.Is(err, session.ErrSessionOver) {
			h.logger.Debug("feed sample", "session", s.ID(), "error", err)
		}

		if h.interval > 0 && time.Since(last) < h.interval {
			f.Close()
			continue
		}
		last = time.Now()

		jpg, err := h.draw(f, s.Mode(), u, width, height)
		f.Close()
		if err != nil {
			h.logger.Debug("encoding frame", "error", err)
			continue
		}

		if err := writePart(w, jpg); err != nil {
			return
		}
	}
}

// draw annotates f in place and returns it resized and JPEG encoded.
func (h *FeedHandler) draw(f *app.Frame, mode session.Mode, u session.Update, width, height int) ([]byte, error) {
	render.Annotate(&f.Mat, u.Observation, u.Result)
	render.HUD(&f.Mat, hudLines(mode, u)...)

	out, err := render.Fit(&f.Mat, width, height)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	return render.EncodeJPEG(&out, h.quality)
}

// hudLines is the status shown in the corner of each frame.
func hudLines(mode session.Mode, u session.Update) []string {
	lines := []string{string(mode)}
	if mode.Scores() {
		lines = append(lines, fmt.Sprintf("Score: %d", u.Score))
	}
	if mode.HasLives() {
		lines = append(lines, fmt.Sprintf("Lives: %d", u.Lives))
	}
	if u.Over {
		lines = append(lines, "GAME OVER")
	}
	return lines
}

// pageSize reads an optional positive dimension. Missing means the native
// frame size.
func pageSize(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > maxPageSize {
		return 0, fmt.Errorf("%s must be an integer between 1 and %d", name, maxPageSize)
	}
	return n, nil
}

// writePart writes one JPEG as a multipart section and flushes it.
func writePart(w http.ResponseWriter, jpg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpg)); err != nil {
		return err
	}
	if _, err := w.Write(jpg); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\r\n")); err != nil {
		return err
	}
	flush(w)
	return nil
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
