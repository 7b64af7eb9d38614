package editor

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tilemark/pkg/export"
	"tilemark/pkg/watermark"
)

var (
	// ErrNoSurface is returned by Export before the first successful render.
	ErrNoSurface = errors.New("nothing rendered yet")
	// ErrSessionClosed is returned by renders after Close.
	ErrSessionClosed = errors.New("session closed")
)

// RenderFunc receives the outcome of every render.
type RenderFunc func(surface *image.RGBA, err error)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithDebounce sets the quiet period before an Update renders.
func WithDebounce(d time.Duration) SessionOption {
	return func(s *Session) {
		s.debounce = d
	}
}

// WithOnRender registers a callback run after each render, on the goroutine
// that performed it.
func WithOnRender(fn RenderFunc) SessionOption {
	return func(s *Session) {
		s.onRender = fn
	}
}

// WithLogger sets the logger used for render failures.
func WithLogger(l zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// Session edits the watermark of one image. Settings changes arrive through
// Update and are rendered after a quiet period; only the newest settings are
// drawn. Renders never overlap.
type Session struct {
	renderer  *watermark.Renderer
	image     *watermark.OrientedImage
	filename  string
	debounce  time.Duration
	debouncer *Debouncer
	onRender  RenderFunc
	logger    zerolog.Logger

	renderMu sync.Mutex

	mu      sync.Mutex
	surface *image.RGBA
	closed  bool
}

// NewSession opens an editing session for img. filename names exports.
func NewSession(renderer *watermark.Renderer, img *watermark.OrientedImage, filename string, opts ...SessionOption) *Session {
	s := &Session{
		renderer: renderer,
		image:    img,
		filename: filename,
		debounce: DefaultDebounce,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.debouncer = NewDebouncer(s.debounce)
	return s
}

// Update schedules a render with spec.
func (s *Session) Update(spec watermark.Spec) {
	s.debouncer.Trigger(func() {
		_, _ = s.RenderNow(spec)
	})
}

// RenderNow renders spec immediately, replacing the current surface on
// success. An invalid spec or failed render leaves the previous surface in
// place. A render that finishes after Close is discarded.
func (s *Session) RenderNow(spec watermark.Spec) (*image.RGBA, error) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	surface, err := s.render(spec)
	if err == nil {
		s.mu.Lock()
		if s.closed {
			surface, err = nil, ErrSessionClosed
		} else {
			s.surface = surface
		}
		s.mu.Unlock()
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("filename", s.filename).Msg("Render failed")
	}
	if s.onRender != nil {
		s.onRender(surface, err)
	}
	return surface, err
}

func (s *Session) render(spec watermark.Spec) (*image.RGBA, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrSessionClosed
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid watermark: %w", err)
	}
	return s.renderer.Render(s.image, spec)
}

// Surface returns the latest rendered surface, or nil before the first
// successful render.
func (s *Session) Surface() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface
}

// Export encodes the latest surface and suggests a file name of the form
// {basename}_watermarked.<ext>.
func (s *Session) Export(f export.Format, quality int) ([]byte, string, error) {
	surface := s.Surface()
	if surface == nil {
		return nil, "", ErrNoSurface
	}
	data, err := export.Encode(surface, f, quality)
	if err != nil {
		return nil, "", err
	}
	return data, export.Filename(s.filename, export.DefaultTemplate, 0, time.Now(), f), nil
}

// Close cancels any pending update. Later renders fail with ErrSessionClosed.
func (s *Session) Close() {
	s.debouncer.Stop()
	s.mu.Lock()
	s.closed = true
	s.surface = nil
	s.mu.Unlock()
}
