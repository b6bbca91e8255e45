package api

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/youruser/imagemerger/internal/config"
	imagepkg "github.com/youruser/imagemerger/internal/image"
	"github.com/youruser/imagemerger/internal/stickers"
	"github.com/youruser/imagemerger/internal/upload"
)

// Server holds the one live compositing session and its collaborators.
type Server struct {
	cfg        config.Config
	client     *http.Client
	dispatcher *upload.Dispatcher
	metrics    *Metrics

	mu       sync.Mutex
	stickers []stickers.Sticker
	id       string
	session  *imagepkg.Session
	target   *imagepkg.Target
	base     *imagepkg.File
}

// NewServer wires a server from the host configuration.
func NewServer(cfg config.Config) *Server {
	client := cfg.HTTPClient()
	return &Server{
		cfg:        cfg,
		client:     client,
		dispatcher: cfg.Dispatcher(client),
		metrics:    NewMetrics(),
	}
}

// LoadStickers reads the sticker catalog from the configured directory.
func (s *Server) LoadStickers() error {
	all, err := stickers.LoadCatalog(s.cfg.StickersDir)
	if err != nil {
		return err
	}
	s.SetStickers(all)
	slog.Info("Sticker catalog loaded", "dir", s.cfg.StickersDir, "count", len(all))
	return nil
}

func (s *Server) SetStickers(all []stickers.Sticker) {
	s.mu.Lock()
	s.stickers = all
	s.mu.Unlock()
}

func (s *Server) catalog() []stickers.Sticker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stickers
}

// replace makes sess the live session, dropping the previous one.
func (s *Server) replace(sess *imagepkg.Session, target *imagepkg.Target, base *imagepkg.File) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = uuid.NewString()
	s.session = sess
	s.target = target
	s.base = base
	return s.id
}

// live is a snapshot of the workspace taken under the lock.
type live struct {
	id      string
	session *imagepkg.Session
	target  *imagepkg.Target
}

func (s *Server) current() (live, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return live{id: s.id, session: s.session, target: s.target}, s.session != nil
}

func (s *Server) baseFile() *imagepkg.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}
