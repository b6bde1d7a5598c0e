package services

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"marginreco/internal/config"
	apperrors "marginreco/internal/errors"
	"marginreco/internal/exporter"
)

// Artifact kinds addressable by download
const (
	ArtifactComplete = "complete"
	ArtifactTrimmed  = "trimmed"
)

// Artifact is a generated pair of workbooks kept for download
type Artifact struct {
	ID          string
	Dir         string
	Destination exporter.Destination
	Outcome     *ReportOutcome
	CreatedAt   time.Time
	ExpiresAt   time.Time

	mu      sync.Mutex
	readers int
	evicted bool
}

// Path returns the file of the given kind
func (a *Artifact) Path(kind string) (string, error) {
	switch kind {
	case ArtifactComplete:
		return a.Destination.CompletePath, nil
	case ArtifactTrimmed:
		return a.Destination.TrimmedPath, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownArtifact, kind)
	}
}

// ArtifactStore keeps report artifacts in per-run directories under a root directory.
// Entries expire after the TTL; expiry and deletion remove the directory.
type ArtifactStore struct {
	root     string
	ownsRoot bool
	ttl      time.Duration
	cache    *cache.Cache
	logger   *slog.Logger

	stop      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewArtifactStore creates a store under root. An empty root creates a private
// temporary directory that Close removes.
func NewArtifactStore(root string, ttl time.Duration, logger *slog.Logger) (*ArtifactStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ArtifactStore{
		root:   root,
		ttl:    ttl,
		logger: logger.With(slog.String("service", "artifacts")),
		stop:   make(chan struct{}),
	}
	if root == "" {
		dir, err := os.MkdirTemp("", config.AppName+"-*")
		if err != nil {
			return nil, apperrors.NewArtifactIOError("failed to create artifact directory", err)
		}
		s.root = dir
		s.ownsRoot = true
	} else if err := os.MkdirAll(root, 0755); err != nil {
		return nil, apperrors.NewArtifactIOError("failed to create artifact directory", err)
	}

	cleanup := ttl / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}
	// expiry runs on the store's own janitor, which Close stops
	s.cache = cache.New(ttl, 0)
	s.cache.OnEvicted(func(id string, v interface{}) {
		if a, ok := v.(*Artifact); ok {
			s.evict(a)
			s.logger.Debug("artifact evicted", slog.String("id", id))
		}
	})
	go s.janitor(cleanup)
	return s, nil
}

func (s *ArtifactStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cache.DeleteExpired()
		case <-s.stop:
			return
		}
	}
}

// Root returns the directory holding all artifacts
func (s *ArtifactStore) Root() string {
	return s.root
}

// Reserve allocates a run directory and the destination paths inside it. The
// reservation is not visible until Put; Discard releases it.
func (s *ArtifactStore) Reserve() (*Artifact, error) {
	id := uuid.NewString()
	dir := filepath.Join(s.root, id)
	if err := os.Mkdir(dir, 0755); err != nil {
		return nil, apperrors.NewArtifactIOError("failed to create run directory", err)
	}
	return &Artifact{
		ID:  id,
		Dir: dir,
		Destination: exporter.Destination{
			CompletePath: filepath.Join(dir, config.WorkbookName(config.DefaultCompleteName)),
			TrimmedPath:  filepath.Join(dir, config.WorkbookName(config.DefaultTrimmedName)),
		},
	}, nil
}

// Put publishes a reserved artifact with the store TTL
func (s *ArtifactStore) Put(a *Artifact) {
	a.CreatedAt = time.Now()
	a.ExpiresAt = a.CreatedAt.Add(s.ttl)
	s.cache.Set(a.ID, a, cache.DefaultExpiration)
}

// Discard releases a reservation that was never published
func (s *ArtifactStore) Discard(a *Artifact) {
	s.removeDir(a.Dir)
}

// Get returns a live artifact
func (s *ArtifactStore) Get(id string) (*Artifact, error) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("report %s", id))
	}
	return v.(*Artifact), nil
}

// Open returns a live artifact and keeps its files on disk until release is
// called, even if the artifact expires or is deleted meanwhile.
func (s *ArtifactStore) Open(id string) (*Artifact, func(), error) {
	a, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.evicted {
		return nil, nil, apperrors.NewNotFoundError(fmt.Sprintf("report %s", id))
	}
	a.readers++
	return a, func() { s.release(a) }, nil
}

func (s *ArtifactStore) release(a *Artifact) {
	a.mu.Lock()
	a.readers--
	remove := a.readers == 0 && a.evicted
	a.mu.Unlock()
	if remove {
		s.removeDir(a.Dir)
	}
}

func (s *ArtifactStore) evict(a *Artifact) {
	a.mu.Lock()
	a.evicted = true
	remove := a.readers == 0
	a.mu.Unlock()
	if remove {
		s.removeDir(a.Dir)
	}
}

// Delete removes an artifact and its files
func (s *ArtifactStore) Delete(id string) error {
	if _, ok := s.cache.Get(id); !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("report %s", id))
	}
	s.cache.Delete(id)
	return nil
}

// Len returns the number of live artifacts, including expired ones not yet evicted
func (s *ArtifactStore) Len() int {
	return s.cache.ItemCount()
}

// Close stops the expiry janitor and removes every artifact, and the root directory
// when the store created it. Files still being served are removed once released;
// the private root goes regardless, open descriptors stay readable until closed.
func (s *ArtifactStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.cache.DeleteExpired()
		for id := range s.cache.Items() {
			s.cache.Delete(id)
		}
		if s.ownsRoot {
			if err := os.RemoveAll(s.root); err != nil {
				s.closeErr = apperrors.NewArtifactIOError("failed to remove artifact directory", err)
			}
		}
	})
	return s.closeErr
}

func (s *ArtifactStore) removeDir(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Warn("failed to remove artifact directory",
			slog.String("dir", dir),
			slog.String("error", err.Error()))
	}
}
