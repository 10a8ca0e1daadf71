package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tartampluch/life-progress/internal/config"
	"github.com/tartampluch/life-progress/internal/engine"
)

// cacheItem stores one rendered representation and its metadata for HTTP caching.
type cacheItem struct {
	data         []byte
	contentType  string
	etag         string
	lastModified string // RFC1123 format required by HTTP headers
}

// feed holds every representation derived from a single snapshot, so readers
// never see a JSON body and a calendar built from different ticks.
type feed struct {
	progress   *cacheItem
	boundaries *cacheItem
}

// FeedServer serves the latest progress snapshot and the upcoming period
// boundaries on the loopback interface.
type FeedServer struct {
	// cache uses atomic.Pointer for lock-free reads. Publishes happen once
	// a minute while readers may poll freely.
	cache atomic.Pointer[feed]
	Port  string

	// Calendar renders the boundary feed. A zero value uses fallback titles.
	Calendar *engine.BoundaryCalendar
}

// NewFeedServer creates a new instance of the server.
func NewFeedServer(port string) *FeedServer {
	return &FeedServer{
		Port:     port,
		Calendar: &engine.BoundaryCalendar{},
	}
}

// Handler returns the routing table of the feed.
func (s *FeedServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(config.RouteProgress, s.handleProgressRequest)
	mux.HandleFunc(config.RouteBoundaries, s.handleBoundariesRequest)
	return mux
}

// Start initializes the HTTP server and blocks until the context is cancelled.
func (s *FeedServer) Start(ctx context.Context) error {
	if s.Port == "" {
		return errors.New(config.ErrPortRequired)
	}

	srv := &http.Server{
		Addr:         config.LocalhostBindAddr + config.AddrSeparator + s.Port,
		Handler:      s.Handler(),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	serverError := make(chan error, config.ChannelBufferSize)

	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyPort, s.Port,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverError <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info(config.MsgServerStop, config.LogKeyComponent, config.CompServer)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: %w", config.ErrServerShutdown, err)
		}
		return nil

	case err := <-serverError:
		return fmt.Errorf("%s: %w", config.ErrServerStartup, err)
	}
}

// Publish implements engine.Publisher. Encoding failures are logged and the
// previous content keeps being served.
func (s *FeedServer) Publish(snap engine.Snapshot) {
	if err := s.Update(snap); err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
	}
}

// Update renders snap and atomically replaces the served content.
func (s *FeedServer) Update(snap engine.Snapshot) error {
	progress, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrJSONEncode, err)
	}

	cal := s.Calendar
	if cal == nil {
		cal = &engine.BoundaryCalendar{}
	}
	boundaries, err := cal.Build(snap.At)
	if err != nil {
		return err
	}

	lastMod := time.Now().UTC().Format(http.TimeFormat)

	// Any concurrent reader sees either the old or the new complete feed.
	next := &feed{
		progress:   newCacheItem(progress, config.MimeJSON, lastMod),
		boundaries: newCacheItem(boundaries, config.MimeTextCalendar, lastMod),
	}
	s.cache.Store(next)

	slog.Debug(config.MsgCacheUpdated,
		config.LogKeyComponent, config.CompServer,
		config.LogKeySizeBytes, len(progress)+len(boundaries),
		config.LogKeyETag, next.progress.etag,
	)
	return nil
}

func newCacheItem(data []byte, contentType, lastMod string) *cacheItem {
	hash := sha256.Sum256(data)
	return &cacheItem{
		data:         data,
		contentType:  contentType,
		etag:         fmt.Sprintf(config.FormatETag, hex.EncodeToString(hash[:])),
		lastModified: lastMod,
	}
}

func (s *FeedServer) handleProgressRequest(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, func(f *feed) *cacheItem { return f.progress })
}

func (s *FeedServer) handleBoundariesRequest(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, func(f *feed) *cacheItem { return f.boundaries })
}

// serve writes the selected representation with HTTP caching support.
func (s *FeedServer) serve(w http.ResponseWriter, r *http.Request, pick func(*feed) *cacheItem) {
	// 1. Method Validation
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set(config.HeaderAllow, config.AllowedMethods)
		http.Error(w, config.HTTPMsgMethodNotAll, http.StatusMethodNotAllowed)
		return
	}

	// 2. Readiness Check
	f := s.cache.Load()
	if f == nil {
		w.Header().Set(config.HeaderRetryAfter, config.RetryAfterSeconds)
		http.Error(w, config.HTTPMsgInitializing, http.StatusServiceUnavailable)
		return
	}
	item := pick(f)

	// 3. Response Headers
	w.Header().Set(config.HeaderContentType, item.contentType)
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	w.Header().Set(config.HeaderCacheControl, config.CacheControlPrivate)
	w.Header().Set(config.HeaderETag, item.etag)
	w.Header().Set(config.HeaderLastModified, item.lastModified)

	// 4. Conditional Headers
	if match := r.Header.Get(config.HeaderIfNoneMatch); match == item.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if since := r.Header.Get(config.HeaderIfModifiedSince); since != "" {
		if clientTime, err := time.Parse(http.TimeFormat, since); err == nil {
			if serverTime, err := time.Parse(http.TimeFormat, item.lastModified); err == nil {
				if !serverTime.After(clientTime) {
					w.WriteHeader(http.StatusNotModified)
					return
				}
			}
		}
	}

	// 5. Content
	if r.Method == http.MethodGet {
		if _, err := io.Copy(w, bytes.NewReader(item.data)); err != nil {
			slog.Error(config.ErrWriteResp,
				config.LogKeyComponent, config.CompServer,
				config.LogKeyRoute, r.URL.Path,
				config.LogKeyError, err,
			)
		}
	}
}
