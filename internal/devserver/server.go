// Package devserver implements a development-only HTTP server that serves a
// source tree and a manifest regenerated from it on every request, for
// exercising the device-side Updater against a live source tree without a
// real deployment pipeline. Not for production use.
package devserver

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/kaktoslabs/kaktos/internal/build"
	"github.com/kaktoslabs/kaktos/pkg/digest"
	"github.com/kaktoslabs/kaktos/pkg/fsutil"
)

// shutdownGrace bounds how long ListenAndServe waits for in-flight
// requests to finish once its context is cancelled.
const shutdownGrace = 5 * time.Second

// Server serves a manifest and its backing files over HTTP.
type Server struct {
	Builder *build.Builder
	Logger  *log.Logger

	// ManifestPath and FilesPrefix are the routes the manifest and files are
	// served under. FilesPrefix must end in "/".
	ManifestPath string
	FilesPrefix  string

	httpServer *http.Server
}

// New returns a Server over builder's source tree, with default routes.
func New(builder *build.Builder) *Server {
	return &Server{
		Builder:      builder,
		Logger:       log.New(os.Stdout, "devserver ", log.LstdFlags),
		ManifestPath: "/manifest.json",
		FilesPrefix:  "/files/",
	}
}

func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(s.ManifestPath, s.handleManifest)
	mux.HandleFunc(s.FilesPrefix, s.handleFile)
	return mux
}

// noCacheHeaders sets the same cache-busting headers on every successful
// manifest and file response, so a device under test never serves a stale
// manifest or file from an intermediate cache. Error responses are sent
// without them.
func noCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := s.Builder.Generate()
	if err != nil {
		s.Logger.Printf("generate manifest: %v", err)
		http.Error(w, "failed to generate manifest", http.StatusInternalServerError)
		return
	}

	noCacheHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rel := strings.TrimPrefix(r.URL.Path, s.FilesPrefix)
	fullPath, err := fsutil.WithinRoot(s.Builder.SrcDir, rel)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(fullPath)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	if sum, err := digest.ETagFor(fullPath); err == nil {
		w.Header().Set("ETag", fmt.Sprintf(`"%s"`, sum))
	}

	noCacheHeaders(w)
	w.Header().Set("Content-Type", contentTypeFor(rel))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, f)
}

func contentTypeFor(relPath string) string {
	switch path.Ext(relPath) {
	case ".py":
		return "text/plain"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// ListenAndServe starts the server on addr and blocks until ctx is
// cancelled, at which point it shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.mux()}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Printf("serving %s at http://%s%s", s.Builder.SrcDir, addr, s.ManifestPath)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
