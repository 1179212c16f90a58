package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"example.com/canconv/internal/convert"
)

// Server coordinates HTTP handlers and manages the artifacts produced by
// conversion requests.
type Server struct {
	artifacts  *ArtifactStore
	workDir    string
	uploadsDir string
	defaults   convert.Config
	sem        chan struct{}
}

// Options configures server creation.
type Options struct {
	StorageDir  string
	Defaults    convert.Config
	Concurrency int
}

// Artifact represents a file generated or stored by the daemon.
type Artifact struct {
	ID          string
	Path        string
	Name        string
	ContentType string
	Size        int64
	Kind        string
}

// ArtifactRef is the public representation returned in API responses.
type ArtifactRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

// ArtifactStore keeps track of generated artifacts for later download.
type ArtifactStore struct {
	mu      sync.RWMutex
	entries map[string]Artifact
}

// NewServer constructs a Server rooted at a temporary workspace directory.
func NewServer(opts Options) (*Server, error) {
	storageDir := opts.StorageDir
	if storageDir == "" {
		storageDir = os.TempDir()
	}
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, err
	}
	workDir, err := os.MkdirTemp(storageDir, "canconvd-")
	if err != nil {
		return nil, err
	}
	uploadsDir := filepath.Join(workDir, "uploads")
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	defaults := opts.Defaults
	defaults.ApplyDefaults()
	s := &Server{
		artifacts:  &ArtifactStore{entries: make(map[string]Artifact)},
		workDir:    workDir,
		uploadsDir: uploadsDir,
		defaults:   defaults,
		sem:        make(chan struct{}, concurrency),
	}
	return s, nil
}

// Close removes any temporary state associated with the server.
func (s *Server) Close() error {
	if s == nil || s.workDir == "" {
		return nil
	}
	return os.RemoveAll(s.workDir)
}

func (s *Server) addArtifact(path, displayName, contentType, kind string) (Artifact, error) {
	if path == "" {
		return Artifact{}, errors.New("empty path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, err
	}
	id := randomID()
	art := Artifact{
		ID:          id,
		Path:        path,
		Name:        displayName,
		ContentType: contentType,
		Size:        info.Size(),
		Kind:        kind,
	}
	if art.Name == "" {
		art.Name = filepath.Base(path)
	}
	if art.ContentType == "" {
		art.ContentType = guessContentType(art.Name)
	}
	s.artifacts.mu.Lock()
	s.artifacts.entries[id] = art
	s.artifacts.mu.Unlock()
	return art, nil
}

func (s *Server) getArtifact(id string) (Artifact, bool) {
	s.artifacts.mu.RLock()
	art, ok := s.artifacts.entries[id]
	s.artifacts.mu.RUnlock()
	return art, ok
}

func (s *Server) resolvePath(token string) (string, error) {
	if token == "" {
		return "", errors.New("empty input path")
	}
	if art, ok := s.getArtifact(token); ok {
		return art.Path, nil
	}
	abs := token
	if !filepath.IsAbs(token) {
		abs = filepath.Clean(token)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", err
	}
	return abs, nil
}

type convertRequest struct {
	Asc            string   `json:"asc"`
	Dbc            []string `json:"dbc"`
	SampleInterval *float64 `json:"sampleInterval"`
	FillInterval   *float64 `json:"fillInterval"`
	GroupSize      *int     `json:"groupSize"`
	Encoding       string   `json:"encoding"`
	Debug          bool     `json:"debug"`
	Report         bool     `json:"report"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if req.Asc == "" {
		http.Error(w, "asc required", http.StatusBadRequest)
		return
	}
	if len(req.Dbc) == 0 {
		http.Error(w, "dbc required", http.StatusBadRequest)
		return
	}
	cfg, err := s.buildConfig(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	default:
		http.Error(w, "conversion capacity exhausted", http.StatusTooManyRequests)
		return
	}

	conv := convert.NewConverter(cfg)
	res, err := conv.Run()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, convert.ErrBusy) {
			status = http.StatusTooManyRequests
		}
		http.Error(w, fmt.Sprintf("convert: %v", err), status)
		return
	}

	var refs []ArtifactRef
	for _, path := range res.Files {
		art, err := s.addArtifact(path, filepath.Base(path), "text/csv", "csv")
		if err != nil {
			http.Error(w, fmt.Sprintf("register artifact: %v", err), http.StatusInternalServerError)
			return
		}
		refs = append(refs, toRef(art))
	}
	manArt, err := s.addArtifact(res.ManifestPath, "manifest.json", "application/json", "manifest")
	if err != nil {
		http.Error(w, fmt.Sprintf("register manifest: %v", err), http.StatusInternalServerError)
		return
	}
	refs = append(refs, toRef(manArt))

	if req.Report {
		pdfPath, err := conv.SaveReport(res)
		if err != nil {
			http.Error(w, fmt.Sprintf("write report: %v", err), http.StatusInternalServerError)
			return
		}
		pdfArt, err := s.addArtifact(pdfPath, "Conversion_Report.pdf", "application/pdf", "report")
		if err != nil {
			http.Error(w, fmt.Sprintf("register report: %v", err), http.StatusInternalServerError)
			return
		}
		refs = append(refs, toRef(pdfArt))
	}

	resp := struct {
		OriginalCount  int            `json:"originalCount"`
		SlotCount      int            `json:"slotCount"`
		SignalCount    int            `json:"signalCount"`
		Groups         map[string]int `json:"groups"`
		ManifestDigest string         `json:"manifestDigest"`
		ElapsedMs      int64          `json:"elapsedMs"`
		Artifacts      []ArtifactRef  `json:"artifacts"`
	}{
		OriginalCount:  res.OriginalCount,
		SlotCount:      res.SlotCount,
		SignalCount:    res.SignalCount,
		Groups:         res.Groups,
		ManifestDigest: res.ManifestDigest,
		ElapsedMs:      res.Elapsed.Milliseconds(),
		Artifacts:      refs,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) buildConfig(req convertRequest) (convert.Config, error) {
	cfg := s.defaults
	ascPath, err := s.resolvePath(req.Asc)
	if err != nil {
		return cfg, fmt.Errorf("asc resolve: %w", err)
	}
	cfg.AscFile = ascPath
	cfg.DbcFiles = nil
	for _, p := range req.Dbc {
		resolved, err := s.resolvePath(p)
		if err != nil {
			return cfg, fmt.Errorf("dbc resolve %s: %w", p, err)
		}
		cfg.DbcFiles = append(cfg.DbcFiles, resolved)
	}
	outDir, err := os.MkdirTemp(s.workDir, "convert-")
	if err != nil {
		return cfg, fmt.Errorf("output dir: %w", err)
	}
	cfg.OutputDir = outDir
	if req.SampleInterval != nil {
		cfg.SampleInterval = *req.SampleInterval
	}
	if req.FillInterval != nil {
		cfg.FillInterval = *req.FillInterval
	}
	if req.GroupSize != nil {
		cfg.GroupSize = *req.GroupSize
	}
	if strings.TrimSpace(req.Encoding) != "" {
		cfg.CsvEncoding = req.Encoding
	}
	cfg.Debug = req.Debug
	cfg.ApplyDefaults()
	return cfg, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := struct {
		Busy      bool          `json:"busy"`
		Artifacts []ArtifactRef `json:"artifacts"`
	}{
		Busy:      len(s.sem) == cap(s.sem),
		Artifacts: s.listArtifacts(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleArtifactDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/artifacts/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	art, ok := s.getArtifact(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(art.Path)
	if err != nil {
		http.Error(w, fmt.Sprintf("open artifact: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, fmt.Sprintf("stat artifact: %v", err), http.StatusInternalServerError)
		return
	}
	if art.ContentType != "" {
		w.Header().Set("Content-Type", art.ContentType)
	}
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	disposition := fmt.Sprintf("attachment; filename=\"%s\"", art.Name)
	w.Header().Set("Content-Disposition", disposition)
	io.Copy(w, f)
}

func toRef(art Artifact) ArtifactRef {
	return ArtifactRef{
		ID:          art.ID,
		Name:        art.Name,
		ContentType: art.ContentType,
		Size:        art.Size,
		Kind:        art.Kind,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func guessContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".pdf":
		return "application/pdf"
	case ".asc", ".dbc", ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

func randomID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		now := time.Now().UTC()
		return fmt.Sprintf("%d%06d", now.UnixNano(), os.Getpid())
	}
	return hex.EncodeToString(b[:])
}

func (s *Server) listArtifacts() []ArtifactRef {
	s.artifacts.mu.RLock()
	refs := make([]ArtifactRef, 0, len(s.artifacts.entries))
	for _, art := range s.artifacts.entries {
		refs = append(refs, toRef(art))
	}
	s.artifacts.mu.RUnlock()
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs
}
