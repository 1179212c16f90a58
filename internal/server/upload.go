package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Per-kind upload size caps. Trace logs grow with recording length; catalog
// files stay small.
const (
	maxTraceUploadBytes   = 1 << 30
	maxCatalogUploadBytes = 16 << 20
	multipartMemoryBytes  = 64 << 20
)

// uploadKind maps an uploaded filename to its artifact kind and size cap.
// Only trace logs and signal catalogs enter the daemon through uploads;
// everything else it serves is generated by a conversion.
func uploadKind(name string) (kind string, limit int64, err error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".asc":
		return "trace", maxTraceUploadBytes, nil
	case ".dbc":
		return "catalog", maxCatalogUploadBytes, nil
	default:
		return "", 0, fmt.Errorf("unsupported upload %q: want a .asc trace or a .dbc catalog", name)
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		http.Error(w, fmt.Sprintf("parse multipart: %v", err), http.StatusBadRequest)
		return
	}
	if r.MultipartForm == nil {
		http.Error(w, "no files provided", http.StatusBadRequest)
		return
	}
	var refs []ArtifactRef
	for _, files := range r.MultipartForm.File {
		for _, fh := range files {
			ref, err := s.saveUpload(fh)
			if err != nil {
				http.Error(w, fmt.Sprintf("save upload %s: %v", fh.Filename, err), http.StatusBadRequest)
				return
			}
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		http.Error(w, "no files uploaded", http.StatusBadRequest)
		return
	}
	resp := struct {
		Files []ArtifactRef `json:"files"`
	}{Files: refs}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) saveUpload(fh *multipart.FileHeader) (ArtifactRef, error) {
	if fh == nil {
		return ArtifactRef{}, fmt.Errorf("nil file header")
	}
	kind, limit, err := uploadKind(fh.Filename)
	if err != nil {
		return ArtifactRef{}, err
	}
	if fh.Size > limit {
		return ArtifactRef{}, fmt.Errorf("%s exceeds the %d MiB %s limit", fh.Filename, limit>>20, kind)
	}
	src, err := fh.Open()
	if err != nil {
		return ArtifactRef{}, err
	}
	defer src.Close()
	dest, err := os.CreateTemp(s.uploadsDir, "upload-*"+strings.ToLower(filepath.Ext(fh.Filename)))
	if err != nil {
		return ArtifactRef{}, err
	}
	// The declared size is client-supplied; cap the copy as well.
	written, err := io.Copy(dest, io.LimitReader(src, limit+1))
	if err == nil && written > limit {
		err = fmt.Errorf("%s exceeds the %d MiB %s limit", fh.Filename, limit>>20, kind)
	}
	if err != nil {
		dest.Close()
		os.Remove(dest.Name())
		return ArtifactRef{}, err
	}
	dest.Close()
	art, err := s.addArtifact(dest.Name(), fh.Filename, guessContentType(fh.Filename), kind)
	if err != nil {
		return ArtifactRef{}, err
	}
	return toRef(art), nil
}
