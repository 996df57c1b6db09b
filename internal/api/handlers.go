package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vantor/bucketscope/internal/objstore"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.AccessKeyID == "" || req.SecretAccessKey == "" {
		writeError(w, http.StatusBadRequest, "access_key_id and secret_access_key are required")
		return
	}

	token, err := s.svc.Login(r.Context(), objstore.Credentials{
		AccessKeyID:     req.AccessKeyID,
		SecretAccessKey: req.SecretAccessKey,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		if err := s.svc.Logout(r.Context(), token); err != nil {
			s.log.Warnf("logout failed: %v", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBuckets(w http.ResponseWriter, r *http.Request) {
	buckets, err := s.svc.Buckets(r.Context(), requestToken(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageSize := 0
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid page_size")
			return
		}
		pageSize = n
	}
	if pageSize == 0 {
		pageSize = objstore.DefaultPageSize
	}

	page, outcome, err := s.svc.List(r.Context(), requestToken(r),
		chi.URLParam(r, "bucket"), q.Get("prefix"), q.Get("cursor"), pageSize)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("X-Cache", string(outcome))
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	obj, err := s.svc.Download(r.Context(), requestToken(r),
		chi.URLParam(r, "bucket"), chi.URLParam(r, "*"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer obj.Close()

	info := obj.Info()
	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if _, err := io.Copy(w, obj); err != nil {
		s.log.Debugf("download aborted: %v", err)
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing object key")
		return
	}

	err := s.svc.Upload(r.Context(), requestToken(r),
		chi.URLParam(r, "bucket"), key, r.Body, r.ContentLength,
		r.Header.Get("Content-Type"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Remove(r.Context(), requestToken(r),
		chi.URLParam(r, "bucket"), chi.URLParam(r, "*"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemovePrefix(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		writeError(w, http.StatusBadRequest, "prefix is required")
		return
	}

	removed, err := s.svc.RemovePrefix(r.Context(), requestToken(r),
		chi.URLParam(r, "bucket"), prefix)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, removedResponse{Removed: removed})
}

// handlePresign hands out a time-limited direct download URL. TTL comes
// from an optional ?ttl= duration, capped at one day.
func (s *Server) handlePresign(w http.ResponseWriter, r *http.Request) {
	ttl := 15 * time.Minute
	if raw := r.URL.Query().Get("ttl"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 || d > 24*time.Hour {
			writeError(w, http.StatusBadRequest, "invalid ttl")
			return
		}
		ttl = d
	}

	url, err := s.svc.PresignDownload(r.Context(), requestToken(r),
		chi.URLParam(r, "bucket"), chi.URLParam(r, "*"), ttl)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, presignResponse{URL: url, ExpiresIn: ttl.String()})
}

func (s *Server) handleBucketSize(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.BucketSize(r.Context(), requestToken(r), chi.URLParam(r, "bucket"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if result == nil {
		writeError(w, http.StatusNotFound, "not calculated yet")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleBucketSizeStart fires the computation and immediately reports
// accepted; the client polls handleBucketSize for the result.
func (s *Server) handleBucketSizeStart(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	err := s.svc.StartBucketSize(r.Context(), requestToken(r), chi.URLParam(r, "bucket"), force)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted"})
}
