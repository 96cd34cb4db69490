package api

import (
	"strings"
	"time"

	"genstudio/internal/auth"
	"genstudio/internal/config"
	"genstudio/internal/model"
	"genstudio/internal/service"
	"genstudio/internal/storage"
)

// HTTPHandler bundles the dependencies shared by every HTTP endpoint.
type HTTPHandler struct {
	cfg               config.Config
	repo              model.Repository
	storage           storage.Storage
	storagePublicBase string
	authManager       *auth.Manager

	orchestrator *service.Orchestrator
}

// NewHTTPHandler builds the handler and its auth manager.
func NewHTTPHandler(cfg config.Config, repo model.Repository, store storage.Storage, orchestrator *service.Orchestrator) (*HTTPHandler, error) {
	expiry := time.Duration(cfg.JWTExpirationMinutes) * time.Minute
	authManager, err := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, expiry)
	if err != nil {
		return nil, err
	}

	return &HTTPHandler{
		cfg:               cfg,
		repo:              repo,
		storage:           store,
		storagePublicBase: normalisePublicBase(cfg.StoragePublicBaseURL),
		authManager:       authManager,
		orchestrator:      orchestrator,
	}, nil
}

// normalisePublicBase cleans the configured public URL prefix.
func normalisePublicBase(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		trimmed = "/files"
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return strings.TrimRight(trimmed, "/")
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	return strings.TrimRight(trimmed, "/")
}

// publicResultURL turns a stored object reference into a client-facing URL.
// Remote backends already return absolute URLs or keys; local paths are
// mounted under the public base.
func (h *HTTPHandler) publicResultURL(ref string) string {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed
	}
	return h.storagePublicBase + "/" + strings.TrimLeft(trimmed, "/")
}
