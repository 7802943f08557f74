package controllers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/personapath/personapath-backend/internal/tracking"
	"github.com/personapath/personapath-backend/pkg/logger"
)

// TrackingService records engagement pings fired from delivered email.
type TrackingService interface {
	RecordOpen(ctx context.Context, clientID uuid.UUID) error
	RecordClick(ctx context.Context, clientID uuid.UUID) error
}

// TrackOpen serves the tracking pixel. The GIF goes out no matter what;
// recording problems are logged, never surfaced to the mail client.
func TrackOpen(svc TrackingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID, err := uuid.Parse(r.URL.Query().Get("client_id"))
		if err == nil && svc != nil {
			if recErr := svc.RecordOpen(r.Context(), clientID); recErr != nil && logg != nil {
				logg.Error(r.Context(), "record open failed", recErr)
			}
		}

		w.Header().Set("Content-Type", tracking.PixelContentType)
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(tracking.Pixel)
	}
}

// TrackClick records the click and redirects to the destination. A failed
// insert never blocks the redirect.
func TrackClick(svc TrackingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		destination := r.URL.Query().Get("url")
		if !validRedirectTarget(destination) {
			http.Error(w, "invalid destination", http.StatusBadRequest)
			return
		}

		clientID, err := uuid.Parse(r.URL.Query().Get("client_id"))
		if err == nil && svc != nil {
			if recErr := svc.RecordClick(r.Context(), clientID); recErr != nil && logg != nil {
				logg.Error(r.Context(), "record click failed", recErr)
			}
		}

		http.Redirect(w, r, destination, http.StatusFound)
	}
}

// validRedirectTarget allows absolute http(s) destinations only, so the
// endpoint cannot be used as an open redirector to arbitrary schemes.
func validRedirectTarget(raw string) bool {
	if raw == "" {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
