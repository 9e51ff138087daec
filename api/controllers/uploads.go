package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voltmidia/ytops-backend/api/responses"
	"github.com/voltmidia/ytops-backend/internal/ledger"
	"github.com/voltmidia/ytops-backend/internal/worker"
	pkgerrors "github.com/voltmidia/ytops-backend/pkg/errors"
	"github.com/voltmidia/ytops-backend/pkg/logger"
)

// ForceUploader triggers the on-demand upload path for one channel.
type ForceUploader interface {
	ForceUpload(ctx context.Context, channelID string) (worker.ForceResult, error)
}

// ForceUpload handles POST /api/yt-upload/force/{channel_id}. The body
// is the raw {status, message} contract, not the envelope.
func ForceUpload(svc ForceUploader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		channelID := chi.URLParam(r, "channel_id")
		if channelID == "" {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "channel_id is required"))
			return
		}

		result, err := svc.ForceUpload(ctx, channelID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, result)
	}
}

// StatusToday handles GET /api/status.
func StatusToday(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		groups, err := svc.StatusToday(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, map[string]any{
			"subniches": groups,
		})
	}
}

// ChannelHistory handles GET /api/canais/{channel_id}/historico-uploads.
func ChannelHistory(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		channelID := chi.URLParam(r, "channel_id")
		if channelID == "" {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "channel_id is required"))
			return
		}

		entries, err := svc.ChannelHistory(ctx, channelID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, map[string]any{
			"channel_id": channelID,
			"uploads":    entries,
		})
	}
}

// FullHistory handles GET /api/historico-completo.
func FullHistory(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		days, err := svc.FullHistory(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, map[string]any{
			"days": days,
		})
	}
}
