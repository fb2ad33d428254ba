package handlers

import (
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/night-tales/skazka/internal/auth"
)

// GetAsset handles GET /v1/assets/{id}
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	assetID, err := uuid.Parse(vars["id"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid asset id")
		return
	}

	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	asset, err := h.stories.GetAsset(r.Context(), assetID, userID)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "asset not found")
		return
	}

	writeJSON(w, http.StatusOK, asset)
}

// GetAssetContent handles GET /v1/assets/{id}/content
func (h *Handler) GetAssetContent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	assetID, err := uuid.Parse(vars["id"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid asset id")
		return
	}

	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	asset, err := h.stories.GetAsset(r.Context(), assetID, userID)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "asset not found")
		return
	}

	body, err := h.store.GetObject(r.Context(), asset.S3Key)
	if err != nil {
		log.Error().Err(err).Str("asset_id", assetID.String()).Msg("Failed to fetch asset content")
		writeJSONError(w, http.StatusInternalServerError, "failed to fetch asset content")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", asset.MimeType)
	if _, err := io.Copy(w, body); err != nil {
		log.Debug().Err(err).Str("asset_id", assetID.String()).Msg("Asset content stream interrupted")
	}
}
