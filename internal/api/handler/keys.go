package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/mealtrack/internal/api/response"
	"github.com/kiranshivaraju/mealtrack/internal/apikey"
	"github.com/kiranshivaraju/mealtrack/internal/store"
	"github.com/kiranshivaraju/mealtrack/pkg/models"
)

type createKeyRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

// keyCreated carries the raw key. It is never returned again.
type keyCreated struct {
	*models.APIKey
	Key string `json:"key"`
}

func NewCreateKeyHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := profileID(w, r)
		if !ok {
			return
		}
		var req createKeyRequest
		if !decodeBody(w, r, &req) {
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid key",
				validationErrors{"name": {"is required"}})
			return
		}

		raw, key, err := apikey.New(owner, name, req.Scopes)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid key",
				validationErrors{"scopes": {err.Error()}})
			return
		}
		if err := s.CreateAPIKey(r.Context(), key); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				response.Error(w, http.StatusConflict, "CONFLICT", "Key already exists", nil)
				return
			}
			internalError(w, "create api key failed", err)
			return
		}
		response.Created(w, keyCreated{APIKey: key, Key: raw})
	}
}

func NewListKeysHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := profileID(w, r)
		if !ok {
			return
		}
		keys, err := s.ListAPIKeys(r.Context(), owner)
		if err != nil {
			internalError(w, "list api keys failed", err)
			return
		}
		if keys == nil {
			keys = []*models.APIKey{}
		}
		response.Collection(w, keys, response.ListMeta{Count: len(keys), Limit: len(keys)})
	}
}

func NewRevokeKeyHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := profileID(w, r)
		if !ok {
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "keyID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid key id", nil)
			return
		}
		if err := s.RevokeAPIKey(r.Context(), id, owner); err != nil {
			storeError(w, err, "API key")
			return
		}
		response.NoContent(w)
	}
}
