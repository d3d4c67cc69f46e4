// Package admin serves the relay's HTTP surface: an unauthenticated health
// probe and the bearer-protected activation key and vault administration.
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/vaultrelay/internal/common"
	"github.com/dmitrijs2005/vaultrelay/internal/logging"
	"github.com/dmitrijs2005/vaultrelay/internal/server/models"
	"github.com/gorilla/mux"
)

// KeyService is the activation key administration used by the API.
type KeyService interface {
	Add(ctx context.Context, key, note string) (*models.ActivationKey, error)
	List(ctx context.Context) ([]*models.ActivationKey, error)
	Deactivate(ctx context.Context, key string) error
}

// VaultService is the vault administration used by the API.
type VaultService interface {
	ListVaults(ctx context.Context) ([]models.VaultSummary, error)
	DeleteVault(ctx context.Context, vaultID string) (int, error)
}

// RateLimiter admits requests by client IP.
type RateLimiter interface {
	AllowIP(ip string) bool
}

type API struct {
	keys     KeyService
	vaults   VaultService
	limiter  RateLimiter
	clientIP func(*http.Request) string
	secret   string
	logger   logging.Logger
	now      func() time.Time
}

func NewAPI(keys KeyService, vaults VaultService, limiter RateLimiter, clientIP func(*http.Request) string, secret string, logger logging.Logger) *API {
	return &API{
		keys:     keys,
		vaults:   vaults,
		limiter:  limiter,
		clientIP: clientIP,
		secret:   secret,
		logger:   logger.With("module", "admin"),
		now:      time.Now,
	}
}

// Register mounts the health and admin routes on r.
func (a *API) Register(r *mux.Router) {
	r.Handle("/health", a.rateLimit(http.HandlerFunc(a.health))).Methods(http.MethodGet)

	ar := r.PathPrefix("/admin").Subrouter()
	ar.Use(a.rateLimit, a.authorize)
	ar.HandleFunc("/keys", a.listKeys).Methods(http.MethodGet)
	ar.HandleFunc("/keys", a.createKey).Methods(http.MethodPost)
	ar.HandleFunc("/keys/{key}", a.deactivateKey).Methods(http.MethodDelete)
	ar.HandleFunc("/vaults", a.listVaults).Methods(http.MethodGet)
	ar.HandleFunc("/vaults/{id}", a.deleteVault).Methods(http.MethodDelete)
}

// authorize requires "Authorization: Bearer <secret>". With no secret
// configured every request is refused.
func (a *API) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.authorized(r.Header.Get("Authorization")) {
			writeError(w, http.StatusUnauthorized, common.ErrorUnauthorized.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) authorized(header string) bool {
	if a.secret == "" {
		return false
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(a.secret)) == 1
}

func (a *API) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.limiter.AllowIP(a.clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, common.ErrorRateLimited.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Timestamp: a.now().UTC().Format(time.RFC3339)})
}

func (a *API) listKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := a.keys.List(r.Context())
	if err != nil {
		a.internal(w, r, err)
		return
	}
	if keys == nil {
		keys = []*models.ActivationKey{}
	}
	writeJSON(w, http.StatusOK, keys)
}

type createKeyRequest struct {
	Key  string `json:"key"`
	Note string `json:"note"`
}

func (a *API) createKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	k, err := a.keys.Add(r.Context(), req.Key, req.Note)
	switch {
	case errors.Is(err, common.ErrorAlreadyExists):
		writeError(w, http.StatusConflict, "activation key already exists")
		return
	case err != nil:
		a.internal(w, r, err)
		return
	}

	a.logger.Info(r.Context(), "activation key created")
	writeJSON(w, http.StatusCreated, k)
}

func (a *API) deactivateKey(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	err := a.keys.Deactivate(r.Context(), key)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, "activation key not found")
		return
	case err != nil:
		a.internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deactivated": true, "key": key})
}

func (a *API) listVaults(w http.ResponseWriter, r *http.Request) {
	vaults, err := a.vaults.ListVaults(r.Context())
	if err != nil {
		a.internal(w, r, err)
		return
	}
	if vaults == nil {
		vaults = []models.VaultSummary{}
	}
	writeJSON(w, http.StatusOK, vaults)
}

type deleteVaultResponse struct {
	Deleted      bool   `json:"deleted"`
	VaultID      string `json:"vaultId"`
	FilesRemoved int    `json:"filesRemoved"`
}

func (a *API) deleteVault(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	n, err := a.vaults.DeleteVault(r.Context(), id)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, "vault not found")
		return
	case err != nil:
		a.internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteVaultResponse{Deleted: true, VaultID: id, FilesRemoved: n})
}

func (a *API) internal(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.Error(r.Context(), "admin request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, common.ErrorInternal.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
