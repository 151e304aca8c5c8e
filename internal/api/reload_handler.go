package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pccr10001/mbpd/internal/providers"
	"github.com/pccr10001/mbpd/internal/repository"
	"github.com/pccr10001/mbpd/pkg/logger"
)

// ReloadFunc builds a fresh database from disk.
type ReloadFunc func() (*providers.Database, error)

type ReloadHandler struct {
	store     *Store
	reload    ReloadFunc
	snapshots *repository.SnapshotRepository
}

// NewReloadHandler returns a handler that swaps in the result of reload.
// snapshots may be nil when no snapshot database is configured.
func NewReloadHandler(store *Store, reload ReloadFunc, snapshots *repository.SnapshotRepository) *ReloadHandler {
	return &ReloadHandler{store: store, reload: reload, snapshots: snapshots}
}

// Reload swaps in a fresh database only when it loaded cleanly. Any load
// error, or a table without providers, keeps the current database.
func (h *ReloadHandler) Reload(c *gin.Context) {
	db, err := h.reload()
	if err == nil && (db == nil || db.NumProviders() == 0) {
		err = errors.New("reload produced no providers")
	}
	if err != nil {
		logger.Log.Errorf("Reload failed, keeping current database: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.store.Swap(db)
	resp := gin.H{"countries": db.Len(), "providers": db.NumProviders()}

	if h.snapshots != nil {
		if err := h.snapshots.Replace(db.Countries()); err != nil {
			logger.Log.Errorf("Snapshot after reload failed: %v", err)
			resp["snapshot_error"] = err.Error()
		} else if n, err := h.snapshots.CountProviders(); err == nil {
			resp["snapshot_providers"] = n
		}
	}

	logger.Log.Infof("Provider database reloaded: %d countries", db.Len())
	c.JSON(http.StatusOK, resp)
}
