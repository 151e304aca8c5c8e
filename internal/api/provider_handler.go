package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pccr10001/mbpd/internal/mccmnc"
	"github.com/pccr10001/mbpd/internal/providers"
	"github.com/pccr10001/mbpd/internal/repository"
	"gorm.io/gorm"
)

type ProviderHandler struct {
	store     *Store
	snapshots *repository.SnapshotRepository
}

type countrySummary struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Providers int    `json:"providers"`
}

// NewProviderHandler serves lookups from store. snapshots may be nil.
func NewProviderHandler(store *Store, snapshots *repository.SnapshotRepository) *ProviderHandler {
	return &ProviderHandler{store: store, snapshots: snapshots}
}

func (h *ProviderHandler) ListCountries(c *gin.Context) {
	countries := h.store.Get().Countries()
	resp := make([]countrySummary, 0, len(countries))
	for _, country := range countries {
		resp = append(resp, countrySummary{
			Code:      country.Code,
			Name:      country.Name,
			Providers: len(country.Providers),
		})
	}
	c.JSON(http.StatusOK, resp)
}

// GetCountry answers from memory, or from the SQL snapshot with
// ?source=snapshot.
func (h *ProviderHandler) GetCountry(c *gin.Context) {
	if c.Query("source") == "snapshot" {
		h.getSnapshotCountry(c)
		return
	}

	country := h.store.Get().LookupCountry(c.Param("code"))
	if country == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Country not found"})
		return
	}
	c.JSON(http.StatusOK, country)
}

func (h *ProviderHandler) LookupMCCMNC(c *gin.Context) {
	code := c.Param("mccmnc")
	mcc, mnc, ok := providers.SplitMCCMNC(code)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MCC/MNC must be 5 or 6 digits"})
		return
	}

	p := h.store.Get().LookupMCCMNC(code)
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No provider for " + code})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mcc": mcc, "mnc": mnc, "provider": p})
}

func (h *ProviderHandler) LookupSID(c *gin.Context) {
	sid, err := strconv.ParseUint(c.Param("sid"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid SID"})
		return
	}

	p := h.store.Get().LookupCDMASID(uint32(sid))
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No provider for SID " + c.Param("sid")})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sid": sid, "provider": p})
}

// OperatorName resolves what a modem reported into a display name.
func (h *ProviderHandler) OperatorName(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	code := strings.TrimSpace(c.Query("code"))
	if name == "" && code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name or code required"})
		return
	}

	resolver := mccmnc.NewResolver(h.store.Get())
	c.JSON(http.StatusOK, gin.H{"name": resolver.ParseOperatorName(name, code)})
}

func (h *ProviderHandler) getSnapshotCountry(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Snapshot database not configured"})
		return
	}
	country, err := h.snapshots.FindCountry(c.Param("code"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Country not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, country)
}

// SnapshotProvidersByMCC lists the snapshot providers of one mobile
// country code.
func (h *ProviderHandler) SnapshotProvidersByMCC(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Snapshot database not configured"})
		return
	}
	mcc := c.Param("mcc")
	if len(mcc) != 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MCC must be 3 digits"})
		return
	}
	if _, err := strconv.ParseUint(mcc, 10, 16); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MCC must be 3 digits"})
		return
	}

	list, err := h.snapshots.FindProvidersByMCC(mcc)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}
