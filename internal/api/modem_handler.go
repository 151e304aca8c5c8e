package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pccr10001/mbpd/internal/modem"
	"github.com/pccr10001/mbpd/internal/worker"
	"github.com/pccr10001/mbpd/pkg/logger"
)

type ModemHandler struct {
	store        *Store
	baudRate     int
	timeout      time.Duration
	excludePorts []string
	watcher      *worker.Manager
}

func NewModemHandler(store *Store, baudRate int, timeout time.Duration, excludePorts []string) *ModemHandler {
	return &ModemHandler{store: store, baudRate: baudRate, timeout: timeout, excludePorts: excludePorts}
}

func (h *ModemHandler) detector() *modem.Detector {
	return modem.NewDetector(h.store.Get(), h.baudRate, h.timeout, h.excludePorts)
}

// ListDetections returns what the background watcher found. Without a
// watcher the list is empty.
func (h *ModemHandler) ListDetections(c *gin.Context) {
	if h.watcher == nil {
		c.JSON(http.StatusOK, []*modem.Detection{})
		return
	}
	c.JSON(http.StatusOK, h.watcher.Detections())
}

func (h *ModemHandler) ListPorts(c *gin.Context) {
	ports, err := h.detector().ListPorts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ports)
}

func (h *ModemHandler) Detect(c *gin.Context) {
	var req struct {
		Port string `json:"port" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	det, err := h.detector().Detect(req.Port)
	if err != nil {
		logger.Log.Warnf("Detect on %s failed: %v", req.Port, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, det)
}
