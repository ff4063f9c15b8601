package api

import (
	"net/http"

	"lotpool/internal/usecase/commands"

	"github.com/gin-gonic/gin"
)

// JobHandler exposes the batch entry points hit by the external scheduler.
type JobHandler struct {
	closer     commands.BatchCloser
	reconciler commands.Reconciler
}

func NewJobHandler(closer commands.BatchCloser, reconciler commands.Reconciler) *JobHandler {
	return &JobHandler{closer: closer, reconciler: reconciler}
}

// @Summary Run the batch closer
// @Description Process all eligible closed lots: split shipping, create payment links, notify buyers
// @Tags jobs
// @Produce json
// @Param X-Job-Secret header string true "Scheduler shared secret"
// @Success 200 {object} commands.BatchReport
// @Failure 401 {object} map[string]string
// @Router /internal/jobs/close-lots [post]
func (h *JobHandler) CloseLots(c *gin.Context) {
	report, err := h.closer.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Batch run failed",
			"report": report,
		})
		return
	}
	c.JSON(http.StatusOK, report)
}

// @Summary Run the reconciler
// @Description Re-attach reservations left without a lot by failed intake transactions
// @Tags jobs
// @Produce json
// @Param X-Job-Secret header string true "Scheduler shared secret"
// @Success 200 {object} map[string]int
// @Failure 401 {object} map[string]string
// @Router /internal/jobs/reconcile [post]
func (h *JobHandler) Reconcile(c *gin.Context) {
	resolved, err := h.reconciler.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Reconciliation failed",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"resolved": resolved})
}
