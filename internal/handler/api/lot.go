package api

import (
	"net/http"

	resdto "lotpool/internal/handler/dto/response"
	"lotpool/internal/infra"
	"lotpool/internal/usecase/queries"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type LotHandler struct {
	lotQueries queries.LotQueries
}

func NewLotHandler(qrys queries.LotQueries) *LotHandler {
	return &LotHandler{lotQueries: qrys}
}

// @Summary Get lot progress
// @Description Get a lot's accumulation progress and status
// @Tags lots
// @Produce json
// @Param id path string true "Lot ID"
// @Success 200 {object} resdto.LotResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /lots/{id} [get]
func (h *LotHandler) GetLot(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid lot ID format",
		})
		return
	}

	view, err := h.lotQueries.GetByID(c.Request.Context(), id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Lot not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	c.JSON(http.StatusOK, resdto.FromLotView(view))
}
