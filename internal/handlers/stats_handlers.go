package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"kouden_app/internal/services"
)

type StatsHandler struct {
	stats       *services.StatsService
	allocations *services.AllocationService
	postal      *services.PostalService
}

func NewStatsHandler(stats *services.StatsService, allocations *services.AllocationService, postal *services.PostalService) *StatsHandler {
	return &StatsHandler{stats: stats, allocations: allocations, postal: postal}
}

// KoudenSummary returns the dashboard aggregate for a ledger,
// including the "amount with allocations" view next to the plain
// ledger total.
func (h *StatsHandler) KoudenSummary(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")

	summary, err := h.stats.Summary(c.Request().Context(), koudenID)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to compute summary")
	}

	return respondOK(c, summary)
}

// EntryTotal returns one entry's ledger amount plus its allocated
// offering shares.
func (h *StatsHandler) EntryTotal(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid entry id")
	}

	total, err := h.allocations.EntryTotalAmount(koudenID, uint(id))
	if err != nil {
		return respondError(c, http.StatusNotFound, "Entry not found")
	}

	return respondOK(c, total)
}

// PostalLookup resolves a zip code to candidate addresses for the
// entry form.
func (h *StatsHandler) PostalLookup(c echo.Context) error {
	zip := c.Param("zip")

	addresses, err := h.postal.Lookup(c.Request().Context(), zip)
	if err != nil {
		return respondError(c, http.StatusBadRequest, err.Error())
	}

	return respondOK(c, addresses)
}
