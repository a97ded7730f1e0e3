package tools

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/store-bridge/internal/common"
	"github.com/noah-isme/store-bridge/internal/obs"
)

const maxParamsBytes = 64 << 10

// Handler exposes a Registry over HTTP.
type Handler struct {
	Registry *Registry
	Logger   zerolog.Logger
}

type toolsPayload struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Data    toolsListing `json:"data"`
}

type toolsListing struct {
	Tools []Tool `json:"tools"`
}

// List handles GET /mcp/tools.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusOK, toolsPayload{
		Status:  "success",
		Message: "Tools retrieved successfully",
		Data:    toolsListing{Tools: h.Registry.List()},
	})
}

// Call handles POST /mcp/tools/{toolName}. Tool failures are reported in the
// body with status "error"; only unknown tools produce a non-200 response.
func (h *Handler) Call(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "toolName")
	tool, ok := h.Registry.Get(name)
	if !ok {
		obs.ObserveToolCall("unknown", "not_found")
		common.JSON(w, http.StatusNotFound, Result{
			"status":  "error",
			"code":    "TOOL_NOT_FOUND",
			"message": fmt.Sprintf("Tool '%s' not found", name),
		})
		return
	}

	start := time.Now()
	var result Result
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxParamsBytes))
	if err == nil && len(raw) > 0 && !json.Valid(raw) {
		err = &common.ValidationError{Message: "request body must be valid JSON"}
	}
	if err == nil {
		result, err = tool.Handler(r.Context(), raw)
	}

	outcome := "success"
	if err != nil {
		outcome = "error"
		result = failure(err)
	}
	obs.ObserveToolCall(name, outcome)

	event := h.Logger.Info()
	if err != nil {
		event = h.Logger.Warn().Err(err)
	}
	event.
		Str("tool", name).
		Str("result", outcome).
		Dur("duration", time.Since(start)).
		Msg("tool_executed")

	common.JSON(w, http.StatusOK, result)
}
