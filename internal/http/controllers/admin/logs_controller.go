// Package admin expone endpoints administrativos (logs del server).
package admin

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mercadorhq/mercador/internal/adminlogs"
	httperrors "github.com/mercadorhq/mercador/internal/http/errors"
	"github.com/mercadorhq/mercador/internal/http/helpers"
	"github.com/mercadorhq/mercador/internal/observability/logger"
)

// LogsController expone los archivos de log a los admins.
type LogsController struct {
	logs *adminlogs.Service
}

// NewLogsController crea el controller de logs.
func NewLogsController(logs *adminlogs.Service) *LogsController {
	return &LogsController{logs: logs}
}

// List maneja GET /v1/admin/logs.
func (c *LogsController) List(w http.ResponseWriter, r *http.Request) {
	files, err := c.logs.List()
	if err != nil {
		if stderrors.Is(err, adminlogs.ErrLogsDisabled) {
			httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("logging a archivo no está habilitado"))
			return
		}
		logger.From(r.Context()).Error("log listing failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, files)
}

// Tail maneja GET /v1/admin/logs/{name}?lines=N.
func (c *LogsController) Tail(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	lines := 0
	if s := r.URL.Query().Get("lines"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			lines = n
		}
	}

	out, err := c.logs.Tail(name, lines)
	if err != nil {
		switch {
		case stderrors.Is(err, adminlogs.ErrLogsDisabled):
			httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("logging a archivo no está habilitado"))
		case stderrors.Is(err, adminlogs.ErrBadFilename):
			httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("nombre de archivo inválido"))
		case stderrors.Is(err, adminlogs.ErrFileNotFound):
			httperrors.WriteError(w, httperrors.ErrNotFound)
		default:
			logger.From(r.Context()).Error("log tail failed", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrInternalServerError)
		}
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{
		"name":  name,
		"lines": out,
	})
}
