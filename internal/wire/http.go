package wire

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/canonica-labs/canonica/internal/auth"
	"github.com/canonica-labs/canonica/internal/errors"
	"github.com/canonica-labs/canonica/internal/status"
)

// HTTPHandler exposes a Server's wire protocol over HTTP/JSON, per
// SPEC_FULL.md §6: net/http + encoding/json rather than a binary RPC,
// carrying exactly the session/statement operations plus the metadata
// operations. Every route (other than /health and /readyz) requires a
// bearer token the configured auth.Authenticator accepts.
type HTTPHandler struct {
	server        *Server
	authenticator auth.Authenticator
	statusChecker status.StatusChecker
	mux           *http.ServeMux
}

// NewHTTPHandler builds the HTTP surface for server, authenticating
// every request via authenticator. /health and /readyz report a plain
// "ok" until SetStatusChecker installs a real readiness source.
func NewHTTPHandler(server *Server, authenticator auth.Authenticator) *HTTPHandler {
	h := &HTTPHandler{server: server, authenticator: authenticator, mux: http.NewServeMux()}
	h.routes()
	return h
}

// SetStatusChecker installs the readiness source /readyz reports
// through. Without one, /readyz behaves exactly like /health.
func (h *HTTPHandler) SetStatusChecker(checker status.StatusChecker) {
	h.statusChecker = checker
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *HTTPHandler) routes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /readyz", h.handleReady)

	h.mux.HandleFunc("POST /v1/connections", h.authed(h.handleOpenConnection))
	h.mux.HandleFunc("DELETE /v1/connections/{session}", h.authed(h.handleCloseConnection))
	h.mux.HandleFunc("POST /v1/connections/{session}/statements", h.authed(h.handleCreateStatement))
	h.mux.HandleFunc("POST /v1/connections/{session}/statements/{stmt}/prepare", h.authed(h.handlePrepare))
	h.mux.HandleFunc("POST /v1/connections/{session}/statements/{stmt}/execute", h.authed(h.handleExecute))
	h.mux.HandleFunc("POST /v1/connections/{session}/statements/{stmt}/prepareAndExecute", h.authed(h.handlePrepareAndExecute))
	h.mux.HandleFunc("GET /v1/connections/{session}/statements/{stmt}/fetch", h.authed(h.handleFetch))
	h.mux.HandleFunc("DELETE /v1/connections/{session}/statements/{stmt}", h.authed(h.handleCloseStatement))
	h.mux.HandleFunc("POST /v1/queries/{id}/cancel", h.authed(h.handleCancel))
	h.mux.HandleFunc("POST /v1/query/explain", h.authed(h.handleExplain))
	h.mux.HandleFunc("POST /v1/query/validate", h.authed(h.handleValidateQuery))

	h.mux.HandleFunc("GET /v1/metadata/tables", h.authed(h.handleGetTables))
	h.mux.HandleFunc("GET /v1/metadata/columns", h.authed(h.handleGetColumns))
	h.mux.HandleFunc("GET /v1/metadata/schemas", h.authed(h.handleGetSchemas))
	h.mux.HandleFunc("GET /v1/metadata/catalogs", h.authed(h.handleGetCatalogs))
	h.mux.HandleFunc("GET /v1/metadata/tableTypes", h.authed(h.handleGetTableTypes))
}

func (h *HTTPHandler) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		user, err := h.authenticator.ValidateToken(r.Context(), token)
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r.WithContext(auth.ContextWithUser(r.Context(), user)))
	}
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports whether the gateway is ready to accept queries.
// Without a status.StatusChecker installed it degrades to the same
// plain "ok" /health returns.
func (h *HTTPHandler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.statusChecker == nil {
		h.handleHealth(w, r)
		return
	}

	result, err := h.statusChecker.GetStatus(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "reason": err.Error()})
		return
	}

	code := http.StatusOK
	if !result.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, result)
}

func (h *HTTPHandler) handleOpenConnection(w http.ResponseWriter, r *http.Request) {
	sess := h.server.OpenConnection()
	writeJSON(w, http.StatusCreated, map[string]string{"sessionId": sess.ID})
}

func (h *HTTPHandler) handleCloseConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.server.CloseConnection(r.PathValue("session")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) handleCreateStatement(w http.ResponseWriter, r *http.Request) {
	stmt, err := h.server.CreateStatement(r.PathValue("session"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"statementId": stmt.ID})
}

type sqlRequest struct {
	SQL        string        `json:"sql"`
	Parameters []interface{} `json:"parameters"`
}

func (h *HTTPHandler) handlePrepare(w http.ResponseWriter, r *http.Request) {
	var req sqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewKindError(errors.KindParseError, "malformed request body", err.Error(), "send a JSON object with a \"sql\" field", err))
		return
	}
	stmt, err := h.server.Prepare(r.PathValue("session"), r.PathValue("stmt"), req.SQL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"statementId": stmt.ID})
}

func (h *HTTPHandler) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req sqlRequest
	json.NewDecoder(r.Body).Decode(&req)
	stmt, err := h.server.Execute(r.Context(), r.PathValue("session"), r.PathValue("stmt"), req.Parameters)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"statementId": stmt.ID, "queryId": stmt.QueryID})
}

func (h *HTTPHandler) handlePrepareAndExecute(w http.ResponseWriter, r *http.Request) {
	var req sqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewKindError(errors.KindParseError, "malformed request body", err.Error(), "send a JSON object with a \"sql\" field", err))
		return
	}
	stmt, err := h.server.PrepareAndExecute(r.Context(), r.PathValue("session"), r.PathValue("stmt"), req.SQL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"statementId": stmt.ID, "queryId": stmt.QueryID})
}

func (h *HTTPHandler) handleFetch(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	maxRows, err := strconv.Atoi(r.URL.Query().Get("maxRows"))
	if err != nil || maxRows <= 0 {
		maxRows = 1000
	}
	frame, err := h.server.Fetch(r.Context(), r.PathValue("session"), r.PathValue("stmt"), offset, maxRows)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

func (h *HTTPHandler) handleCloseStatement(w http.ResponseWriter, r *http.Request) {
	if err := h.server.CloseStatement(r.PathValue("session"), r.PathValue("stmt")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := h.server.Cancel(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req sqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewKindError(errors.KindParseError, "malformed request body", err.Error(), "send a JSON object with a \"sql\" field", err))
		return
	}
	info, err := h.server.Explain(req.SQL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *HTTPHandler) handleValidateQuery(w http.ResponseWriter, r *http.Request) {
	var req sqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewKindError(errors.KindParseError, "malformed request body", err.Error(), "send a JSON object with a \"sql\" field", err))
		return
	}
	writeJSON(w, http.StatusOK, h.server.ValidateQuery(req.SQL))
}

func (h *HTTPHandler) handleGetTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.server.GetTables(r.URL.Query().Get("name")))
}

func (h *HTTPHandler) handleGetColumns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.server.GetColumns(r.URL.Query().Get("table"), r.URL.Query().Get("column")))
}

func (h *HTTPHandler) handleGetSchemas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.server.GetSchemas())
}

func (h *HTTPHandler) handleGetCatalogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.server.GetCatalogs())
}

func (h *HTTPHandler) handleGetTableTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.server.GetTableTypes())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// kindedError is satisfied by *errors.CanonicError and every Err* type
// that embeds it, letting writeError pick a status without a type
// switch over each concrete wrapper.
type kindedError interface {
	error
	ErrKind() errors.ErrorKind
	ErrCode() errors.ErrorCode
}

// writeError renders a CanonicError (or any other error) as JSON,
// mapping its Kind (falling back to its legacy Code) to the closest
// HTTP status.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := map[string]string{"error": err.Error()}

	if ke, ok := err.(kindedError); ok {
		status = statusForKind(ke.ErrKind(), ke.ErrCode())
	}
	writeJSON(w, status, body)
}

func statusForKind(kind errors.ErrorKind, code errors.ErrorCode) int {
	switch kind {
	case errors.KindParseError, errors.KindValidationError, errors.KindUnsupportedFeature, errors.KindIllegalState:
		return http.StatusBadRequest
	case errors.KindDataSourceNotFound:
		return http.StatusNotFound
	case errors.KindConnTimeout:
		return http.StatusGatewayTimeout
	case errors.KindConnRefused:
		return http.StatusBadGateway
	case errors.KindLimitExceeded:
		return http.StatusTooManyRequests
	case errors.KindCancelled:
		return http.StatusConflict
	}

	switch code {
	case errors.CodeValidation:
		return http.StatusBadRequest
	case errors.CodeAuth:
		return http.StatusUnauthorized
	case errors.CodeEngine:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
