package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/soyeahso/leechcore/internal/errs"
	"github.com/soyeahso/leechcore/internal/routing"
	"github.com/soyeahso/leechcore/internal/version"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("POST /api/v1/entities", s.handlePostEntity)

	mux.HandleFunc("/", handleNotFound)
}

// registerRPCHandlers sets up all RPC method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("status", s.rpcStatus)
	s.Handle("plugins.list", s.rpcPluginsList)
	s.Handle("hooks.list", s.rpcHooksList)
	s.Handle("entity.handle", s.rpcEntityHandle)
	s.Handle("entity.candidates", s.rpcEntityCandidates)
	s.Handle("history.list", s.rpcHistoryList)
}

// handlePostEntity dispatches an entity posted as JSON. The caller
// authenticates with a bearer token.
func (s *Server) handlePostEntity(w http.ResponseWriter, r *http.Request) {
	if !s.authLimiter.allow(r.RemoteAddr) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	if res := AuthorizeBearer(s.auth, r); !res.OK {
		s.authLimiter.recordFailure(r.RemoteAddr)
		writeError(w, errs.New(errs.CodeUnauthorized, res.Reason))
		return
	}

	var p EntityParams
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayload))
	if err := dec.Decode(&p); err != nil {
		writeError(w, errs.Wrap(err, errs.CodeRequestInvalid, "invalid entity body"))
		return
	}
	e, err := p.Entity()
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.backend.Dispatch(r.Context(), e)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(HealthResponse{
		Status:  "ok",
		Version: version.Version,
		Phase:   string(s.backend.Phase()),
		Clients: s.clients.count(),
	})
}

func (s *Server) rpcStatus(rc *RequestContext) {
	rc.Respond(StatusResponse{
		Version:  version.Version,
		Phase:    string(s.backend.Phase()),
		UptimeMs: s.backend.Uptime().Milliseconds(),
		Plugins:  s.backend.Plugins().Count(),
		Handlers: s.backend.Entities().Owners(),
		Hooks:    len(s.backend.Hooks().List()),
		Clients:  s.clients.count(),
	})
}

func (s *Server) rpcPluginsList(rc *RequestContext) {
	rc.Respond(map[string]any{"plugins": s.backend.Plugins().Infos()})
}

func (s *Server) rpcHooksList(rc *RequestContext) {
	rc.Respond(map[string]any{"hooks": s.backend.Hooks().List()})
}

func (s *Server) rpcEntityHandle(rc *RequestContext) {
	var p EntityParams
	if err := rc.Params(&p); err != nil {
		rc.Fail(err)
		return
	}
	e, err := p.Entity()
	if err != nil {
		rc.Fail(err)
		return
	}

	res, err := s.backend.Dispatch(rc.Ctx, e)
	if err != nil {
		rc.Fail(err)
		return
	}
	rc.Respond(res)
}

func (s *Server) rpcEntityCandidates(rc *RequestContext) {
	var p EntityParams
	if err := rc.Params(&p); err != nil {
		rc.Fail(err)
		return
	}
	e, err := p.Entity()
	if err != nil {
		rc.Fail(err)
		return
	}

	cands, err := s.backend.Candidates(rc.Ctx, e)
	if err != nil {
		rc.Fail(err)
		return
	}
	if cands == nil {
		cands = []routing.Candidate{}
	}
	rc.Respond(map[string]any{"candidates": cands})
}

func (s *Server) rpcHistoryList(rc *RequestContext) {
	var p HistoryParams
	if err := rc.Params(&p); err != nil {
		rc.Fail(err)
		return
	}
	if p.Limit <= 0 {
		p.Limit = defaultHistoryLimit
	}
	p.Limit = min(p.Limit, maxHistoryLimit)

	if s.history == nil {
		rc.Respond(map[string]any{"records": []routing.Record{}})
		return
	}

	var (
		recs []routing.Record
		err  error
	)
	if p.Query != "" {
		recs, err = s.history.Search(rc.Ctx, p.Query, p.Limit)
	} else {
		recs, err = s.history.Recent(rc.Ctx, p.Limit)
	}
	if err != nil {
		rc.Fail(errs.Wrap(err, errs.CodeStoreFailure, "reading history"))
		return
	}
	if recs == nil {
		recs = []routing.Record{}
	}
	rc.Respond(map[string]any{"records": recs})
}
