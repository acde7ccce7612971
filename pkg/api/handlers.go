package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/psaab/metconf/pkg/config"
	"github.com/psaab/metconf/pkg/logging"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Error: msg})
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]string{"status": "ok"})
}

func (s *Server) statusHandler(w http.ResponseWriter, _ *http.Request) {
	st := s.store.Stats()
	resp := StatusResponse{
		Uptime:       time.Since(s.startTime).Truncate(time.Second).String(),
		Path:         s.store.Path(),
		Loads:        st.Loads,
		Failures:     st.Failures,
		LastError:    st.LastError,
		History:      s.store.HistoryLen(),
		HistoryLimit: s.store.HistoryLimit(),
	}
	if cs := s.store.Active(); cs != nil {
		resp.ConfigLoaded = true
		resp.Daemons = cs.Len(config.KindDaemon)
		resp.Processes = cs.Len(config.KindProcess)
		resp.Visis = cs.Len(config.KindVisi)
		resp.Tunables = cs.Len(config.KindTunable)
	}
	if gen, ok := s.store.Generation(); ok {
		resp.Generation = gen.String()
	}
	writeOK(w, resp)
}

// active writes a 503 and returns nil when nothing is loaded.
func (s *Server) active(w http.ResponseWriter) *config.ConfigSet {
	cs := s.store.Active()
	if cs == nil {
		writeError(w, http.StatusServiceUnavailable, "no configuration loaded")
	}
	return cs
}

func (s *Server) configHandler(w http.ResponseWriter, _ *http.Request) {
	if cs := s.active(w); cs != nil {
		writeOK(w, cs)
	}
}

func (s *Server) configExportHandler(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "text"
	}
	if format != "text" && format != "json" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format))
		return
	}
	if s.active(w) == nil {
		return
	}
	var out string
	switch format {
	case "text":
		out = s.store.ShowActive()
	case "json":
		data, err := s.store.ExportJSON()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out = string(data)
	}
	writeOK(w, TextOutput{Output: out})
}

func (s *Server) daemonsHandler(w http.ResponseWriter, _ *http.Request) {
	if cs := s.active(w); cs != nil {
		writeOK(w, daemonList(cs))
	}
}

func (s *Server) processesHandler(w http.ResponseWriter, _ *http.Request) {
	if cs := s.active(w); cs != nil {
		writeOK(w, processList(cs))
	}
}

func (s *Server) visisHandler(w http.ResponseWriter, _ *http.Request) {
	if cs := s.active(w); cs != nil {
		writeOK(w, visiList(cs))
	}
}

func (s *Server) tunablesHandler(w http.ResponseWriter, _ *http.Request) {
	if cs := s.active(w); cs != nil {
		writeOK(w, tunableList(cs))
	}
}

func (s *Server) configHistoryHandler(w http.ResponseWriter, _ *http.Request) {
	gen, _ := s.store.Generation()
	entries := s.store.History()
	result := make([]HistoryInfo, 0, len(entries))
	for i, e := range entries {
		result = append(result, HistoryInfo{
			Index:     i,
			ID:        e.ID.String(),
			Time:      e.Timestamp.Format(time.RFC3339),
			Path:      e.Comment,
			Active:    e.ID == gen,
			Daemons:   e.Config.Len(config.KindDaemon),
			Processes: e.Config.Len(config.KindProcess),
			Visis:     e.Config.Len(config.KindVisi),
			Tunables:  e.Config.Len(config.KindTunable),
		})
	}
	writeOK(w, result)
}

func (s *Server) configCompareHandler(w http.ResponseWriter, r *http.Request) {
	diff, err := s.store.ShowCompare(queryInt(r, "n", 1))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeOK(w, TextOutput{Output: diff})
}

func (s *Server) configReloadHandler(w http.ResponseWriter, _ *http.Request) {
	if err := s.store.Load(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, Response{
			Success: false,
			Data:    loadError(err),
			Error:   err.Error(),
		})
		return
	}
	s.statusHandler(w, nil)
}

func loadError(err error) LoadError {
	le := LoadError{Stage: config.Stage(err), Error: err.Error()}
	if pos, ok := config.ErrorPos(err); ok {
		le.Line = pos.Line
		le.Column = pos.Column
	}
	return le
}

func (s *Server) configRollbackHandler(w http.ResponseWriter, r *http.Request) {
	var req RollbackRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	var err error
	if req.ID != "" {
		id, perr := uuid.Parse(req.ID)
		if perr != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid generation id %q", req.ID))
			return
		}
		err = s.store.RollbackTo(id)
	} else {
		err = s.store.Rollback(req.N)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.statusHandler(w, r)
}

func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	if s.eventBuf == nil {
		writeError(w, http.StatusServiceUnavailable, "event buffer not available")
		return
	}
	f := logging.EventFilter{
		Type:  r.URL.Query().Get("type"),
		Stage: r.URL.Query().Get("stage"),
	}
	recs := s.eventBuf.LatestFiltered(queryInt(r, "n", 50), f)
	result := make([]EventEntry, 0, len(recs))
	for _, rec := range recs {
		result = append(result, eventEntryFromRecord(rec))
	}
	writeOK(w, result)
}

// --- helpers ---

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
