package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/mscrnt/panelcap/internal/logging"
	"github.com/mscrnt/panelcap/pkg/db"
	"github.com/mscrnt/panelcap/pkg/metrics"
	"github.com/mscrnt/panelcap/pkg/panelinfo"
)

// Multipart field names accepted by POST /parse
const (
	FieldEDID = "edid"
	FieldVBT  = "vbt"
	FieldDPCD = "dpcd"
)

// ParseResponse is the body of a successful POST /parse
type ParseResponse struct {
	ID      int64           `json:"id,omitempty"`
	ParseID string          `json:"parse_id,omitempty"`
	Info    *panelinfo.Info `json:"info"`
}

// ErrorResponse is the body of every non-2xx JSON reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// parseHandler decodes uploaded artifacts and optionally stores the result
func (s *Server) parseHandler(w http.ResponseWriter, r *http.Request) {
	limit := s.config.MaxUploadBytes
	if limit <= 0 {
		limit = DefaultConfig().MaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart body: %v", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	save := queryBool(r, "save")
	if save && s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "panel store not configured")
		return
	}

	dir, err := os.MkdirTemp("", "panelcap-upload-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create upload directory")
		return
	}
	defer func() { _ = os.RemoveAll(dir) }()

	paths := map[string]string{}
	names := db.ArtifactPaths{}
	for _, field := range []string{FieldEDID, FieldVBT, FieldDPCD} {
		file, header, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s upload: %v", field, err))
			return
		}
		path, err := saveUpload(dir, field, file)
		if err != nil {
			s.logger.Error("failed to store upload", zap.String(logging.FieldFormat, field), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to store upload")
			return
		}
		paths[field] = path

		switch field {
		case FieldEDID:
			names.EDID = header.Filename
		case FieldVBT:
			names.VBT = header.Filename
		case FieldDPCD:
			names.DPCD = header.Filename
		}
	}

	if len(paths) == 0 {
		writeError(w, http.StatusBadRequest, "at least one of edid, vbt or dpcd is required")
		return
	}

	info, err := s.parser.ParseAll(paths[FieldEDID], paths[FieldVBT], paths[FieldDPCD])
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, panelinfo.ErrInsufficientDPCD) ||
			errors.Is(err, panelinfo.ErrMalformedDPCD) ||
			errors.Is(err, panelinfo.ErrDPCDNotFound) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}

	resp := ParseResponse{Info: info}
	if save {
		panel, err := s.store.CreatePanel(r.URL.Query().Get("name"), names, info)
		if err != nil {
			s.logger.Error("failed to save panel", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to save panel")
			return
		}
		metrics.RecordPanelSaved()
		resp.ID = panel.ID
		resp.ParseID = panel.ParseID
		s.logger.Info("panel saved", zap.Int64(logging.FieldPanelID, panel.ID), zap.String("parse_id", panel.ParseID))
	}

	status := http.StatusOK
	if save {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

// listPanelsHandler lists stored panels, newest first
func (s *Server) listPanelsHandler(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "panel store not configured")
		return
	}

	q := r.URL.Query()
	filter := db.PanelFilter{
		Vendor:     q.Get("vendor"),
		Name:       q.Get("name"),
		Resolution: q.Get("resolution"),
		Limit:      50,
	}
	for key, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s: %q", key, v))
			return
		}
		*dst = n
	}

	panels, err := s.store.ListPanels(filter)
	if err != nil {
		s.logger.Error("failed to list panels", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list panels")
		return
	}
	if panels == nil {
		panels = []*db.Panel{}
	}
	writeJSON(w, http.StatusOK, panels)
}

// getPanelHandler looks a panel up by numeric ID or parse UUID
func (s *Server) getPanelHandler(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "panel store not configured")
		return
	}

	key := r.PathValue("id")
	var (
		panel *db.Panel
		err   error
	)
	if id, convErr := strconv.ParseInt(key, 10, 64); convErr == nil {
		panel, err = s.store.GetPanel(id)
	} else {
		panel, err = s.store.GetPanelByParseID(key)
	}

	switch {
	case errors.Is(err, db.ErrInvalidParseID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, db.ErrPanelNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		s.logger.Error("failed to get panel", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get panel")
	default:
		writeJSON(w, http.StatusOK, panel)
	}
}

// healthHandler returns server health status
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK\n")
}

func saveUpload(dir, field string, file multipart.File) (string, error) {
	defer func() { _ = file.Close() }()

	path := filepath.Join(dir, "upload."+field)
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304 -- fixed name inside a private temp dir
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, file); err != nil {
		_ = out.Close()
		return "", err
	}
	return path, out.Close()
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
