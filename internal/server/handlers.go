package server

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fleetaudit/internal/export"
	"github.com/sells-group/fleetaudit/internal/ingest"
	"github.com/sells-group/fleetaudit/internal/model"
	"github.com/sells-group/fleetaudit/internal/qualify"
	"github.com/sells-group/fleetaudit/internal/store"
	"github.com/sells-group/fleetaudit/pkg/fmcsa"
)

// handleAuditPreview is the funnel's teaser: a DOT number in, a synchronous
// risk assessment out.
func (s *Server) handleAuditPreview(w http.ResponseWriter, r *http.Request) {
	dotNumber := chi.URLParam(r, "dotNumber")

	snap, err := s.carriers.GetCarrier(r.Context(), dotNumber)
	if err != nil {
		switch {
		case eris.Is(err, fmcsa.ErrCarrierNotFound):
			writeError(w, http.StatusNotFound, "DOT number not found")
		case eris.Is(err, fmcsa.ErrMissingWebKey):
			writeError(w, http.StatusInternalServerError, "server configuration error")
		default:
			zap.L().Error("audit preview fetch failed",
				zap.String("dot_number", dotNumber),
				zap.Error(err))
			writeError(w, http.StatusBadGateway, "failed to fetch carrier data")
		}
		return
	}

	writeJSON(w, http.StatusOK, fmcsa.Assess(snap))
}

type createLeadRequest struct {
	FullName        string `json:"full_name"`
	WorkEmail       string `json:"work_email"`
	CompanyName     string `json:"company_name"`
	Phone           string `json:"phone"`
	DOTNumber       string `json:"dot_number"`
	FleetSize       string `json:"fleet_size"`
	Role            string `json:"role"`
	PainPoints      string `json:"pain_points"`
	Source          string `json:"source"`
	UTMCampaign     string `json:"utm_campaign"`
	LandingPagePath string `json:"landing_page_path"`
}

func (req *createLeadRequest) validate() error {
	if strings.TrimSpace(req.FullName) == "" {
		return eris.New("full_name is required")
	}
	if strings.TrimSpace(req.WorkEmail) == "" {
		return eris.New("work_email is required")
	}
	if strings.TrimSpace(req.CompanyName) == "" {
		return eris.New("company_name is required")
	}
	if req.FleetSize == "" {
		return eris.New("fleet_size is required")
	}
	return nil
}

// handleCreateLead validates, qualifies synchronously, persists, and hands
// the lead to the fulfillment dispatcher. The response never waits on
// fulfillment.
func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	var req createLeadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	lead := &model.Lead{
		FullName:        strings.TrimSpace(req.FullName),
		WorkEmail:       strings.TrimSpace(req.WorkEmail),
		CompanyName:     strings.TrimSpace(req.CompanyName),
		Phone:           strings.TrimSpace(req.Phone),
		DOTNumber:       strings.TrimSpace(req.DOTNumber),
		FleetSize:       model.FleetSize(req.FleetSize),
		Role:            model.Role(req.Role),
		PainPoints:      req.PainPoints,
		Source:          req.Source,
		UTMCampaign:     req.UTMCampaign,
		LandingPagePath: req.LandingPagePath,
	}

	// Qualification happens exactly once, before first persist.
	lead.QualificationStatus = qualify.Grade(r.Context(), lead.DOTNumber, s.store)

	if err := s.store.CreateLead(r.Context(), lead); err != nil {
		zap.L().Error("create lead", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store lead")
		return
	}

	if s.dispatcher != nil {
		if err := s.dispatcher.Enqueue(lead); err != nil {
			// The lead is stored; fulfillment can be re-run later.
			zap.L().Warn("enqueue fulfillment",
				zap.String("lead_id", lead.ID),
				zap.Error(err))
		}
	}

	writeJSON(w, http.StatusCreated, lead)
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	filter := store.LeadFilter{
		VerifiedStatus: model.VerifyStatus(r.URL.Query().Get("verified_status")),
		DOTNumber:      r.URL.Query().Get("dot_number"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = offset
	}

	leads, err := s.store.ListLeads(r.Context(), filter)
	if err != nil {
		zap.L().Error("list leads", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list leads")
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads, "count": len(leads)})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	leads, err := s.store.ListLeads(r.Context(), store.LeadFilter{Limit: 10000})
	if err != nil {
		zap.L().Error("export leads", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to export leads")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename=smartlead_export.csv`)
	if err := export.WriteSmartLeadCSV(w, leads); err != nil {
		zap.L().Error("write export", zap.Error(err))
	}
}

// handleImport ingests a multipart fleet census upload (CSV or XLSX) into
// the fleet_data table.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file upload is required")
		return
	}
	defer file.Close()

	var records []model.FleetRecord
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".xlsx":
		tmpPath, cleanup, saveErr := saveUpload(file, header.Filename)
		if saveErr != nil {
			zap.L().Error("save upload", zap.Error(saveErr))
			writeError(w, http.StatusInternalServerError, "failed to read upload")
			return
		}
		defer cleanup()
		records, err = ingest.ReadFleetXLSX(tmpPath)
	default:
		records, err = ingest.ReadFleetCSV(file)
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	count, err := s.store.UpsertFleet(r.Context(), records)
	if err != nil {
		zap.L().Error("upsert fleet", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store fleet data")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "imported_rows": count})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}

// saveUpload spools a multipart file to a temp path so the XLSX reader can
// open it by name. cleanup removes the temp file.
func saveUpload(file multipart.File, filename string) (string, func(), error) {
	tmp, err := os.CreateTemp("", "fleetaudit-upload-*"+filepath.Ext(filename))
	if err != nil {
		return "", nil, eris.Wrap(err, "create temp file")
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, eris.Wrap(err, "spool upload")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, eris.Wrap(err, "close temp file")
	}
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}
