package handler

import (
	"io"
	"net/http"
	"sort"

	"github.com/vitiscan/vitiscan-web/internal/agronomy/client"
	"github.com/vitiscan/vitiscan-web/internal/agronomy/domain"
	"github.com/vitiscan/vitiscan-web/internal/session"
	"github.com/vitiscan/vitiscan-web/pkg/errors"
	"github.com/vitiscan/vitiscan-web/pkg/httputil"
	"github.com/vitiscan/vitiscan-web/pkg/i18n"
	"github.com/vitiscan/vitiscan-web/pkg/logger"
)

const defaultMaxUploadSize = 20 << 20 // 20MB

// Parcel area slider bounds, in hectares
const (
	parcelAreaMin     = 0.1
	parcelAreaMax     = 5.0
	parcelAreaStep    = 0.1
	parcelAreaDefault = 0.5
)

// Form preselections
const (
	defaultFarmingMode = domain.FarmingModeOrganic
	defaultSeverity    = domain.SeverityLow
)

// Handler serves the session workflow API
type Handler struct {
	controller    *session.Controller
	client        client.Client
	maxUploadSize int64
	log           *logger.Logger
}

// NewHandler creates a new session handler
func NewHandler(ctrl *session.Controller, c client.Client, maxUploadSize int64, log *logger.Logger) *Handler {
	if maxUploadSize <= 0 {
		maxUploadSize = defaultMaxUploadSize
	}
	return &Handler{
		controller:    ctrl,
		client:        c,
		maxUploadSize: maxUploadSize,
		log:           log,
	}
}

// Get handles GET /api/v1/session
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Lock()
	defer s.Unlock()

	httputil.JSON(w, http.StatusOK, s.View(s.DebugMode))
}

// Reset handles DELETE /api/v1/session
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Lock()
	defer s.Unlock()

	h.controller.Reset(s)
	httputil.JSON(w, http.StatusOK, s.View(s.DebugMode))
}

// Upload handles POST /api/v1/session/upload
// Accepts a multipart form with a "file" part holding a JPEG, PNG or WebP photo.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	// Limit request size
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		key := "errors.upload_too_large"
		if errors.Is(err, http.ErrNotMultipart) {
			key = "errors.upload_missing"
		}
		h.reject(w, r, s, errors.BadRequestWithKey(key))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.reject(w, r, s, errors.BadRequestWithKey("errors.upload_missing"))
		return
	}
	defer file.Close()

	// Read file into memory (never to disk)
	data, err := io.ReadAll(file)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to read uploaded file")
		h.reject(w, r, s, errors.Internal("failed to read uploaded file"))
		return
	}

	s.Lock()
	defer s.Unlock()

	image := domain.Image{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	if err := h.controller.Upload(s, image); err != nil {
		httputil.JSONError(w, r, err, s.View(s.DebugMode))
		return
	}

	httputil.JSON(w, http.StatusOK, s.View(s.DebugMode))
}

// Diagnose handles POST /api/v1/session/diagnose
func (h *Handler) Diagnose(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Lock()
	defer s.Unlock()

	if err := h.controller.Diagnose(r.Context(), s); err != nil {
		httputil.JSONError(w, r, err, s.View(s.DebugMode))
		return
	}

	httputil.JSON(w, http.StatusOK, s.View(s.DebugMode))
}

// RequestPlan handles POST /api/v1/session/plan
func (h *Handler) RequestPlan(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var form session.PlanForm
	if err := httputil.DecodeJSONLocalized(r, &form); err != nil {
		h.reject(w, r, s, err)
		return
	}

	s.Lock()
	defer s.Unlock()

	if err := h.controller.RequestPlan(r.Context(), s, form); err != nil {
		httputil.JSONError(w, r, err, s.View(s.DebugMode))
		return
	}

	httputil.JSON(w, http.StatusOK, s.View(s.DebugMode))
}

// Location handles GET /api/v1/session/location
// Returns the photo geotag as a GeoJSON point feature for the map layer.
func (h *Handler) Location(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Lock()
	defer s.Unlock()

	if s.GeoTag == nil {
		httputil.ErrorLocalized(w, r, errors.NotFoundWithKey("location"))
		return
	}
	feature := s.GeoTag.Feature()
	if feature == nil {
		httputil.ErrorLocalized(w, r, errors.NotFoundWithKey("location"))
		return
	}

	body, err := feature.MarshalJSON()
	if err != nil {
		httputil.ErrorLocalized(w, r, errors.Internal("failed to encode location"))
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// Disease is one catalog entry with its display names
type Disease struct {
	Label         string `json:"label"`
	Name          string `json:"name"`
	LocalizedName string `json:"localizedName"`
}

// DiseaseCatalogResponse is the body of GET /api/v1/diseases
type DiseaseCatalogResponse struct {
	DatasetName string    `json:"datasetName"`
	Diseases    []Disease `json:"diseases"`
}

// Diseases handles GET /api/v1/diseases
func (h *Handler) Diseases(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.client.Diseases(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, errors.Upstream(domain.ServiceDiagnostic, err))
		return
	}

	localizer := i18n.LocalizerFromContext(r.Context())
	resp := DiseaseCatalogResponse{
		DatasetName: catalog.DatasetName,
		Diseases:    make([]Disease, 0, len(catalog.Diseases)),
	}
	for label, name := range catalog.Diseases {
		localized := name
		if key := "diseases." + label; localizer.Has(key) {
			localized = localizer.T(key)
		}
		resp.Diseases = append(resp.Diseases, Disease{Label: label, Name: name, LocalizedName: localized})
	}
	sort.Slice(resp.Diseases, func(i, j int) bool { return resp.Diseases[i].Label < resp.Diseases[j].Label })

	httputil.JSON(w, http.StatusOK, resp)
}

// Option is a selectable form value with its localized label
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Range describes the parcel area slider
type Range struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Step    float64 `json:"step"`
	Default float64 `json:"default"`
	Unit    string  `json:"unit"`
}

// OptionsResponse is the body of GET /api/v1/options
type OptionsResponse struct {
	FarmingModes       []Option `json:"farmingModes"`
	DefaultFarmingMode string   `json:"defaultFarmingMode"`
	Severities         []Option `json:"severities"`
	DefaultSeverity    string   `json:"defaultSeverity"`
	ParcelArea         Range    `json:"parcelArea"`
}

// Options handles GET /api/v1/options
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	localizer := i18n.LocalizerFromContext(r.Context())

	resp := OptionsResponse{
		DefaultFarmingMode: string(defaultFarmingMode),
		DefaultSeverity:    string(defaultSeverity),
		ParcelArea: Range{
			Min:     parcelAreaMin,
			Max:     parcelAreaMax,
			Step:    parcelAreaStep,
			Default: parcelAreaDefault,
			Unit:    "ha",
		},
	}
	for _, m := range domain.FarmingModes {
		resp.FarmingModes = append(resp.FarmingModes, Option{Value: string(m), Label: localizer.T("farming_mode." + string(m))})
	}
	for _, s := range domain.Severities {
		resp.Severities = append(resp.Severities, Option{Value: string(s), Label: localizer.T("severity." + string(s))})
	}

	httputil.JSON(w, http.StatusOK, resp)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, ok := session.FromContext(r.Context())
	if !ok {
		h.log.Error().Str("path", r.URL.Path).Msg("no session in request context")
		httputil.ErrorLocalized(w, r, errors.Internal("session middleware not installed"))
		return nil, false
	}
	return s, true
}

// reject answers a request refused before reaching the controller
func (h *Handler) reject(w http.ResponseWriter, r *http.Request, s *session.Session, err error) {
	s.Lock()
	defer s.Unlock()
	httputil.JSONError(w, r, err, s.View(s.DebugMode))
}
