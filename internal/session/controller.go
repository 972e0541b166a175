package session

import (
	"bytes"
	"context"

	"github.com/vitiscan/vitiscan-web/internal/agronomy/client"
	"github.com/vitiscan/vitiscan-web/internal/agronomy/domain"
	"github.com/vitiscan/vitiscan-web/internal/geotag"
	"github.com/vitiscan/vitiscan-web/pkg/errors"
	"github.com/vitiscan/vitiscan-web/pkg/httputil"
	"github.com/vitiscan/vitiscan-web/pkg/logger"
)

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47}
	riffMagic = []byte("RIFF")
	webpMagic = []byte("WEBP")
)

// PlanForm is the treatment-plan form filled in by the farmer
type PlanForm struct {
	FarmingMode domain.FarmingMode `json:"farmingMode"`
	Severity    domain.Severity    `json:"severity"`
	ParcelArea  float64            `json:"parcelArea"`
}

// Controller applies workflow actions to a session. It does not lock;
// callers hold the session lock for the duration of an action.
type Controller struct {
	client client.Client
	log    *logger.Logger
}

// NewController creates a workflow controller backed by c
func NewController(c client.Client, log *logger.Logger) *Controller {
	return &Controller{
		client: c,
		log:    log.WithComponent("session"),
	}
}

// Upload stores a new photo and decodes its geotag. Any previous image,
// diagnosis and plan are discarded first.
func (c *Controller) Upload(s *Session, image domain.Image) error {
	contentType, ok := sniffImage(image.Data)
	if len(image.Data) == 0 {
		return c.invalid(s, ActionUpload, errors.BadRequestWithKey("errors.upload_missing"))
	}
	if !ok {
		return c.invalid(s, ActionUpload, errors.BadRequestWithKey("errors.upload_not_image"))
	}

	if s.Stage != StageIdle {
		c.log.WithSessionID(s.ID).Debug().Str("stage", string(s.Stage)).Msg("new upload, resetting session")
		s.reset()
	}

	data := make([]byte, len(image.Data))
	copy(data, image.Data)
	tag := geotag.Decode(data)

	s.Image = &domain.Image{
		Filename:    image.Filename,
		ContentType: contentType,
		Data:        data,
	}
	s.GeoTag = &tag
	s.Stage = StageUploaded

	c.log.WithSessionID(s.ID).Info().
		Str("filename", image.Filename).
		Int("size", len(data)).
		Bool("has_coordinates", tag.HasCoordinates).
		Msg("photo uploaded")

	return nil
}

// Diagnose submits the uploaded photo to the Diagnostic API
func (c *Controller) Diagnose(ctx context.Context, s *Session) error {
	if !s.Allows(ActionDiagnose) {
		return errors.InvalidTransition(string(ActionDiagnose), string(s.Stage))
	}

	result, err := c.client.SubmitDiagnosis(ctx, *s.Image)
	if err != nil {
		return c.failed(s, ActionDiagnose, domain.ServiceDiagnostic, err)
	}

	s.Diagnosis = result
	s.Stage = StageDiagnosed
	s.LastFailure = nil

	c.log.WithSessionID(s.ID).Info().
		Str("disease", result.DiseaseLabel).
		Float64("confidence", result.Confidence).
		Msg("diagnosis completed")

	return nil
}

// RequestPlan validates the form and asks the Treatment Plan API for a plan.
// The disease label and the photo's date and location complete the request.
func (c *Controller) RequestPlan(ctx context.Context, s *Session, form PlanForm) error {
	if !s.Allows(ActionRequestPlan) {
		return errors.InvalidTransition(string(ActionRequestPlan), string(s.Stage))
	}

	req := domain.TreatmentRequest{
		DiseaseLabel: s.Diagnosis.DiseaseLabel,
		FarmingMode:  form.FarmingMode,
		Severity:     form.Severity,
		ParcelArea:   form.ParcelArea,
	}
	if s.GeoTag != nil {
		if s.GeoTag.CapturedAt != nil {
			req.CapturedAt = *s.GeoTag.CapturedAt
		}
		req.Location = s.GeoTag.Location()
	}

	if err := httputil.Validate(req); err != nil {
		return c.invalid(s, ActionRequestPlan, err)
	}

	plan, err := c.client.SubmitTreatmentRequest(ctx, req)
	if err != nil {
		return c.failed(s, ActionRequestPlan, domain.ServiceSolutions, err)
	}

	s.TreatmentRequest = &req
	s.TreatmentPlan = plan
	s.Stage = StagePlanReady
	s.LastFailure = nil

	c.log.WithSessionID(s.ID).Info().
		Str("disease", req.DiseaseLabel).
		Str("farming_mode", string(req.FarmingMode)).
		Int("products", len(plan.Products)).
		Msg("treatment plan ready")

	return nil
}

// Reset returns the session to Idle
func (c *Controller) Reset(s *Session) {
	s.reset()
	c.log.WithSessionID(s.ID).Info().Msg("session reset")
}

// invalid records a validation failure without changing the stage
func (c *Controller) invalid(s *Session, action Action, err error) error {
	failure := &Failure{
		Action:  action,
		Kind:    FailureValidation,
		Message: err.Error(),
	}

	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		failure.Message = appErr.Message
		failure.Details = appErr.Details
	}
	s.LastFailure = failure

	return err
}

// failed records a backend failure. The stage stays put so the action can be retried.
func (c *Controller) failed(s *Session, action Action, service string, err error) error {
	var apiErr *domain.APIFailure
	if !errors.As(err, &apiErr) {
		apiErr = &domain.APIFailure{
			Service: service,
			Kind:    domain.FailureTransportError,
			Message: err.Error(),
		}
	}

	s.LastFailure = &Failure{
		Action:     action,
		Service:    apiErr.Service,
		Kind:       apiErr.Kind,
		Message:    apiErr.Message,
		HTTPStatus: apiErr.HTTPStatus,
		Debug:      apiErr.Debug,
	}

	c.log.WithSessionID(s.ID).Warn().
		Str("action", string(action)).
		Str("kind", string(apiErr.Kind)).
		Int("http_status", apiErr.HTTPStatus).
		Msg("backend call failed, stage unchanged")

	if apiErr.Kind == domain.FailureTimeout {
		return errors.UpstreamTimeout(apiErr.Service, apiErr)
	}
	return errors.Upstream(apiErr.Service, apiErr)
}

// sniffImage checks JPEG, PNG and WebP magic bytes and returns the content type
func sniffImage(data []byte) (string, bool) {
	switch {
	case len(data) < 4:
		return "", false
	case bytes.HasPrefix(data, jpegMagic):
		return "image/jpeg", true
	case bytes.HasPrefix(data, pngMagic):
		return "image/png", true
	case len(data) >= 12 && bytes.Equal(data[:4], riffMagic) && bytes.Equal(data[8:12], webpMagic):
		return "image/webp", true
	}
	return "", false
}
