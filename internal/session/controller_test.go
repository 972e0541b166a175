package session_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitiscan/vitiscan-web/internal/agronomy/domain"
	"github.com/vitiscan/vitiscan-web/internal/session"
	"github.com/vitiscan/vitiscan-web/pkg/errors"
	"github.com/vitiscan/vitiscan-web/pkg/logger"
	"github.com/vitiscan/vitiscan-web/pkg/testutil"
)

// stubClient records calls and answers with the configured results
type stubClient struct {
	diagnosis     *domain.DiagnosisResult
	diagnosisErr  error
	plan          *domain.TreatmentPlan
	planErr       error
	diagnoseCalls int
	planCalls     int
	lastRequest   domain.TreatmentRequest
}

func (c *stubClient) SubmitDiagnosis(_ context.Context, _ domain.Image) (*domain.DiagnosisResult, error) {
	c.diagnoseCalls++
	if c.diagnosisErr != nil {
		return nil, c.diagnosisErr
	}
	return c.diagnosis, nil
}

func (c *stubClient) SubmitTreatmentRequest(_ context.Context, req domain.TreatmentRequest) (*domain.TreatmentPlan, error) {
	c.planCalls++
	c.lastRequest = req
	if c.planErr != nil {
		return nil, c.planErr
	}
	return c.plan, nil
}

func (c *stubClient) Diseases(_ context.Context) (*domain.DiseaseCatalog, error) {
	return &domain.DiseaseCatalog{DatasetName: "test", Diseases: map[string]string{}}, nil
}

func newStub() *stubClient {
	return &stubClient{
		diagnosis: &domain.DiagnosisResult{
			DiseaseLabel: "plasmopara_viticola",
			Confidence:   0.88,
			RawPayload:   json.RawMessage(`{"diseaseLabel":"plasmopara_viticola","confidence":0.88}`),
			Debug:        &domain.Exchange{ResponseBody: json.RawMessage(`{}`)},
		},
		plan: &domain.TreatmentPlan{
			Products:           []domain.Product{{Name: "Copper hydroxide", Dosage: 2.5, Unit: "kg/ha"}},
			PreventiveMeasures: []string{"Thin the canopy"},
			Warnings:           []string{},
			RawPayload:         json.RawMessage(`{"products":[]}`),
		},
	}
}

var validForm = session.PlanForm{
	FarmingMode: domain.FarmingModeOrganic,
	Severity:    domain.SeverityModerate,
	ParcelArea:  1.5,
}

func leafImage(data []byte) domain.Image {
	return domain.Image{Filename: "leaf.jpg", ContentType: "image/jpeg", Data: data}
}

func geotaggedLeaf() domain.Image {
	return leafImage(testutil.JPEGWithExif(testutil.Photo{
		LatRef: "N", Lat: testutil.Whole(44, 50, 24),
		LonRef: "W", Lon: testutil.Whole(0, 34, 48),
		DateOriginal: "2024:06:15 10:30:00",
	}))
}

func newController(c *stubClient) *session.Controller {
	return session.NewController(c, logger.Nop())
}

// diagnosed drives a fresh session to the Diagnosed stage
func diagnosed(t *testing.T, ctrl *session.Controller) *session.Session {
	t.Helper()
	s := session.New("s-1", true, false)
	require.NoError(t, ctrl.Upload(s, geotaggedLeaf()))
	require.NoError(t, ctrl.Diagnose(context.Background(), s))
	require.Equal(t, session.StageDiagnosed, s.Stage)
	return s
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, status, appErr.StatusCode)
}

// ============================================================================
// UPLOAD
// ============================================================================

func TestUpload_FromIdle(t *testing.T) {
	ctrl := newController(newStub())
	s := session.New("s-1", true, false)

	require.NoError(t, ctrl.Upload(s, leafImage(testutil.PlainJPEG())))

	assert.Equal(t, session.StageUploaded, s.Stage)
	require.NotNil(t, s.Image)
	assert.Equal(t, "leaf.jpg", s.Image.Filename)
	require.NotNil(t, s.GeoTag)
	assert.False(t, s.GeoTag.HasCoordinates)
	assert.Nil(t, s.LastFailure)
}

func TestUpload_DecodesGeotag(t *testing.T) {
	ctrl := newController(newStub())
	s := session.New("s-1", true, false)

	require.NoError(t, ctrl.Upload(s, geotaggedLeaf()))

	require.True(t, s.GeoTag.HasCoordinates)
	assert.InDelta(t, 44.84, *s.GeoTag.Latitude, 1e-9)
	assert.InDelta(t, -0.58, *s.GeoTag.Longitude, 1e-9)
	assert.Equal(t, "2024-06-15", *s.GeoTag.CapturedAt)
}

func TestUpload_OwnsImageBytes(t *testing.T) {
	ctrl := newController(newStub())
	s := session.New("s-1", true, false)
	data := testutil.PlainJPEG()

	require.NoError(t, ctrl.Upload(s, leafImage(data)))
	data[0] = 0

	assert.Equal(t, byte(0xFF), s.Image.Data[0])
}

func TestUpload_DetectsContentType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", testutil.PlainJPEG(), "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"webp", []byte("RIFF\x24\x00\x00\x00WEBPVP8 "), "image/webp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newController(newStub())
			s := session.New("s-1", true, false)

			require.NoError(t, ctrl.Upload(s, domain.Image{Filename: "leaf", ContentType: "application/octet-stream", Data: tt.data}))
			assert.Equal(t, tt.want, s.Image.ContentType)
		})
	}
}

func TestUpload_RejectsInvalidFiles(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"text", []byte("hello, this is not a photo")},
		{"riff but not webp", []byte("RIFF\x24\x00\x00\x00WAVEfmt ")},
		{"too short", []byte{0xFF, 0xD8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := newStub()
			ctrl := newController(stub)
			s := diagnosed(t, ctrl)
			before := s.Diagnosis

			err := ctrl.Upload(s, leafImage(tt.data))

			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrBadRequest))
			assert.Equal(t, session.StageDiagnosed, s.Stage, "a rejected upload must not reset the session")
			assert.Same(t, before, s.Diagnosis)
			require.NotNil(t, s.LastFailure)
			assert.Equal(t, session.FailureValidation, s.LastFailure.Kind)
			assert.Equal(t, session.ActionUpload, s.LastFailure.Action)
		})
	}
}

func TestUpload_ResetsPreviousWork(t *testing.T) {
	stub := newStub()
	ctrl := newController(stub)
	s := diagnosed(t, ctrl)
	require.NoError(t, ctrl.RequestPlan(context.Background(), s, validForm))
	require.Equal(t, session.StagePlanReady, s.Stage)

	require.NoError(t, ctrl.Upload(s, leafImage(testutil.PlainJPEG())))

	assert.Equal(t, session.StageUploaded, s.Stage)
	assert.Nil(t, s.Diagnosis)
	assert.Nil(t, s.TreatmentRequest)
	assert.Nil(t, s.TreatmentPlan)
	assert.Nil(t, s.LastFailure)
	assert.False(t, s.GeoTag.HasCoordinates, "geotag must come from the new image")
}

// ============================================================================
// DIAGNOSE
// ============================================================================

func TestDiagnose_Success(t *testing.T) {
	stub := newStub()
	ctrl := newController(stub)
	s := session.New("s-1", true, false)
	require.NoError(t, ctrl.Upload(s, leafImage(testutil.PlainJPEG())))

	require.NoError(t, ctrl.Diagnose(context.Background(), s))

	assert.Equal(t, session.StageDiagnosed, s.Stage)
	assert.Equal(t, "plasmopara_viticola", s.Diagnosis.DiseaseLabel)
	assert.Equal(t, 1, stub.diagnoseCalls)
}

func TestDiagnose_InvalidTransitions(t *testing.T) {
	stub := newStub()
	ctrl := newController(stub)

	t.Run("idle", func(t *testing.T) {
		s := session.New("s-1", true, false)
		err := ctrl.Diagnose(context.Background(), s)

		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
		requireStatus(t, err, 409)
		assert.Equal(t, session.StageIdle, s.Stage)
	})

	t.Run("already diagnosed", func(t *testing.T) {
		s := diagnosed(t, ctrl)
		calls := stub.diagnoseCalls

		err := ctrl.Diagnose(context.Background(), s)

		assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
		assert.Equal(t, calls, stub.diagnoseCalls)
		assert.Equal(t, session.StageDiagnosed, s.Stage)
	})
}

func TestDiagnose_FailureKeepsStage(t *testing.T) {
	stub := newStub()
	stub.diagnosisErr = &domain.APIFailure{
		Service: domain.ServiceDiagnostic,
		Kind:    domain.FailureTransportError,
		Message: "connection refused",
	}
	ctrl := newController(stub)
	s := session.New("s-1", true, false)
	require.NoError(t, ctrl.Upload(s, leafImage(testutil.PlainJPEG())))

	err := ctrl.Diagnose(context.Background(), s)

	require.Error(t, err)
	assert.True(t, isAPIFailure(err), "the backend failure must stay reachable through the error chain")
	requireStatus(t, err, 502)
	assert.Equal(t, session.StageUploaded, s.Stage)
	assert.Nil(t, s.Diagnosis)
	require.NotNil(t, s.LastFailure)
	assert.Equal(t, domain.FailureTransportError, s.LastFailure.Kind)
	assert.Equal(t, session.ActionDiagnose, s.LastFailure.Action)

	stub.diagnosisErr = nil
	require.NoError(t, ctrl.Diagnose(context.Background(), s))
	assert.Equal(t, session.StageDiagnosed, s.Stage)
	assert.Nil(t, s.LastFailure)
}

func TestDiagnose_TimeoutMapsToGatewayTimeout(t *testing.T) {
	stub := newStub()
	stub.diagnosisErr = &domain.APIFailure{Service: domain.ServiceDiagnostic, Kind: domain.FailureTimeout, Message: "deadline exceeded"}
	ctrl := newController(stub)
	s := session.New("s-1", true, false)
	require.NoError(t, ctrl.Upload(s, leafImage(testutil.PlainJPEG())))

	err := ctrl.Diagnose(context.Background(), s)

	requireStatus(t, err, 504)
	assert.Equal(t, domain.FailureTimeout, s.LastFailure.Kind)
}

func TestController_LogsCarrySessionID(t *testing.T) {
	var buf bytes.Buffer
	stub := newStub()
	stub.diagnosisErr = &domain.APIFailure{Service: domain.ServiceDiagnostic, Kind: domain.FailureHTTPError, HTTPStatus: 500}
	ctrl := session.NewController(stub, logger.NewWithWriter("vitiscan-web", "test", &buf))
	s := session.New("s-log", true, false)

	require.NoError(t, ctrl.Upload(s, leafImage(testutil.PlainJPEG())))
	require.Error(t, ctrl.Diagnose(context.Background(), s))
	ctrl.Reset(s)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	for _, line := range lines {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		assert.Equal(t, "s-log", entry["session_id"])
		assert.Equal(t, "session", entry["component"])
	}
}

func isAPIFailure(err error) bool {
	var failure *domain.APIFailure
	return errors.As(err, &failure)
}

// ============================================================================
// REQUEST PLAN
// ============================================================================

func TestRequestPlan_Success(t *testing.T) {
	stub := newStub()
	ctrl := newController(stub)
	s := diagnosed(t, ctrl)

	require.NoError(t, ctrl.RequestPlan(context.Background(), s, validForm))

	assert.Equal(t, session.StagePlanReady, s.Stage)
	require.NotNil(t, s.TreatmentPlan)
	assert.Equal(t, "Copper hydroxide", s.TreatmentPlan.Products[0].Name)

	want := domain.TreatmentRequest{
		DiseaseLabel: "plasmopara_viticola",
		FarmingMode:  domain.FarmingModeOrganic,
		Severity:     domain.SeverityModerate,
		ParcelArea:   1.5,
		CapturedAt:   "2024-06-15",
		Location:     "44.840000,-0.580000",
	}
	assert.Equal(t, want, stub.lastRequest)
	require.NotNil(t, s.TreatmentRequest)
	assert.Equal(t, want, *s.TreatmentRequest)
}

func TestRequestPlan_WithoutGeotag(t *testing.T) {
	stub := newStub()
	ctrl := newController(stub)
	s := session.New("s-1", true, false)
	require.NoError(t, ctrl.Upload(s, leafImage(testutil.PlainJPEG())))
	require.NoError(t, ctrl.Diagnose(context.Background(), s))

	require.NoError(t, ctrl.RequestPlan(context.Background(), s, validForm))

	assert.Empty(t, stub.lastRequest.CapturedAt)
	assert.Empty(t, stub.lastRequest.Location)
}

func TestRequestPlan_ValidationBlocksNetworkCall(t *testing.T) {
	tests := []struct {
		name  string
		form  session.PlanForm
		field string
	}{
		{"zero area", session.PlanForm{FarmingMode: "organic", Severity: "low", ParcelArea: 0}, "ParcelArea"},
		{"negative area", session.PlanForm{FarmingMode: "organic", Severity: "low", ParcelArea: -2}, "ParcelArea"},
		{"unknown farming mode", session.PlanForm{FarmingMode: "biodynamic", Severity: "low", ParcelArea: 1}, "FarmingMode"},
		{"missing severity", session.PlanForm{FarmingMode: "conventional", ParcelArea: 1}, "Severity"},
		{"unknown severity", session.PlanForm{FarmingMode: "conventional", Severity: "extreme", ParcelArea: 1}, "Severity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := newStub()
			ctrl := newController(stub)
			s := diagnosed(t, ctrl)
			before := s.Diagnosis

			err := ctrl.RequestPlan(context.Background(), s, tt.form)

			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation))
			requireStatus(t, err, 400)
			assert.Equal(t, 0, stub.planCalls, "validation must run before any network call")
			assert.Equal(t, session.StageDiagnosed, s.Stage)
			assert.Same(t, before, s.Diagnosis)
			assert.Nil(t, s.TreatmentPlan)
			assert.Nil(t, s.TreatmentRequest)
			require.NotNil(t, s.LastFailure)
			assert.Equal(t, session.FailureValidation, s.LastFailure.Kind)
			assert.Contains(t, s.LastFailure.Details, tt.field)
		})
	}
}

func TestRequestPlan_HTTPErrorThenRetry(t *testing.T) {
	stub := newStub()
	stub.planErr = &domain.APIFailure{
		Service:    domain.ServiceSolutions,
		Kind:       domain.FailureHTTPError,
		HTTPStatus: 500,
		Message:    "internal server error",
	}
	ctrl := newController(stub)
	s := diagnosed(t, ctrl)

	err := ctrl.RequestPlan(context.Background(), s, validForm)

	require.Error(t, err)
	requireStatus(t, err, 502)
	assert.Equal(t, session.StageDiagnosed, s.Stage)
	assert.Nil(t, s.TreatmentPlan)
	assert.Nil(t, s.TreatmentRequest)
	require.NotNil(t, s.LastFailure)
	assert.Equal(t, domain.FailureHTTPError, s.LastFailure.Kind)
	assert.Equal(t, 500, s.LastFailure.HTTPStatus)
	assert.Equal(t, domain.ServiceSolutions, s.LastFailure.Service)

	stub.planErr = nil
	require.NoError(t, ctrl.RequestPlan(context.Background(), s, validForm))

	assert.Equal(t, session.StagePlanReady, s.Stage)
	assert.Nil(t, s.LastFailure)
	assert.Equal(t, 2, stub.planCalls)
}

func TestRequestPlan_InvalidTransitions(t *testing.T) {
	stub := newStub()
	ctrl := newController(stub)

	idle := session.New("s-1", true, false)
	err := ctrl.RequestPlan(context.Background(), idle, validForm)
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition))

	uploaded := session.New("s-2", true, false)
	require.NoError(t, ctrl.Upload(uploaded, leafImage(testutil.PlainJPEG())))
	err = ctrl.RequestPlan(context.Background(), uploaded, validForm)
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
	assert.Equal(t, session.StageUploaded, uploaded.Stage)

	ready := diagnosed(t, ctrl)
	require.NoError(t, ctrl.RequestPlan(context.Background(), ready, validForm))
	err = ctrl.RequestPlan(context.Background(), ready, validForm)
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition))

	assert.Equal(t, 1, stub.planCalls)
}

// ============================================================================
// RESET, ACTIONS AND VIEW
// ============================================================================

func TestReset_ClearsEverything(t *testing.T) {
	ctrl := newController(newStub())
	s := diagnosed(t, ctrl)
	require.NoError(t, ctrl.RequestPlan(context.Background(), s, validForm))

	ctrl.Reset(s)

	assert.Equal(t, session.StageIdle, s.Stage)
	assert.Nil(t, s.Image)
	assert.Nil(t, s.GeoTag)
	assert.Nil(t, s.Diagnosis)
	assert.Nil(t, s.TreatmentRequest)
	assert.Nil(t, s.TreatmentPlan)
	assert.Nil(t, s.LastFailure)
	assert.Equal(t, "s-1", s.ID)
	assert.True(t, s.MockMode)
}

func TestAllowedActions(t *testing.T) {
	tests := []struct {
		stage session.Stage
		want  []session.Action
	}{
		{session.StageIdle, []session.Action{session.ActionUpload}},
		{session.StageUploaded, []session.Action{session.ActionUpload, session.ActionDiagnose, session.ActionReset}},
		{session.StageDiagnosed, []session.Action{session.ActionUpload, session.ActionRequestPlan, session.ActionReset}},
		{session.StagePlanReady, []session.Action{session.ActionUpload, session.ActionReset}},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			s := session.New("s-1", false, false)
			s.Stage = tt.stage
			assert.Equal(t, tt.want, s.AllowedActions())
		})
	}
}

func TestView_StripsPayloadsUnlessDebug(t *testing.T) {
	stub := newStub()
	stub.planErr = &domain.APIFailure{
		Service: domain.ServiceSolutions,
		Kind:    domain.FailureHTTPError,
		Debug:   &domain.Exchange{RequestBody: json.RawMessage(`{}`)},
	}
	ctrl := newController(stub)
	s := diagnosed(t, ctrl)
	_ = ctrl.RequestPlan(context.Background(), s, validForm)

	plain := s.View(false)
	require.NotNil(t, plain.Diagnosis)
	assert.Nil(t, plain.Diagnosis.RawPayload)
	assert.Nil(t, plain.Diagnosis.Debug)
	require.NotNil(t, plain.LastFailure)
	assert.Nil(t, plain.LastFailure.Debug)
	assert.NotNil(t, s.Diagnosis.RawPayload, "view must not mutate the session")

	debug := s.View(true)
	assert.NotNil(t, debug.Diagnosis.RawPayload)
	assert.NotNil(t, debug.Diagnosis.Debug)
	assert.NotNil(t, debug.LastFailure.Debug)

	assert.Equal(t, session.StageDiagnosed, plain.Stage)
	assert.Equal(t, s.AllowedActions(), plain.AllowedActions)
	require.NotNil(t, plain.Image)
	assert.Equal(t, len(s.Image.Data), plain.Image.Size)
}
