package client

import (
	"context"
	"encoding/json"

	"github.com/vitiscan/vitiscan-web/internal/agronomy/domain"
)

// Canned payloads use the live response schemas so the rest of the system
// cannot tell mock from live mode.
var (
	mockDiagnosisBody = []byte(`{
  "predictions": [
    {"disease": "elsinoe_ampelina", "confidence": 0.75},
    {"disease": "healthy", "confidence": 0.14}
  ],
  "model_version": "resnet18_finetuning_v1"
}`)

	mockPlanBody = []byte(`{
  "products": [
    {"name": "Copper hydroxide", "dosage": 2.5, "unit": "kg/ha"},
    {"name": "Sulfur (wettable powder)", "dosage": 6, "unit": "kg/ha"}
  ],
  "treatmentActions": [
    "Spray at the first sign of lesions and repeat after 10 days",
    "Remove and burn infected shoots"
  ],
  "preventiveMeasures": [
    "Improve canopy ventilation by leaf thinning",
    "Avoid overhead irrigation"
  ],
  "warnings": [
    "Respect the pre-harvest interval of 21 days"
  ],
  "season": "summer"
}`)

	mockCatalogBody = []byte(`{
  "dataset_name": "inrae",
  "diseases": {
    "colomerus_vitis": "Erinose",
    "elsinoe_ampelina": "Anthracnose",
    "erysiphe_necator": "Oidium",
    "guignardia_bidwellii": "Black rot",
    "healthy": "Healthy",
    "phaeomoniella_chlamydospora": "Esca",
    "plasmopara_viticola": "Mildiou"
  }
}`)
)

// MockClient returns fixed canned responses without any network I/O
type MockClient struct {
	debug bool
}

// NewMockClient creates a mock client
func NewMockClient(debug bool) *MockClient {
	return &MockClient{debug: debug}
}

func (m *MockClient) SubmitDiagnosis(_ context.Context, image domain.Image) (*domain.DiagnosisResult, error) {
	result, err := parseDiagnosis(mockDiagnosisBody)
	if err != nil {
		return nil, &domain.APIFailure{Service: domain.ServiceDiagnostic, Kind: domain.FailureMalformedResponse, Message: err.Error()}
	}

	if m.debug {
		summary, _ := json.Marshal(map[string]interface{}{
			"file": map[string]interface{}{
				"filename":    image.Filename,
				"contentType": image.ContentType,
				"size":        len(image.Data),
			},
		})
		result.Debug = newExchange(true, summary, mockDiagnosisBody)
	}
	return result, nil
}

func (m *MockClient) SubmitTreatmentRequest(_ context.Context, req domain.TreatmentRequest) (*domain.TreatmentPlan, error) {
	plan, err := parseTreatmentPlan(mockPlanBody)
	if err != nil {
		return nil, &domain.APIFailure{Service: domain.ServiceSolutions, Kind: domain.FailureMalformedResponse, Message: err.Error()}
	}

	if m.debug {
		payload, _ := json.Marshal(req)
		plan.Debug = newExchange(true, payload, mockPlanBody)
	}
	return plan, nil
}

func (m *MockClient) Diseases(_ context.Context) (*domain.DiseaseCatalog, error) {
	return parseCatalog(mockCatalogBody)
}
