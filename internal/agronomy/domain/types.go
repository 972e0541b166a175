package domain

import "encoding/json"

// FarmingMode is the cultivation regime the treatment plan must respect
type FarmingMode string

const (
	FarmingModeConventional FarmingMode = "conventional"
	FarmingModeOrganic      FarmingMode = "organic"
)

// FarmingModes lists the accepted farming modes in display order
var FarmingModes = []FarmingMode{FarmingModeConventional, FarmingModeOrganic}

// Severity is the farmer's estimate of how far the disease has spread
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
)

// Severities lists the accepted severities in display order
var Severities = []Severity{SeverityLow, SeverityModerate, SeverityHigh}

// Image is an uploaded leaf photo
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Exchange holds the raw payloads of one backend call. Only attached in debug mode.
type Exchange struct {
	RequestBody  json.RawMessage `json:"requestBody,omitempty"`
	ResponseBody json.RawMessage `json:"responseBody,omitempty"`
}

// Prediction is one ranked label returned by the Diagnostic API
type Prediction struct {
	Disease    string  `json:"disease"`
	Confidence float64 `json:"confidence"`
}

// DiagnosisResult is the outcome of a diagnosis submission
type DiagnosisResult struct {
	DiseaseLabel string          `json:"diseaseLabel"`
	Confidence   float64         `json:"confidence"`
	Predictions  []Prediction    `json:"predictions,omitempty"`
	ModelVersion string          `json:"modelVersion,omitempty"`
	RawPayload   json.RawMessage `json:"rawPayload,omitempty"`
	Debug        *Exchange       `json:"debug,omitempty"`
}

// TreatmentRequest is the treatment-plan form plus the context derived from
// the diagnosis and the photo geotag.
type TreatmentRequest struct {
	DiseaseLabel string      `json:"diseaseLabel" validate:"required"`
	FarmingMode  FarmingMode `json:"farmingMode" validate:"required,oneof=conventional organic"`
	Severity     Severity    `json:"severity" validate:"required,oneof=low moderate high"`
	ParcelArea   float64     `json:"parcelArea" validate:"gt=0"` // hectares
	CapturedAt   string      `json:"capturedAt,omitempty"`
	Location     string      `json:"location,omitempty"`
}

// Product is one treatment product with its dosage
type Product struct {
	Name   string  `json:"name"`
	Dosage float64 `json:"dosage"`
	Unit   string  `json:"unit"`
}

// TreatmentPlan is the outcome of a treatment request
type TreatmentPlan struct {
	Products           []Product       `json:"products"`
	TreatmentActions   []string        `json:"treatmentActions,omitempty"`
	PreventiveMeasures []string        `json:"preventiveMeasures"`
	Warnings           []string        `json:"warnings"`
	Season             string          `json:"season,omitempty"`
	RawPayload         json.RawMessage `json:"rawPayload,omitempty"`
	Debug              *Exchange       `json:"debug,omitempty"`
}

// DiseaseCatalog maps the classifier's labels to display names
type DiseaseCatalog struct {
	DatasetName string            `json:"datasetName"`
	Diseases    map[string]string `json:"diseases"`
}
