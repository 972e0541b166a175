// Package session holds the per-browser workflow state and the controller
// that moves it through upload, diagnosis and treatment planning.
package session

import (
	"sync"
	"time"

	"github.com/vitiscan/vitiscan-web/internal/agronomy/domain"
	"github.com/vitiscan/vitiscan-web/internal/geotag"
)

// Stage is the position of a session in the workflow
type Stage string

const (
	StageIdle      Stage = "idle"
	StageUploaded  Stage = "uploaded"
	StageDiagnosed Stage = "diagnosed"
	StagePlanReady Stage = "plan_ready"
)

// Action is a user-triggered workflow step
type Action string

const (
	ActionUpload      Action = "upload"
	ActionDiagnose    Action = "diagnose"
	ActionRequestPlan Action = "request_plan"
	ActionReset       Action = "reset"
)

// FailureValidation marks a lastFailure produced by form or upload validation
const FailureValidation domain.FailureKind = "validation"

// Failure is the most recent failed action, kept for display until the next
// successful transition.
type Failure struct {
	Action     Action             `json:"action"`
	Service    string             `json:"service,omitempty"`
	Kind       domain.FailureKind `json:"kind"`
	Message    string             `json:"message"`
	HTTPStatus int                `json:"httpStatus,omitempty"`
	Details    map[string]string  `json:"details,omitempty"`
	Debug      *domain.Exchange   `json:"debug,omitempty"`
}

// Session is the mutable state of one browser session.
// Callers must hold the lock while reading or changing it.
type Session struct {
	mu sync.Mutex

	ID        string
	CreatedAt time.Time
	MockMode  bool
	DebugMode bool

	Stage            Stage
	Image            *domain.Image
	GeoTag           *geotag.GeoTag
	Diagnosis        *domain.DiagnosisResult
	TreatmentRequest *domain.TreatmentRequest
	TreatmentPlan    *domain.TreatmentPlan
	LastFailure      *Failure
}

// New creates an idle session. Mock and debug mode are fixed for its lifetime.
func New(id string, mock, debug bool) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		MockMode:  mock,
		DebugMode: debug,
		Stage:     StageIdle,
	}
}

// Lock serializes actions on the session
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session
func (s *Session) Unlock() { s.mu.Unlock() }

// AllowedActions lists the actions enabled at the current stage
func (s *Session) AllowedActions() []Action {
	switch s.Stage {
	case StageUploaded:
		return []Action{ActionUpload, ActionDiagnose, ActionReset}
	case StageDiagnosed:
		return []Action{ActionUpload, ActionRequestPlan, ActionReset}
	case StagePlanReady:
		return []Action{ActionUpload, ActionReset}
	default:
		return []Action{ActionUpload}
	}
}

// Allows reports whether action is enabled at the current stage
func (s *Session) Allows(action Action) bool {
	for _, a := range s.AllowedActions() {
		if a == action {
			return true
		}
	}
	return false
}

// reset clears every derived field and returns to Idle
func (s *Session) reset() {
	s.Stage = StageIdle
	s.Image = nil
	s.GeoTag = nil
	s.Diagnosis = nil
	s.TreatmentRequest = nil
	s.TreatmentPlan = nil
	s.LastFailure = nil
}

// ImageInfo describes the uploaded photo without its bytes
type ImageInfo struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}

// View is the JSON snapshot of a session served to the rendering layer
type View struct {
	ID               string                   `json:"id"`
	Stage            Stage                    `json:"stage"`
	AllowedActions   []Action                 `json:"allowedActions"`
	MockMode         bool                     `json:"mockMode"`
	DebugMode        bool                     `json:"debugMode"`
	Image            *ImageInfo               `json:"image,omitempty"`
	GeoTag           *geotag.GeoTag           `json:"geotag,omitempty"`
	Diagnosis        *domain.DiagnosisResult  `json:"diagnosis,omitempty"`
	TreatmentRequest *domain.TreatmentRequest `json:"treatmentRequest,omitempty"`
	TreatmentPlan    *domain.TreatmentPlan    `json:"treatmentPlan,omitempty"`
	LastFailure      *Failure                 `json:"lastFailure,omitempty"`
}

// View builds the presentation snapshot. Raw payloads and debug exchanges
// are only included when debug is set.
func (s *Session) View(debug bool) View {
	v := View{
		ID:               s.ID,
		Stage:            s.Stage,
		AllowedActions:   s.AllowedActions(),
		MockMode:         s.MockMode,
		DebugMode:        s.DebugMode,
		GeoTag:           s.GeoTag,
		TreatmentRequest: s.TreatmentRequest,
	}

	if s.Image != nil {
		v.Image = &ImageInfo{
			Filename:    s.Image.Filename,
			ContentType: s.Image.ContentType,
			Size:        len(s.Image.Data),
		}
	}

	if s.Diagnosis != nil {
		d := *s.Diagnosis
		if !debug {
			d.RawPayload = nil
			d.Debug = nil
		}
		v.Diagnosis = &d
	}

	if s.TreatmentPlan != nil {
		p := *s.TreatmentPlan
		if !debug {
			p.RawPayload = nil
			p.Debug = nil
		}
		v.TreatmentPlan = &p
	}

	if s.LastFailure != nil {
		f := *s.LastFailure
		if !debug {
			f.Debug = nil
		}
		v.LastFailure = &f
	}

	return v
}
