// Package client talks to the Diagnostic and Treatment Plan APIs.
package client

import (
	"context"

	"github.com/vitiscan/vitiscan-web/internal/agronomy/domain"
	"github.com/vitiscan/vitiscan-web/pkg/config"
	"github.com/vitiscan/vitiscan-web/pkg/logger"
)

// Client submits photos for diagnosis and diagnoses for treatment plans.
// Failed calls return a *domain.APIFailure and are never retried.
type Client interface {
	// SubmitDiagnosis sends the leaf photo to the Diagnostic API
	SubmitDiagnosis(ctx context.Context, image domain.Image) (*domain.DiagnosisResult, error)

	// SubmitTreatmentRequest asks the Treatment Plan API for a plan
	SubmitTreatmentRequest(ctx context.Context, req domain.TreatmentRequest) (*domain.TreatmentPlan, error)

	// Diseases returns the label catalog of the diagnostic model
	Diseases(ctx context.Context) (*domain.DiseaseCatalog, error)
}

// New returns the mock or the live client selected by configuration,
// with the disease catalog cached in-process.
func New(cfg *config.ClientsConfig, log *logger.Logger) Client {
	log = log.WithComponent("agronomy-client")

	var c Client
	if cfg.Mock {
		log.Info().Bool("debug", cfg.Debug).Msg("using mock backend clients")
		c = NewMockClient(cfg.Debug)
	} else {
		log.Info().
			Str("diagno_url", cfg.DiagnoURL).
			Str("solutions_url", cfg.SolutionsURL).
			Bool("debug", cfg.Debug).
			Msg("using live backend clients")
		c = NewHTTPClient(HTTPConfig{
			DiagnoURL:    cfg.DiagnoURL,
			SolutionsURL: cfg.SolutionsURL,
			Timeout:      cfg.Timeout,
			Debug:        cfg.Debug,
		}, log)
	}

	return NewCatalogCache(c, cfg.CatalogTTL, log)
}
