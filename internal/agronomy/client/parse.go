package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vitiscan/vitiscan-web/internal/agronomy/domain"
)

// diagnosisResponse accepts both the flat form and the ranked
// predictions form of the Diagnostic API.
type diagnosisResponse struct {
	DiseaseLabel string              `json:"diseaseLabel"`
	Confidence   *float64            `json:"confidence"`
	Predictions  []domain.Prediction `json:"predictions"`
	ModelVersion string              `json:"model_version"`
}

type planResponse struct {
	Products           []domain.Product `json:"products"`
	TreatmentActions   []string         `json:"treatmentActions"`
	PreventiveMeasures []string         `json:"preventiveMeasures"`
	Warnings           []string         `json:"warnings"`
	Season             string           `json:"season"`
}

type catalogResponse struct {
	DatasetName string            `json:"dataset_name"`
	Diseases    map[string]string `json:"diseases"`
}

func parseDiagnosis(body []byte) (*domain.DiagnosisResult, error) {
	var resp diagnosisResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse diagnosis: %w", err)
	}

	result := &domain.DiagnosisResult{
		DiseaseLabel: resp.DiseaseLabel,
		Predictions:  resp.Predictions,
		ModelVersion: resp.ModelVersion,
		RawPayload:   json.RawMessage(body),
	}
	if resp.Confidence != nil {
		result.Confidence = *resp.Confidence
	} else if resp.DiseaseLabel != "" {
		return nil, errors.New("parse diagnosis: missing confidence")
	}

	if result.DiseaseLabel == "" {
		best, ok := bestPrediction(resp.Predictions)
		if !ok {
			return nil, errors.New("parse diagnosis: no disease label in response")
		}
		result.DiseaseLabel = best.Disease
		result.Confidence = best.Confidence
	}

	if result.Confidence < 0 || result.Confidence > 1 {
		return nil, fmt.Errorf("parse diagnosis: confidence %v outside [0,1]", result.Confidence)
	}

	return result, nil
}

func bestPrediction(predictions []domain.Prediction) (domain.Prediction, bool) {
	var best domain.Prediction
	found := false
	for _, p := range predictions {
		if p.Disease == "" {
			continue
		}
		if !found || p.Confidence > best.Confidence {
			best = p
			found = true
		}
	}
	return best, found
}

func parseTreatmentPlan(body []byte) (*domain.TreatmentPlan, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("parse treatment plan: %w", err)
	}
	if _, ok := fields["products"]; !ok {
		return nil, errors.New("parse treatment plan: missing products")
	}

	var resp planResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse treatment plan: %w", err)
	}

	products := make([]domain.Product, 0, len(resp.Products))
	for _, p := range resp.Products {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		products = append(products, p)
	}

	return &domain.TreatmentPlan{
		Products:           products,
		TreatmentActions:   nonEmpty(resp.TreatmentActions),
		PreventiveMeasures: nonEmpty(resp.PreventiveMeasures),
		Warnings:           nonEmpty(resp.Warnings),
		Season:             resp.Season,
		RawPayload:         json.RawMessage(body),
	}, nil
}

func parseCatalog(body []byte) (*domain.DiseaseCatalog, error) {
	var resp catalogResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse diseases: %w", err)
	}
	if resp.Diseases == nil {
		return nil, errors.New("parse diseases: missing diseases")
	}
	return &domain.DiseaseCatalog{DatasetName: resp.DatasetName, Diseases: resp.Diseases}, nil
}

// nonEmpty drops blank entries and never returns nil
func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func newExchange(debug bool, request, response []byte) *domain.Exchange {
	if !debug {
		return nil
	}
	return &domain.Exchange{
		RequestBody:  rawJSON(request),
		ResponseBody: rawJSON(response),
	}
}

// rawJSON keeps valid JSON as-is and quotes anything else so the exchange
// can always be marshalled.
func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	if json.Valid(b) {
		return json.RawMessage(b)
	}
	quoted, _ := json.Marshal(string(b))
	return quoted
}
