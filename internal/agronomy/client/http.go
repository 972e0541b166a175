package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/vitiscan/vitiscan-web/internal/agronomy/domain"
	"github.com/vitiscan/vitiscan-web/pkg/logger"
)

const maxErrorMessage = 512

// HTTPConfig configures the live client
type HTTPConfig struct {
	DiagnoURL    string
	SolutionsURL string
	Timeout      time.Duration
	Debug        bool
}

// HTTPClient calls the real backend APIs. Each operation issues exactly one request.
type HTTPClient struct {
	diagnoURL    string
	solutionsURL string
	debug        bool
	httpClient   *http.Client
	log          *logger.Logger
}

// NewHTTPClient creates a live client
func NewHTTPClient(cfg HTTPConfig, log *logger.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second // model inference on CPU can be slow
	}

	return &HTTPClient{
		diagnoURL:    cfg.DiagnoURL,
		solutionsURL: cfg.SolutionsURL,
		debug:        cfg.Debug,
		httpClient:   &http.Client{Timeout: timeout},
		log:          log,
	}
}

// SubmitDiagnosis handles POST {API_DIAGNO}/diagno with a multipart "file" part
func (c *HTTPClient) SubmitDiagnosis(ctx context.Context, image domain.Image) (*domain.DiagnosisResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	contentType := image.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, image.Filename))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, c.failure(domain.ServiceDiagnostic, domain.FailureTransportError, fmt.Errorf("create form file: %w", err), nil)
	}
	if _, err := part.Write(image.Data); err != nil {
		return nil, c.failure(domain.ServiceDiagnostic, domain.FailureTransportError, fmt.Errorf("write image data: %w", err), nil)
	}
	if err := writer.Close(); err != nil {
		return nil, c.failure(domain.ServiceDiagnostic, domain.FailureTransportError, fmt.Errorf("close multipart writer: %w", err), nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.diagnoURL+"/diagno", body)
	if err != nil {
		return nil, c.failure(domain.ServiceDiagnostic, domain.FailureTransportError, fmt.Errorf("create request: %w", err), nil)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	// The multipart body is binary; debug output describes it instead.
	requestSummary, _ := json.Marshal(map[string]interface{}{
		"file": map[string]interface{}{
			"filename":    image.Filename,
			"contentType": contentType,
			"size":        len(image.Data),
		},
	})

	respBody, failure := c.do(req, domain.ServiceDiagnostic, requestSummary)
	if failure != nil {
		return nil, failure
	}

	result, err := parseDiagnosis(respBody)
	if err != nil {
		return nil, c.failure(domain.ServiceDiagnostic, domain.FailureMalformedResponse, err, c.exchange(requestSummary, respBody))
	}
	result.Debug = c.exchange(requestSummary, respBody)

	c.log.Debug().
		Str("disease", result.DiseaseLabel).
		Float64("confidence", result.Confidence).
		Msg("diagnosis received")

	return result, nil
}

// SubmitTreatmentRequest handles POST {API_SOLUTIONS}/solutions with a JSON body
func (c *HTTPClient) SubmitTreatmentRequest(ctx context.Context, treatment domain.TreatmentRequest) (*domain.TreatmentPlan, error) {
	payload, err := json.Marshal(treatment)
	if err != nil {
		return nil, c.failure(domain.ServiceSolutions, domain.FailureTransportError, fmt.Errorf("marshal request: %w", err), nil)
	}

	url := c.solutionsURL + "/solutions?debug=" + strconv.FormatBool(c.debug)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, c.failure(domain.ServiceSolutions, domain.FailureTransportError, fmt.Errorf("create request: %w", err), nil)
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, failure := c.do(req, domain.ServiceSolutions, payload)
	if failure != nil {
		return nil, failure
	}

	plan, err := parseTreatmentPlan(respBody)
	if err != nil {
		return nil, c.failure(domain.ServiceSolutions, domain.FailureMalformedResponse, err, c.exchange(payload, respBody))
	}
	plan.Debug = c.exchange(payload, respBody)

	c.log.Debug().
		Int("products", len(plan.Products)).
		Int("warnings", len(plan.Warnings)).
		Msg("treatment plan received")

	return plan, nil
}

// Diseases handles GET {API_DIAGNO}/diseases
func (c *HTTPClient) Diseases(ctx context.Context) (*domain.DiseaseCatalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.diagnoURL+"/diseases", nil)
	if err != nil {
		return nil, c.failure(domain.ServiceDiagnostic, domain.FailureTransportError, fmt.Errorf("create request: %w", err), nil)
	}

	respBody, failure := c.do(req, domain.ServiceDiagnostic, nil)
	if failure != nil {
		return nil, failure
	}

	catalog, err := parseCatalog(respBody)
	if err != nil {
		return nil, c.failure(domain.ServiceDiagnostic, domain.FailureMalformedResponse, err, nil)
	}
	return catalog, nil
}

// do executes req and returns the body of a 2xx response
func (c *HTTPClient) do(req *http.Request, service string, requestBody []byte) ([]byte, *domain.APIFailure) {
	start := time.Now()

	c.log.Debug().
		Str("service", service).
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("request_bytes", len(requestBody)).
		Msg("calling backend")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := domain.FailureTransportError
		if isTimeout(err) {
			kind = domain.FailureTimeout
		}
		return nil, c.failure(service, kind, err, c.exchange(requestBody, nil))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		kind := domain.FailureTransportError
		if isTimeout(err) {
			kind = domain.FailureTimeout
		}
		return nil, c.failure(service, kind, fmt.Errorf("read response body: %w", err), c.exchange(requestBody, nil))
	}

	c.log.Debug().
		Str("service", service).
		Int("status", resp.StatusCode).
		Int("response_bytes", len(respBody)).
		Dur("duration", time.Since(start)).
		Msg("backend responded")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		failure := c.failure(service, domain.FailureHTTPError, errors.New(truncate(string(respBody))), c.exchange(requestBody, respBody))
		failure.HTTPStatus = resp.StatusCode
		return nil, failure
	}

	return respBody, nil
}

func (c *HTTPClient) failure(service string, kind domain.FailureKind, err error, debug *domain.Exchange) *domain.APIFailure {
	f := &domain.APIFailure{
		Service: service,
		Kind:    kind,
		Message: err.Error(),
		Debug:   debug,
	}
	c.log.WithError(err).Warn().
		Str("service", service).
		Str("kind", string(kind)).
		Msg("backend call failed")
	return f
}

// exchange returns the raw payloads when debug mode is on
func (c *HTTPClient) exchange(request, response []byte) *domain.Exchange {
	return newExchange(c.debug, request, response)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string) string {
	if len(s) > maxErrorMessage {
		return s[:maxErrorMessage] + "..."
	}
	return s
}
