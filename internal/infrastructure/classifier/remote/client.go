package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/infrastructure/resilience"
)

const serviceName = "secondary-classifier"

var (
	// ErrReportedFailure is a 2xx reply that carries an "error" field.
	ErrReportedFailure = errors.New("secondary classifier reported failure")
	// ErrMissingCategory is a 2xx reply with neither categoria nor category.
	ErrMissingCategory = errors.New("secondary classifier reply has no category")
)

// Classifier calls an independent classification service with
// {"text": ...}. Both Spanish and English reply keys are accepted.
type Classifier struct {
	url        string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(url string, timeout time.Duration, executor *resilience.Executor) *Classifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Classifier{
		url:        strings.TrimRight(url, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type classifyResponse struct {
	Categoria  *string  `json:"categoria"`
	Category   *string  `json:"category"`
	Confianza  *float64 `json:"confianza"`
	Confidence *float64 `json:"confidence"`
	Error      *string  `json:"error"`
}

func (r classifyResponse) classification() (domain.Classification, error) {
	if r.Error != nil {
		msg := strings.TrimSpace(*r.Error)
		if msg == "" {
			msg = "empty error message"
		}
		return domain.Classification{}, fmt.Errorf("%w: %s", ErrReportedFailure, msg)
	}

	var out domain.Classification
	switch {
	case r.Categoria != nil:
		out.Category = strings.TrimSpace(*r.Categoria)
	case r.Category != nil:
		out.Category = strings.TrimSpace(*r.Category)
	}
	if out.Category == "" {
		return domain.Classification{}, ErrMissingCategory
	}
	switch {
	case r.Confianza != nil:
		out.Confidence = *r.Confianza
	case r.Confidence != nil:
		out.Confidence = *r.Confidence
	}
	return out, nil
}

func (c *Classifier) Classify(ctx context.Context, text string) (domain.Classification, error) {
	var result domain.Classification
	call := func(callCtx context.Context) error {
		res, err := c.postClassify(callCtx, text)
		if err != nil {
			return err
		}
		result = res
		return nil
	}

	var err error
	if c.executor == nil {
		err = call(ctx)
	} else {
		err = c.executor.Execute(ctx, "secondary.classify", call, resilience.ClassifyHTTPError)
	}
	if err != nil {
		err = resilience.WrapTemporaryIfNeeded("secondary classify", err, resilience.ClassifyHTTPError)
		return domain.Classification{}, domain.WrapError(domain.ErrExternalServiceUnavailable, "secondary classify", err)
	}
	return result, nil
}

func (c *Classifier) postClassify(ctx context.Context, text string) (domain.Classification, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return domain.Classification{}, fmt.Errorf("marshal classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return domain.Classification{}, fmt.Errorf("create classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Classification{}, fmt.Errorf("%s request: %w", serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return domain.Classification{}, resilience.NewHTTPStatusError(serviceName, "classify", resp)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Classification{}, fmt.Errorf("decode classify response: %w", err)
	}
	// Reply-level failures are not retried; ClassifyHTTPError treats them as permanent.
	return out.classification()
}
