package httpocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/infrastructure/resilience"
)

const serviceName = "ocr"

// Client posts documents to the OCR collaborator as multipart "file" and
// expects {"extracted_text": "..."} back.
type Client struct {
	url        string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(url string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		url:        strings.TrimRight(url, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

func (c *Client) Extract(ctx context.Context, filename, contentType string, body []byte) (domain.ExtractionResult, error) {
	var result domain.ExtractionResult
	call := func(callCtx context.Context) error {
		res, err := c.extractOnce(callCtx, filename, contentType, body)
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
		err = c.executor.Execute(ctx, "ocr.extract", call, resilience.ClassifyHTTPError)
	}
	if err != nil {
		err = resilience.WrapTemporaryIfNeeded("ocr extract", err, resilience.ClassifyHTTPError)
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrExternalServiceUnavailable, "ocr extract", err)
	}
	result.SourceFilename = filename
	return result, nil
}

func (c *Client) extractOnce(ctx context.Context, filename, contentType string, body []byte) (domain.ExtractionResult, error) {
	payload, formType, err := multipartBody(filename, contentType, body)
	if err != nil {
		return domain.ExtractionResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, payload)
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("create ocr request: %w", err)
	}
	req.Header.Set("Content-Type", formType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return domain.ExtractionResult{}, resilience.NewHTTPStatusError(serviceName, "extract", resp)
	}

	var out struct {
		ExtractedText *string `json:"extracted_text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("decode ocr response: %w", err)
	}
	if out.ExtractedText == nil {
		return domain.ExtractionResult{}, fmt.Errorf("ocr response missing extracted_text")
	}
	return domain.ExtractionResult{Text: *out.ExtractedText}, nil
}

func multipartBody(filename, contentType string, body []byte) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(body); err != nil {
		return nil, "", fmt.Errorf("write multipart part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}
