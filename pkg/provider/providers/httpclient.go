package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/lexlapax/llmrun/pkg/provider/domain"
)

var httpJSON = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultHTTPTimeout = 60 * time.Second

// defaultHTTPClient is shared by every HTTP-backed adapter that doesn't
// configure its own, mirroring the teacher's http.DefaultClient default
// (openai.go's NewOpenAIProvider) but with an explicit timeout.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// postJSON issues a POST with a JSON body and decodes a JSON response,
// classifying the outcome per spec.md §4.1's status-code-to-FailureKind
// table (401/403 -> auth_error, 429 -> rate_limit_error, 400/404/422 ->
// config_error, everything else 5xx/network -> retriable_error).
func postJSON(ctx context.Context, client *http.Client, providerName, url string, headers map[string]string, body any, out any) error {
	payload, err := httpJSON.Marshal(body)
	if err != nil {
		return domain.NewClassifiedError(providerName, domain.ConfigError, "failed to encode request: "+err.Error(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return domain.NewClassifiedError(providerName, domain.ConfigError, "failed to build request: "+err.Error(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.NewClassifiedError(providerName, domain.TimeoutError, err.Error(), err)
		}
		return domain.NewClassifiedError(providerName, domain.RetriableError, err.Error(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewClassifiedError(providerName, domain.RetriableError, "failed to read response: "+err.Error(), err)
	}

	if resp.StatusCode != http.StatusOK {
		return classifyHTTPStatus(providerName, resp.StatusCode, respBody)
	}

	if err := httpJSON.Unmarshal(respBody, out); err != nil {
		return domain.NewClassifiedError(providerName, domain.RetriableError, "failed to parse response: "+err.Error(), err)
	}
	return nil
}

func classifyHTTPStatus(providerName string, status int, body []byte) error {
	message := extractErrorMessage(body)
	if message == "" {
		message = fmt.Sprintf("HTTP %d", status)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.NewClassifiedError(providerName, domain.AuthError, message, nil)
	case status == http.StatusTooManyRequests:
		return domain.NewClassifiedError(providerName, domain.RateLimitError, message, nil)
	case status == http.StatusBadRequest || status == http.StatusNotFound || status == http.StatusUnprocessableEntity:
		return domain.NewClassifiedError(providerName, domain.ConfigError, message, nil)
	case status >= 500:
		return domain.NewClassifiedError(providerName, domain.RetriableError, message, nil)
	default:
		return domain.NewClassifiedError(providerName, domain.RetriableError, message, nil)
	}
}

func extractErrorMessage(body []byte) string {
	var errorResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := httpJSON.Unmarshal(body, &errorResp); err == nil {
		return errorResp.Error.Message
	}
	return ""
}
