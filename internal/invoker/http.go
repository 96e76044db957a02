package invoker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"lottodispatch/internal/types"
)

// maxDrainBytes caps how much of a response body is read before closing.
const maxDrainBytes = 64 << 10

// HTTPConfig configures an HTTPInvoker.
type HTTPConfig struct {
	URL       string
	AuthToken types.SecretString
	UserAgent string
	Logger    *slog.Logger
}

// HTTPInvoker POSTs the payload to a function URL. It serves local
// development and compute hosts that are not Lambda.
type HTTPInvoker struct {
	client    *http.Client
	breakers  *breakerSet[*http.Response]
	url       string
	authToken types.SecretString
	userAgent string
	logger    *slog.Logger
}

// NewHTTPInvoker creates an HTTPInvoker. The http.Client should not set its
// own Timeout; the dispatcher bounds each call through the context.
func NewHTTPInvoker(httpClient *http.Client, cfg HTTPConfig) *HTTPInvoker {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "LottoDispatch/1.0"
	}
	return &HTTPInvoker{
		client:    httpClient,
		breakers:  newBreakerSet[*http.Response]("compute-http"),
		url:       cfg.URL,
		authToken: cfg.AuthToken,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Invoke POSTs req.Body. 2xx and 3xx are success; 429 is throttled; 5xx is
// unreachable; any other 4xx is rejected.
func (h *HTTPInvoker) Invoke(ctx context.Context, req Request) (Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(req.Body))
	if err != nil {
		return Response{}, types.NewAppError(types.ErrCodeInvocationRejected, "failed to create compute request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", h.userAgent)
	httpReq.Header.Set("X-Firing-Id", req.FiringID)
	httpReq.Header.Set("X-Schedule-Name", req.Schedule)
	if h.authToken.IsSet() {
		httpReq.Header.Set("Authorization", "Bearer "+h.authToken.Unmask())
	}

	breaker, breakerName := h.breakers.get(req.Schedule)
	resp, err := breaker.Execute(func() (*http.Response, error) {
		r, doErr := h.client.Do(httpReq)
		if doErr != nil {
			if appErr := contextError(ctx, doErr); appErr != nil {
				return nil, appErr
			}
			return nil, types.NewAppError(types.ErrCodeInvocationUnreachable, "compute function could not be reached", doErr)
		}

		if r.StatusCode < 400 {
			return r, nil
		}
		drain(r)

		details := map[string]any{"status_code": r.StatusCode}
		switch {
		case r.StatusCode == http.StatusTooManyRequests:
			return nil, types.NewAppErrorWithDetails(types.ErrCodeInvocationThrottled, "compute function rate limited the request", nil, details)
		case r.StatusCode >= 500:
			return nil, types.NewAppErrorWithDetails(types.ErrCodeInvocationUnreachable, fmt.Sprintf("compute function returned %d", r.StatusCode), nil, details)
		default:
			return nil, types.NewAppErrorWithDetails(types.ErrCodeInvocationRejected, fmt.Sprintf("compute function rejected the request with %d", r.StatusCode), nil, details)
		}
	})
	if err != nil {
		return Response{}, breakerError(breakerName, err)
	}
	defer drain(resp)

	h.logger.DebugContext(ctx, "compute function accepted payload",
		"schedule", req.Schedule,
		"firing_id", req.FiringID,
		"status_code", resp.StatusCode,
	)

	return Response{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("X-Request-Id"),
	}, nil
}

func drain(r *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, maxDrainBytes))
	r.Body.Close()
}
