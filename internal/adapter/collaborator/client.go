// Package collaborator holds the HTTP clients for the identity and wallet
// services. Every call is bounded by a timeout, traced, and classified into
// a value, a rejection or DEP_001.
package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"payment-orchestrator/pkg/apperror"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const maxErrorBody = 4 << 10

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type client struct {
	name    string
	baseURL string
	timeout time.Duration
	http    HTTPDoer
	tracer  trace.Tracer
	log     zerolog.Logger
}

func newClient(name, baseURL string, timeout time.Duration, doer HTTPDoer, log zerolog.Logger) client {
	if doer == nil {
		doer = &http.Client{}
	}
	return client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    doer,
		tracer:  otel.Tracer("payment-orchestrator/collaborator"),
		log:     log.With().Str("collaborator", name).Logger(),
	}
}

// request describes one outbound call. op names the span.
type request struct {
	op     string
	method string
	path   string
	bearer string
	body   any
}

// do executes req and decodes a 2xx JSON body into out (if non-nil).
func (c *client) do(ctx context.Context, req request, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ctx, span := c.tracer.Start(ctx, c.name+"."+req.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("peer.service", c.name),
			attribute.String("http.request.method", req.method),
		),
	)
	defer span.End()

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("encode %s request: %w", c.name, err))
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("build %s request: %w", c.name, err))
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.bearer)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		c.log.Warn().Err(err).Str("op", req.op).Dur("elapsed", time.Since(start)).Msg("collaborator call failed")
		return apperror.ErrCollaboratorUnavailable(c.name, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if err := c.classify(resp); err != nil {
		if apperror.IsRetryable(err) {
			span.SetStatus(codes.Error, resp.Status)
			c.log.Warn().Int("status", resp.StatusCode).Str("op", req.op).Msg("collaborator returned unexpected status")
		}
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode")
		return apperror.ErrCollaboratorUnavailable(c.name, fmt.Errorf("decode %s response: %w", req.op, err))
	}
	return nil
}

// classify maps a non-2xx response onto the error taxonomy. Callers refine
// NotFound and Forbidden with the resource they asked for.
func (c *client) classify(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return apperror.ErrAuthentication()
	case resp.StatusCode == http.StatusForbidden:
		return apperror.ErrForbidden(fmt.Sprintf("%s denied access", c.name))
	case resp.StatusCode == http.StatusNotFound:
		return apperror.ErrNotFound("Resource")
	case resp.StatusCode == http.StatusConflict:
		return apperror.ErrConflict(errorDetail(resp.Body, "conflict"))
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnprocessableEntity:
		return apperror.Validation(errorDetail(resp.Body, fmt.Sprintf("%s rejected the request", c.name)))
	default:
		return apperror.ErrCollaboratorUnavailable(c.name, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}

// errorDetail extracts a human-readable message from common error bodies
// ({"detail": ...} or {"message": ...}).
func errorDetail(body io.Reader, fallback string) string {
	var payload struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(body, maxErrorBody)).Decode(&payload); err != nil {
		return fallback
	}
	if s, ok := payload.Detail.(string); ok && s != "" {
		return s
	}
	if payload.Message != "" {
		return payload.Message
	}
	return fallback
}

// rejectAs swaps the generic NotFound from classify for a resource-specific one.
func rejectAs(err error, notFound *apperror.AppError) error {
	if apperror.HasCode(err, apperror.CodeNotFound) && notFound != nil {
		return notFound
	}
	return err
}

// flexID accepts identifiers encoded as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("identifier must be a string or a number")
	}
	*f = flexID(n.String())
	return nil
}
