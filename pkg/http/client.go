package http

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/securedocs/obo-search-relay/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTimeout = 30 * time.Second
)

var (
	//nolint:gochecknoglobals // Global HTTP client is intentional for application-wide requests
	client *resty.Client
	//nolint:gochecknoglobals // Global once is intentional for thread-safe initialization
	once sync.Once
)

func getClient() *resty.Client {
	once.Do(func() {
		client = resty.New().
			SetTimeout(DefaultTimeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json")
	})
	return client
}

// Client returns the shared HTTP client instance.
func Client() *resty.Client {
	return getClient()
}

type RequestOption func(*resty.Request)

func WithAuthToken(token string) RequestOption {
	return func(r *resty.Request) {
		r.SetAuthToken(token)
	}
}

func WithBody(body any) RequestOption {
	return func(r *resty.Request) {
		r.SetBody(body)
	}
}

func WithResult(result any) RequestOption {
	return func(r *resty.Request) {
		if result != nil {
			r.SetResult(result)
		}
	}
}

func WithHeader(key, value string) RequestOption {
	return func(r *resty.Request) {
		r.SetHeader(key, value)
	}
}

func WithQueryParam(key, value string) RequestOption {
	return func(r *resty.Request) {
		r.SetQueryParam(key, value)
	}
}

func Request(ctx context.Context, method, requestURL string, opts ...RequestOption) (*resty.Response, error) {
	ctx, span := startClientSpan(ctx, "http.Request", method, requestURL)
	defer span.End()

	request := getClient().R().SetContext(ctx)

	for _, opt := range opts {
		opt(request)
	}

	injectTracingHeaders(ctx, request)

	resp, err := request.Execute(method, requestURL)

	recordSpan(span, resp, err)
	return resp, err
}

func Get(ctx context.Context, requestURL string, opts ...RequestOption) (*resty.Response, error) {
	return Request(ctx, http.MethodGet, requestURL, opts...)
}

func Post(ctx context.Context, requestURL string, opts ...RequestOption) (*resty.Response, error) {
	return Request(ctx, http.MethodPost, requestURL, opts...)
}

func Put(ctx context.Context, requestURL string, opts ...RequestOption) (*resty.Response, error) {
	return Request(ctx, http.MethodPut, requestURL, opts...)
}

func Delete(ctx context.Context, requestURL string, opts ...RequestOption) (*resty.Response, error) {
	return Request(ctx, http.MethodDelete, requestURL, opts...)
}

// PostForm issues a form-encoded POST, decoding a JSON response body into
// result. Used for OAuth token endpoints.
func PostForm(ctx context.Context, requestURL string, form url.Values, result any) (*resty.Response, error) {
	ctx, span := startClientSpan(ctx, "http.PostForm", http.MethodPost, requestURL)
	defer span.End()

	request := getClient().R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormDataFromValues(form)

	if result != nil {
		request.SetResult(result)
	}

	injectTracingHeaders(ctx, request)

	resp, err := request.Post(requestURL)

	recordSpan(span, resp, err)
	return resp, err
}

func startClientSpan(
	ctx context.Context,
	spanName string,
	method string,
	requestURL string,
) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.url", requestURL),
	))
}

func recordSpan(span trace.Span, resp *resty.Response, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	if resp == nil {
		return
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	if resp.IsError() {
		span.SetStatus(codes.Error, resp.Status())
		return
	}
	span.SetStatus(codes.Ok, "")
}
