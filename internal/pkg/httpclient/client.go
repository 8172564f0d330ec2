// internal/pkg/httpclient/client.go

package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Client 是一个可追踪的、可注入的HTTP客户端
type Client struct {
	Tracer     trace.Tracer
	HTTPClient *http.Client // 持有一个可复用的HTTP客户端实例
}

// NewClient 创建一个新的客户端实例
func NewClient(tracer trace.Tracer) *Client {
	// 在这里创建 http.Client，并且不设置 Timeout 字段
	// 让其完全受控于每次请求传入的 context
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
	}
	return &Client{
		Tracer:     tracer,
		HTTPClient: httpClient,
	}
}

// PostForm 发送 application/x-www-form-urlencoded 请求并把响应解码到 out。
// Stripe 的 API 走这种编码。
func (c *Client) PostForm(ctx context.Context, rawURL string, header http.Header, form url.Values, out interface{}) (int, error) {
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Do(ctx, http.MethodPost, rawURL, header, strings.NewReader(form.Encode()), out)
}

// PostJSON 发送 application/json 请求并把响应解码到 out。
func (c *Client) PostJSON(ctx context.Context, rawURL string, header http.Header, body interface{}, out interface{}) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Type", "application/json")
	return c.Do(ctx, http.MethodPost, rawURL, header, bytes.NewReader(payload), out)
}

// Do 执行请求，自动注入链路追踪头。
// 2xx 响应时把 body 解码到 out (out 可以为 nil)；非 2xx 返回状态码和带响应片段的错误。
func (c *Client) Do(ctx context.Context, method, rawURL string, header http.Header, body io.Reader, out interface{}) (int, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return 0, err
	}
	// 从 URL 中解析出服务名用于 Span
	spanName := fmt.Sprintf("call-%s", strings.Split(parsedURL.Host, ":")[0])

	ctx, span := c.Tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	span.SetAttributes(
		attribute.String("http.url", rawURL),
		attribute.String("http.method", method),
	)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		err := fmt.Errorf("service %s returned status %s: %s", parsedURL.Host, resp.Status, string(snippet))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp.StatusCode, err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			span.RecordError(err)
			return resp.StatusCode, fmt.Errorf("failed to decode response from %s: %w", parsedURL.Host, err)
		}
	}
	return resp.StatusCode, nil
}
