// internal/service/order/infrastructure/adapter/stripe_adapter.go
package adapter

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/port"
)

// Stripe 签名的时间戳容差，防重放
const stripeSignatureTolerance = 5 * time.Minute

// StripeAdapter 是 port.PaymentGateway 的 Stripe 实现。
// 发起支付走托管收银台 (Checkout Session)，订单 id 挂在 session 的
// metadata 上，随 webhook 原样回传。
type StripeAdapter struct {
	client        *httpclient.Client
	apiBase       string
	secretKey     string
	webhookSecret string
	baseURL       string // 本服务对外地址，用于拼接支付回跳链接
	now           func() time.Time
}

func NewStripeAdapter(client *httpclient.Client, apiBase, secretKey, webhookSecret, baseURL string) *StripeAdapter {
	return &StripeAdapter{
		client:        client,
		apiBase:       strings.TrimRight(apiBase, "/"),
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		baseURL:       strings.TrimRight(baseURL, "/"),
		now:           time.Now,
	}
}

func (a *StripeAdapter) Provider() domain.Provider {
	return domain.ProviderStripe
}

type stripeCheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Initiate 创建 Stripe Checkout Session 并返回收银台跳转地址。
func (a *StripeAdapter) Initiate(ctx context.Context, order *domain.Order) (*port.CheckoutIntent, error) {
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	if !order.IsPaymentPending() {
		return nil, domain.ErrOrderNotPending
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("success_url", a.baseURL+"/api/payment/success?session_id={CHECKOUT_SESSION_ID}&order_id="+order.ID)
	form.Set("cancel_url", a.baseURL+"/api/payment/cancel?order_id="+order.ID)
	// 订单 id 作为不透明 metadata 挂在服务商对象上，webhook 原样带回
	form.Set("metadata[orderId]", order.ID)
	for i, item := range order.Items {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][currency]", "usd")
		form.Set(prefix+"[price_data][product_data][name]", item.Title)
		// Stripe 以最小货币单位计价，美元转为美分
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(toCents(item.UnitPrice), 10))
		form.Set(prefix+"[quantity]", strconv.Itoa(item.Quantity))
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+a.secretKey)

	var session stripeCheckoutSession
	if _, err := a.client.PostForm(ctx, a.apiBase+"/v1/checkout/sessions", header, form, &session); err != nil {
		return nil, domain.NewPaymentProviderError(domain.ProviderStripe, "failed to create checkout session", err)
	}
	if session.URL == "" || session.ID == "" {
		return nil, domain.NewPaymentProviderError(domain.ProviderStripe, "checkout session response missing id or url", nil)
	}

	return &port.CheckoutIntent{RedirectURL: session.URL, ProviderRef: session.ID}, nil
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// VerifyWebhook 重算 Stripe-Signature 并解析事件。
// 签名覆盖 "t.payload" 的精确字节，body 必须未经改写。
func (a *StripeAdapter) VerifyWebhook(ctx context.Context, req *port.WebhookRequest) (*port.ParsedEvent, error) {
	sigHeader := req.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		return nil, domain.ErrInvalidSignature
	}

	timestamp, signatures := parseStripeSignatureHeader(sigHeader)
	if timestamp == "" || len(signatures) == 0 {
		return nil, domain.ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return nil, domain.ErrInvalidSignature
	}
	if delta := a.now().Sub(time.Unix(ts, 0)); delta > stripeSignatureTolerance || delta < -stripeSignatureTolerance {
		return nil, domain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(req.Body)
	expected := mac.Sum(nil)

	verified := false
	for _, sig := range signatures {
		decoded, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, decoded) {
			verified = true
			break
		}
	}
	if !verified {
		return nil, domain.ErrInvalidSignature
	}

	var event stripeEvent
	if err := json.Unmarshal(req.Body, &event); err != nil {
		return nil, domain.NewValidationError("malformed stripe event payload")
	}

	parsed := &port.ParsedEvent{
		EventID:     event.ID,
		EventType:   event.Type,
		OrderID:     event.Data.Object.Metadata["orderId"],
		ProviderRef: event.Data.Object.ID,
	}
	switch event.Type {
	case "checkout.session.completed", "payment_intent.succeeded":
		parsed.Relevant = true
		parsed.Outcome = domain.OutcomeSucceeded
	case "payment_intent.payment_failed":
		parsed.Relevant = true
		parsed.Outcome = domain.OutcomeFailed
	}
	return parsed, nil
}

// parseStripeSignatureHeader 解析 "t=...,v1=...,v1=..." 形式的签名头
func parseStripeSignatureHeader(header string) (timestamp string, signatures []string) {
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	return timestamp, signatures
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
