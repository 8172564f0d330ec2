// internal/service/order/infrastructure/adapter/paypal_adapter.go
package adapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/port"
)

// PaypalAdapter 是 port.PaymentGateway 的 PayPal 实现。
// 发起支付走 Orders v2 API，webhook 验签不在本地算签名，
// 而是把完整签名材料回传给 PayPal 的 verify-webhook-signature 接口仲裁。
type PaypalAdapter struct {
	client       *httpclient.Client
	apiBase      string
	clientID     string
	clientSecret string
	webhookID    string
	baseURL      string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
	now         func() time.Time
}

func NewPaypalAdapter(client *httpclient.Client, apiBase, clientID, clientSecret, webhookID, baseURL string) *PaypalAdapter {
	return &PaypalAdapter{
		client:       client,
		apiBase:      strings.TrimRight(apiBase, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		webhookID:    webhookID,
		baseURL:      strings.TrimRight(baseURL, "/"),
		now:          time.Now,
	}
}

func (a *PaypalAdapter) Provider() domain.Provider {
	return domain.ProviderPaypal
}

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// getAccessToken 用 client credentials 换取 OAuth token，带过期缓存。
// 提前 60 秒视为过期，避免用临界 token 发请求。
func (a *PaypalAdapter) getAccessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.accessToken != "" && a.now().Before(a.tokenExpiry) {
		return a.accessToken, nil
	}

	basic := base64.StdEncoding.EncodeToString([]byte(a.clientID + ":" + a.clientSecret))
	header := http.Header{}
	header.Set("Authorization", "Basic "+basic)

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	var token paypalTokenResponse
	if _, err := a.client.PostForm(ctx, a.apiBase+"/v1/oauth2/token", header, form, &token); err != nil {
		return "", fmt.Errorf("paypal oauth token request failed: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("paypal oauth response missing access_token")
	}

	a.accessToken = token.AccessToken
	a.tokenExpiry = a.now().Add(time.Duration(token.ExpiresIn-60) * time.Second)
	return a.accessToken, nil
}

type paypalOrderRequest struct {
	Intent        string               `json:"intent"`
	PurchaseUnits []paypalPurchaseUnit `json:"purchase_units"`
}

type paypalPurchaseUnit struct {
	ReferenceID string       `json:"reference_id"`
	CustomID    string       `json:"custom_id"`
	Amount      paypalAmount `json:"amount"`
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalOrderResponse struct {
	ID    string `json:"id"`
	Links []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

// Initiate 创建 PayPal Order 并返回买家授权跳转地址。
// 订单 id 同时写进 reference_id 和 custom_id，capture 事件会带回 custom_id。
func (a *PaypalAdapter) Initiate(ctx context.Context, order *domain.Order) (*port.CheckoutIntent, error) {
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	if !order.IsPaymentPending() {
		return nil, domain.ErrOrderNotPending
	}

	token, err := a.getAccessToken(ctx)
	if err != nil {
		return nil, domain.NewPaymentProviderError(domain.ProviderPaypal, "failed to obtain access token", err)
	}

	body := paypalOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []paypalPurchaseUnit{{
			ReferenceID: order.ID,
			CustomID:    order.ID,
			Amount: paypalAmount{
				CurrencyCode: "USD",
				Value:        fmt.Sprintf("%.2f", order.TotalAmount),
			},
		}},
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	var created paypalOrderResponse
	if _, err := a.client.PostJSON(ctx, a.apiBase+"/v2/checkout/orders", header, body, &created); err != nil {
		return nil, domain.NewPaymentProviderError(domain.ProviderPaypal, "failed to create order", err)
	}
	if created.ID == "" {
		return nil, domain.NewPaymentProviderError(domain.ProviderPaypal, "order response missing id", nil)
	}

	approveURL := ""
	for _, link := range created.Links {
		if link.Rel == "approve" {
			approveURL = link.Href
			break
		}
	}
	if approveURL == "" {
		return nil, domain.NewPaymentProviderError(domain.ProviderPaypal, "order response missing approve link", nil)
	}

	return &port.CheckoutIntent{RedirectURL: approveURL, ProviderRef: created.ID}, nil
}

type paypalVerifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	// 必须是收到的原始字节，重新序列化会改变键序导致验签失败
	WebhookEvent json.RawMessage `json:"webhook_event"`
}

type paypalVerifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

type paypalEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID                string `json:"id"`
		CustomID          string `json:"custom_id"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

// VerifyWebhook 调用 PayPal 的验签接口确认事件真伪，然后解析事件。
// webhook_id 未配置时拒绝所有事件，宁可拒真不可受假。
func (a *PaypalAdapter) VerifyWebhook(ctx context.Context, req *port.WebhookRequest) (*port.ParsedEvent, error) {
	if a.webhookID == "" {
		return nil, domain.ErrInvalidSignature
	}

	transmissionID := req.Header.Get("Paypal-Transmission-Id")
	transmissionSig := req.Header.Get("Paypal-Transmission-Sig")
	transmissionTime := req.Header.Get("Paypal-Transmission-Time")
	certURL := req.Header.Get("Paypal-Cert-Url")
	authAlgo := req.Header.Get("Paypal-Auth-Algo")
	if transmissionID == "" || transmissionSig == "" || transmissionTime == "" || certURL == "" || authAlgo == "" {
		return nil, domain.ErrInvalidSignature
	}

	token, err := a.getAccessToken(ctx)
	if err != nil {
		return nil, domain.NewPaymentProviderError(domain.ProviderPaypal, "failed to obtain access token", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	verifyReq := paypalVerifyRequest{
		AuthAlgo:         authAlgo,
		CertURL:          certURL,
		TransmissionID:   transmissionID,
		TransmissionSig:  transmissionSig,
		TransmissionTime: transmissionTime,
		WebhookID:        a.webhookID,
		WebhookEvent:     json.RawMessage(req.Body),
	}

	var verifyResp paypalVerifyResponse
	if _, err := a.client.PostJSON(ctx, a.apiBase+"/v1/notifications/verify-webhook-signature", header, verifyReq, &verifyResp); err != nil {
		return nil, domain.NewPaymentProviderError(domain.ProviderPaypal, "webhook verification call failed", err)
	}
	if verifyResp.VerificationStatus != "SUCCESS" {
		return nil, domain.ErrInvalidSignature
	}

	var event paypalEvent
	if err := json.Unmarshal(req.Body, &event); err != nil {
		return nil, domain.NewValidationError("malformed paypal event payload")
	}

	// capture 事件里 PayPal 订单号在 supplementary_data，resource.id 是 capture 号
	providerRef := event.Resource.SupplementaryData.RelatedIDs.OrderID
	if providerRef == "" {
		providerRef = event.Resource.ID
	}

	parsed := &port.ParsedEvent{
		EventID:     event.ID,
		EventType:   event.EventType,
		OrderID:     event.Resource.CustomID,
		ProviderRef: providerRef,
	}
	switch event.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		parsed.Relevant = true
		parsed.Outcome = domain.OutcomeSucceeded
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.REFUNDED":
		parsed.Relevant = true
		parsed.Outcome = domain.OutcomeFailed
	}
	return parsed, nil
}
