// internal/service/order/port/payment.go
package port

import (
	"context"
	"net/http"

	"orderflow/internal/service/order/domain"
)

// CheckoutIntent 是发起支付后返回给客户端的跳转信息。
type CheckoutIntent struct {
	// RedirectURL 是服务商托管的收银台/批准页地址
	RedirectURL string
	// ProviderRef 是服务商侧对象 id，用于后续 webhook 对账
	ProviderRef string
}

// WebhookRequest 是一次未经任何改写的服务商回调。
// Body 必须是逐字节原样的请求体——部分服务商的签名覆盖精确字节，
// 任何 JSON 重序列化都会导致验签失败。
type WebhookRequest struct {
	Body   []byte
	Header http.Header
}

// ParsedEvent 是验签通过后、归一化之前的事件信息。
type ParsedEvent struct {
	EventID   string
	EventType string // 服务商原始事件类型，仅用于日志
	// Relevant 为 false 表示事件类型与支付结果无关，直接确认、不做任何状态变更
	Relevant bool
	Outcome  domain.PaymentOutcome
	// OrderID 是从事件 metadata / reference 字段里解析出的领域订单 id，可能为空
	OrderID string
	// ProviderRef 是服务商对象 id，OrderID 为空时用它反查 checkout session
	ProviderRef string
}

// PaymentGateway 是单个支付服务商的能力接口:
// 创建服务商托管的支付流程，以及验证并解析该服务商的回调。
type PaymentGateway interface {
	Provider() domain.Provider

	// Initiate 为一笔 PENDING 订单创建服务商托管支付流程。
	// 服务商侧失败统一包装为 *domain.PaymentProviderError。
	Initiate(ctx context.Context, order *domain.Order) (*CheckoutIntent, error)

	// VerifyWebhook 用预共享密钥校验回调真实性，失败返回 domain.ErrInvalidSignature。
	VerifyWebhook(ctx context.Context, req *WebhookRequest) (*ParsedEvent, error)
}

// GatewayRegistry 按 Provider 枚举选择具体网关实现，取代按枚举 switch 的写法。
type GatewayRegistry struct {
	gateways map[domain.Provider]PaymentGateway
}

func NewGatewayRegistry(gateways ...PaymentGateway) *GatewayRegistry {
	m := make(map[domain.Provider]PaymentGateway, len(gateways))
	for _, g := range gateways {
		m[g.Provider()] = g
	}
	return &GatewayRegistry{gateways: m}
}

// Lookup 返回指定服务商的网关，未接入时返回校验错误。
func (r *GatewayRegistry) Lookup(provider domain.Provider) (PaymentGateway, error) {
	g, ok := r.gateways[provider]
	if !ok {
		return nil, domain.NewValidationError("unsupported payment provider: " + string(provider))
	}
	return g, nil
}
