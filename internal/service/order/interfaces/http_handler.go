// internal/service/order/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"orderflow/internal/pkg/auth"
	"orderflow/internal/pkg/httpx"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/port"
)

// webhook body 上限，远大于任何正常事件
const maxWebhookBodyBytes = 1 << 20

// Handler 是订单服务的 HTTP 接口层。
// 它只做协议转换: 解码请求、调应用层、按错误分类映射状态码。
type Handler struct {
	orders     *application.OrderService
	dispatcher *application.WebhookDispatcher
	verifier   *auth.Verifier
}

func NewHandler(orders *application.OrderService, dispatcher *application.WebhookDispatcher, verifier *auth.Verifier) *Handler {
	return &Handler{orders: orders, dispatcher: dispatcher, verifier: verifier}
}

// RegisterRoutes 注册全部路由。
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	authed := func(fn http.HandlerFunc) http.HandlerFunc {
		return WithTracing(Authenticate(h.verifier, fn))
	}

	mux.HandleFunc("POST /api/orders", authed(h.handleCreateOrder))
	mux.HandleFunc("GET /api/orders", authed(h.handleListOrders))
	mux.HandleFunc("GET /api/orders/{id}", authed(h.handleGetOrder))
	mux.HandleFunc("PATCH /api/orders/{id}/status", authed(h.handleUpdateStatus))
	mux.HandleFunc("GET /api/payment/order/{orderId}", authed(h.handleCheckoutURL))

	// 支付回跳落地页是只读的: 状态真相只来自 webhook，不来自浏览器跳转
	mux.HandleFunc("GET /api/payment/success", WithTracing(h.handlePaymentSuccess))
	mux.HandleFunc("GET /api/payment/cancel", WithTracing(h.handlePaymentCancel))

	mux.HandleFunc("POST /api/webhooks/{provider}", WithTracing(h.handleWebhook))
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())

	var req application.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.orders.CreateOrder(r.Context(), user.UserID, &req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusCreated, "order created", resp)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())
	views, err := h.orders.ListOrders(r.Context(), user.UserID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", views)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())
	view, err := h.orders.GetOrder(r.Context(), user, r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", view)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	view, err := h.orders.ApplyAdminTransition(r.Context(), user, r.PathValue("id"), target)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "order status updated", view)
}

func (h *Handler) handleCheckoutURL(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())
	payment, err := h.orders.RequestCheckoutURL(r.Context(), user.UserID, r.PathValue("orderId"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", payment)
}

func (h *Handler) handlePaymentSuccess(w http.ResponseWriter, r *http.Request) {
	h.writeLanding(w, r, "payment completed, your order will be confirmed shortly")
}

func (h *Handler) handlePaymentCancel(w http.ResponseWriter, r *http.Request) {
	h.writeLanding(w, r, "payment cancelled")
}

// writeLanding 渲染回跳落地页快照。落地页展示的支付状态以 webhook
// 已处理到的进度为准，可能晚于服务商页面上看到的结果。
func (h *Handler) writeLanding(w http.ResponseWriter, r *http.Request, message string) {
	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "order_id is required")
		return
	}
	view, err := h.orders.LandingSnapshot(r.Context(), orderID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, message, view)
}

// handleWebhook 接收服务商回调。
// body 必须原样读取，验签覆盖精确字节，任何中间件都不能改写它。
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	// 超限按 413 拒绝。截断的 body 验签必然失败，会伪装成签名错误
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httpx.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		httpx.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	err = h.dispatcher.HandleWebhook(r.Context(), r.PathValue("provider"), &port.WebhookRequest{
		Body:   body,
		Header: r.Header,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	// 服务商只认 2xx，响应体内容不参与协议
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"received":true}`)
}

// writeDomainError 把领域错误映射为 HTTP 状态码。
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var providerErr *domain.PaymentProviderError
	switch {
	case domain.IsValidation(err),
		errors.Is(err, domain.ErrInvalidSignature),
		errors.Is(err, domain.ErrOrderReferenceMissing),
		errors.Is(err, domain.ErrOrderNotPending):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case errors.As(err, &providerErr):
		logger.Ctx(r.Context()).Error().Err(err).Msg("payment provider call failed")
		httpx.WriteError(w, http.StatusBadGateway, "payment provider unavailable")
	default:
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
