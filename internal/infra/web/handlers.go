// File: internal/infra/web/handlers.go
package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"paysession/internal/domain"
	"paysession/internal/domain/model"
	"paysession/internal/infra/logging"
	"paysession/internal/infra/metrics"
	"paysession/internal/infra/payment"
	"paysession/internal/usecase"
)

// ---- payment webhook ----

type webhookRequest struct {
	OrderID          string `json:"orderId"`
	GatewayPaymentID string `json:"paymentId"`
	Amount           int64  `json:"amount"`
	Status           string `json:"status"`
	Method           string `json:"method"`
}

// handleWebhook applies a gateway confirmation. The 200 goes out only after
// the transition committed; any failure answers non-2xx so the gateway
// redelivers.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result, reason := "ok", ""
	defer func() {
		metrics.WebhookRequests.WithLabelValues(result, reason).Inc()
		metrics.WebhookDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}()

	if !payment.VerifyWebhookSecret(s.webhookSecret, r.Header.Get("X-Webhook-Secret")) {
		result, reason = "fail", "bad_secret"
		writeErrCode(w, http.StatusUnauthorized, "WEBHOOK_AUTH", domain.ErrWebhookAuth.Error())
		return
	}

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		result, reason = "fail", "bad_json"
		writeErrCode(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid webhook body")
		return
	}
	if req.OrderID == "" {
		result, reason = "fail", "bad_json"
		writeErrCode(w, http.StatusBadRequest, "INVALID_ARGUMENT", "orderId required")
		return
	}
	// Processors that sign their payloads get the signature checked on top
	// of the shared secret.
	if sig := r.Header.Get("X-Webhook-Signature"); sig != "" {
		fields := map[string]string{
			"amount":  strconv.FormatInt(req.Amount, 10),
			"orderId": req.OrderID,
			"status":  req.Status,
		}
		if !payment.VerifyWebhookSignature(s.webhookSecret, fields, sig) {
			result, reason = "fail", "bad_signature"
			writeErrCode(w, http.StatusUnauthorized, "WEBHOOK_AUTH", domain.ErrWebhookAuth.Error())
			return
		}
	}

	p, err := s.confirmUC.ConfirmFromWebhook(r.Context(), usecase.WebhookEvent{
		OrderID:          req.OrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Amount:           req.Amount,
		Status:           payment.MapStatus(req.Status),
		Method:           req.Method,
	})
	if err != nil {
		if err == domain.ErrNotFound {
			result, reason = "fail", "payment_not_found"
			writeErrCode(w, http.StatusNotFound, domain.ReasonPaymentNotFound, "no payment for order")
			return
		}
		result, reason = "fail", "confirm_error"
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"paymentId": p.ID, "status": string(p.Status)})
}

// ---- orders ----

type createOrderRequest struct {
	Amount   int64                  `json:"amount"`
	Currency string                 `json:"currency"`
	Name     string                 `json:"name"`
	Meta     map[string]interface{} `json:"meta,omitempty"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrCode(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request body")
		return
	}
	o, p, err := s.orderUC.CreateOrderAndPayment(r.Context(), userID(r), req.Amount, req.Currency, req.Name, req.Meta)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"orderId":    o.ID,
		"paymentId":  p.ID,
		"gatewayRef": p.GatewayRef,
		"amount":     o.Amount,
		"status":     o.Status,
	})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	orders, err := s.orderUC.ListOrders(r.Context(), userID(r), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	if orders == nil {
		orders = []*model.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, p, err := s.orderUC.Get(r.Context(), chi.URLParam(r, "orderID"), userID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"order":   o,
		"payment": p,
	})
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	code, err := s.orderUC.Cancel(r.Context(), chi.URLParam(r, "orderID"), userID(r), req.Reason)
	if err != nil {
		if code != "" {
			writeErrCode(w, http.StatusConflict, code, err.Error())
			return
		}
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": code})
}

// ---- sessions ----

type startSessionRequest struct {
	Mode             string `json:"mode"` // "one_shot" | "interactive"
	Category         string `json:"category"`
	FormType         string `json:"formType"`
	Input            string `json:"input"`
	UserData         string `json:"userData"`
	PaymentID        string `json:"paymentId"`
	GatewayRef       string `json:"gatewayRef"`
	DurationMinutes  int    `json:"durationMinutes"`
	UseFreeAllowance bool   `json:"useFreeAllowance"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrCode(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request body")
		return
	}
	uid := userID(r)
	ctx := logging.WithUserID(r.Context(), uid)

	switch req.Mode {
	case "one_shot":
		sess, tok, err := s.sessionUC.StartOneShot(ctx, usecase.StartOneShotInput{
			UserID:     uid,
			Category:   req.Category,
			FormType:   req.FormType,
			Input:      req.Input,
			UserData:   req.UserData,
			PaymentID:  req.PaymentID,
			GatewayRef: req.GatewayRef,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"sessionId":   sess.ID,
			"mode":        sess.Mode,
			"status":      sess.Status,
			"hasArtifact": sess.ArtifactID != nil,
			"resultToken": tok,
		})
	case "interactive":
		sess, tok, err := s.sessionUC.StartInteractive(ctx, usecase.StartInteractiveInput{
			UserID:           uid,
			Category:         req.Category,
			FormType:         req.FormType,
			PaymentID:        req.PaymentID,
			GatewayRef:       req.GatewayRef,
			DurationMinutes:  req.DurationMinutes,
			UseFreeAllowance: req.UseFreeAllowance,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"sessionId":   sess.ID,
			"mode":        sess.Mode,
			"status":      sess.Status,
			"budgetSecs":  sess.BudgetSecs,
			"expiresAt":   sess.ExpiresAt,
			"resultToken": tok,
		})
	default:
		writeErrCode(w, http.StatusBadRequest, "INVALID_ARGUMENT", "mode must be one_shot or interactive")
	}
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrCode(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request body")
		return
	}
	reply, err := s.sessionUC.SendMessage(r.Context(), chi.URLParam(r, "sessionID"), userID(r), req.Message)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

type consumeTimeRequest struct {
	Seconds int `json:"seconds"`
}

func (s *Server) handleConsumeTime(w http.ResponseWriter, r *http.Request) {
	var req consumeTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrCode(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request body")
		return
	}
	remaining, err := s.sessionUC.ConsumeTime(r.Context(), chi.URLParam(r, "sessionID"), userID(r), req.Seconds)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"remainingSecs": remaining})
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessionUC.Cancel(r.Context(), chi.URLParam(r, "sessionID"), userID(r)); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// ---- results ----

// handleResult is authenticated by the capability token alone so a result
// link can be opened outside the purchase flow.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get("token")
	if tok == "" {
		writeErrCode(w, http.StatusUnauthorized, "TOKEN_INVALID", "token required")
		return
	}
	view, err := s.sessionUC.Result(r.Context(), tok)
	if err != nil {
		writeErr(w, err)
		return
	}
	if view.Session.ID != chi.URLParam(r, "sessionID") {
		writeErrCode(w, http.StatusForbidden, "ACCESS_DENIED", "token does not match session")
		return
	}
	// A paid one-shot still missing its artifact gets a background retry on
	// top of the inline attempt the use case already made.
	if s.regen != nil && view.Session.Mode == model.SessionModeOneShot && view.Session.ArtifactID == nil {
		s.regen.Enqueue(view.Session.ID)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessionId":  view.Session.ID,
		"mode":       view.Session.Mode,
		"status":     view.Session.Status,
		"budgetSecs": view.Session.BudgetSecs,
		"artifact":   view.Artifact,
		"messages":   view.Messages,
	})
}

// ---- credits ----

func (s *Server) handleCreditBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := s.creditUC.BalanceToday(r.Context(), userID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"day":              bal.Day.Format("2006-01-02"),
		"freeUsed":         bal.FreeUsed,
		"purchasedMinutes": bal.PurchasedMinutes,
		"availableSecs":    bal.AvailableSeconds,
	})
}

type purchaseCreditRequest struct {
	Minutes         int    `json:"minutes"`
	PaymentID       string `json:"paymentId"`
	GatewayRef      string `json:"gatewayRef"`
	ActiveSessionID string `json:"activeSessionId"`
}

func (s *Server) handlePurchaseCredit(w http.ResponseWriter, r *http.Request) {
	var req purchaseCreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrCode(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request body")
		return
	}
	bal, err := s.creditUC.PurchaseCredit(r.Context(), usecase.PurchaseCreditInput{
		UserID:          userID(r),
		Minutes:         req.Minutes,
		PaymentID:       req.PaymentID,
		GatewayRef:      req.GatewayRef,
		ActiveSessionID: req.ActiveSessionID,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"purchasedMinutes": bal.PurchasedMinutes,
		"availableSecs":    bal.AvailableSeconds,
	})
}
