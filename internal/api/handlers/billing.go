package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"textlens/internal/billing"
	"textlens/internal/core"
	"textlens/internal/external"
	"textlens/internal/types"
)

// maxWebhookBodySize caps the webhook payload read.
const maxWebhookBodySize = 1 << 20

// CheckoutService abstracts the payment provider's checkout surface.
// Implemented by external.StripeClient.
type CheckoutService interface {
	CreateCheckoutSession(ctx context.Context, p external.CheckoutParams) (checkoutURL string, sessionID string, err error)
}

// WebhookVerifier validates webhook payload signatures.
type WebhookVerifier interface {
	Verify(payload []byte, header string, secret string) error
}

// PaymentWriter persists payment records. Implemented by db.PaymentRepo.
type PaymentWriter interface {
	Insert(ctx context.Context, p *types.Payment) error
}

// PurchaseApplier grants plan credits after a completed purchase.
// Implemented by credits.Engine.
type PurchaseApplier interface {
	ApplyPurchase(ctx context.Context, userID string, policy types.PlanPolicy) error
}

// UserDirectory resolves account details needed for checkout.
type UserDirectory interface {
	EmailByID(ctx context.Context, userID string) (string, error)
}

// BillingHandler serves checkout creation and the payment webhook.
type BillingHandler struct {
	registry      billing.PlanRegistry
	checkout      CheckoutService
	verifier      WebhookVerifier
	payments      PaymentWriter
	applier       PurchaseApplier
	users         UserDirectory
	validator     *core.Validator
	appURL        string
	webhookSecret types.SecretString
	logger        *slog.Logger
}

// NewBillingHandler creates a BillingHandler with the provided dependencies.
func NewBillingHandler(
	registry billing.PlanRegistry,
	checkout CheckoutService,
	verifier WebhookVerifier,
	payments PaymentWriter,
	applier PurchaseApplier,
	users UserDirectory,
	v *core.Validator,
	appURL string,
	webhookSecret types.SecretString,
	l *slog.Logger,
) *BillingHandler {
	if l == nil {
		l = slog.Default()
	}
	return &BillingHandler{
		registry:      registry,
		checkout:      checkout,
		verifier:      verifier,
		payments:      payments,
		applier:       applier,
		users:         users,
		validator:     v,
		appURL:        appURL,
		webhookSecret: webhookSecret,
		logger:        l,
	}
}

// RegisterRoutes mounts the billing endpoints.
func (h *BillingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/billing/checkout", h.CreateCheckout)
	r.Post("/billing/webhook", h.Webhook)
}

// CreateCheckoutRequest is the request body for POST /v1/billing/checkout.
type CreateCheckoutRequest struct {
	Plan types.PlanID `json:"plan" validate:"required,oneof=trial hobby pro lifetime"`
}

// CheckoutResponse is the response body for POST /v1/billing/checkout.
type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

// CreateCheckout handles POST /v1/billing/checkout. Redirect URLs are
// constructed server-side from the configured app URL; client-supplied
// redirects are never accepted.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateCheckoutRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	priceID, ok := h.registry.PriceIDFor(req.Plan)
	if !ok {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationBadRequest,
			"plan is not purchasable",
			nil,
		))
		return
	}

	email, err := h.users.EmailByID(r.Context(), principal.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	policy := h.registry.PolicyFor(req.Plan)
	checkoutURL, sessionID, err := h.checkout.CreateCheckoutSession(r.Context(), external.CheckoutParams{
		UserID:     principal.UserID,
		Email:      email,
		PriceID:    priceID,
		Mode:       checkoutMode(policy),
		SuccessURL: h.appURL + "/account?checkout=success",
		CancelURL:  h.appURL + "/pricing?checkout=canceled",
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to create checkout session",
			"user_id", principal.UserID,
			"plan", req.Plan,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: CheckoutResponse{
		CheckoutURL: checkoutURL,
		SessionID:   sessionID,
	}})
}

// checkoutMode picks the Stripe checkout mode for a plan: recurring plans
// are subscriptions, one-time and interval grants are single payments.
func checkoutMode(policy types.PlanPolicy) string {
	if policy.OneTimeCredits > 0 || policy.ResetIntervalDays > 0 {
		return "payment"
	}
	return "subscription"
}

// webhookAck is the body returned to the payment provider.
type webhookAck struct {
	Received bool `json:"received"`
}

// Webhook handles POST /v1/billing/webhook.
//
// The payload signature is verified before anything is parsed. Recognized
// checkout completions insert a payment record and grant the purchased
// plan through the credit engine. Unrecognized prices are still recorded
// (the plan resolver's legacy tables may learn them later) but grant
// nothing. The handler always acknowledges verified events so the provider
// does not retry storms over local processing failures.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationBadRequest,
			"failed to read webhook payload",
			err,
		))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if err := h.verifier.Verify(payload, signature, h.webhookSecret.Unmask()); err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenInvalid,
			"webhook signature verification failed",
			nil,
		))
		return
	}

	event, err := external.ParseCheckoutCompleted(payload)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if event == nil {
		// Event type the billing pipeline does not act on.
		core.JSON(w, r, http.StatusOK, core.APIResponse{Data: webhookAck{Received: true}})
		return
	}

	status := types.PaymentStatusPending
	if event.PaymentStatus == "paid" {
		status = types.PaymentStatusPaid
	}

	payment := &types.Payment{
		ID:      uuid.NewString(),
		UserID:  event.UserID,
		PriceID: event.PriceID,
		Status:  status,
	}
	if err := h.payments.Insert(r.Context(), payment); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to persist payment record",
			"user_id", event.UserID,
			"price_id", event.PriceID,
			"session_id", event.SessionID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	policy, known := h.registry.PolicyForPriceID(event.PriceID)
	if !known {
		h.logger.Warn("payment received for unrecognized price",
			"user_id", event.UserID,
			"price_id", event.PriceID,
		)
		core.JSON(w, r, http.StatusOK, core.APIResponse{Data: webhookAck{Received: true}})
		return
	}

	if status == types.PaymentStatusPaid {
		if err := h.applier.ApplyPurchase(r.Context(), event.UserID, policy); err != nil {
			// The payment record is durable; the plan resolver will pick
			// the purchase up from it even if the immediate grant failed.
			h.logger.ErrorContext(r.Context(), "failed to apply purchased plan",
				"user_id", event.UserID,
				"plan", policy.ID,
				"error", err,
			)
		}
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: webhookAck{Received: true}})
}
