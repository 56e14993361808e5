package handlers

import (
	"errors"
	"net/http"
	"topup-system/internal/status"
	"topup-system/models"
	"topup-system/services"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

type TopupHandler struct {
	app         *pocketbase.PocketBase
	coordinator *services.Coordinator
}

func NewTopupHandler(app *pocketbase.PocketBase, coordinator *services.Coordinator) *TopupHandler {
	return &TopupHandler{
		app:         app,
		coordinator: coordinator,
	}
}

// Initiate - validate the account, quote the fee and create the payment
func (h *TopupHandler) Initiate(e *core.RequestEvent) error {
	var req struct {
		Vertical              string          `json:"vertical"`
		CustomerAccountNumber string          `json:"customer_account_number"`
		USDAmount             decimal.Decimal `json:"usd_amount"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	vertical, err := models.ParseVertical(req.Vertical)
	if err != nil {
		return apis.NewBadRequestError("Unknown product vertical", err)
	}

	ctx := e.Request.Context()

	tx, redirect, err := h.coordinator.Initiate(ctx, vertical, req.CustomerAccountNumber, req.USDAmount)
	if err != nil {
		return topupError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"transaction_id":          tx.ID,
		"vertical":                tx.Vertical,
		"customer_account_number": tx.CustomerAccountNumber,
		"customer_name":           tx.CustomerName,
		"product_name":            tx.ProductName,
		"usd_amount":              tx.USDAmount,
		"fee":                     tx.Fee,
		"total_amount":            tx.TotalAmount,
		"tax_info":                tx.TaxInfo,
		"redirect_url":            redirect,
	})
}

// Execute - payer returned from the gateway, finish the saga
func (h *TopupHandler) Execute(e *core.RequestEvent) error {
	query := e.Request.URL.Query()
	txID := query.Get("txn")
	paymentID := query.Get("paymentId")
	payerID := query.Get("PayerID")

	if txID == "" || paymentID == "" || payerID == "" {
		return apis.NewBadRequestError("Missing callback parameters", nil)
	}

	ctx := e.Request.Context()

	tx, result, err := h.coordinator.Complete(ctx, txID, paymentID, payerID)
	if err != nil {
		return topupError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"transaction_id": tx.ID,
		"state":          tx.State,
		"product_name":   tx.ProductName,
		"usd_amount":     tx.USDAmount,
		"total_amount":   tx.TotalAmount,
		"result":         result,
	})
}

// Cancel - payer backed out at the gateway
func (h *TopupHandler) Cancel(e *core.RequestEvent) error {
	txID := e.Request.URL.Query().Get("txn")
	if txID == "" {
		return apis.NewBadRequestError("Missing transaction id", nil)
	}

	tx, err := h.coordinator.Cancel(e.Request.Context(), txID)
	if err != nil {
		return topupError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"transaction_id": tx.ID,
		"state":          tx.State,
		"message":        "Transaction cancelled",
	})
}

// GetStatus - current state of a pending transaction
func (h *TopupHandler) GetStatus(e *core.RequestEvent) error {
	txID := e.Request.PathValue("txnId")

	tx, err := h.coordinator.Status(e.Request.Context(), txID)
	if err != nil {
		return topupError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"transaction_id": tx.ID,
		"vertical":       tx.Vertical,
		"state":          tx.State,
		"usd_amount":     tx.USDAmount,
		"fee":            tx.Fee,
		"total_amount":   tx.TotalAmount,
		"created_at":     tx.CreatedAt,
	})
}

// topupError maps coordinator failures onto HTTP error payloads. Every
// payload carries a human-readable error_message.
func topupError(err error) error {
	switch {
	case errors.Is(err, status.ErrTransactionNotFound):
		return apis.NewNotFoundError("Transaction not found or expired", err)

	case errors.Is(err, status.ErrDuplicateInitiate):
		return apis.NewApiError(http.StatusConflict, "A transaction for this account is already awaiting payment", err)

	case errors.Is(err, status.ErrProviderUnavailable):
		return apis.NewApiError(http.StatusServiceUnavailable, "Service temporarily unavailable, please try again shortly", err)
	}

	var vendErr *status.VendError
	if errors.As(err, &vendErr) {
		return apis.NewBadRequestError("The account or amount could not be validated", err)
	}

	var payErr *status.PaymentError
	if errors.As(err, &payErr) {
		return apis.NewBadRequestError(payErr.Message, err)
	}

	var authErr *status.AuthError
	if errors.As(err, &authErr) {
		return apis.NewApiError(http.StatusBadGateway, "Upstream provider authentication failed", err)
	}

	return apis.NewBadRequestError(err.Error(), err)
}
