package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"
	"topup-system/internal/status"
	"topup-system/models"
	"topup-system/monitoring"
	"topup-system/utils"

	"github.com/shopspring/decimal"
)

// VendProvider validates and fulfils top-ups at the vending API.
type VendProvider interface {
	Validate(ctx context.Context, vertical models.Vertical, customerAccountNumber string) (*models.ValidationResult, error)
	Execute(ctx context.Context, req *models.VendExecuteRequest) (*models.ExecutionResult, error)
}

// PaymentGateway creates and confirms external payment authorizations.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, total decimal.Decimal, reference, returnURL, cancelURL string) (string, error)
	ExecutePayment(ctx context.Context, paymentID, payerID string) (bool, string)
}

// Store holds in-flight transactions between initiate and complete.
type Store interface {
	Put(ctx context.Context, tx *models.PendingTransaction) error
	Get(ctx context.Context, id string) (*models.PendingTransaction, error)
	Take(ctx context.Context, id string) (*models.PendingTransaction, error)
	Claim(ctx context.Context, vertical models.Vertical, customerAccountNumber, id string) (bool, error)
	Release(ctx context.Context, vertical models.Vertical, customerAccountNumber string) error
}

// Archiver persists finished transactions for history. Failures are logged,
// never propagated: the saga outcome is already decided by the time a record
// is archived.
type Archiver interface {
	Archive(ctx context.Context, tx *models.PendingTransaction, result *models.ExecutionResult, detail string)
}

// Notifier delivers fire-and-forget customer notifications after a vend.
type Notifier interface {
	VendCompleted(tx *models.PendingTransaction, result *models.ExecutionResult)
}

// Coordinator runs the two-phase top-up saga: validate and quote, collect
// payment through the external gateway, then execute the vend exactly once.
// Money moves if and only if delivery is attempted, and delivery is never
// attempted without a confirmed payment.
type Coordinator struct {
	store    Store
	vend     VendProvider
	gateway  PaymentGateway
	fees     *FeeSchedule
	archiver Archiver
	notifier Notifier
	monitor  *monitoring.Monitor

	publicURL    string
	exchangeRate decimal.Decimal
	taxFeeRate   decimal.Decimal
}

type CoordinatorOptions struct {
	PublicURL    string
	ExchangeRate decimal.Decimal
	TaxFeeRate   decimal.Decimal
}

func NewCoordinator(store Store, vendProvider VendProvider, gateway PaymentGateway, fees *FeeSchedule,
	archiver Archiver, notifier Notifier, monitor *monitoring.Monitor, opts CoordinatorOptions) *Coordinator {
	return &Coordinator{
		store:    store,
		vend:     vendProvider,
		gateway:  gateway,
		fees:     fees,
		archiver: archiver,
		notifier: notifier,
		monitor:  monitor,

		publicURL:    opts.PublicURL,
		exchangeRate: opts.ExchangeRate,
		taxFeeRate:   opts.TaxFeeRate,
	}
}

// Initiate validates the account with the vending provider, fixes the quoted
// amounts, and creates the payment authorization. It returns the stored
// transaction together with the payer redirect URL.
//
// For the tax vertical usdAmount is ignored: the payable amount comes from
// the provider as a local-currency maximum and is converted here.
func (c *Coordinator) Initiate(ctx context.Context, vertical models.Vertical, customerAccountNumber string, usdAmount decimal.Decimal) (*models.PendingTransaction, string, error) {
	if customerAccountNumber == "" {
		return nil, "", fmt.Errorf("initiate: customer account number is required")
	}
	if vertical != models.VerticalTax && !usdAmount.IsPositive() {
		return nil, "", fmt.Errorf("initiate: amount must be positive")
	}

	txID, err := utils.GenerateCode(12)
	if err != nil {
		return nil, "", fmt.Errorf("initiate: generate id: %w", err)
	}

	// One pending transaction per account and vertical. A double-submitted
	// form loses here instead of minting a second provider trx id.
	claimed, err := c.store.Claim(ctx, vertical, customerAccountNumber, txID)
	if err != nil {
		return nil, "", err
	}
	if !claimed {
		return nil, "", status.ErrDuplicateInitiate
	}

	start := time.Now()
	vr, err := c.vend.Validate(ctx, vertical, customerAccountNumber)
	c.monitor.TrackProviderCall("vend", "validate", time.Since(start))
	if err != nil {
		c.releaseGuard(ctx, vertical, customerAccountNumber)
		c.monitor.TrackTransaction(string(vertical), "validate_failed")
		return nil, "", err
	}

	usd, fee, err := c.deriveAmounts(vertical, usdAmount, vr)
	if err != nil {
		c.releaseGuard(ctx, vertical, customerAccountNumber)
		return nil, "", err
	}
	total := usd.Add(fee)

	tx := &models.PendingTransaction{
		ID:       txID,
		Vertical: vertical,

		CustomerAccountNumber: customerAccountNumber,
		CustomerName:          vr.CustomerName,
		ProductName:           vr.ProductName,

		USDAmount:   usd,
		Fee:         fee,
		TotalAmount: total,

		VendTrxID:      vr.TrxID,
		DeliveryMethod: vr.DeliveryMethod,
		DeliverTo:      vr.DeliverTo,
		Callback:       vr.Callback,

		TaxInfo: vr.Extra,

		State:     models.StateValidated,
		CreatedAt: time.Now().UTC(),
	}

	start = time.Now()
	redirect, err := c.gateway.CreatePayment(ctx, total, customerAccountNumber,
		c.callbackURL("execute", txID), c.callbackURL("cancel", txID))
	c.monitor.TrackProviderCall("paypal", "create", time.Since(start))
	if err != nil {
		c.releaseGuard(ctx, vertical, customerAccountNumber)
		c.monitor.TrackTransaction(string(vertical), "create_failed")
		return nil, "", err
	}

	if err := tx.Advance(models.StatePaymentPending); err != nil {
		c.releaseGuard(ctx, vertical, customerAccountNumber)
		return nil, "", err
	}
	if err := c.store.Put(ctx, tx); err != nil {
		c.releaseGuard(ctx, vertical, customerAccountNumber)
		return nil, "", err
	}

	c.monitor.TrackTransaction(string(vertical), "payment_pending")
	slog.Info("top-up initiated",
		"transaction_id", tx.ID,
		"vertical", tx.Vertical,
		"usd_amount", tx.USDAmount,
		"fee", tx.Fee,
		"total", tx.TotalAmount,
	)

	return tx, redirect, nil
}

// Complete handles the payer's return from the gateway. The pending record is
// claimed atomically, the payment is executed, and only after a confirmed
// payment is the vend executed with the amounts and provider fields stored at
// validate time. Nothing here recomputes money from request input.
func (c *Coordinator) Complete(ctx context.Context, txID, paymentID, payerID string) (*models.PendingTransaction, *models.ExecutionResult, error) {
	tx, err := c.store.Take(ctx, txID)
	if err != nil {
		return nil, nil, err
	}
	defer c.releaseGuard(ctx, tx.Vertical, tx.CustomerAccountNumber)

	start := time.Now()
	ok, message := c.gateway.ExecutePayment(ctx, paymentID, payerID)
	c.monitor.TrackProviderCall("paypal", "execute", time.Since(start))
	if !ok {
		c.fail(ctx, tx, nil, message)
		return tx, nil, &status.PaymentError{Op: "execute", Message: message}
	}

	if err := tx.Advance(models.StatePaymentConfirmed); err != nil {
		return tx, nil, err
	}

	start = time.Now()
	result, err := c.vend.Execute(ctx, &models.VendExecuteRequest{
		TrxID:                 tx.VendTrxID,
		CustomerAccountNumber: tx.CustomerAccountNumber,
		Amount:                tx.USDAmount,
		Vertical:              tx.Vertical,
		DeliveryMethod:        tx.DeliveryMethod,
		DeliverTo:             tx.DeliverTo,
		Callback:              tx.Callback,
	})
	c.monitor.TrackProviderCall("vend", "execute", time.Since(start))
	if err != nil {
		// Money has moved but delivery failed. This needs operator follow-up,
		// not an automatic retry against a non-idempotent provider.
		slog.Error("vend execute failed after confirmed payment",
			"transaction_id", tx.ID,
			"vend_trx_id", tx.VendTrxID,
			"payment_id", paymentID,
			"error", err,
		)
		c.fail(ctx, tx, nil, err.Error())
		return tx, nil, err
	}

	if err := tx.Advance(models.StateVended); err != nil {
		return tx, result, err
	}

	if c.archiver != nil {
		c.archiver.Archive(ctx, tx, result, "")
	}
	if c.notifier != nil {
		go c.notifier.VendCompleted(tx, result)
	}
	c.monitor.TrackTransaction(string(tx.Vertical), "vended")
	slog.Info("top-up completed", "transaction_id", tx.ID, "vertical", tx.Vertical)

	return tx, result, nil
}

// Cancel discards a pending transaction after the payer cancelled at the
// gateway. No payment was executed, so no vend is attempted.
func (c *Coordinator) Cancel(ctx context.Context, txID string) (*models.PendingTransaction, error) {
	tx, err := c.store.Take(ctx, txID)
	if err != nil {
		return nil, err
	}
	c.releaseGuard(ctx, tx.Vertical, tx.CustomerAccountNumber)

	c.fail(ctx, tx, nil, "cancelled by payer")
	return tx, nil
}

// Status returns the stored pending transaction without touching it.
func (c *Coordinator) Status(ctx context.Context, txID string) (*models.PendingTransaction, error) {
	return c.store.Get(ctx, txID)
}

func (c *Coordinator) deriveAmounts(vertical models.Vertical, usdAmount decimal.Decimal, vr *models.ValidationResult) (usd, fee decimal.Decimal, err error) {
	if vertical == models.VerticalTax {
		if !vr.VendMax.IsPositive() {
			return decimal.Zero, decimal.Zero, &status.VendError{Op: "validate", Body: "tax validation returned no payable amount"}
		}
		usd = vr.VendMax.Div(c.exchangeRate).Round(2)
		fee = usd.Mul(c.taxFeeRate).Round(2)
		return usd, fee, nil
	}

	usd = usdAmount
	fee = c.fees.FeeFor(usd)
	if fee.IsZero() {
		c.monitor.TrackFeeTierMiss()
	}
	return usd, fee, nil
}

func (c *Coordinator) fail(ctx context.Context, tx *models.PendingTransaction, result *models.ExecutionResult, detail string) {
	if err := tx.Advance(models.StateFailed); err != nil {
		slog.Error("failed to mark transaction failed", "transaction_id", tx.ID, "error", err)
	}
	if c.archiver != nil {
		c.archiver.Archive(ctx, tx, result, detail)
	}
	c.monitor.TrackTransaction(string(tx.Vertical), "failed")
}

func (c *Coordinator) releaseGuard(ctx context.Context, vertical models.Vertical, customerAccountNumber string) {
	if err := c.store.Release(ctx, vertical, customerAccountNumber); err != nil {
		slog.Error("failed to release initiation guard",
			"vertical", vertical,
			"customer_account_number", customerAccountNumber,
			"error", err,
		)
	}
}

func (c *Coordinator) callbackURL(action, txID string) string {
	return fmt.Sprintf("%s/api/topup/%s?txn=%s", c.publicURL, action, url.QueryEscape(txID))
}
