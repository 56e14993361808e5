package vend

import (
	"context"
	"fmt"
	"topup-system/models"

	"github.com/shopspring/decimal"
)

type (
	// validatePayload mirrors the provider's validate response body.
	validatePayload struct {
		TrxID           string `json:"trxId"`
		DeliveryMethods []struct {
			ID string `json:"id"`
		} `json:"deliveryMethods"`
		DeliverTo             string          `json:"deliverTo"`
		Callback              string          `json:"callback"`
		CustomerAccountNumber string          `json:"customerAccountNumber"`
		PdtName               string          `json:"pdtName"`
		VendMax               decimal.Decimal `json:"vendMax"`
		ExtraInfo             map[string]any  `json:"extraInfo"`
	}
)

// Validate checks that the account can receive the product and reserves a
// provider transaction id.
func (c *Client) Validate(ctx context.Context, vertical models.Vertical, customerAccountNumber string) (*models.ValidationResult, error) {
	body := fmt.Sprintf(`{"verticalId":%q,"customerAccountNumber":%q}`, vertical, customerAccountNumber)

	var reply struct {
		Data validatePayload `json:"data"`
	}
	if err := c.post(ctx, "validate", "/vend/validate", body, &reply); err != nil {
		return nil, err
	}

	return reply.Data.toDomain(), nil
}

// Execute delivers the product. Not idempotent at the provider; the
// coordinator guarantees at most one call per transaction.
func (c *Client) Execute(ctx context.Context, req *models.VendExecuteRequest) (*models.ExecutionResult, error) {
	body := fmt.Sprintf(`{"trxId":%q,"customerAccountNumber":%q,"amount":%s,"verticalId":%q,"deliveryMethodId":%q,"deliverTo":%q,"callBack":%q}`,
		req.TrxID, req.CustomerAccountNumber, req.Amount, req.Vertical, req.DeliveryMethod, req.DeliverTo, req.Callback)

	var reply models.ExecutionResult
	if err := c.post(ctx, "execute", "/vend/execute", body, &reply); err != nil {
		return nil, err
	}

	return &reply, nil
}

func (p *validatePayload) toDomain() *models.ValidationResult {
	// First delivery method wins, empty if the provider sent none.
	deliveryMethod := ""
	if len(p.DeliveryMethods) > 0 {
		deliveryMethod = p.DeliveryMethods[0].ID
	}

	return &models.ValidationResult{
		TrxID:          p.TrxID,
		DeliveryMethod: deliveryMethod,
		DeliverTo:      p.DeliverTo,
		Callback:       p.Callback,
		CustomerName:   p.CustomerAccountNumber,
		ProductName:    p.PdtName,
		VendMax:        p.VendMax,
		Extra:          p.ExtraInfo,
	}
}
