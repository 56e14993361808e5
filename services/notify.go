package services

import (
	"fmt"
	"log/slog"
	"topup-system/models"

	pubnub "github.com/pubnub/go"
)

// NotifyService publishes vend outcomes to the customer's channel. Delivery
// is best effort and plays no part in the saga's correctness.
type NotifyService struct {
	pubnub *pubnub.PubNub
}

func NewNotifyService(pn *pubnub.PubNub) *NotifyService {
	return &NotifyService{pubnub: pn}
}

// VendCompleted pushes the delivery details (voucher code, electricity token)
// to the per-account channel.
func (s *NotifyService) VendCompleted(tx *models.PendingTransaction, result *models.ExecutionResult) {
	channel := fmt.Sprintf("topup-%s", tx.CustomerAccountNumber)

	message := map[string]any{
		"type":           "vend_completed",
		"transaction_id": tx.ID,
		"vertical":       tx.Vertical,
		"product_name":   tx.ProductName,
		"usd_amount":     tx.USDAmount.String(),
	}
	if result != nil {
		message["data"] = result.Data
	}

	_, _, err := s.pubnub.Publish().
		Channel(channel).
		Message(message).
		Execute()
	if err != nil {
		slog.Error("failed to publish vend notification",
			"transaction_id", tx.ID,
			"channel", channel,
			"error", err,
		)
	}
}
