package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"topup-system/models"

	"github.com/pocketbase/pocketbase/core"
)

// RecordArchive persists finished transactions to the transactions
// collection. Archiving is observational: a write failure is logged and the
// saga outcome stands.
type RecordArchive struct {
	app core.App
}

func NewRecordArchive(app core.App) *RecordArchive {
	return &RecordArchive{app: app}
}

func (a *RecordArchive) Archive(ctx context.Context, tx *models.PendingTransaction, result *models.ExecutionResult, detail string) {
	collection, err := a.app.FindCollectionByNameOrId("transactions")
	if err != nil {
		slog.Error("archive: transactions collection not found", "error", err)
		return
	}

	record := core.NewRecord(collection)
	record.Set("transaction_id", tx.ID)
	record.Set("vertical", string(tx.Vertical))
	record.Set("customer_account_number", tx.CustomerAccountNumber)
	record.Set("product_name", tx.ProductName)
	record.Set("usd_amount", tx.USDAmount.InexactFloat64())
	record.Set("fee", tx.Fee.InexactFloat64())
	record.Set("total_amount", tx.TotalAmount.InexactFloat64())
	record.Set("vend_trx_id", tx.VendTrxID)
	record.Set("state", string(tx.State))
	record.Set("detail", detail)

	if result != nil {
		if data, err := json.Marshal(result); err == nil {
			record.Set("result", string(data))
		}
	}

	if err := a.app.Save(record); err != nil {
		slog.Error("archive: failed to save transaction record",
			"transaction_id", tx.ID,
			"error", err,
		)
	}
}
