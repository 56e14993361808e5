package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"topup-system/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type AdminHandler struct {
	app   *pocketbase.PocketBase
	redis *redis.Client
}

func NewAdminHandler(app *pocketbase.PocketBase, redisClient *redis.Client) *AdminHandler {
	return &AdminHandler{
		app:   app,
		redis: redisClient,
	}
}

// ListTransactions - archived transaction history, newest first
func (h *AdminHandler) ListTransactions(e *core.RequestEvent) error {
	if e.Auth == nil || e.Auth.Collection().Name != "admins" {
		return apis.NewUnauthorizedError("Admin access required", nil)
	}

	query := e.Request.URL.Query()

	limit := 50
	if v, err := strconv.Atoi(query.Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	offset := 0
	if v, err := strconv.Atoi(query.Get("offset")); err == nil && v > 0 {
		offset = v
	}

	sql := `SELECT transaction_id, vertical, customer_account_number, product_name,
			usd_amount, fee, total_amount, vend_trx_id, state, detail, created
		FROM transactions`
	params := dbx.Params{}

	if vertical := query.Get("vertical"); vertical != "" {
		if _, err := models.ParseVertical(vertical); err != nil {
			return apis.NewBadRequestError("Unknown product vertical", err)
		}
		sql += ` WHERE vertical = {:vertical}`
		params["vertical"] = vertical
	}
	sql += ` ORDER BY created DESC LIMIT {:limit} OFFSET {:offset}`
	params["limit"] = limit
	params["offset"] = offset

	rows := []dbx.NullStringMap{}
	if err := h.app.DB().NewQuery(sql).Bind(params).All(&rows); err != nil {
		return apis.NewBadRequestError("Failed to load transactions", err)
	}

	transactions := []map[string]any{}
	for _, row := range rows {
		item := map[string]any{}
		for col, val := range row {
			if val.Valid {
				item[col] = val.String
			} else {
				item[col] = nil
			}
		}
		transactions = append(transactions, item)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"transactions": transactions,
		"limit":        limit,
		"offset":       offset,
	})
}

// ListPending - in-flight transactions still held in redis
func (h *AdminHandler) ListPending(e *core.RequestEvent) error {
	if e.Auth == nil || e.Auth.Collection().Name != "admins" {
		return apis.NewUnauthorizedError("Admin access required", nil)
	}
	ctx := e.Request.Context()

	pending := []map[string]any{}
	iter := h.redis.Scan(ctx, 0, "topup:pending:*", 200).Iterator()
	for iter.Next(ctx) {
		data, err := h.redis.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var tx models.PendingTransaction
		if err := json.Unmarshal([]byte(data), &tx); err != nil {
			continue
		}
		ttl, _ := h.redis.TTL(ctx, iter.Val()).Result()
		pending = append(pending, map[string]any{
			"transaction_id":          tx.ID,
			"vertical":                tx.Vertical,
			"customer_account_number": tx.CustomerAccountNumber,
			"state":                   tx.State,
			"total_amount":            tx.TotalAmount,
			"created_at":              tx.CreatedAt,
			"expires_in":              ttl.Seconds(),
		})
	}
	if err := iter.Err(); err != nil {
		return apis.NewBadRequestError("Failed to scan pending transactions", err)
	}

	return e.JSON(http.StatusOK, pending)
}
