package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"time"
	"topup-system/security"
	"topup-system/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type AccountHandler struct {
	app   *pocketbase.PocketBase
	redis *redis.Client
}

func NewAccountHandler(app *pocketbase.PocketBase, redisClient *redis.Client) *AccountHandler {
	return &AccountHandler{
		app:   app,
		redis: redisClient,
	}
}

// Register - create a customer profile
func (h *AccountHandler) Register(e *core.RequestEvent) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
		Phone    string `json:"phone"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if _, err := mail.ParseAddress(req.Email); err != nil {
		return apis.NewBadRequestError("A valid email address is required", err)
	}
	if len(req.Password) < 8 {
		return apis.NewBadRequestError("Password must be at least 8 characters", nil)
	}

	if existing, _ := h.app.FindFirstRecordByData("customers", "email", req.Email); existing != nil {
		return apis.NewApiError(http.StatusConflict, "An account with this email already exists", nil)
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		return apis.NewBadRequestError("Failed to create account", err)
	}

	collection, err := h.app.FindCollectionByNameOrId("customers")
	if err != nil {
		return apis.NewBadRequestError("Failed to create account", err)
	}

	record := core.NewRecord(collection)
	record.Set("email", req.Email)
	record.Set("password_hash", hash)
	record.Set("name", req.Name)
	record.Set("phone", req.Phone)
	if err := h.app.Save(record); err != nil {
		return apis.NewBadRequestError("Failed to create account", err)
	}

	slog.Info("customer registered", "customer_id", record.Id)

	return e.JSON(http.StatusOK, map[string]any{
		"customer_id": record.Id,
		"email":       req.Email,
		"name":        req.Name,
	})
}

// Login - verify credentials and open a session
func (h *AccountHandler) Login(e *core.RequestEvent) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	record, err := h.app.FindFirstRecordByData("customers", "email", req.Email)
	if err != nil || !security.CheckPassword(req.Password, record.GetString("password_hash")) {
		return apis.NewUnauthorizedError("Invalid email or password", nil)
	}

	ctx := e.Request.Context()

	sessionID, err := utils.GenerateCode(16)
	if err != nil {
		return apis.NewBadRequestError("Failed to open session", err)
	}
	sessionKey := fmt.Sprintf("session:%s", sessionID)
	if err := h.redis.Set(ctx, sessionKey, record.Id, 24*time.Hour).Err(); err != nil {
		return apis.NewBadRequestError("Failed to open session", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"session_id":  sessionID,
		"customer_id": record.Id,
		"name":        record.GetString("name"),
	})
}

// RequestPasswordReset - issue a short-lived OTP for the account
func (h *AccountHandler) RequestPasswordReset(e *core.RequestEvent) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ctx := e.Request.Context()

	// Same response whether the account exists or not
	if record, _ := h.app.FindFirstRecordByData("customers", "email", req.Email); record != nil {
		otp, err := utils.GenerateOTP(6)
		if err != nil {
			return apis.NewBadRequestError("Failed to issue reset code", err)
		}
		otpKey := fmt.Sprintf("otp:reset:%s", req.Email)
		if err := h.redis.Set(ctx, otpKey, otp, 10*time.Minute).Err(); err != nil {
			return apis.NewBadRequestError("Failed to issue reset code", err)
		}
		slog.Info("password reset requested", "customer_id", record.Id)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"message": "If the account exists, a reset code has been sent",
	})
}

// ResetPassword - consume the OTP and set a new password
func (h *AccountHandler) ResetPassword(e *core.RequestEvent) error {
	var req struct {
		Email       string `json:"email"`
		OTP         string `json:"otp"`
		NewPassword string `json:"new_password"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if len(req.NewPassword) < 8 {
		return apis.NewBadRequestError("Password must be at least 8 characters", nil)
	}

	ctx := e.Request.Context()

	otpKey := fmt.Sprintf("otp:reset:%s", req.Email)
	stored, err := h.redis.GetDel(ctx, otpKey).Result()
	if err != nil || stored != req.OTP {
		return apis.NewUnauthorizedError("Invalid or expired reset code", nil)
	}

	record, err := h.app.FindFirstRecordByData("customers", "email", req.Email)
	if err != nil {
		return apis.NewUnauthorizedError("Invalid or expired reset code", nil)
	}

	hash, err := security.HashPassword(req.NewPassword)
	if err != nil {
		return apis.NewBadRequestError("Failed to reset password", err)
	}
	record.Set("password_hash", hash)
	if err := h.app.Save(record); err != nil {
		return apis.NewBadRequestError("Failed to reset password", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"message": "Password updated",
	})
}
