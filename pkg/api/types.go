// Package api holds the HTTP request and response bodies and the chi server wrapper.
package api

import (
	"encoding/json"
	"time"
)

const (
	BearerAuthScopes = "bearerAuth.Scopes"
)

// Error defines model for Error.
type Error struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Retry   bool   `json:"retry,omitempty"`
}

// CreateInvoiceRequest defines model for CreateInvoiceRequest.
// TelegramId accepts either a JSON number or a numeric string.
type CreateInvoiceRequest struct {
	TelegramId json.Number `json:"telegramId"`
	PackageKey string      `json:"packageKey"`
	Username   *string     `json:"username,omitempty"`
}

// CreateInvoiceResponse defines model for CreateInvoiceResponse.
type CreateInvoiceResponse struct {
	Success          bool    `json:"success"`
	Mode             string  `json:"mode"`
	PaymentId        int64   `json:"paymentId"`
	StarsAmount      int64   `json:"starsAmount"`
	InvoiceLink      *string `json:"invoiceLink,omitempty"`
	SimulateEndpoint *string `json:"simulateEndpoint,omitempty"`
}

// Package defines model for Package.
type Package struct {
	Key         string `json:"key"`
	StarsAmount int64  `json:"starsAmount"`
}

// PackagesResponse defines model for PackagesResponse.
type PackagesResponse struct {
	Success  bool      `json:"success"`
	Packages []Package `json:"packages"`
}

// Balance defines model for Balance.
type Balance struct {
	TelegramId   string `json:"telegramId"`
	BalanceStars int64  `json:"balanceStars"`
}

// SimulateSuccessRequest defines model for SimulateSuccessRequest.
type SimulateSuccessRequest struct {
	PaymentId int64 `json:"paymentId"`
}

// SimulateSuccessResponse defines model for SimulateSuccessResponse.
type SimulateSuccessResponse struct {
	Success      bool   `json:"success"`
	Status       string `json:"status"`
	PaymentId    int64  `json:"paymentId"`
	BalanceStars int64  `json:"balanceStars"`
}

// WebhookResult defines model for WebhookResult.
type WebhookResult struct {
	Type      string `json:"type"`
	Status    string `json:"status"`
	PaymentId *int64 `json:"paymentId,omitempty"`
}

// WebhookResponse defines model for WebhookResponse.
type WebhookResponse struct {
	Success bool           `json:"success"`
	Result  *WebhookResult `json:"result,omitempty"`
	Queued  bool           `json:"queued,omitempty"`
}

// AdminLoginRequest defines model for AdminLoginRequest.
// InitData is the raw Telegram WebApp initData query string.
type AdminLoginRequest struct {
	InitData string `json:"initData"`
}

// AdminLoginResponse defines model for AdminLoginResponse.
type AdminLoginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AdminMe defines model for AdminMe.
type AdminMe struct {
	TelegramId string `json:"telegramId"`
	IsAdmin    bool   `json:"isAdmin"`
}

// Account defines model for Account.
type Account struct {
	TelegramId   string    `json:"telegramId"`
	DisplayName  string    `json:"displayName,omitempty"`
	BalanceStars int64     `json:"balanceStars"`
	Status       string    `json:"status"`
	IsPremium    bool      `json:"isPremium"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PaymentIntent defines model for PaymentIntent.
type PaymentIntent struct {
	Id                int64     `json:"id"`
	TelegramId        string    `json:"telegramId"`
	StarsAmount       int64     `json:"starsAmount"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	ExternalReference *string   `json:"externalReference,omitempty"`
	Mode              string    `json:"mode"`
	Retries           int       `json:"retries"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// AuditLogEntry defines model for AuditLogEntry.
type AuditLogEntry struct {
	Id        string    `json:"id"`
	ActorId   string    `json:"actorId"`
	Action    string    `json:"action"`
	TargetId  string    `json:"targetId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Stats defines model for Stats.
type Stats struct {
	Accounts        int            `json:"accounts"`
	BlockedAccounts int            `json:"blockedAccounts"`
	Payments        map[string]int `json:"payments"`
	StarsPaid       int64          `json:"starsPaid"`
}

// BalanceAdjustment defines model for BalanceAdjustment.
type BalanceAdjustment struct {
	Delta int64 `json:"delta"`
}

// StatusChange defines model for StatusChange.
type StatusChange struct {
	Status string `json:"status"`
}

// ListUsersParams defines parameters for ListUsers.
type ListUsersParams struct {
	Status *string `form:"status,omitempty" json:"status,omitempty"`
}

// ListPaymentsParams defines parameters for ListPayments.
type ListPaymentsParams struct {
	Status *string `form:"status,omitempty" json:"status,omitempty"`
	Limit  *int32  `form:"limit,omitempty" json:"limit,omitempty"`
}

// ListLogsParams defines parameters for ListLogs.
type ListLogsParams struct {
	Limit *int32 `form:"limit,omitempty" json:"limit,omitempty"`
}

// PaymentActionResponse defines model for PaymentActionResponse.
type PaymentActionResponse struct {
	Success bool           `json:"success"`
	Status  string         `json:"status,omitempty"`
	Payment *PaymentIntent `json:"payment,omitempty"`
}

// AccountResponse defines model for AccountResponse.
type AccountResponse struct {
	Success bool     `json:"success"`
	User    *Account `json:"user"`
}
