package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Create a Stars invoice for a catalog package
	// (POST /api/payments/create-invoice)
	CreateInvoice(w http.ResponseWriter, r *http.Request)
	// List purchasable packages
	// (GET /api/payments/packages)
	ListPackages(w http.ResponseWriter, r *http.Request)
	// Get the balance of an account
	// (GET /api/payments/balance/{telegramId})
	GetBalance(w http.ResponseWriter, r *http.Request, telegramId string)
	// Confirm a simulated payment
	// (POST /api/payments/simulate-success)
	SimulateSuccess(w http.ResponseWriter, r *http.Request)
	// Receive a Bot API update
	// (POST /telegram/webhook)
	TelegramWebhook(w http.ResponseWriter, r *http.Request)
	// Issue an admin token
	// (POST /api/admin/login)
	AdminLogin(w http.ResponseWriter, r *http.Request)
	// (GET /api/admin/me)
	GetAdminMe(w http.ResponseWriter, r *http.Request)
	// (GET /api/admin/users)
	ListUsers(w http.ResponseWriter, r *http.Request, params ListUsersParams)
	// (GET /api/admin/payments)
	ListPayments(w http.ResponseWriter, r *http.Request, params ListPaymentsParams)
	// (GET /api/admin/logs)
	ListLogs(w http.ResponseWriter, r *http.Request, params ListLogsParams)
	// (GET /api/admin/stats)
	GetStats(w http.ResponseWriter, r *http.Request)
	// (POST /api/admin/payments/{paymentId}/verify)
	VerifyPayment(w http.ResponseWriter, r *http.Request, paymentId int64)
	// (POST /api/admin/payments/{paymentId}/refund)
	RefundPayment(w http.ResponseWriter, r *http.Request, paymentId int64)
	// (POST /api/admin/payments/{paymentId}/fail)
	FailPayment(w http.ResponseWriter, r *http.Request, paymentId int64)
	// (POST /api/admin/users/{userId}/balance)
	AdjustUserBalance(w http.ResponseWriter, r *http.Request, userId string)
	// (POST /api/admin/users/{userId}/status)
	SetUserStatus(w http.ResponseWriter, r *http.Request, userId string)
}

// MiddlewareFunc wraps a single operation handler.
type MiddlewareFunc func(http.Handler) http.Handler

// ServerInterfaceWrapper converts raw requests into typed handler calls.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, secured bool, fn http.HandlerFunc) {
	if secured {
		r = r.WithContext(context.WithValue(r.Context(), BearerAuthScopes, []string{}))
	}
	handler := http.Handler(fn)
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

// CreateInvoice operation middleware
func (siw *ServerInterfaceWrapper) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, false, siw.Handler.CreateInvoice)
}

// ListPackages operation middleware
func (siw *ServerInterfaceWrapper) ListPackages(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, false, siw.Handler.ListPackages)
}

// GetBalance operation middleware
func (siw *ServerInterfaceWrapper) GetBalance(w http.ResponseWriter, r *http.Request) {
	var telegramId string
	if !siw.bindPath(w, r, "telegramId", &telegramId) {
		return
	}
	siw.serve(w, r, false, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetBalance(w, r, telegramId)
	})
}

// SimulateSuccess operation middleware
func (siw *ServerInterfaceWrapper) SimulateSuccess(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, false, siw.Handler.SimulateSuccess)
}

// TelegramWebhook operation middleware
func (siw *ServerInterfaceWrapper) TelegramWebhook(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, false, siw.Handler.TelegramWebhook)
}

// AdminLogin operation middleware
func (siw *ServerInterfaceWrapper) AdminLogin(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, false, siw.Handler.AdminLogin)
}

// GetAdminMe operation middleware
func (siw *ServerInterfaceWrapper) GetAdminMe(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, true, siw.Handler.GetAdminMe)
}

// ListUsers operation middleware
func (siw *ServerInterfaceWrapper) ListUsers(w http.ResponseWriter, r *http.Request) {
	var params ListUsersParams
	if !siw.bindQuery(w, r, "status", &params.Status) {
		return
	}
	siw.serve(w, r, true, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListUsers(w, r, params)
	})
}

// ListPayments operation middleware
func (siw *ServerInterfaceWrapper) ListPayments(w http.ResponseWriter, r *http.Request) {
	var params ListPaymentsParams
	if !siw.bindQuery(w, r, "status", &params.Status) || !siw.bindQuery(w, r, "limit", &params.Limit) {
		return
	}
	siw.serve(w, r, true, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListPayments(w, r, params)
	})
}

// ListLogs operation middleware
func (siw *ServerInterfaceWrapper) ListLogs(w http.ResponseWriter, r *http.Request) {
	var params ListLogsParams
	if !siw.bindQuery(w, r, "limit", &params.Limit) {
		return
	}
	siw.serve(w, r, true, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListLogs(w, r, params)
	})
}

// GetStats operation middleware
func (siw *ServerInterfaceWrapper) GetStats(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, true, siw.Handler.GetStats)
}

// VerifyPayment operation middleware
func (siw *ServerInterfaceWrapper) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var paymentId int64
	if !siw.bindPath(w, r, "paymentId", &paymentId) {
		return
	}
	siw.serve(w, r, true, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.VerifyPayment(w, r, paymentId)
	})
}

// RefundPayment operation middleware
func (siw *ServerInterfaceWrapper) RefundPayment(w http.ResponseWriter, r *http.Request) {
	var paymentId int64
	if !siw.bindPath(w, r, "paymentId", &paymentId) {
		return
	}
	siw.serve(w, r, true, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.RefundPayment(w, r, paymentId)
	})
}

// FailPayment operation middleware
func (siw *ServerInterfaceWrapper) FailPayment(w http.ResponseWriter, r *http.Request) {
	var paymentId int64
	if !siw.bindPath(w, r, "paymentId", &paymentId) {
		return
	}
	siw.serve(w, r, true, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.FailPayment(w, r, paymentId)
	})
}

// AdjustUserBalance operation middleware
func (siw *ServerInterfaceWrapper) AdjustUserBalance(w http.ResponseWriter, r *http.Request) {
	var userId string
	if !siw.bindPath(w, r, "userId", &userId) {
		return
	}
	siw.serve(w, r, true, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.AdjustUserBalance(w, r, userId)
	})
}

// SetUserStatus operation middleware
func (siw *ServerInterfaceWrapper) SetUserStatus(w http.ResponseWriter, r *http.Request) {
	var userId string
	if !siw.bindPath(w, r, "userId", &userId) {
		return
	}
	siw.serve(w, r, true, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.SetUserStatus(w, r, userId)
	})
}

func (siw *ServerInterfaceWrapper) bindPath(w http.ResponseWriter, r *http.Request, name string, dest interface{}) bool {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return false
	}
	return true
}

func (siw *ServerInterfaceWrapper) bindQuery(w http.ResponseWriter, r *http.Request, name string, dest interface{}) bool {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return false
	}
	return true
}

// InvalidParamFormatError is passed to ErrorHandlerFunc when a parameter cannot be bound.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// ChiServerOptions configures HandlerWithOptions.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// Handler creates http.Handler with routing matching the API.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerFromMux creates http.Handler with routing matching the API, mounted on r.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{BaseRouter: r})
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	base := options.BaseURL
	r.Group(func(r chi.Router) {
		r.Post(base+"/api/payments/create-invoice", wrapper.CreateInvoice)
		r.Get(base+"/api/payments/packages", wrapper.ListPackages)
		r.Get(base+"/api/payments/balance/{telegramId}", wrapper.GetBalance)
		r.Post(base+"/api/payments/simulate-success", wrapper.SimulateSuccess)
		r.Post(base+"/telegram/webhook", wrapper.TelegramWebhook)
		r.Post(base+"/api/admin/login", wrapper.AdminLogin)
		r.Get(base+"/api/admin/me", wrapper.GetAdminMe)
		r.Get(base+"/api/admin/users", wrapper.ListUsers)
		r.Get(base+"/api/admin/payments", wrapper.ListPayments)
		r.Get(base+"/api/admin/logs", wrapper.ListLogs)
		r.Get(base+"/api/admin/stats", wrapper.GetStats)
		r.Post(base+"/api/admin/payments/{paymentId}/verify", wrapper.VerifyPayment)
		r.Post(base+"/api/admin/payments/{paymentId}/refund", wrapper.RefundPayment)
		r.Post(base+"/api/admin/payments/{paymentId}/fail", wrapper.FailPayment)
		r.Post(base+"/api/admin/users/{userId}/balance", wrapper.AdjustUserBalance)
		r.Post(base+"/api/admin/users/{userId}/status", wrapper.SetUserStatus)
	})
	return r
}
