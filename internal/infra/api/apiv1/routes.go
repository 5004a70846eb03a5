package apiv1

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface is the public payment API.
type ServerInterface interface {
	// (POST /api/v1/payments/webhook)
	PostPaymentWebhook(w http.ResponseWriter, r *http.Request)
	// (GET /api/v1/payments/{ref_code}/status)
	GetPaymentStatus(w http.ResponseWriter, r *http.Request, refCode string)
}

type MiddlewareFunc func(http.Handler) http.Handler

// ServerInterfaceWrapper binds request parameters before calling the handler.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

func (siw *ServerInterfaceWrapper) PostPaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.PostPaymentWebhook(w, r)
	})
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

func (siw *ServerInterfaceWrapper) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	var refCode string
	err := runtime.BindStyledParameterWithOptions("simple", "ref_code", chi.URLParam(r, "ref_code"), &refCode,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "ref_code", Err: err})
		return
	}

	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetPaymentStatus(w, r, refCode)
	})
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

// RouteOptions customizes RegisterAPIV1.
type RouteOptions struct {
	// WebhookPath overrides the provider callback path.
	WebhookPath      string
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// RegisterAPIV1 mounts the payment API on r using absolute paths.
func RegisterAPIV1(r chi.Router, si ServerInterface, opts ...RouteOptions) {
	var o RouteOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.WebhookPath == "" {
		o.WebhookPath = "/api/v1/payments/webhook"
	}
	if o.ErrorHandlerFunc == nil {
		o.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: o.Middlewares,
		ErrorHandlerFunc:   o.ErrorHandlerFunc,
	}

	r.Post(o.WebhookPath, wrapper.PostPaymentWebhook)
	r.Get("/api/v1/payments/{ref_code}/status", wrapper.GetPaymentStatus)
}
