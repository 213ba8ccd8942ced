package errors

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the standard error body
type ErrorResponse struct {
	Error            string            `json:"error"`   // code (mapped by the UI)
	Message          string            `json:"message"` // fallback human message
	Fields           map[string]string `json:"fields,omitempty"`
	PaymentReference string            `json:"payment_reference,omitempty"`
	// Redirect tells the UI to send the user to login and come back here.
	Redirect string `json:"redirect,omitempty"`
}

// LoginPath is where unauthenticated users are redirected.
const LoginPath = "/login"

// LoginRedirect points at login and back to the requested URL, query included.
func LoginRedirect(c *gin.Context) string {
	return LoginPath + "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
}

// RespondWithError writes an error body with an explicit status and code
func RespondWithError(c *gin.Context, statusCode int, errorCode string, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind Kind) int {
	switch kind {
	case KindAuth, KindNotAuthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindPayment:
		return http.StatusPaymentRequired
	case KindReconciliation:
		return http.StatusBadGateway
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Respond writes any error returned by a service. Untyped errors become 500s
// without leaking their text.
func Respond(c *gin.Context, err error) {
	e, ok := As(err)
	if !ok {
		InternalError(c, "")
		return
	}

	body := ErrorResponse{
		Error:            e.Code,
		Message:          e.Message,
		Fields:           e.Fields,
		PaymentReference: e.PaymentReference,
	}
	if e.Kind == KindNotAuthenticated || e.Expired {
		body.Redirect = LoginRedirect(c)
	}
	c.JSON(StatusFor(e.Kind), body)
}

// Shorthands for frequent responses

func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "sign in to continue"
	}
	c.JSON(http.StatusUnauthorized, ErrorResponse{
		Error:    AuthUnauthorized,
		Message:  message,
		Redirect: LoginRedirect(c),
	})
}

func Forbidden(c *gin.Context, message string) {
	if message == "" {
		message = "you do not have access to this resource"
	}
	RespondWithError(c, http.StatusForbidden, AuthzForbidden, message)
}

func BadRequest(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusBadRequest, errorCode, message)
}

func NotFound(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusNotFound, errorCode, message)
}

func Conflict(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusConflict, errorCode, message)
}

func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "something went wrong, please try again later"
	}
	RespondWithError(c, http.StatusInternalServerError, InternalServerError, message)
}

// RespondWithValidationError reports per-field input problems
func RespondWithValidationError(c *gin.Context, fields map[string]string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   ValidationInvalidInput,
		Message: "some fields are invalid",
		Fields:  fields,
	})
}
