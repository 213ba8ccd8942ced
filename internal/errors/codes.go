package errors

// Error code constants.
// Format: CATEGORY_SPECIFIC_DETAIL
// The UI maps these codes to its own copy; Message is only a fallback.

const (
	// ==================== Authentication (AUTH_) ====================
	AuthUnauthorized       = "AUTH_UNAUTHORIZED"         // login required
	AuthInvalidCredentials = "AUTH_INVALID_CREDENTIALS"  // wrong email/password
	AuthTokenExpired       = "AUTH_TOKEN_EXPIRED"        // session expired
	AuthTokenInvalid       = "AUTH_TOKEN_INVALID"        // malformed token
	AuthTokenRevoked       = "AUTH_TOKEN_REVOKED"        // token was logged out
	AuthEmailAlreadyExists = "AUTH_EMAIL_EXISTS"         // duplicate email
	AuthWeakPassword       = "AUTH_WEAK_PASSWORD"        // password policy
	AuthEmailNotConfirmed  = "AUTH_EMAIL_NOT_CONFIRMED"  // account awaiting confirmation
	AuthSessionNotReady    = "AUTH_SESSION_NOT_READY"    // restore still running

	// ==================== Authorization (AUTHZ_) ====================
	AuthzForbidden = "AUTHZ_FORBIDDEN"
	AuthzAdminOnly = "AUTHZ_ADMIN_ONLY"

	// ==================== Validation (VALIDATION_) ====================
	ValidationInvalidInput  = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID     = "VALIDATION_INVALID_ID"
	ValidationInvalidFormat = "VALIDATION_INVALID_FORMAT"
	ValidationInvalidRange  = "VALIDATION_INVALID_RANGE"
	ValidationRequired      = "VALIDATION_REQUIRED"

	// ==================== Resource (RESOURCE_) ====================
	ResourceNotFound      = "RESOURCE_NOT_FOUND"
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
	ResourceConflict      = "RESOURCE_CONFLICT"

	// ==================== Catalog / cart (PRODUCT_, CART_) ====================
	ProductNotFound        = "PRODUCT_NOT_FOUND"
	ProductVariantNotFound = "PRODUCT_VARIANT_NOT_FOUND"
	CartInvalidQuantity    = "CART_INVALID_QUANTITY"
	CartInsufficientStock  = "CART_INSUFFICIENT_STOCK"

	// ==================== Checkout (CHECKOUT_) ====================
	CheckoutInvalidTransition = "CHECKOUT_INVALID_TRANSITION" // action not allowed in current state
	CheckoutEmptyCart         = "CHECKOUT_EMPTY_CART"
	CheckoutAlreadyPlaced     = "CHECKOUT_ALREADY_PLACED"     // order already confirmed
	CheckoutActionInProgress  = "CHECKOUT_ACTION_IN_PROGRESS" // duplicate submit
	CheckoutStaleLookup       = "CHECKOUT_STALE_LOOKUP"       // late map result discarded
	CheckoutAddressIncomplete = "CHECKOUT_ADDRESS_INCOMPLETE"

	// ==================== Payment (PAYMENT_) ====================
	PaymentFailed           = "PAYMENT_FAILED"
	PaymentCancelled        = "PAYMENT_CANCELLED"
	PaymentSignatureInvalid = "PAYMENT_SIGNATURE_INVALID"
	PaymentUnavailable      = "PAYMENT_UNAVAILABLE"

	// ==================== Order (ORDER_) ====================
	OrderReconciliationFailed = "ORDER_RECONCILIATION_FAILED" // paid, order not recorded
	OrderInvalidItems         = "ORDER_INVALID_ITEMS"

	// ==================== Upload (UPLOAD_) ====================
	UploadInvalidFileType = "UPLOAD_INVALID_FILE_TYPE"
	UploadFileTooLarge    = "UPLOAD_FILE_TOO_LARGE"
	UploadFailed          = "UPLOAD_FAILED"

	// ==================== Network / internal ====================
	NetworkUnavailable    = "NETWORK_UNAVAILABLE"
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
	InternalExternalAPI   = "INTERNAL_EXTERNAL_API"
	InternalConfigError   = "INTERNAL_CONFIG_ERROR"
)
