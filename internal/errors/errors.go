package errors

// Stable machine-readable error codes returned in JSON error bodies.
// Clients match on these, never on the human-readable message.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeAccountDeactivated  = "ACCOUNT_DEACTIVATED"
	CodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	CodeTokenMissing        = "TOKEN_MISSING"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeInvalidTokenType    = "INVALID_TOKEN_TYPE"
	CodeTokenRevoked        = "TOKEN_REVOKED"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeAuthRequired        = "AUTHENTICATION_REQUIRED"
	CodeAdminAccessRequired = "ADMIN_ACCESS_REQUIRED"
	CodeRefreshTokenMissing = "REFRESH_TOKEN_MISSING"
	CodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	CodeEmailExists         = "EMAIL_EXISTS"
	CodeAdminExists         = "ADMIN_EXISTS"
	CodeWeakPassword        = "WEAK_PASSWORD"
	CodeServerError         = "SERVER_ERROR"
)

// default error is internal service error at handler level
// if error has different status code use ErrorWithStatusCode
type ErrorWithStatusCode struct {
	Message    string
	StatusCode int
	Code       string
}

func (e *ErrorWithStatusCode) Error() string {
	return e.Message
}
