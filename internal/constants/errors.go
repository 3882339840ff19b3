package constants

import "net/http"

// Machine-readable error codes returned in the "error" field of failure bodies
const (
	// 400 Bad Request
	CodeReferenceRequired    = "reference_required"
	CodePaymentNotSuccessful = "payment_not_successful"
	CodeInvalidInput         = "invalid_input"
	CodeInvalidJSON          = "invalid_json"

	// 404 Not Found
	CodeLocationNotFound = "location_not_found"
	CodeNotFound         = "not_found"

	// 500 Internal Server Error
	CodeServerError           = "server_error"
	CodePaystackMissingSecret = "paystack_missing_secret"

	// 502 Bad Gateway
	CodeAllProvidersFailed = "all_providers_failed"

	// Token status reasons (always HTTP 200)
	ReasonNoToken      = "no_token"
	ReasonInvalidToken = "invalid_token"
)

// Human-readable messages for input errors whose message is the contract
const (
	MsgQueryRequired    = "q query param required"
	MsgLocationRequired = "location query param required"
	MsgTimeInput        = "provide lat & lon or timezone"
	MsgInvalidLatLon    = "invalid lat/lon"
	MsgInvalidIP        = "invalid ip"
)

// codeStatus maps codes to their HTTP status
var codeStatus = map[string]int{
	CodeReferenceRequired:     http.StatusBadRequest,
	CodePaymentNotSuccessful:  http.StatusBadRequest,
	CodeInvalidInput:          http.StatusBadRequest,
	CodeInvalidJSON:           http.StatusBadRequest,
	CodeLocationNotFound:      http.StatusNotFound,
	CodeNotFound:              http.StatusNotFound,
	CodeServerError:           http.StatusInternalServerError,
	CodePaystackMissingSecret: http.StatusInternalServerError,
	CodeAllProvidersFailed:    http.StatusBadGateway,
}

// GetHTTPStatusFromCode returns the HTTP status for a code, 500 when unknown
func GetHTTPStatusFromCode(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// GetCodeFromHTTPStatus picks a generic code for errors raised by the router itself
func GetCodeFromHTTPStatus(status int) string {
	switch {
	case status == http.StatusNotFound:
		return CodeNotFound
	case status >= 400 && status < 500:
		return CodeInvalidInput
	default:
		return CodeServerError
	}
}
