package payment

// VerifyRequest is the body of POST /api/verify-paystack
type VerifyRequest struct {
	Reference string `json:"reference" validate:"omitempty,max=200"`
}

// Identity is the part of the claim echoed back after a successful payment
type Identity struct {
	Email string `json:"email,omitempty"`
}

// VerifyResult is what the payment verifier hands to the handler
type VerifyResult struct {
	Token   string   `json:"token"`
	Payload Identity `json:"payload"`
}
