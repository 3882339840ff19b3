package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/benedict-erwin/geo-gateway/internal/apperr"
	"github.com/benedict-erwin/geo-gateway/internal/constants"
	"github.com/benedict-erwin/geo-gateway/pkg/entitlement"
	"github.com/benedict-erwin/geo-gateway/pkg/fetch"
	"github.com/benedict-erwin/geo-gateway/pkg/paystack"
)

// ==========================
// Mocks
// ==========================

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Configured() bool {
	return m.Called().Bool(0)
}

func (m *MockGateway) VerifyTransaction(ctx context.Context, reference string) (*paystack.VerifyResponse, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paystack.VerifyResponse), args.Error(1)
}

type failingIssuer struct{}

func (failingIssuer) Issue(entitlement.Claim) (string, error) {
	return "", errors.New("signing failed")
}

// ==========================
// Helpers
// ==========================

var (
	testNow    = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	testLimits = Limits{PremiumTrials: 999999, PremiumSearches: 999999}
)

func newCodec(t *testing.T) *entitlement.Codec {
	t.Helper()
	codec, err := entitlement.NewCodec("test-secret", entitlement.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return codec
}

func requireCode(t *testing.T, err error, code string) *apperr.Error {
	t.Helper()
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

// ==========================
// Tests
// ==========================

func TestVerifyPayment_EmptyReferenceNeverCallsGateway(t *testing.T) {
	gw := &MockGateway{}
	v := NewVerifier(gw, newCodec(t), testLimits, nil)

	for _, ref := range []string{"", "   ", "\t\n"} {
		res, err := v.VerifyPayment(context.Background(), ref)
		assert.Nil(t, res)
		appErr := requireCode(t, err, constants.CodeReferenceRequired)
		assert.Equal(t, http.StatusBadRequest, appErr.Status)
	}
	gw.AssertNotCalled(t, "Configured")
	gw.AssertNotCalled(t, "VerifyTransaction", mock.Anything, mock.Anything)
}

func TestVerifyPayment_MissingSecret(t *testing.T) {
	gw := &MockGateway{}
	gw.On("Configured").Return(false)
	v := NewVerifier(gw, newCodec(t), testLimits, nil)

	_, err := v.VerifyPayment(context.Background(), "tx123")
	appErr := requireCode(t, err, constants.CodePaystackMissingSecret)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	gw.AssertNotCalled(t, "VerifyTransaction", mock.Anything, mock.Anything)
}

func TestVerifyPayment_GatewayFailureIsServerError(t *testing.T) {
	gw := &MockGateway{}
	gw.On("Configured").Return(true)
	gw.On("VerifyTransaction", mock.Anything, "tx123").Return(nil, errors.New("connection reset"))
	v := NewVerifier(gw, newCodec(t), testLimits, nil)

	_, err := v.VerifyPayment(context.Background(), "tx123")
	requireCode(t, err, constants.CodeServerError)
	gw.AssertExpectations(t)
}

func TestVerifyPayment_OnlySuccessMintsPremium(t *testing.T) {
	tests := []struct {
		name string
		resp *paystack.VerifyResponse
	}{
		{"status false", &paystack.VerifyResponse{Status: false, Data: &paystack.Transaction{Status: "success"}}},
		{"no data", &paystack.VerifyResponse{Status: true}},
		{"abandoned", &paystack.VerifyResponse{Status: true, Data: &paystack.Transaction{Status: "abandoned"}}},
		{"failed", &paystack.VerifyResponse{Status: true, Data: &paystack.Transaction{Status: "failed"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.resp.Raw = []byte(`{"status":false,"message":"declined"}`)
			gw := &MockGateway{}
			gw.On("Configured").Return(true)
			gw.On("VerifyTransaction", mock.Anything, "tx123").Return(tt.resp, nil)
			v := NewVerifier(gw, newCodec(t), testLimits, nil)

			res, err := v.VerifyPayment(context.Background(), "tx123")
			assert.Nil(t, res)
			appErr := requireCode(t, err, constants.CodePaymentNotSuccessful)
			assert.Equal(t, http.StatusBadRequest, appErr.Status)
			assert.Equal(t, tt.resp.Raw, appErr.Details)
		})
	}
}

func TestVerifyPayment_SuccessMintsVerifiableToken(t *testing.T) {
	gw := &MockGateway{}
	gw.On("Configured").Return(true)
	gw.On("VerifyTransaction", mock.Anything, "tx123").Return(&paystack.VerifyResponse{
		Status: true,
		Data:   &paystack.Transaction{Status: "success", Customer: paystack.Customer{Email: "a@b.com"}},
	}, nil)

	codec := newCodec(t)
	v := NewVerifier(gw, codec, testLimits, func() time.Time { return testNow })

	res, err := v.VerifyPayment(context.Background(), "  tx123 ")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", res.Payload.Email)

	claim, err := codec.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, entitlement.Claim{
		Premium:                true,
		Email:                  "a@b.com",
		PaidReference:          "tx123",
		RemainingPremiumTrials: 999999,
		RemainingTotalSearches: 999999,
		IssuedAt:               testNow.UnixMilli(),
	}, *claim)
}

func TestVerifyPayment_SigningFailure(t *testing.T) {
	gw := &MockGateway{}
	gw.On("Configured").Return(true)
	gw.On("VerifyTransaction", mock.Anything, "tx123").Return(&paystack.VerifyResponse{
		Status: true,
		Data:   &paystack.Transaction{Status: "success"},
	}, nil)

	v := NewVerifier(gw, failingIssuer{}, testLimits, nil)
	_, err := v.VerifyPayment(context.Background(), "tx123")
	requireCode(t, err, constants.CodeServerError)
}

func TestVerifyPayment_AgainstGatewayStub(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/transaction/verify/tx123":
			w.Write([]byte(`{"status":true,"data":{"status":"success","customer":{"email":"a@b.com"}}}`))
		case "/transaction/verify/broken":
			w.Write([]byte(`{"status":tru`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
		}
	}))
	defer srv.Close()

	gw := paystack.NewClient(fetch.New(fetch.Options{Timeout: time.Second}), srv.URL, "sk_test")
	codec := newCodec(t)
	v := NewVerifier(gw, codec, testLimits, nil)
	ctx := context.Background()

	res, err := v.VerifyPayment(ctx, "tx123")
	require.NoError(t, err)
	claim, err := codec.Verify(res.Token)
	require.NoError(t, err)
	assert.True(t, claim.Premium)
	assert.Equal(t, "a@b.com", claim.Email)

	_, err = v.VerifyPayment(ctx, "nope")
	appErr := requireCode(t, err, constants.CodePaymentNotSuccessful)
	assert.JSONEq(t, `{"status":false,"message":"Transaction reference not found"}`, string(appErr.Details.(json.RawMessage)))

	_, err = v.VerifyPayment(ctx, "broken")
	requireCode(t, err, constants.CodeServerError)
}
