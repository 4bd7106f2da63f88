package utils

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/phillip/shelter-donations-go/models"
)

// LiqPayCallback is the decoded `data` field of a LiqPay server callback.
type LiqPayCallback struct {
	OrderID       string      `json:"order_id"`
	Status        string      `json:"status"`
	TransactionID json.Number `json:"transaction_id"`
	PaymentID     json.Number `json:"payment_id"`
	Amount        float64     `json:"amount"`
	Currency      string      `json:"currency"`
}

// LiqPaySignature is base64(sha1(privateKey + data + privateKey)).
func LiqPaySignature(privateKey, data string) string {
	sum := sha1.Sum([]byte(privateKey + data + privateKey))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func VerifyLiqPaySignature(data, signature, privateKey string) bool {
	if data == "" || signature == "" || privateKey == "" {
		return false
	}
	expected := LiqPaySignature(privateKey, data)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

func DecodeLiqPayData(data string) (*LiqPayCallback, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode liqpay data: %w", err)
	}
	var cb LiqPayCallback
	if err := json.Unmarshal(raw, &cb); err != nil {
		return nil, fmt.Errorf("parse liqpay data: %w", err)
	}
	return &cb, nil
}

// MapLiqPayStatus translates a LiqPay payment status into a donation status.
func MapLiqPayStatus(status string) (string, bool) {
	status = strings.ToLower(status)
	switch {
	case status == "success" || status == "sandbox":
		return models.DonationCompleted, true
	case status == "failure" || status == "error":
		return models.DonationFailed, true
	case status == "reversed":
		return models.DonationRefunded, true
	case status == "processing" || status == "prepared" || strings.HasPrefix(status, "wait_"):
		return models.DonationProcessing, true
	}
	return "", false
}

// TransactionRef picks the best external reference from a callback.
func (cb *LiqPayCallback) TransactionRef() string {
	if cb.TransactionID != "" {
		return cb.TransactionID.String()
	}
	return cb.PaymentID.String()
}
