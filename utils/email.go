package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/phillip/shelter-donations-go/models"
)

// email request payload for ZeptoMail API
type emailRequest struct {
	From     emailAddress  `json:"from"`
	To       []toRecipient `json:"to"`
	Subject  string        `json:"subject"`
	HtmlBody string        `json:"htmlbody"`
}

type emailAddress struct {
	Address string `json:"address"`
}

type toRecipient struct {
	Email emailWithName `json:"email_address"`
}

type emailWithName struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

var emailClient = &http.Client{Timeout: 15 * time.Second}

// SendEmail sends an HTML email using the ZeptoMail HTTP API
func SendEmail(ctx context.Context, to, toName, subject, body string) error {
	apiURL := os.Getenv("ZEPTO_API_URL") // e.g. https://api.zeptomail.com/v1.1/email
	apiKey := os.Getenv("ZEPTO_API_KEY") // e.g. Zoho-enczapikey xxxxx
	from := os.Getenv("EMAIL_FROM")

	if apiURL == "" || apiKey == "" || from == "" {
		return fmt.Errorf("missing required email config")
	}
	if toName == "" {
		toName = os.Getenv("EMAIL_TO_NAME")
	}

	payload := emailRequest{
		From: emailAddress{Address: from},
		To: []toRecipient{
			{Email: emailWithName{Address: to, Name: toName}},
		},
		Subject:  subject,
		HtmlBody: body,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", apiKey)

	resp, err := emailClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("zeptomail API error: %s", resp.Status)
	}
	return nil
}

// DonationNotifier emails a receipt when a donation is first counted as
// completed. Sending happens in the background.
type DonationNotifier struct {
	logger *zap.Logger
	send   func(ctx context.Context, to, toName, subject, body string) error
}

func NewDonationNotifier(logger *zap.Logger) *DonationNotifier {
	return &DonationNotifier{logger: logger, send: SendEmail}
}

func (n *DonationNotifier) DonationCompleted(_ context.Context, d *models.Donation) error {
	if d.DonorEmail == "" {
		return nil
	}
	subject, body := DonationReceipt(d)
	to, name, id := d.DonorEmail, d.DonorName, d.ID.Hex()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := n.send(ctx, to, name, subject, body); err != nil {
			n.logger.Warn("Failed to send donation receipt", zap.String("donation_id", id), zap.Error(err))
			return
		}
		n.logger.Info("Donation receipt sent", zap.String("donation_id", id))
	}()
	return nil
}

// DonationReceipt renders the thank-you email for d.
func DonationReceipt(d *models.Donation) (string, string) {
	name := d.DonorName
	if name == "" {
		name = "friend"
	}
	subject := "Thank you for your donation"
	body := fmt.Sprintf(
		"<p>Dear %s,</p><p>We received your donation of <strong>%.2f</strong>.</p>"+
			"<p>Reference: %s</p><p>Thank you for helping our animals!</p>",
		html.EscapeString(name), d.Amount, html.EscapeString(d.ID.Hex()),
	)
	return subject, body
}
