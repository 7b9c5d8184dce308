package emails

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"time"
)

const brevoAPI = "https://api.brevo.com/v3/smtp/email"

// BrevoSendRequest matches the Brevo v3 transactional email body.
type BrevoSendRequest struct {
	Sender      BrevoContact   `json:"sender"`
	To          []BrevoContact `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

type BrevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Sender delivers account emails. Nil means no email is sent.
type Sender interface {
	SendWelcome(ctx context.Context, toEmail, fullname string) error
	SendOTP(ctx context.Context, toEmail, code string, ttl time.Duration) error
}

// BrevoClient sends emails through Brevo (Sendinblue). An empty APIKey disables sending.
type BrevoClient struct {
	APIKey   string
	MailFrom string
	Endpoint string
	Client   *http.Client
}

func (c *BrevoClient) from() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return "noreply@farmdirect.in"
}

func (c *BrevoClient) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return brevoAPI
}

func (c *BrevoClient) send(ctx context.Context, toEmail, subject, body string) error {
	if c.APIKey == "" {
		return nil
	}
	payload, err := json.Marshal(BrevoSendRequest{
		Sender:      BrevoContact{Email: c.from(), Name: "FarmDirect"},
		To:          []BrevoContact{{Email: toEmail}},
		Subject:     subject,
		HTMLContent: Layout(body),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("brevo send failed: status %d", resp.StatusCode)
	}
	return nil
}

func (c *BrevoClient) SendWelcome(ctx context.Context, toEmail, fullname string) error {
	if fullname == "" {
		fullname = "there"
	}
	return c.send(ctx, toEmail, "Welcome to FarmDirect", fmt.Sprintf(`
    <h1>Welcome, %s!</h1>
    <p>Your FarmDirect account is ready. Browse fresh produce straight from farms near you, or list your own harvest.</p>
    <p>If you did not create this account, please contact support.</p>
`, html.EscapeString(fullname)))
}

func (c *BrevoClient) SendOTP(ctx context.Context, toEmail, code string, ttl time.Duration) error {
	return c.send(ctx, toEmail, "Your FarmDirect verification code", fmt.Sprintf(`
    <h1>Verification code</h1>
    <p class="code">%s</p>
    <p>The code expires in %d minutes and can be used once.</p>
`, html.EscapeString(code), int(ttl.Minutes())))
}
