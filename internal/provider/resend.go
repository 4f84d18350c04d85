package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultResendTimeout = 10 * time.Second
	resendEmailsPath     = "/emails"
)

const resendProviderName = "resend"

type resendTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type resendSendRequest struct {
	From    string      `json:"from"`
	To      []string    `json:"to"`
	Subject string      `json:"subject"`
	HTML    string      `json:"html"`
	Tags    []resendTag `json:"tags,omitempty"`
}

type resendSendResponse struct {
	ID string `json:"id"`
}

type resendErrorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

var _ Mailer = (*ResendMailer)(nil)

// ResendMailer sends email through the Resend HTTP API.
type ResendMailer struct {
	client  *resty.Client
	baseURL string
}

func NewResendMailer(baseURL string, apiKey string) (*ResendMailer, error) {
	client := resty.New()
	client.SetTimeout(defaultResendTimeout)

	return NewResendMailerWithClient(baseURL, apiKey, client)
}

func NewResendMailerWithClient(baseURL string, apiKey string, client *resty.Client) (*ResendMailer, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("resend base url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid resend base url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultResendTimeout)
	}
	// Retries would risk duplicate emails; the batch sender decides what to resend.
	client.SetRetryCount(0)
	if key := strings.TrimSpace(apiKey); key != "" {
		client.SetAuthToken(key)
	}

	return &ResendMailer{
		client:  client,
		baseURL: trimmed,
	}, nil
}

func (m *ResendMailer) Name() string {
	return resendProviderName
}

func (m *ResendMailer) Send(ctx context.Context, email OutboundEmail) (*SendResult, error) {
	if m == nil || m.client == nil {
		return nil, fmt.Errorf("mailer is not initialized")
	}
	if strings.TrimSpace(email.To) == "" || strings.TrimSpace(email.From) == "" {
		return nil, &ProviderError{Provider: resendProviderName, Message: "sender and recipient are required"}
	}

	var ok resendSendResponse
	var apiErr resendErrorResponse
	response, err := m.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(resendSendRequest{
			From:    email.From,
			To:      []string{email.To},
			Subject: email.Subject,
			HTML:    email.HTML,
			Tags:    resendTags(email.Tags),
		}).
		SetResult(&ok).
		SetError(&apiErr).
		Post(m.baseURL + resendEmailsPath)
	if err != nil {
		return nil, &ProviderError{
			Provider:  resendProviderName,
			Message:   "request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		if strings.TrimSpace(ok.ID) == "" {
			return nil, &ProviderError{
				Provider:   resendProviderName,
				StatusCode: statusCode,
				Message:    "response has no message id",
			}
		}
		return &SendResult{StatusCode: statusCode, MessageID: ok.ID}, nil
	}

	message := strings.TrimSpace(apiErr.Message)
	if message == "" {
		message = strings.TrimSpace(response.String())
	}
	return nil, &ProviderError{
		Provider:   resendProviderName,
		StatusCode: statusCode,
		Message:    providerErrorMessage(statusCode, message),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func resendTags(tags map[string]string) []resendTag {
	if len(tags) == 0 {
		return nil
	}

	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]resendTag, 0, len(names))
	for _, name := range names {
		out = append(out, resendTag{Name: name, Value: tags[name]})
	}
	return out
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func providerErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("resend returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
