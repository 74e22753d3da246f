package webhooks

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/goliatone/go-botway/core"
)

// SecretTokenHeader is the header the platform echoes back on each delivery
// when the webhook was registered with a secret token.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// SecretTokenVerifier rejects deliveries whose secret-token header does not
// match the configured value. Comparison is constant time.
type SecretTokenVerifier struct {
	Header string
	Token  string
}

func NewSecretTokenVerifier(token string) SecretTokenVerifier {
	return SecretTokenVerifier{
		Header: SecretTokenHeader,
		Token:  strings.TrimSpace(token),
	}
}

func (v SecretTokenVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	expected := strings.TrimSpace(v.Token)
	if expected == "" {
		return fmt.Errorf("webhooks: verification token is required")
	}
	header := v.Header
	if strings.TrimSpace(header) == "" {
		header = SecretTokenHeader
	}
	actual := strings.TrimSpace(headerValue(req.Headers, header))
	if actual == "" {
		return fmt.Errorf("webhooks: %s verification header is required", header)
	}
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) != 1 {
		return fmt.Errorf("webhooks: verification token mismatch")
	}
	return nil
}

// NoopVerifier accepts every delivery; used when no secret token was
// registered for the webhook.
type NoopVerifier struct{}

func (NoopVerifier) Verify(context.Context, core.InboundRequest) error { return nil }
