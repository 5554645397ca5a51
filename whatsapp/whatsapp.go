// Package whatsapp delivers text messages with optional media attachments to
// WhatsApp handles through the Twilio Messages API.
package whatsapp

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// AddressPrefix is Twilio's channel prefix for WhatsApp handles.
const AddressPrefix = "whatsapp:"

// DefaultFrom is the Twilio sandbox sender, used when TWILIO_WHATSAPP_NUMBER
// is not configured.
const DefaultFrom = "whatsapp:+14155238886"

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Relay sends WhatsApp messages. One attempt per call; provider errors are
// returned to the caller, which decides whether they are fatal.
type Relay struct {
	api  messageCreator
	from string
}

// NewRelay builds a relay from Twilio credentials. Missing credentials are a
// configuration error, not a silent no-op.
func NewRelay(accountSID, authToken, from string) (*Relay, error) {
	if accountSID == "" || authToken == "" {
		return nil, errors.New("twilio credentials not configured")
	}
	if from == "" {
		from = DefaultFrom
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &Relay{api: client.Api, from: NormalizeAddress(from)}, nil
}

// Send delivers body (plus optional media URLs) to a WhatsApp handle.
func (r *Relay) Send(to, body string, mediaURL ...string) error {
	params := &openapi.CreateMessageParams{}
	params.SetFrom(r.from)
	params.SetTo(NormalizeAddress(to))
	params.SetBody(body)
	if len(mediaURL) > 0 {
		params.SetMediaUrl(mediaURL)
	}

	msg, err := r.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("send whatsapp message to %s: %w", to, err)
	}
	if msg.Sid != nil {
		log.Printf("whatsapp: message sent to %s sid=%s", to, *msg.Sid)
	}
	return nil
}

// NormalizeAddress ensures the handle carries the whatsapp: prefix exactly
// once.
func NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" || strings.HasPrefix(addr, AddressPrefix) {
		return addr
	}
	return AddressPrefix + addr
}
