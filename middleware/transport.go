package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/MrEthical07/goSession/events"
)

// FeatureAccessCodes are the 403 codes that carry an email-verification status.
var FeatureAccessCodes = map[string]bool{
	"EMAIL_VERIFICATION_REQUIRED": true,
	"EMAIL_NOT_VERIFIED":          true,
	"FEATURE_ACCESS_DENIED":       true,
	"FEATURE_BLOCKED":             true,
}

const maxInspectBody = 64 << 10

type featureGateBody struct {
	Code                 string `json:"code"`
	IsVerified           *bool  `json:"isVerified"`
	RequiresVerification *bool  `json:"requiresVerification"`
	EmailVerification    *struct {
		IsVerified           bool `json:"isVerified"`
		RequiresVerification bool `json:"requiresVerification"`
	} `json:"emailVerification"`
}

// FeatureGateTransport publishes a FeatureAccessDenied event for every 403
// response whose body names a feature-access code. The response is passed
// through unchanged.
type FeatureGateTransport struct {
	Base      http.RoundTripper
	Publisher events.Publisher
}

func (t *FeatureGateTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusForbidden || t.Publisher == nil {
		return resp, err
	}

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxInspectBody))
	rest := resp.Body
	resp.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(raw), rest), rest}
	if readErr != nil {
		return resp, nil
	}

	if ev, ok := parseFeatureGate(raw); ok {
		t.Publisher.Publish(ev)
	}
	return resp, nil
}

func parseFeatureGate(raw []byte) (events.FeatureAccessDenied, bool) {
	var body featureGateBody
	if err := json.Unmarshal(raw, &body); err != nil || !FeatureAccessCodes[body.Code] {
		return events.FeatureAccessDenied{}, false
	}
	ev := events.FeatureAccessDenied{Code: body.Code, RequiresVerification: true}
	switch {
	case body.EmailVerification != nil:
		ev.IsVerified = body.EmailVerification.IsVerified
		ev.RequiresVerification = body.EmailVerification.RequiresVerification
	default:
		if body.IsVerified != nil {
			ev.IsVerified = *body.IsVerified
		}
		if body.RequiresVerification != nil {
			ev.RequiresVerification = *body.RequiresVerification
		}
	}
	return ev, true
}
