package studenthub

import (
	"net/url"
	"strings"
)

// handoffTokenParam is the marker a verification link plants in the
// navigation target. It must be stripped once redeemed so a reload does not
// repeat the exchange.
const handoffTokenParam = "verify_token"

const textCodeHandoffRejected = "HANDOFF_REJECTED"

// Handoff is an out-of-band transfer of session credentials, e.g. the token
// carried by an email verification link.
type Handoff struct {
	Token string
}

// ParseHandoffURL inspects a navigation target for a pending handoff. It
// checks the fragment first (providers that keep tokens out of server logs),
// then the query string. It returns the handoff, the target with the markers
// removed, and whether a handoff was present.
func ParseHandoffURL(raw string) (Handoff, string, bool) {
	target, err := url.Parse(raw)
	if err != nil {
		return Handoff{}, raw, false
	}

	if token, cleaned, ok := extractFragmentToken(target.Fragment); ok {
		target.Fragment = cleaned
		return Handoff{Token: token}, target.String(), true
	}

	query := target.Query()
	if token := query.Get(handoffTokenParam); token != "" {
		query.Del(handoffTokenParam)
		target.RawQuery = query.Encode()
		return Handoff{Token: token}, target.String(), true
	}

	return Handoff{}, raw, false
}

// extractFragmentToken treats the fragment as query-encoded key/value pairs,
// the way hosted identity providers deliver token pairs.
func extractFragmentToken(fragment string) (string, string, bool) {
	if fragment == "" || !strings.Contains(fragment, handoffTokenParam+"=") {
		return "", fragment, false
	}

	values, err := url.ParseQuery(fragment)
	if err != nil {
		return "", fragment, false
	}

	token := values.Get(handoffTokenParam)
	if token == "" {
		return "", fragment, false
	}

	values.Del(handoffTokenParam)
	return token, values.Encode(), true
}
