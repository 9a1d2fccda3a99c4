package billing

import (
	"fmt"
	"strconv"
	"strings"
)

// Invoice payloads are versioned and colon-delimited:
//
//	v1:<kind>:<user-id>:<nonce>:<product-id>
//
// The product id goes last because it is the only field that may itself
// contain the delimiter; SplitN keeps it intact. One encoder and one parser
// serve every issuance and fulfillment path.
const payloadVersion = "v1"

type Payload struct {
	Kind      string
	UserID    int64
	Nonce     string
	ProductID string
}

func EncodePayload(p Payload) (string, error) {
	if !IsKnownKind(p.Kind) {
		return "", ErrUnsupportedKind
	}
	if p.UserID <= 0 || strings.TrimSpace(p.ProductID) == "" || strings.TrimSpace(p.Nonce) == "" {
		return "", ErrMalformedPayload
	}

	return strings.Join([]string{
		payloadVersion,
		p.Kind,
		strconv.FormatInt(p.UserID, 10),
		p.Nonce,
		p.ProductID,
	}, ":"), nil
}

func ParsePayload(raw string) (Payload, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 5)
	if len(parts) != 5 {
		return Payload{}, fmt.Errorf("%w: expected 5 fields", ErrMalformedPayload)
	}
	if parts[0] != payloadVersion {
		return Payload{}, fmt.Errorf("%w: unsupported version %q", ErrMalformedPayload, parts[0])
	}

	userID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || userID <= 0 {
		return Payload{}, fmt.Errorf("%w: bad user id", ErrMalformedPayload)
	}

	p := Payload{
		Kind:      parts[1],
		UserID:    userID,
		Nonce:     parts[3],
		ProductID: parts[4],
	}
	if p.Kind == "" || p.Nonce == "" || p.ProductID == "" {
		return Payload{}, fmt.Errorf("%w: empty field", ErrMalformedPayload)
	}

	return p, nil
}
