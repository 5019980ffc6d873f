// Package bip21 parses and formats BIP-0021 bitcoin payment URIs, including
// the lightning parameter used by unified QR codes.
package bip21

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	decodepay "github.com/nbd-wtf/ln-decodepay"
)

const scheme = "bitcoin"

// PaymentRequest is the decoded form of a bitcoin: URI.
type PaymentRequest struct {
	Address string
	Amount  uint64 // satoshis, 0 when absent
	Label   string
	Message string
	// Lightning holds the decoded BOLT11 invoice carried by the
	// lightning parameter, if any.
	Lightning *decodepay.Bolt11
	// OtherParams preserves unrecognized non-required parameters.
	OtherParams map[string]string
}

// IsURI reports whether s looks like a bitcoin: URI.
func IsURI(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), scheme+":")
}

// Parse decodes a bitcoin: URI and validates the address against the given
// network. Unknown req- parameters are rejected as BIP-0021 mandates.
func Parse(uri string, params *chaincfg.Params) (*PaymentRequest, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid payment uri: %w", err)
	}
	if !strings.EqualFold(u.Scheme, scheme) {
		return nil, fmt.Errorf("invalid payment uri scheme: %s", u.Scheme)
	}

	addr := u.Opaque
	if addr == "" {
		// tolerate bitcoin://<addr> form
		addr = u.Host
	}
	if addr == "" {
		return nil, fmt.Errorf("missing address in payment uri")
	}
	if _, err := btcutil.DecodeAddress(addr, params); err != nil {
		return nil, fmt.Errorf("invalid address '%s' in payment uri: %w", addr, err)
	}

	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("invalid payment uri query: %w", err)
	}

	req := &PaymentRequest{Address: addr, OtherParams: make(map[string]string)}
	for key, values := range query {
		if len(values) == 0 {
			continue
		}
		value := values[0]

		switch strings.ToLower(key) {
		case "amount":
			btc, err := strconv.ParseFloat(value, 64)
			if err != nil || btc < 0 {
				return nil, fmt.Errorf("invalid amount '%s' in payment uri", value)
			}
			amount, err := btcutil.NewAmount(btc)
			if err != nil {
				return nil, fmt.Errorf("invalid amount '%s' in payment uri: %w", value, err)
			}
			req.Amount = uint64(amount)
		case "label":
			req.Label = value
		case "message":
			req.Message = value
		case "lightning":
			invoice, err := decodepay.Decodepay(value)
			if err != nil {
				return nil, fmt.Errorf("invalid lightning invoice in payment uri: %w", err)
			}
			req.Lightning = &invoice
		default:
			if strings.HasPrefix(strings.ToLower(key), "req-") {
				return nil, fmt.Errorf("unsupported required parameter '%s' in payment uri", key)
			}
			req.OtherParams[key] = value
		}
	}

	return req, nil
}

// Format renders a PaymentRequest back to its URI form.
func Format(req PaymentRequest) string {
	var sb strings.Builder
	sb.WriteString(scheme + ":" + req.Address)

	query := url.Values{}
	if req.Amount > 0 {
		query.Set("amount", strconv.FormatFloat(
			btcutil.Amount(req.Amount).ToBTC(), 'f', -1, 64,
		))
	}
	if req.Label != "" {
		query.Set("label", req.Label)
	}
	if req.Message != "" {
		query.Set("message", req.Message)
	}
	for key, value := range req.OtherParams {
		query.Set(key, value)
	}

	if encoded := query.Encode(); encoded != "" {
		sb.WriteString("?" + encoded)
	}
	return sb.String()
}
