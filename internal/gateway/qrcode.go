package gateway

import (
	"encoding/base64"

	"github.com/rs/zerolog/log"
	"rsc.io/qr"
)

const qrDataURIPrefix = "data:image/png;base64,"

// EncodeQRDataURI renders payload as a PNG data URI, falling back to the raw
// payload when it cannot be encoded.
func EncodeQRDataURI(payload string) string {
	if payload == "" {
		return ""
	}
	code, err := qr.Encode(payload, qr.M)
	if err != nil {
		log.Warn().Err(err).Msg("qr encode failed, returning raw payload")
		return payload
	}
	return qrDataURIPrefix + base64.StdEncoding.EncodeToString(code.PNG())
}
