package gateway

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeQRDataURI(t *testing.T) {
	t.Run("renders png data uri", func(t *testing.T) {
		uri := EncodeQRDataURI("2@abc,def,ghi,jkl")
		require.True(t, strings.HasPrefix(uri, qrDataURIPrefix))

		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, qrDataURIPrefix))
		require.NoError(t, err)
		assert.Equal(t, "\x89PNG", string(raw[:4]))
	})

	t.Run("empty payload stays empty", func(t *testing.T) {
		assert.Equal(t, "", EncodeQRDataURI(""))
	})
}
