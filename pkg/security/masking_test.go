package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "wallet address",
			in:   "insufficient balance for 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
			want: "insufficient balance for 0x5aAe...eAed",
		},
		{
			name: "api key",
			in:   `{"error":"bad request","api_key":"sk_live_0123456789abcdef"}`,
			want: `{"error":"bad request","api_key: ***REDACTED***}`,
		},
		{
			name: "bearer token",
			in:   "rejected Bearer abcdefghijklmnop",
			want: "rejected Bearer ***REDACTED***",
		},
		{
			name: "nothing sensitive",
			in:   "route expired",
			want: "route expired",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskString(tt.in))
		})
	}
}

func TestMaskWalletAddress(t *testing.T) {
	assert.Equal(t, "0xfB69...d359", MaskWalletAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"))
	assert.Equal(t, "0x****", MaskWalletAddress("0x12"))
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "sk_l****", MaskAPIKey("sk_live_"))
	assert.Equal(t, "****", MaskAPIKey("abc"))
}
