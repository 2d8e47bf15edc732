package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateServerAddress(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"", true},
		{"   ", true},
		{"pool.ntp.org", true},
		{"time.google.com:123", true},
		{"192.168.1.1", true},
		{"192.168.1.1:123", true},
		{"::1", true},
		{"[::1]:123", true},
		{"ntp://pool.ntp.org", false},
		{"pool.ntp.org:0", false},
		{"pool.ntp.org:99999", false},
		{"pool.ntp.org:abc", false},
		{":123", false},
		{"pool ntp org", false},
		{"pool.ntp.org/path", false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateServerAddress(tt.addr))
		})
	}
}

func TestValidateLogOptions(t *testing.T) {
	assert.True(t, ValidateLogLevel("INFO"))
	assert.True(t, ValidateLogLevel("debug"))
	assert.False(t, ValidateLogLevel("trace"))

	assert.True(t, ValidateLogFormat("json"))
	assert.True(t, ValidateLogFormat("Text"))
	assert.False(t, ValidateLogFormat("xml"))

	assert.True(t, ValidateServerMode("release"))
	assert.False(t, ValidateServerMode("prod"))
}
