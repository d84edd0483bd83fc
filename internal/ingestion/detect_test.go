package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsURL(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"https://suumo.jp/chintai/jnc_000012345678/", true},
		{"  http://example.com/room/1  ", true},
		{"ftp://example.com/file", false},
		{"suumo.jp/chintai", false},
		{"この物件 https://suumo.jp/x を分析して", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsURL(tt.input))
		})
	}
}

func TestFindURL(t *testing.T) {
	assert.Equal(t, "https://suumo.jp/chintai/jnc_1/", FindURL("この物件 https://suumo.jp/chintai/jnc_1/ を分析して"))
	assert.Equal(t, "https://www.airbnb.jp/rooms/42", FindURL("見て→https://www.airbnb.jp/rooms/42。よろしく"))
	assert.Equal(t, "", FindURL("東京都渋谷区の1LDK、家賃8万円"))
}
