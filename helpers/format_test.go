package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPadNumber(t *testing.T) {
	assert.Equal(t, "05", PadNumber(5, 2))
	assert.Equal(t, "05", PadNumber(5, 0))
	assert.Equal(t, "123", PadNumber(123, 2))
	assert.Equal(t, "0007", PadNumber(7, 4))
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00"},
		{9.4, "00:09"},
		{59.6, "00:60"},
		{60, "01:00"},
		{125.2, "02:05"},
		{3600, "60:00"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTime(tt.seconds))
		})
	}
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, "a-b-a", FormatString("{0}-{1}-{0}", "a", "b"))
	assert.Equal(t, "x {1}", FormatString("{0} {1}", "x"))
}

func TestReplaceParameter(t *testing.T) {
	assert.Equal(t, "http://h/?token=new&x=1", ReplaceParameter("http://h/?token=old&x=1", "token", "new"))
	assert.Equal(t, "http://h/?token=t", ReplaceParameter("http://h/", "token", "t"))
	assert.Equal(t, "http://h/?x=1&token=t", ReplaceParameter("http://h/?x=1", "token", "t"))
}

func TestTrimToken(t *testing.T) {
	assert.Equal(t, "abc", TrimToken("abc//"))
	assert.Equal(t, "abc", TrimToken("abc"))
}
