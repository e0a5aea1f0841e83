package config

import "testing"

func TestGetDefaultVolume(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want int
	}{
		{"empty", "", 80},
		{"invalid", "abc", 80},
		{"zero", "0", 0},
		{"negative", "-1", 0},
		{"mid", "55", 55},
		{"max", "100", 100},
		{"over", "150", 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DEFAULT_VOLUME", tt.env)
			if got := getDefaultVolume(); got != tt.want {
				t.Errorf("getDefaultVolume() = %d; want %d", got, tt.want)
			}
		})
	}
}

func TestGetLoadTimeout(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want int
	}{
		{"empty", "", 30},
		{"invalid", "foo", 30},
		{"zero", "0", 30},
		{"negative", "-10", 30},
		{"below_min", "2", 5},
		{"valid", "60", 60},
		{"over", "301", 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOAD_TIMEOUT_SECONDS", tt.env)
			if got := getLoadTimeout(); got != tt.want {
				t.Errorf("getLoadTimeout() = %d; want %d", got, tt.want)
			}
		})
	}
}

func TestGetHTTPTimeout(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want int
	}{
		{"empty", "", 10},
		{"invalid", "x", 10},
		{"valid", "20", 20},
		{"over", "500", 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HTTP_TIMEOUT_SECONDS", tt.env)
			if got := getHTTPTimeout(); got != tt.want {
				t.Errorf("getHTTPTimeout() = %d; want %d", got, tt.want)
			}
		})
	}
}

func TestGetAPIBase(t *testing.T) {
	t.Setenv("BILLY_API_BASE", "http://localhost:8000/api/")
	if got := getAPIBase(); got != "http://localhost:8000/api" {
		t.Errorf("getAPIBase() = %q", got)
	}

	t.Setenv("BILLY_API_BASE", "")
	if got := getAPIBase(); got != "http://musesync.ewi.tudelft.nl:8000/api" {
		t.Errorf("getAPIBase() default = %q", got)
	}
}

func TestGetLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	if got := getLogLevel(); got != "debug" {
		t.Errorf("getLogLevel() = %q; want debug", got)
	}
	t.Setenv("LOG_LEVEL", "verbose")
	if got := getLogLevel(); got != "info" {
		t.Errorf("getLogLevel() = %q; want info", got)
	}
}

func TestCookieName(t *testing.T) {
	t.Setenv("PORT", "9000")
	NewConfig()
	if got := Config.Options.CookieName(); got != "token9000" {
		t.Errorf("CookieName() = %q; want token9000", got)
	}
}

func TestGetAudioOutput(t *testing.T) {
	t.Setenv("AUDIO_OUTPUT", "discard")
	if got := getAudioOutput(); got != OutputDiscard {
		t.Errorf("getAudioOutput() = %q", got)
	}
	t.Setenv("AUDIO_OUTPUT", "pulse")
	if got := getAudioOutput(); got != OutputFFPlay {
		t.Errorf("getAudioOutput() = %q", got)
	}
}
