package logger

import "testing"

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		" warn ":  LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestSetLevelGatesDebug(t *testing.T) {
	t.Cleanup(func() { SetLevel("info") })

	SetLevel("warn")
	if Enabled(LevelInfo) {
		t.Fatalf("info should be disabled at warn")
	}
	if !Enabled(LevelError) {
		t.Fatalf("error should be enabled at warn")
	}
	SetLevel("debug")
	if !Enabled(LevelDebug) {
		t.Fatalf("debug should be enabled at debug")
	}
}
