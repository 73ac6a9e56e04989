package logging

import (
	"testing"

	"github.com/hashicorp/go-hclog"
)

func TestLevelFromEnv(t *testing.T) {
	cases := []struct {
		raw  string
		want hclog.Level
	}{
		{"", hclog.Off},
		{"debug", hclog.Debug},
		{"TRACE", hclog.Trace},
		{"nonsense", hclog.Off},
	}
	for _, c := range cases {
		t.Setenv(EnvLog, c.raw)
		if got := levelFromEnv(); got != c.want {
			t.Errorf("levelFromEnv(%q) = %v, want %v", c.raw, got, c.want)
		}
	}
}
