package auth

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefLogger_FormatsKeyValues(t *testing.T) {
	tests := []struct {
		name string
		log  func(Logger)
		want string
	}{
		{
			name: "message only",
			log:  func(l Logger) { l.Info("listening") },
			want: "[INF] AUTH listening\n",
		},
		{
			name: "pairs",
			log:  func(l Logger) { l.Error("Register lookup error", "error", errors.New("db down"), "attempt", 2) },
			want: "[ERR] AUTH Register lookup error error=db down attempt=2\n",
		},
		{
			name: "dangling key",
			log:  func(l Logger) { l.Warn("revoke failed", "jti") },
			want: "[WRN] AUTH revoke failed !BADKEY=jti\n",
		},
		{
			name: "trailing newline kept single",
			log:  func(l Logger) { l.Debug("tick\n", "n", 1) },
			want: "[DBG] AUTH tick n=1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(defLogger{out: &buf})
			assert.Equal(t, tt.want, buf.String())
			assert.NotContains(t, buf.String(), "%!")
		})
	}
}

func TestNormalizeLogger(t *testing.T) {
	assert.IsType(t, defLogger{}, normalizeLogger(nil))

	l := defLogger{out: &bytes.Buffer{}}
	assert.Equal(t, l, normalizeLogger(l))
}
