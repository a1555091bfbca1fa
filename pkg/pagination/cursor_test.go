package pagination

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustB64(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

func TestEncodeDecodeCursor_RoundTrip(t *testing.T) {
	c := Cursor{Did: "ds-123", U: UnitUsers, Off: 200, Ps: 100, Rows: 5000, K: 4, Seed: 42}
	tok, err := EncodeCursor(c)
	require.NoError(t, err)
	require.False(t, strings.ContainsAny(tok, "+/="), "token must be url-safe: %q", tok)

	out, err := DecodeCursor(tok)
	require.NoError(t, err)
	require.Equal(t, 1, out.V)
	require.NotZero(t, out.Iat)
	require.Equal(t, c.Did, out.Did)
	require.Equal(t, c.Off, out.Off)
	require.Equal(t, c.Ps, out.Ps)
	require.Equal(t, uint64(42), out.Seed)
	require.True(t, out.Matches("ds-123", 5000))
	require.False(t, out.Matches("ds-123", 5001))
	require.False(t, out.Matches("other", 5000))
}

func TestDecodeCursor_Invalid(t *testing.T) {
	cases := []string{
		"",
		"!!!",
		mustB64("not-json"),
		mustB64(`{"v":1}`),
		mustB64(`{"v":1,"did":"","u":"users","off":0,"ps":10}`),
		mustB64(`{"v":1,"did":"x","u":"cells","off":0,"ps":10}`),
		mustB64(`{"v":1,"did":"x","u":"users","off":-1,"ps":10}`),
		mustB64(`{"v":1,"did":"x","u":"users","off":0,"ps":0}`),
		mustB64(`{"v":1,"did":"x","u":"users","off":0,"ps":5,"n":-3}`),
	}
	for i, tok := range cases {
		_, err := DecodeCursor(tok)
		require.Error(t, err, "case %d: %q", i, tok)
	}
}

func TestWindow(t *testing.T) {
	tests := []struct {
		off, ps, total   int
		start, end, next int
	}{
		{0, 10, 25, 0, 10, 10},
		{20, 10, 25, 20, 25, -1},
		{0, 10, 10, 0, 10, -1},
		{30, 10, 25, 25, 25, -1},
		{-5, 3, 4, 0, 3, 3},
		{0, 0, 4, 0, 4, -1},
	}
	for _, tt := range tests {
		s, e, n := Window(tt.off, tt.ps, tt.total)
		require.Equal(t, []int{tt.start, tt.end, tt.next}, []int{s, e, n}, "%+v", tt)
	}
}

func TestNextOffset(t *testing.T) {
	require.Equal(t, 0, NextOffset(-3, 0))
	require.Equal(t, 15, NextOffset(5, 10))
	require.Equal(t, 5, NextOffset(5, -1))
}

func FuzzDecodeCursor(f *testing.F) {
	for _, s := range []string{"", "abc", mustB64(`{"v":1}`), mustB64(`{"did":"x","u":"users","ps":1}`)} {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, s string) {
		_, _ = DecodeCursor(s)
	})
}
