package cmyk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2b33rs/codevision-backend/internal/cmyk"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		in      cmyk.Channels
		want    string
		wantErr error
	}{
		{
			name: "success",
			in:   cmyk.Channels{Cyan: 10, Magenta: 20, Yellow: 0, Black: 100},
			want: "cmyk(10%, 20%, 0%, 100%)",
		},
		{
			name: "white",
			in:   cmyk.White,
			want: "cmyk(0%, 0%, 0%, 0%)",
		},
		{
			name:    "above_range",
			in:      cmyk.Channels{Cyan: 101},
			wantErr: cmyk.ErrInvalidChannelRange,
		},
		{
			name:    "negative",
			in:      cmyk.Channels{Black: -1},
			wantErr: cmyk.ErrInvalidChannelRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cmyk.Encode(tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   cmyk.Channels
		wantOK bool
	}{
		{"compact", "cmyk(0%,0%,0%,0%)", cmyk.White, true},
		{"spaced", "cmyk( 12% , 21% , 1% , 0% )", cmyk.Channels{Cyan: 12, Magenta: 21, Yellow: 1}, true},
		{"upper_case", "CMYK(1%, 2%, 3%, 4%)", cmyk.Channels{Cyan: 1, Magenta: 2, Yellow: 3, Black: 4}, true},
		{"empty", "", cmyk.Channels{}, false},
		{"hex", "#ff00ff", cmyk.Channels{}, false},
		{"three_channels", "cmyk(1%, 2%, 3%)", cmyk.Channels{}, false},
		{"missing_percent", "cmyk(1, 2, 3, 4)", cmyk.Channels{}, false},
		{"out_of_range", "cmyk(101%, 0%, 0%, 0%)", cmyk.Channels{}, false},
		{"trailing_garbage", "cmyk(1%, 2%, 3%, 4%) x", cmyk.Channels{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := cmyk.Decode(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for v := 0; v <= 100; v++ {
		in := cmyk.Channels{Cyan: v, Magenta: 100 - v, Yellow: v / 2, Black: (v * 7) % 101}
		s, err := cmyk.Encode(in)
		require.NoError(t, err)

		out, ok := cmyk.Decode(s)
		require.True(t, ok, s)
		assert.Equal(t, in, out)
	}
}

func TestParse(t *testing.T) {
	_, err := cmyk.Parse("blue")
	assert.ErrorIs(t, err, cmyk.ErrInvalidColorSpec)

	c, err := cmyk.Parse("cmyk(0%, 0%, 0%, 30%)")
	require.NoError(t, err)
	assert.Equal(t, 30, c.Black)
}
