package chunk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRefine(t *testing.T) {
	tests := map[string]struct {
		body []byte
		want []byte
	}{
		"no marker": {
			body: []byte("payload"),
			want: []byte("payload"),
		},
		"empty": {
			body: []byte{},
			want: []byte{},
		},
		"single marker": {
			body: concat([]byte("garbage"), beginMarker[:], []byte("real")),
			want: []byte("real"),
		},
		"last marker wins": {
			body: concat([]byte("a"), beginMarker[:], []byte("b"), beginMarker[:], []byte("c")),
			want: []byte("c"),
		},
		"marker at end": {
			body: concat([]byte("garbage"), beginMarker[:]),
			want: []byte{},
		},
		"partial marker is payload": {
			body: concat(beginMarker[:DelimiterSize-1], []byte("x")),
			want: concat(beginMarker[:DelimiterSize-1], []byte("x")),
		},
		"end marker is ignored": {
			body: concat([]byte("a"), endMarker[:], []byte("b")),
			want: concat([]byte("a"), endMarker[:], []byte("b")),
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, test.want, Refine(test.body))
		})
	}
}
