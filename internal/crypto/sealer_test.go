package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealRoundTrip(t *testing.T) {
	s := NewSealer("s3cret")
	blob := s.Seal([]byte(`{"price_history":{}}`))
	require.Contains(t, blob, ".")

	got, err := s.Open(blob)
	require.NoError(t, err)
	require.Equal(t, `{"price_history":{}}`, string(got))
}

func TestOpenRejects(t *testing.T) {
	s := NewSealer("s3cret")
	blob := s.Seal([]byte("payload"))
	_, tag, _ := strings.Cut(blob, ".")

	_, err := NewSealer("other").Open(blob)
	require.ErrorIs(t, err, ErrSealMismatch)

	otherBody, _, _ := strings.Cut(s.Seal([]byte("changed")), ".")
	_, err = s.Open(otherBody + "." + tag)
	require.ErrorIs(t, err, ErrSealMismatch)

	_, err = s.Open("no-separator")
	require.ErrorContains(t, err, "missing seal")

	_, err = s.Open("!!!." + tag)
	require.ErrorContains(t, err, "decode payload")
}

func TestNewSealerEmptySecret(t *testing.T) {
	require.Nil(t, NewSealer(""))
}
