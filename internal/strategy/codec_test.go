package strategy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/basketbot/internal/crypto"
	"github.com/alanyoungcy/basketbot/internal/domain"
)

func TestStateCodecEncodesSortedDocument(t *testing.T) {
	h := NewPriceHistory(fixedCaps{"KELP": 10, "AMBER": 10})
	h.Update("KELP", 2031.5, true)
	h.Update("KELP", 2032, true)
	h.Update("AMBER", 7, true)

	got := NewStateCodec(nil).Encode(h)
	require.Equal(t, `{"price_history":{"AMBER":[7],"KELP":[2031.5,2032]}}`, got)
}

func TestStateCodecEmpty(t *testing.T) {
	c := NewStateCodec(nil)
	require.Equal(t, `{"price_history":{}}`, c.Encode(nil))

	h, err := c.Decode("", fixedCaps{})
	require.NoError(t, err)
	require.Empty(t, h.Products())
}

func TestStateCodecRoundTripRespectsCapacity(t *testing.T) {
	c := NewStateCodec(nil)
	h, err := c.Decode(`{"price_history":{"KELP":[1,2,3,4]},"extra":{"ignored":true}}`, fixedCaps{"KELP": 2})
	require.NoError(t, err)
	require.Equal(t, []float64{3, 4}, h.Read("KELP"))
}

func TestStateCodecCorruptBlob(t *testing.T) {
	c := NewStateCodec(nil)
	for _, blob := range []string{"not json", `{"price_history":[1,2]}`, `{"price_history":{"KELP":["x"]}}`} {
		h, err := c.Decode(blob, fixedCaps{"KELP": 5})
		require.ErrorIs(t, err, domain.ErrCorruptState, blob)
		require.NotNil(t, h)
		require.Empty(t, h.Products())
	}
}

func TestSealedStateCodec(t *testing.T) {
	c := NewStateCodec(crypto.NewSealer("s3cret"))
	h := NewPriceHistory(fixedCaps{"KELP": 5})
	h.Update("KELP", 10, true)

	blob := c.Encode(h)
	require.Contains(t, blob, ".")

	back, err := c.Decode(blob, fixedCaps{"KELP": 5})
	require.NoError(t, err)
	require.Equal(t, []float64{10}, back.Read("KELP"))

	body, tag, _ := strings.Cut(blob, ".")
	tampered := body + "." + strings.Repeat("A", len(tag))
	_, err = c.Decode(tampered, fixedCaps{"KELP": 5})
	require.ErrorIs(t, err, domain.ErrCorruptState)

	_, err = c.Decode(`{"price_history":{"KELP":[1]}}`, fixedCaps{"KELP": 5})
	require.ErrorIs(t, err, domain.ErrCorruptState, "unsealed blob must be rejected when sealing is on")

	other := NewStateCodec(crypto.NewSealer("different"))
	_, err = other.Decode(blob, fixedCaps{"KELP": 5})
	require.ErrorIs(t, err, domain.ErrCorruptState)
}
