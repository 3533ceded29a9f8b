package strategy

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"

	"github.com/alanyoungcy/basketbot/internal/crypto"
	"github.com/alanyoungcy/basketbot/internal/domain"
)

// persistedState is the JSON document carried in traderData:
//
//	{"price_history": {"KELP": [2031.5, 2032.0], ...}}
type persistedState struct {
	PriceHistory map[string][]float64
}

// MarshalEasyJSON writes products in sorted order so equal histories encode
// to equal strings.
func (s persistedState) MarshalEasyJSON(w *jwriter.Writer) {
	products := make([]string, 0, len(s.PriceHistory))
	for p := range s.PriceHistory {
		products = append(products, p)
	}
	sort.Strings(products)

	w.RawString(`{"price_history":{`)
	first := true
	for _, p := range products {
		values := s.PriceHistory[p]
		if len(values) == 0 {
			continue
		}
		if !first {
			w.RawByte(',')
		}
		first = false
		w.String(p)
		w.RawString(":[")
		n := 0
		for _, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			if n > 0 {
				w.RawByte(',')
			}
			w.Float64(v)
			n++
		}
		w.RawByte(']')
	}
	w.RawString("}}")
}

// UnmarshalEasyJSON reads the document written by MarshalEasyJSON. Unknown
// top-level fields are skipped.
func (s *persistedState) UnmarshalEasyJSON(in *jlexer.Lexer) {
	isTopLevel := in.IsStart()
	if in.IsNull() {
		if isTopLevel {
			in.Consumed()
		}
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "price_history":
			in.Delim('{')
			s.PriceHistory = make(map[string][]float64)
			for !in.IsDelim('}') {
				product := in.String()
				in.WantColon()
				var values []float64
				if in.IsNull() {
					in.Skip()
				} else {
					in.Delim('[')
					for !in.IsDelim(']') {
						values = append(values, in.Float64())
						in.WantComma()
					}
					in.Delim(']')
				}
				s.PriceHistory[product] = values
				in.WantComma()
			}
			in.Delim('}')
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	if isTopLevel {
		in.Consumed()
	}
}

// StateCodec converts between a PriceHistory and the traderData string.
type StateCodec struct {
	sealer *crypto.Sealer
}

// NewStateCodec returns a codec. A nil sealer writes plain JSON.
func NewStateCodec(sealer *crypto.Sealer) *StateCodec {
	return &StateCodec{sealer: sealer}
}

// Encode serializes every non-empty series in h.
func (c *StateCodec) Encode(h *PriceHistory) string {
	var st persistedState
	if h != nil {
		st.PriceHistory = h.series
	}
	w := jwriter.Writer{}
	st.MarshalEasyJSON(&w)
	payload, err := w.BuildBytes()
	if err != nil {
		// jwriter only fails on its own buffer allocation; fall back to an
		// empty document rather than a broken one.
		payload = []byte(`{"price_history":{}}`)
	}
	if c.sealer != nil {
		return c.sealer.Seal(payload)
	}
	return string(payload)
}

// Decode rebuilds a history bounded by caps. An empty blob is an empty
// history. On any failure Decode still returns a usable empty history, along
// with an error wrapping domain.ErrCorruptState for the caller to log.
func (c *StateCodec) Decode(blob string, caps Capacities) (*PriceHistory, error) {
	h := NewPriceHistory(caps)
	if strings.TrimSpace(blob) == "" {
		return h, nil
	}

	payload := []byte(blob)
	if c.sealer != nil {
		opened, err := c.sealer.Open(blob)
		if err != nil {
			return h, fmt.Errorf("strategy: decode state: %w: %v", domain.ErrCorruptState, err)
		}
		payload = opened
	}

	var st persistedState
	if err := easyjson.Unmarshal(payload, &st); err != nil {
		return h, fmt.Errorf("strategy: decode state: %w: %v", domain.ErrCorruptState, err)
	}
	for product, values := range st.PriceHistory {
		h.restore(product, values)
	}
	return h, nil
}
