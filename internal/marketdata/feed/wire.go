package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"srtrader/internal/model"
)

// Message is the bridge wire format:
//
//	{"reqId":6003,"t":1709305200000,"o":"101.5","h":"102","l":"101","c":"101.75"}
//
// t is epoch milliseconds; a null or absent t is the batch-complete sentinel.
// Prices may be JSON numbers or numeric strings.
type Message struct {
	ReqID json.RawMessage `json:"reqId"`
	T     *json.Number    `json:"t"`
	O     *Price          `json:"o,omitempty"`
	H     *Price          `json:"h,omitempty"`
	L     *Price          `json:"l,omitempty"`
	C     *Price          `json:"c,omitempty"`
}

// Price accepts 101.5 as well as "101.5".
type Price float64

func (p *Price) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("price %q: %w", b, err)
	}
	*p = Price(f)
	return nil
}

// MarshalJSON writes prices as strings, like the bridge does.
func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatFloat(float64(p), 'f', -1, 64) + `"`), nil
}

// Decode turns one wire message into an event. Every failure wraps
// model.ErrMalformedBar.
func Decode(raw []byte) (model.Event, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return model.Event{}, fmt.Errorf("%w: %v", model.ErrMalformedBar, err)
	}

	series := seriesID(m.ReqID)
	if series == "" {
		return model.Event{}, fmt.Errorf("%w: missing reqId", model.ErrMalformedBar)
	}
	if m.T == nil {
		return model.BatchComplete(series), nil
	}

	ms, err := m.T.Int64()
	if err != nil {
		f, ferr := m.T.Float64()
		if ferr != nil {
			return model.Event{}, fmt.Errorf("%w: series %s: bad timestamp %q", model.ErrMalformedBar, series, m.T.String())
		}
		ms = int64(f)
	}
	if ms <= 0 {
		return model.Event{}, fmt.Errorf("%w: series %s: non-positive timestamp %d", model.ErrMalformedBar, series, ms)
	}
	if m.O == nil || m.H == nil || m.L == nil || m.C == nil {
		return model.Event{}, fmt.Errorf("%w: series %s: missing price field", model.ErrMalformedBar, series)
	}

	b := model.Bar{
		Series: series,
		TS:     time.UnixMilli(ms).UTC(),
		Open:   float64(*m.O),
		High:   float64(*m.H),
		Low:    float64(*m.L),
		Close:  float64(*m.C),
	}
	if err := b.Validate(); err != nil {
		return model.Event{}, err
	}
	return model.DataPoint(b), nil
}

// Encode renders an event in wire format.
func Encode(ev model.Event) []byte {
	m := Message{ReqID: encodeReqID(ev.Series)}
	if ev.Kind == model.KindDataPoint {
		t := json.Number(strconv.FormatInt(ev.Bar.TS.UnixMilli(), 10))
		o, h, l, c := Price(ev.Bar.Open), Price(ev.Bar.High), Price(ev.Bar.Low), Price(ev.Bar.Close)
		m.T, m.O, m.H, m.L, m.C = &t, &o, &h, &l, &c
	}
	out, _ := json.Marshal(m)
	return out
}

// seriesID accepts a numeric or string reqId.
func seriesID(raw json.RawMessage) model.SeriesID {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return ""
		}
		return model.SeriesID(s)
	}
	return model.SeriesID(raw)
}

func encodeReqID(id model.SeriesID) json.RawMessage {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return json.RawMessage(id)
	}
	b, _ := json.Marshal(string(id))
	return b
}
