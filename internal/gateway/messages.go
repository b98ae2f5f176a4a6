package gateway

import (
	"encoding/json"
	"log"

	"srtrader/internal/model"
)

// ClientMsg is any message a WS client sends.
//
//	{"type":"SUBSCRIBE","req_id":"1","series":["6003"]}
//	{"type":"UNSUBSCRIBE","series":["6003"]}
//	{"type":"PING","ping":1700000000000}
type ClientMsg struct {
	Type   string   `json:"type"`
	ReqID  string   `json:"req_id,omitempty"`
	Series []string `json:"series,omitempty"`
	Ping   int64    `json:"ping,omitempty"`
}

// AckResponse confirms a subscription change with the resulting set.
type AckResponse struct {
	Type   string   `json:"type"`
	ReqID  string   `json:"req_id,omitempty"`
	Series []string `json:"series"`
}

// PongResponse answers a PING.
type PongResponse struct {
	Type     string `json:"type"`
	Ping     int64  `json:"ping"`
	ServerTS int64  `json:"server_ts"`
}

// ErrorResponse is sent on a malformed or rejected client message.
type ErrorResponse struct {
	Type  string `json:"type"`
	ReqID string `json:"req_id,omitempty"`
	Error string `json:"error"`
}

// SeriesInfo is one entry of GET /api/series.
type SeriesInfo struct {
	model.Series
	Channel string `json:"channel"`
	Seq     int64  `json:"seq"`
}

func seriesID(s string) model.SeriesID { return model.SeriesID(s) }

// SendJSON marshals and sends a message to the client's send channel.
func SendJSON(c *Client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[gateway] json marshal error: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Println("[gateway] client send buffer full, dropping message")
	}
}

// SendError sends an error response to the client.
func SendError(c *Client, reqID, errMsg string) {
	SendJSON(c, ErrorResponse{
		Type:  "ERROR",
		ReqID: reqID,
		Error: errMsg,
	})
}

// metricsEnvelope is pushed to every client on each metrics tick.
type metricsEnvelope struct {
	Type    string        `json:"type"`
	Metrics SystemMetrics `json:"metrics"`
}
