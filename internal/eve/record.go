// Package eve decodes Suricata EVE JSON log lines into normalized alerts.
package eve

// Record is one decoded EVE log line. Only the fields the dashboard needs are kept.
type Record struct {
	EventType        string       `json:"event_type"`
	Timestamp        string       `json:"timestamp"`
	FlowID           int64        `json:"flow_id"`
	SrcIP            string       `json:"src_ip"`
	DestIP           string       `json:"dest_ip"`
	SrcPort          int          `json:"src_port"`
	DestPort         int          `json:"dest_port"`
	Proto            string       `json:"proto"`
	Alert            *AlertRecord `json:"alert"`
	Payload          string       `json:"payload"`
	PayloadPrintable string       `json:"payload_printable"`
}

// AlertRecord is the nested "alert" object of an alert event.
type AlertRecord struct {
	Action           string `json:"action"`
	GID              int64  `json:"gid"`
	SignatureID      int64  `json:"signature_id"`
	Rev              int64  `json:"rev"`
	Signature        string `json:"signature"`
	Category         string `json:"category"`
	Severity         int    `json:"severity"`
	PayloadPrintable string `json:"payload_printable"`
}

const eventTypeAlert = "alert"
