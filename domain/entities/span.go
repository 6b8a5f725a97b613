package entities

// Trimmed models for messages forwarded by the Span LPWAN gateway webhook.
// Only the fields the log viewer cares about are kept; everything else the
// gateway sends is dropped at the door.

// SpanDeviceRef identifies the sending device as the gateway sees it.
type SpanDeviceRef struct {
	DeviceID     string            `json:"deviceId" bson:"deviceId"`
	CollectionID string            `json:"collectionId" bson:"collectionId"`
	IMEI         string            `json:"imei,omitempty" bson:"imei,omitempty"`
	IMSI         string            `json:"imsi,omitempty" bson:"imsi,omitempty"`
	Tags         map[string]string `json:"tags,omitempty" bson:"tags,omitempty"`
}

// SpanCoapMetaData carries CoAP transport details for a gateway message.
type SpanCoapMetaData struct {
	Method string `json:"method,omitempty" bson:"method,omitempty"`
	Path   string `json:"path,omitempty" bson:"path,omitempty"`
}

// SpanUdpMetaData carries UDP transport details for a gateway message.
type SpanUdpMetaData struct {
	LocalPort  string `json:"localPort,omitempty" bson:"localPort,omitempty"`
	RemotePort string `json:"remotePort,omitempty" bson:"remotePort,omitempty"`
}

// SpanMessage is one gateway message, persisted verbatim to the logs
// collection for operator debugging.
type SpanMessage struct {
	Device       SpanDeviceRef     `json:"device" bson:"device"`
	Payload      string            `json:"payload" bson:"payload"`
	Received     int64             `json:"received" bson:"received"`
	Type         string            `json:"type" bson:"type"`
	Transport    string            `json:"transport" bson:"transport"`
	CoapMetaData *SpanCoapMetaData `json:"coapMetaData,omitempty" bson:"coapMetaData,omitempty"`
	UdpMetaData  *SpanUdpMetaData  `json:"udpMetaData,omitempty" bson:"udpMetaData,omitempty"`
}

// SpanWebhookPayload is the envelope the gateway POSTs to the webhook.
type SpanWebhookPayload struct {
	Messages []SpanMessage `json:"messages"`
}
