package ws

// Wire contract: UTF-8 text frames hold a single JSON object with a
// "type" discriminator; binary frames hold raw audio bytes. Required
// fields are rejected at this parse boundary rather than checked ad
// hoc downstream.

type envelope struct {
	Type string `json:"type"`
}

type registerPayload struct {
	Type      string `json:"type"`
	ChannelID string `json:"channelId"`
	DeviceID  string `json:"deviceId"`
	Token     string `json:"token,omitempty"`
	Key       string `json:"key,omitempty"`
}

type streamRegisterPayload struct {
	Type      string `json:"type"`
	ChannelID string `json:"channelId"`
	Role      string `json:"role"`
	Token     string `json:"token,omitempty"`
	Key       string `json:"key,omitempty"`
}

type statusPayload struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

type ackMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
