package domain

// PresenceSnapshot is the aggregate online/offline view of one channel's
// devices at a point in time. Computed on demand, never persisted here.
//
// Online may exceed the directory count: a device can hold an open
// connection before its id was ever persisted, so Total is taken as
// max(directory count, Online) and Offline never goes negative.
type PresenceSnapshot struct {
	ChannelID         ChannelID  `json:"channelId"`
	Total             int        `json:"total"`
	Online            int        `json:"online"`
	Offline           int        `json:"offline"`
	OnlineDevices     []DeviceID `json:"onlineDevices"`
	RegisteredDevices []DeviceID `json:"registeredDevices"`
}
