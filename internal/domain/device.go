package domain

type (
	ChannelID string
	DeviceID  string
)

type DeviceStatus string

const (
	StatusOnline  DeviceStatus = "online"
	StatusOffline DeviceStatus = "offline"
)

// ParseDeviceStatus maps a wire status string onto a DeviceStatus.
// Anything that is not exactly "online" is treated as offline.
func ParseDeviceStatus(s string) DeviceStatus {
	if s == string(StatusOnline) {
		return StatusOnline
	}
	return StatusOffline
}
