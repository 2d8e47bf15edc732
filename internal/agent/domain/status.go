package domain

import "fmt"

// ServerStatus is the upstream uploader state reported by the sending subsystem.
type ServerStatus int

const (
	ServerConnecting ServerStatus = iota
	ServerConnected
	ServerDisconnected
	ServerUploading
	ServerDisabled
	ServerReady
	ServerUploadingFailed
	ServerUnauthorized
)

var serverStatusNames = map[ServerStatus]string{
	ServerConnecting:      "CONNECTING",
	ServerConnected:       "CONNECTED",
	ServerDisconnected:    "DISCONNECTED",
	ServerUploading:       "UPLOADING",
	ServerDisabled:        "DISABLED",
	ServerReady:           "READY",
	ServerUploadingFailed: "UPLOADING_FAILED",
	ServerUnauthorized:    "UNAUTHORIZED",
}

func (s ServerStatus) String() string {
	if name, ok := serverStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ServerStatus(%d)", int(s))
}

// ParseServerStatus accepts the upstream name (e.g. "UPLOADING_FAILED").
func ParseServerStatus(name string) (ServerStatus, error) {
	for status, n := range serverStatusNames {
		if n == name {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown server status %q", name)
}

// ConnectivityStatus is the reported tri-state view of ServerStatus.
type ConnectivityStatus string

const (
	Connected    ConnectivityStatus = "CONNECTED"
	Disconnected ConnectivityStatus = "DISCONNECTED"
	Unknown      ConnectivityStatus = "UNKNOWN"
)

// Connectivity maps any upstream status, known or not, to a ConnectivityStatus.
func (s ServerStatus) Connectivity() ConnectivityStatus {
	switch s {
	case ServerConnected, ServerReady, ServerUploading:
		return Connected
	case ServerDisconnected, ServerDisabled, ServerUploadingFailed:
		return Disconnected
	default:
		return Unknown
	}
}
