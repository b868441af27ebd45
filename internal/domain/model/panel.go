package model

import "time"

// PanelAccount is the remote VPN account as seen by the rest of the system.
// ExpiresAt == nil means the panel holds no expiry (unlimited or unset).
type PanelAccount struct {
	Username        string
	Status          string
	ExpiresAt       *time.Time
	DataLimit       int64
	UsedTraffic     int64
	SubscriptionURL string
	Links           []string
}

type PanelInbound struct {
	Tag      string
	Protocol string
	Network  string
	Port     int
}

type PanelNode struct {
	ID      int64
	Name    string
	Address string
	Status  string
	Message string
}

type PanelSystemStats struct {
	Version       string
	MemTotal      int64
	MemUsed       int64
	CPUCores      int
	CPUUsage      float64
	TotalUsers    int64
	UsersActive   int64
	IncomingBytes int64
	OutgoingBytes int64
}
