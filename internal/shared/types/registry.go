package types

import "time"

// ContainerStatus describes one package the registry tried to open
type ContainerStatus struct {
	Name       string    `json:"name"`       // Packed name, without extension
	Descriptor string    `json:"descriptor"` // Owning descriptor
	Path       string    `json:"path"`
	Open       bool      `json:"open"`
	Error      string    `json:"error,omitempty"`
	OpenedAt   time.Time `json:"opened_at,omitempty"`
}

// RegistryStats contains registry statistics
type RegistryStats struct {
	Descriptors int               `json:"descriptors"`
	Records     int               `json:"records"`
	Open        int               `json:"open"`
	Unavailable int               `json:"unavailable"`
	Containers  []ContainerStatus `json:"containers"`
}
