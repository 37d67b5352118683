package client

import "time"

// Script is one tracked script process as reported by the status endpoint.
type Script struct {
	PID       int32     `json:"pid"`
	Path      string    `json:"path"`
	StartedAt time.Time `json:"started_at"`
}

// RAM mirrors the memory section of the resource snapshot.
type RAM struct {
	TotalGB float64 `json:"total_gb"`
	UsedGB  float64 `json:"used_gb"`
	Percent float64 `json:"percent"`
}

// CPU mirrors the CPU section of the resource snapshot.
type CPU struct {
	UsagePercent  float64 `json:"usage_percent"`
	LogicalCores  int     `json:"logical_cores"`
	PhysicalCores int     `json:"physical_cores"`
}

// Drive mirrors one fixed-disk entry of the resource snapshot.
type Drive struct {
	Device  string  `json:"device"`
	TotalGB float64 `json:"total_gb"`
	UsedGB  float64 `json:"used_gb"`
	Percent float64 `json:"percent"`
}

// Resources is the host resource snapshot attached to a status response.
type Resources struct {
	RAM    RAM     `json:"ram"`
	CPU    CPU     `json:"cpu"`
	Drives []Drive `json:"drives"`
}

// Status is the response of GET /status.
type Status struct {
	LocalIP   string    `json:"local_ip"`
	Scripts   []Script  `json:"scripts"`
	Resources Resources `json:"resources"`
}
