package models

type ScanPort struct {
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	State    string `json:"state"`
	Service  string `json:"service,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type ScanResult struct {
	TargetIP  string     `json:"targetIp"`
	ScannedAt string     `json:"scannedAt"`
	Ports     []ScanPort `json:"ports"`
	Raw       string     `json:"raw,omitempty"`
}

type Vulnerability struct {
	ID           string  `json:"id,omitempty"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	Severity     string  `json:"severity,omitempty"`
	AffectedPort int     `json:"affectedPort,omitempty"`
	CVSS         float64 `json:"cvss,omitempty"`
	Reference    string  `json:"reference,omitempty"`
}
