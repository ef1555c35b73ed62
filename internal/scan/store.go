// Package scan keeps simulated network scan results per target.
package scan

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/AzizK97/VarGuard/internal/models"
)

// ErrTargetRequired is returned when no scan target is given.
var ErrTargetRequired = errors.New("target required")

type entry struct {
	result models.ScanResult
	vulns  []models.Vulnerability
}

// Store holds the last scan of each target in memory.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{entries: make(map[string]entry), now: time.Now}
}

// Scan simulates a scan of target and records its result, replacing any
// previous one.
func (s *Store) Scan(target string) (models.ScanResult, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return models.ScanResult{}, ErrTargetRequired
	}

	scannedAt := s.now().UTC().Format(time.RFC3339Nano)
	result := models.ScanResult{
		TargetIP:  target,
		ScannedAt: scannedAt,
		Ports: []models.ScanPort{
			{Port: 22, Protocol: "tcp", State: "open", Service: "ssh"},
			{Port: 80, Protocol: "tcp", State: "open", Service: "http"},
			{Port: 443, Protocol: "tcp", State: "open", Service: "https"},
		},
		Raw: fmt.Sprintf("Nmap scan simulated for %s at %s", target, scannedAt),
	}
	vulns := []models.Vulnerability{{
		ID:           "CVE-2020-0001",
		Name:         "Example vuln on port 80",
		Description:  "Sample vulnerability",
		Severity:     "Medium",
		AffectedPort: 80,
	}}

	s.mu.Lock()
	s.entries[target] = entry{result: result, vulns: vulns}
	s.mu.Unlock()
	return result, nil
}

// Result returns the stored result for target, or an empty result stamped now
// when target was never scanned.
func (s *Store) Result(target string) (models.ScanResult, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return models.ScanResult{}, ErrTargetRequired
	}

	s.mu.RLock()
	e, ok := s.entries[target]
	s.mu.RUnlock()
	if !ok {
		return models.ScanResult{
			TargetIP:  target,
			ScannedAt: s.now().UTC().Format(time.RFC3339Nano),
			Ports:     []models.ScanPort{},
		}, nil
	}
	return e.result, nil
}

// Vulnerabilities returns the vulnerabilities found for target. Unknown
// targets have none.
func (s *Store) Vulnerabilities(target string) ([]models.Vulnerability, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, ErrTargetRequired
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[target]
	if !ok {
		return []models.Vulnerability{}, nil
	}
	return append([]models.Vulnerability(nil), e.vulns...), nil
}
