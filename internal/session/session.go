package session

import (
	"encoding/json"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the state of one bytebuggy run. It is created once the monitor
// interface is leased and handed to the scanner and orchestrator explicitly.
type Session struct {
	ID             string    `json:"id"`
	Interface      string    `json:"interface"`
	AttackerMAC    string    `json:"attacker_mac,omitempty"`
	StartTime      time.Time `json:"start_time"`
	AttackedBSSIDs []string  `json:"attacked_bssids"`
	CrackedBSSIDs  []string  `json:"cracked_bssids"`
	CurrentTarget  string    `json:"current_target,omitempty"`

	path       string
	mu         sync.Mutex
	interrupts chan struct{}
}

// New creates a session bound to a monitor interface. An empty path keeps the
// session in memory only.
func New(iface, attackerMAC, path string) *Session {
	return &Session{
		ID:          uuid.NewString(),
		Interface:   iface,
		AttackerMAC: strings.ToUpper(attackerMAC),
		StartTime:   time.Now(),
		path:        path,
		interrupts:  make(chan struct{}, 1),
	}
}

// Load reads a previous session from disk.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	s := &Session{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	s.path = path
	s.interrupts = make(chan struct{}, 1)
	return s, nil
}

func (s *Session) Save() error {
	if s.path == "" {
		return nil
	}
	s.mu.Lock()
	data, err := json.MarshalIndent(s, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Interrupt records an operator interrupt. Several interrupts before the next
// poll collapse into one.
func (s *Session) Interrupt() {
	select {
	case s.interrupts <- struct{}{}:
	default:
	}
}

// Interrupted consumes a pending interrupt.
func (s *Session) Interrupted() bool {
	select {
	case <-s.interrupts:
		return true
	default:
		return false
	}
}

func (s *Session) SetCurrent(bssid string) {
	s.mu.Lock()
	s.CurrentTarget = bssid
	s.mu.Unlock()
	_ = s.Save()
}

// MarkAttacked records that a BSSID has been attempted.
func (s *Session) MarkAttacked(bssid string) {
	if s.add(&s.AttackedBSSIDs, bssid) {
		_ = s.Save()
	}
}

// MarkCracked records that a BSSID was successfully cracked.
func (s *Session) MarkCracked(bssid string) {
	if s.add(&s.CrackedBSSIDs, bssid) {
		_ = s.Save()
	}
}

func (s *Session) add(list *[]string, bssid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	bssid = strings.ToUpper(bssid)
	if slices.Contains(*list, bssid) {
		return false
	}
	*list = append(*list, bssid)
	return true
}

func (s *Session) WasAttacked(bssid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.AttackedBSSIDs, strings.ToUpper(bssid))
}

func (s *Session) WasCracked(bssid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.CrackedBSSIDs, strings.ToUpper(bssid))
}

// Clean removes the session file.
func (s *Session) Clean() {
	if s.path != "" {
		os.Remove(s.path)
	}
}
