// Package registry keeps the in-memory set of advertised matches and their heartbeat freshness.
package registry

import (
	"cmp"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/matchlist/internal/models"
)

const (
	// ActiveWindow is how long after its last heartbeat a match stays listed.
	ActiveWindow = 120 * time.Second

	// RecentWindow is how long after its last heartbeat a match is flagged as recent.
	RecentWindow = 30 * time.Second

	// MaxListed caps the number of matches returned by List.
	MaxListed = 100

	// DefaultMaxPlayers is used when a registration does not carry a capacity.
	DefaultMaxPlayers = 8
)

// Event kinds emitted to the Sink.
const (
	EventRegistered   = "registered"
	EventUnregistered = "unregistered"
	EventExpired      = "expired"
)

// Locator resolves an address to an ISO country code, empty when unknown.
type Locator interface {
	GetCountryCode(ip string) string
}

// Sink receives registry lifecycle events. Emit must not block.
type Sink interface {
	Emit(models.Event)
}

// Registration is the raw host input for Register.
type Registration struct {
	HostName     string
	ProxyAddress string
	Map          string
	ProxyPort    string
	MaxPlayers   string
}

// Match is a single advertised game session.
type Match struct {
	CreatedAt        time.Time
	LastHeartbeat    time.Time
	ID               string
	HostName         string
	ProxyAddress     string
	Map              string
	CountryCode      string
	ProxyPort        int
	MaxPlayers       int
	PlayersConnected int
}

// Address returns the combined host:port of the match proxy.
func (m *Match) Address() string {
	return net.JoinHostPort(m.ProxyAddress, strconv.Itoa(m.ProxyPort))
}

// Active reports whether the match heartbeat is within ActiveWindow of now.
func (m *Match) Active(now time.Time) bool {
	return now.Sub(m.LastHeartbeat) < ActiveWindow
}

// Recent reports whether the match heartbeat is within RecentWindow of now.
func (m *Match) Recent(now time.Time) bool {
	return now.Sub(m.LastHeartbeat) < RecentWindow
}

func (m *Match) view(now time.Time) models.MatchView {
	return models.MatchView{
		ID:               m.ID,
		HostName:         m.HostName,
		ProxyAddress:     m.ProxyAddress,
		ProxyPort:        m.ProxyPort,
		Address:          m.Address(),
		Map:              m.Map,
		CountryCode:      m.CountryCode,
		MaxPlayers:       m.MaxPlayers,
		PlayersConnected: m.PlayersConnected,
		AgeMinutes:       int64(now.Sub(m.CreatedAt) / time.Minute),
		Recent:           m.Recent(now),
	}
}

func (m *Match) event(kind string, at time.Time) models.Event {
	return models.Event{
		OccurredAt: at,
		Kind:       kind,
		MatchID:    m.ID,
		HostName:   m.HostName,
		MapName:    m.Map,
		Address:    m.Address(),
	}
}

// Listing is the result of List.
type Listing struct {
	Now     time.Time
	Matches []models.MatchView
	Count   int
}

// Stats holds registry counters.
type Stats struct {
	Total  int
	Active int
	Uptime time.Duration
}

// Options configures a Registry. Zero values are replaced with defaults.
type Options struct {
	Now     func() time.Time
	Locator Locator
	Sink    Sink
}

// Registry is the single source of truth for match state.
type Registry struct {
	startedAt time.Time
	now       func() time.Time
	locator   Locator
	sink      Sink
	matches   map[string]*Match
	mu        sync.RWMutex
}

// New creates an empty Registry.
func New(opts Options) *Registry {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Registry{
		startedAt: now(),
		now:       now,
		locator:   opts.Locator,
		sink:      opts.Sink,
		matches:   make(map[string]*Match),
	}
}

// Register validates the registration, stores a new match and returns its id.
func (r *Registry) Register(reg Registration) (string, error) {
	m, err := r.Create(reg)
	if err != nil {
		return "", err
	}

	return m.ID, nil
}

// Create is Register returning a snapshot of the stored match.
func (r *Registry) Create(reg Registration) (Match, error) {
	hostName := strings.TrimSpace(reg.HostName)
	proxyAddress := strings.TrimSpace(reg.ProxyAddress)
	mapName := strings.TrimSpace(reg.Map)

	var invalid []string
	if hostName == "" {
		invalid = append(invalid, "hostName")
	}
	if proxyAddress == "" {
		invalid = append(invalid, "proxyAddress")
	}

	port, err := strconv.Atoi(strings.TrimSpace(reg.ProxyPort))
	if err != nil {
		invalid = append(invalid, "proxyPort")
	}

	if mapName == "" {
		invalid = append(invalid, "map")
	}

	maxPlayers := DefaultMaxPlayers
	if s := strings.TrimSpace(reg.MaxPlayers); s != "" {
		n, err := strconv.Atoi(s)
		switch {
		case err != nil:
			invalid = append(invalid, "maxPlayers")
		case n != 0:
			maxPlayers = n
		}
	}

	if len(invalid) > 0 {
		return Match{}, &ValidationError{Fields: invalid}
	}

	var country string
	if r.locator != nil {
		country = r.locator.GetCountryCode(proxyAddress)
	}

	r.mu.Lock()
	now := r.now()
	id := uuid.NewString()
	for _, taken := r.matches[id]; taken; _, taken = r.matches[id] {
		id = uuid.NewString()
	}

	m := &Match{
		ID:            id,
		HostName:      hostName,
		ProxyAddress:  proxyAddress,
		ProxyPort:     port,
		Map:           mapName,
		CountryCode:   country,
		MaxPlayers:    maxPlayers,
		CreatedAt:     now,
		LastHeartbeat: now,
	}
	r.matches[id] = m
	snapshot := *m
	r.mu.Unlock()

	log.Info().
		Str("id", id).
		Str("host", snapshot.HostName).
		Str("map", snapshot.Map).
		Str("address", snapshot.Address()).
		Msg("Match registered")

	r.emit(snapshot.event(EventRegistered, now))

	return snapshot, nil
}

// Heartbeat refreshes the last heartbeat of the match.
func (r *Registry) Heartbeat(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.matches[id]
	if !ok {
		return ErrNotFound
	}
	m.LastHeartbeat = r.now()

	return nil
}

// Unregister removes the match permanently.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	m, ok := r.matches[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	delete(r.matches, id)
	now := r.now()
	r.mu.Unlock()

	log.Info().
		Str("id", id).
		Str("host", m.HostName).
		Msg("Match unregistered")

	r.emit(m.event(EventUnregistered, now))

	return nil
}

// List returns active matches, most recently refreshed first, at most MaxListed.
func (r *Registry) List() Listing {
	r.mu.RLock()
	now := r.now()
	active := make([]*Match, 0, len(r.matches))
	for _, m := range r.matches {
		if m.Active(now) {
			// Copy so sorting and projection run outside the lock.
			c := *m
			active = append(active, &c)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(active, func(a, b *Match) int {
		if c := b.LastHeartbeat.Compare(a.LastHeartbeat); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if len(active) > MaxListed {
		active = active[:MaxListed]
	}

	views := make([]models.MatchView, 0, len(active))
	for _, m := range active {
		views = append(views, m.view(now))
	}

	return Listing{Now: now, Matches: views, Count: len(views)}
}

// Get returns a copy of the stored match, stale or not.
func (r *Registry) Get(id string) (Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.matches[id]
	if !ok {
		return Match{}, false
	}

	return *m, true
}

// Stats counts stored and active matches.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	st := Stats{Total: len(r.matches), Uptime: now.Sub(r.startedAt)}
	for _, m := range r.matches {
		if m.Active(now) {
			st.Active++
		}
	}

	return st
}

// Sweep evicts matches whose last heartbeat is older than grace and returns how many were removed.
// A non-positive grace disables eviction.
func (r *Registry) Sweep(grace time.Duration) int {
	if grace <= 0 {
		return 0
	}

	r.mu.Lock()
	now := r.now()
	var evicted []*Match
	for id, m := range r.matches {
		if now.Sub(m.LastHeartbeat) > grace {
			delete(r.matches, id)
			evicted = append(evicted, m)
		}
	}
	r.mu.Unlock()

	for _, m := range evicted {
		log.Debug().
			Str("id", m.ID).
			Str("host", m.HostName).
			Time("last_heartbeat", m.LastHeartbeat).
			Msg("Stale match evicted")

		r.emit(m.event(EventExpired, now))
	}

	return len(evicted)
}

func (r *Registry) emit(ev models.Event) {
	if r.sink != nil {
		r.sink.Emit(ev)
	}
}
