package relay

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// tenantIDPattern is the allowlist for tenant identifiers. Tenant IDs
// arrive from clients and become routing keys, so anything outside a
// boring character set is rejected before it touches the namespace map.
var tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidTenantID reports whether id is safe to use as a namespace key.
func ValidTenantID(id string) bool {
	return tenantIDPattern.MatchString(id)
}

// Registry is the tenant namespace registry: the single, explicitly
// owned object mapping tenant IDs to their namespaces. It is
// constructed once in main and handed to every component that needs
// it — there is no package-level singleton.
//
// Namespaces are created lazily on first reference and live for the
// rest of the process. That is deliberate: namespace state is bounded
// by tenant count, while connections (the churny resource) clean
// themselves up on disconnect.
type Registry struct {
	logger *zap.Logger
	tap    Tap // may be nil: no observability mirror configured

	mu         sync.RWMutex
	namespaces map[string]*Namespace
}

func NewRegistry(logger *zap.Logger, tap Tap) *Registry {
	return &Registry{
		logger:     logger,
		tap:        tap,
		namespaces: make(map[string]*Namespace),
	}
}

// Namespace returns the namespace for tenantID, creating it on first
// reference. Deterministic: the same tenant ID always yields the same
// handle for the life of the process.
func (r *Registry) Namespace(tenantID string) (*Namespace, error) {
	if !ValidTenantID(tenantID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTenantID, tenantID)
	}

	r.mu.RLock()
	ns, exists := r.namespaces[tenantID]
	r.mu.RUnlock()
	if exists {
		return ns, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Re-check: another goroutine may have created it between locks.
	if ns, exists := r.namespaces[tenantID]; exists {
		return ns, nil
	}
	ns = newNamespace(tenantID, r.logger)
	r.namespaces[tenantID] = ns
	r.logger.Info("namespace created", zap.String("tenant", tenantID))
	return ns, nil
}

// SendToRoom delivers payload to every member of room under tenantID,
// creating the namespace if it has never been referenced. A tenant
// with zero connected members yields Attempted == 0, success.
func (r *Registry) SendToRoom(tenantID, room string, payload []byte) (DeliveryResult, error) {
	ns, err := r.Namespace(tenantID)
	if err != nil {
		return DeliveryResult{}, err
	}
	return ns.SendToRoom(room, payload), nil
}

// SendToNamespace delivers payload to every connection in tenantID's
// namespace.
func (r *Registry) SendToNamespace(tenantID string, payload []byte) (DeliveryResult, error) {
	ns, err := r.Namespace(tenantID)
	if err != nil {
		return DeliveryResult{}, err
	}
	return ns.SendToNamespace(payload), nil
}

// Mirror forwards a delivery event to the configured observability
// tap, if any. Called by fanout originators after delivery completes,
// outside any membership lock.
func (r *Registry) Mirror(ev DeliveryEvent) {
	if r.tap == nil {
		return
	}
	r.tap.MessageDelivered(ev)
}

// Stats is the read-only observability snapshot, shaped for the
// dashboard: sorted namespace list, rooms per namespace, and connected
// clients rendered as "id (tenant)". All lists are sorted so repeated
// polls diff cleanly.
type Stats struct {
	Namespaces []string            `json:"namespaces"`
	Rooms      map[string][]string `json:"rooms"`
	Clients    []string            `json:"clients"`
}

// Stats walks every namespace and reports the ones with at least one
// open connection. Empty namespaces (created by a broadcast to a
// tenant nobody was connected to) are left out — monitoring cares
// about live traffic, not lazily-materialized map entries. Dashboard
// connections never register here at all, so the report is
// structurally free of the observability channel itself.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	namespaces := make([]*Namespace, 0, len(r.namespaces))
	for _, ns := range r.namespaces {
		namespaces = append(namespaces, ns)
	}
	r.mu.RUnlock()

	stats := Stats{
		Namespaces: []string{},
		Rooms:      make(map[string][]string),
		Clients:    []string{},
	}
	for _, ns := range namespaces {
		rooms, clientIDs := ns.snapshot()
		if len(clientIDs) == 0 {
			continue
		}
		stats.Namespaces = append(stats.Namespaces, ns.TenantID())
		stats.Rooms[ns.TenantID()] = rooms
		for _, id := range clientIDs {
			stats.Clients = append(stats.Clients, fmt.Sprintf("%s (%s)", id, ns.TenantID()))
		}
	}
	sort.Strings(stats.Namespaces)
	sort.Strings(stats.Clients)
	return stats
}
