package botway

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-botway/dispatch"
)

// ResponderPack is a named group of reply patterns contributed by an
// embedder and applied to the dispatcher as a unit.
type ResponderPack struct {
	Name       string
	Responders []dispatch.Responder
}

// CommandQueryBundleFactory builds an embedder-owned command/query bundle
// against a wired facade.
type CommandQueryBundleFactory func(facade *Facade) (any, error)

// ExtensionHooks collects embedder extensions before the service starts:
// responder packs for the dispatcher and command/query bundle factories.
type ExtensionHooks struct {
	mu sync.RWMutex

	responderPacks map[string]ResponderPack
	bundles        map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		responderPacks: map[string]ResponderPack{},
		bundles:        map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterResponderPack(pack ResponderPack) error {
	if h == nil {
		return fmt.Errorf("botway: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("botway: responder pack name is required")
	}
	if len(pack.Responders) == 0 {
		return fmt.Errorf("botway: responder pack %q has no responders", name)
	}

	normalized := ResponderPack{
		Name:       name,
		Responders: append([]dispatch.Responder(nil), pack.Responders...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.responderPacks[name]; exists {
		return fmt.Errorf("botway: responder pack %q already registered", name)
	}
	h.responderPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("botway: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("botway: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("botway: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("botway: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyResponderPacks registers every pack's responders on the dispatcher,
// in pack-name order.
func (h *ExtensionHooks) ApplyResponderPacks(dispatcher *dispatch.Dispatcher) error {
	if h == nil {
		return nil
	}
	if dispatcher == nil {
		return fmt.Errorf("botway: dispatcher is required")
	}

	for _, pack := range h.ResponderPacks() {
		for _, responder := range pack.Responders {
			if responder == nil {
				return fmt.Errorf("botway: responder pack %q contains nil responder", pack.Name)
			}
			dispatcher.AddResponder(responder)
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(facade *Facade) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if facade == nil {
		return nil, fmt.Errorf("botway: facade is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](facade)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) ResponderPacks() []ResponderPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.responderPacks))
	for name := range h.responderPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ResponderPack, 0, len(names))
	for _, name := range names {
		pack := h.responderPacks[name]
		out = append(out, ResponderPack{
			Name:       pack.Name,
			Responders: append([]dispatch.Responder(nil), pack.Responders...),
		})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
