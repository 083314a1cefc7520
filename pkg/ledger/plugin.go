package ledger

import (
	"fmt"
	"reflect"

	"github.com/webledger/ledgerstore/pkg/docstore"
	"github.com/webledger/ledgerstore/pkg/ledgererr"
)

// PluginTypeLedgerStorage is the only plugin type pkg/ledger recognizes,
// per spec.md §7's "ledger storage plugin" declaration.
const PluginTypeLedgerStorage = "ledger storage plugin"

// Plugin is implemented by anything LedgerRegistry.Add can bind onto a
// newly-opened ledger. Type must return PluginTypeLedgerStorage for the
// registry to accept it.
type Plugin interface {
	Type() string
}

// IndexInstaller is implemented by a plugin that needs extra indexes
// installed on one of the ledger's three collections beyond the core
// set in indexes.go.
type IndexInstaller interface {
	ExpandIndexes(blockCol, eventCol, opCol docstore.Collection) error
}

// MethodBinder is implemented by a plugin that declares extra methods.
// PluginHost.Register calls BindMethods with a nil handle, records the
// returned methods under the plugin's own name, and rejects any method
// name that matches a core store method. The recorded methods are not
// exposed through StorageHandle or bound to a store.
type MethodBinder interface {
	BindMethods(handle *StorageHandle) map[string]interface{}
}

// PluginHost tracks the plugins registered against one ledger instance
// and enforces that no plugin method name ever shadows a core
// BlockStore/EventStore/OperationStore method.
type PluginHost struct {
	plugins   map[string]Plugin
	methods   map[string]map[string]interface{}
	coreNames map[string]struct{}
}

// NewPluginHost builds an empty host seeded with the core store method
// names a plugin must never reuse.
func NewPluginHost() *PluginHost {
	return &PluginHost{
		plugins:   make(map[string]Plugin),
		methods:   make(map[string]map[string]interface{}),
		coreNames: coreMethodNames(),
	}
}

// Register validates and binds plugin under name. Per spec.md §4.1, a
// plugin that isn't registered/declared as PluginTypeLedgerStorage fails
// InvalidAccess; a plugin name collision or a method name collision
// with a core store method fails InvalidState.
func (h *PluginHost) Register(name string, plugin Plugin) error {
	if plugin.Type() != PluginTypeLedgerStorage {
		return ledgererr.InvalidAccess(
			fmt.Sprintf("plugin %q has unsupported type %q", name, plugin.Type()),
			map[string]interface{}{"plugin": name, "type": plugin.Type()},
		)
	}
	if _, exists := h.plugins[name]; exists {
		return ledgererr.InvalidState(
			fmt.Sprintf("plugin %q already registered", name),
			map[string]interface{}{"plugin": name},
		)
	}

	methods := map[string]interface{}{}
	if binder, ok := plugin.(MethodBinder); ok {
		methods = binder.BindMethods(nil)
		for methodName := range methods {
			if _, collides := h.coreNames[methodName]; collides {
				return ledgererr.InvalidState(
					fmt.Sprintf("plugin %q method %q collides with a core store method", name, methodName),
					map[string]interface{}{"plugin": name, "method": methodName},
				)
			}
		}
	}

	h.plugins[name] = plugin
	h.methods[name] = methods
	return nil
}

// Get returns the plugin registered under name, if any.
func (h *PluginHost) Get(name string) (Plugin, bool) {
	p, ok := h.plugins[name]
	return p, ok
}

// Names returns the registered plugin names.
func (h *PluginHost) Names() []string {
	names := make([]string, 0, len(h.plugins))
	for name := range h.plugins {
		names = append(names, name)
	}
	return names
}

// ExpandIndexes invokes ExpandIndexes on every registered plugin that
// implements IndexInstaller.
func (h *PluginHost) ExpandIndexes(blockCol, eventCol, opCol docstore.Collection) error {
	for name, plugin := range h.plugins {
		installer, ok := plugin.(IndexInstaller)
		if !ok {
			continue
		}
		if err := installer.ExpandIndexes(blockCol, eventCol, opCol); err != nil {
			return fmt.Errorf("ledger: plugin %q expandIndexes: %w", name, err)
		}
	}
	return nil
}

// coreMethodNames reflects the exported method sets of BlockStore,
// EventStore, and OperationStore, the collision set plugin method names
// are checked against.
func coreMethodNames() map[string]struct{} {
	names := make(map[string]struct{})
	for _, t := range []reflect.Type{
		reflect.TypeOf(&BlockStore{}),
		reflect.TypeOf(&EventStore{}),
		reflect.TypeOf(&OperationStore{}),
	} {
		for i := 0; i < t.NumMethod(); i++ {
			names[t.Method(i).Name] = struct{}{}
		}
	}
	return names
}
