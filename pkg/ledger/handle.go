package ledger

import "github.com/webledger/ledgerstore/pkg/docstore"

// StorageHandle is the per-ledger façade LedgerRegistry hands back from
// Add/Get: the three stores bound to that ledger's collections, plus
// whatever plugins were installed on it.
type StorageHandle struct {
	LedgerID     string
	LedgerNodeID string
	StorageID    string

	Blocks     *BlockStore
	Events     *EventStore
	Operations *OperationStore

	// Driver is the escape hatch to the raw document store backing this
	// ledger, for callers (plugins, migrations, ad-hoc inspection) that
	// need access spec.md §6.2 doesn't model through Blocks/Events/
	// Operations.
	Driver docstore.DocStore

	plugins *PluginHost
}

// Plugin returns the plugin registered under name on this ledger, if
// any.
func (h *StorageHandle) Plugin(name string) (Plugin, bool) {
	if h.plugins == nil {
		return nil, false
	}
	return h.plugins.Get(name)
}

// Plugins lists the names of the plugins installed on this ledger.
func (h *StorageHandle) Plugins() []string {
	if h.plugins == nil {
		return nil
	}
	return h.plugins.Names()
}
