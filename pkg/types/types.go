package types

import "time"

// Meta carries the administrative fields every stored document (block,
// event, operation) owns in addition to its payload. Only meta.* fields
// may be touched by a store's restricted Update patch.
type Meta struct {
	Created       time.Time  `json:"created"`
	Updated       time.Time  `json:"updated"`
	Deleted       *time.Time `json:"deleted,omitempty"`
	Consensus     bool       `json:"consensus"`
	ConsensusDate *time.Time `json:"consensusDate,omitempty"`
}

// IsDeleted reports whether the owning document has been soft-deleted.
func (m Meta) IsDeleted() bool {
	return m.Deleted != nil
}

// Ledger is the registry row LedgerRegistry persists for each opened ledger.
// It names the three collections that back a ledger's blocks, events, and
// operations, and the plugins bound to it.
type Ledger struct {
	StorageID           string   `json:"storageId"`
	LedgerID            string   `json:"ledgerId"`
	LedgerNodeID        string   `json:"ledgerNodeId"`
	BlockCollection     string   `json:"blockCollection"`
	EventCollection     string   `json:"eventCollection"`
	OperationCollection string   `json:"operationCollection"`
	Plugins             []string `json:"plugins"`
	Meta                Meta     `json:"meta"`
}

// Block is the semantic payload of a consensus-sealed block. The Event
// field is always a flat list of event hashes — blocks never carry
// events inline, per the hash-reference data model.
type Block struct {
	ID                string                 `json:"id"`
	Context           []string               `json:"@context,omitempty"`
	Type              string                 `json:"type"`
	BlockHeight       int64                  `json:"blockHeight"`
	PreviousBlock     string                 `json:"previousBlock,omitempty"`
	PreviousBlockHash string                 `json:"previousBlockHash,omitempty"`
	ConsensusMethod   string                 `json:"consensusMethod,omitempty"`
	Event             []string               `json:"event"`
	Fields            map[string]interface{} `json:"-"`
}

// BlockMeta is the meta record stored alongside a Block document.
type BlockMeta struct {
	Meta
	BlockHash  string `json:"blockHash"`
	BlockOrder int64  `json:"blockOrder,omitempty"`
}

// StoredBlock is the on-disk representation: semantic payload plus meta,
// keyed by a hash of Block.ID for unique indexing. Events is populated on
// read with the EventStore's non-deleted events at the block's height,
// sorted by meta.blockOrder ascending; it is never persisted as part of
// the block document.
type StoredBlock struct {
	HashedID string        `json:"_id"`
	Block    Block         `json:"block"`
	Meta     BlockMeta     `json:"meta"`
	Events   []StoredEvent `json:"event,omitempty"`
}

// EventType enumerates the event payload shapes the engine understands.
// Only WebLedgerOperationEvent carries operations.
type EventType string

const (
	EventTypeOperation     EventType = "WebLedgerOperationEvent"
	EventTypeConfiguration EventType = "WebLedgerConfigurationEvent"
)

// Event is the semantic payload of a ledger event. Operation is populated
// only on read, by joining the operation store; it is never persisted as
// part of the event document.
type Event struct {
	Context   []string               `json:"@context,omitempty"`
	Type      EventType              `json:"type"`
	Operation []Operation            `json:"operation,omitempty"`
	Fields    map[string]interface{} `json:"-"`
}

// EventMeta is the meta record stored alongside an Event document.
type EventMeta struct {
	Meta
	EventHash              string   `json:"eventHash"`
	OperationHash          []string `json:"operationHash,omitempty"`
	BlockHeight            *int64   `json:"blockHeight,omitempty"`
	BlockOrder             *int64   `json:"blockOrder,omitempty"`
	EffectiveConfiguration bool     `json:"effectiveConfiguration,omitempty"`
}

// StoredEvent is the on-disk representation of an event. OperationHash is
// stripped from EventMeta before persistence — it is a join key, not
// content — and repopulated on read from the operation store.
type StoredEvent struct {
	Event Event     `json:"event"`
	Meta  EventMeta `json:"meta"`
}

// OperationType enumerates record-level mutation kinds.
type OperationType string

const (
	OperationTypeCreate OperationType = "CreateWebLedgerRecord"
	OperationTypeUpdate OperationType = "UpdateWebLedgerRecord"
)

// Operation is the semantic payload of a single record mutation.
type Operation struct {
	Type        OperationType          `json:"type"`
	Record      map[string]interface{} `json:"record,omitempty"`
	RecordPatch map[string]interface{} `json:"recordPatch,omitempty"`
}

// OperationMeta is the meta record stored alongside an Operation document.
type OperationMeta struct {
	Meta
	EventHash     string `json:"eventHash"`
	EventOrder    int64  `json:"eventOrder"`
	OperationHash string `json:"operationHash"`
}

// StoredOperation is the on-disk representation of an operation, with its
// denormalized RecordID for fast record-history lookups.
type StoredOperation struct {
	RecordID  string        `json:"recordId"`
	Operation Operation     `json:"operation"`
	Meta      OperationMeta `json:"meta"`
}

// RecordHistoryEntry is one row of a reconstructed record history: an
// operation joined with the consensus/ordering fields of its event.
type RecordHistoryEntry struct {
	Operation   Operation `json:"operation"`
	EventHash   string    `json:"eventHash"`
	BlockHeight int64     `json:"blockHeight"`
	BlockOrder  int64     `json:"blockOrder"`
	EventOrder  int64     `json:"eventOrder"`
	Consensus   bool      `json:"consensus"`
}

// BlockSummary is the unexpanded block projection returned by the
// getSummary family of BlockStore operations.
type BlockSummary struct {
	Context           []string  `json:"@context,omitempty"`
	ID                string    `json:"id"`
	BlockHeight       int64     `json:"blockHeight"`
	ConsensusMethod   string    `json:"consensusMethod,omitempty"`
	Type              string    `json:"type"`
	PreviousBlock     string    `json:"previousBlock,omitempty"`
	PreviousBlockHash string    `json:"previousBlockHash,omitempty"`
	Meta              BlockMeta `json:"meta"`
	EventHash         []string  `json:"eventHash,omitempty"`
}
