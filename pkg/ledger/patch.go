package ledger

import (
	"strings"

	"github.com/webledger/ledgerstore/pkg/docstore"
	"github.com/webledger/ledgerstore/pkg/ledgererr"
)

// PatchOp names one of the four operations a restricted Update patch may
// perform, per spec.md §9's "dynamic patch objects" note.
type PatchOp string

const (
	PatchSet    PatchOp = "set"
	PatchUnset  PatchOp = "unset"
	PatchAdd    PatchOp = "add"
	PatchRemove PatchOp = "remove"
)

// Patch is one entry of an Update/Remove call against BlockStore or
// EventStore. Path must be rooted at "meta." — any other path is
// rejected with NotAllowed before it ever reaches the document store.
type Patch struct {
	Op    PatchOp
	Path  string
	Value interface{}
}

// buildUpdate parses a patch list into the docstore.Update algebra,
// rejecting any path outside meta.* per spec.md §4.4/§7.
func buildUpdate(patches []Patch) (docstore.Update, error) {
	u := docstore.Update{
		Set:  docstore.M{},
		Push: map[string]interface{}{},
		Pull: map[string]interface{}{},
	}
	for _, p := range patches {
		if p.Path != "meta" && !strings.HasPrefix(p.Path, "meta.") {
			return u, ledgererr.NotAllowed("patch path must be under meta", map[string]interface{}{"path": p.Path})
		}
		switch p.Op {
		case PatchSet:
			u.Set[p.Path] = p.Value
		case PatchUnset:
			u.Unset = append(u.Unset, p.Path)
		case PatchAdd:
			u.Push[p.Path] = p.Value
		case PatchRemove:
			u.Pull[p.Path] = p.Value
		default:
			return u, ledgererr.NotAllowed("unknown patch op", map[string]interface{}{"op": string(p.Op)})
		}
	}
	return u, nil
}
