// Package anchor mints and tracks the permanent identities of blocks.
// Path-derived node ids shift whenever blocks move or their siblings
// change; anchors survive those shifts, giving features that point at a
// block (comments, references) something durable to hold on to.
package anchor

import (
	"io"
	mrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/quire-dev/quire/internal/model"
)

// Registry binds permanent anchors to the blocks of one open page.
// Bindings key on the path-derived ids of the last accepted parse, so
// every structural change must be followed by a Rebind before the new ids
// are used.
type Registry struct {
	mu      sync.Mutex
	now     func() time.Time
	entropy io.Reader
	byID    map[model.NodeID]string
}

// New returns a registry minting random ULID anchors.
func New() *Registry {
	return &Registry{
		now:     time.Now,
		entropy: ulid.DefaultEntropy(),
		byID:    make(map[model.NodeID]string),
	}
}

// NewSeeded returns a registry with fixed time and seeded entropy, so
// anchor values reproduce across runs. Minted anchors are still unique
// within the registry.
func NewSeeded(seed int64, at time.Time) *Registry {
	return &Registry{
		now:     func() time.Time { return at },
		entropy: ulid.Monotonic(mrand.New(mrand.NewSource(seed)), 0),
		byID:    make(map[model.NodeID]string),
	}
}

// Assign stamps every block of doc with its anchor, minting identities
// for ids seen for the first time. Blocks without an id (created by the
// editor, not yet through a parse) are left alone; they obtain anchors on
// the Rebind that follows the structural change.
func (r *Registry) Assign(doc *model.Document) {
	if doc == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range doc.Blocks {
		r.assign(b)
	}
}

func (r *Registry) assign(b *model.Block) {
	if b.ID != "" {
		a, ok := r.byID[b.ID]
		if !ok {
			a = r.mint()
			r.byID[b.ID] = a
		}
		b.Anchor = a
	}

	for _, c := range b.Children {
		if nb, ok := c.(*model.Block); ok {
			r.assign(nb)
		}
	}
}

// Lookup returns the anchor currently bound to a node id.
func (r *Registry) Lookup(id model.NodeID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	return a, ok
}

// Rebind carries bindings across a structural change. The edited document
// still refers to blocks by the previous parse's ids; parsed is the same
// content as reparsed from the mutated source, carrying fresh ids. Blocks
// pair up positionally, nested blocks included, so an anchor follows its
// block to the block's new id. Parsed blocks with no prior binding mint
// fresh anchors; bindings whose blocks disappeared are dropped.
func (r *Registry) Rebind(edited, parsed *model.Document) {
	r.mu.Lock()

	next := make(map[model.NodeID]string, len(r.byID))
	pairBlocks(blocksOf(edited), blocksOf(parsed), func(o, n *model.Block) {
		if a, ok := r.byID[o.ID]; ok && n.ID != "" {
			next[n.ID] = a
		}
	})
	r.byID = next

	r.mu.Unlock()

	r.Assign(parsed)
}

func (r *Registry) mint() string {
	return ulid.MustNew(ulid.Timestamp(r.now()), r.entropy).String()
}

func blocksOf(d *model.Document) []*model.Block {
	if d == nil {
		return nil
	}
	return d.Blocks
}

func childBlocks(b *model.Block) []*model.Block {
	var out []*model.Block
	for _, c := range b.Children {
		if nb, ok := c.(*model.Block); ok {
			out = append(out, nb)
		}
	}
	return out
}

// pairBlocks zips two block lists positionally, recursing into nested
// blocks of each pair. Unpaired tails are skipped.
func pairBlocks(old, new []*model.Block, fn func(o, n *model.Block)) {
	n := len(old)
	if len(new) < n {
		n = len(new)
	}

	for i := 0; i < n; i++ {
		fn(old[i], new[i])
		pairBlocks(childBlocks(old[i]), childBlocks(new[i]), fn)
	}
}
