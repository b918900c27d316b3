// Package registry implements the state dictionary spec.md §6 describes
// as "consumed, not specified": a small key-value store the compositing
// core reads configuration and topology facts from.
package registry

// Recognized integer / array state names (spec.md §6).
const (
	MagicK                 = "MAGIC_K"
	NumProcesses           = "NUM_PROCESSES"
	Rank                   = "RANK"
	NumTiles               = "NUM_TILES"
	TileMaxWidth           = "TILE_MAX_WIDTH"
	TileMaxHeight          = "TILE_MAX_HEIGHT"
	TileContribCounts      = "TILE_CONTRIB_COUNTS"
	TotalImageCount        = "TOTAL_IMAGE_COUNT"
	DisplayNodes           = "DISPLAY_NODES"
	CompositeOrder         = "COMPOSITE_ORDER"
	AllContainedTilesMasks = "ALL_CONTAINED_TILES_MASKS"
	TileDisplayed          = "TILE_DISPLAYED"
	TileViewports          = "TILE_VIEWPORTS"
	ContainedViewport      = "CONTAINED_VIEWPORT"
)

// Recognized boolean enable-flag names.
const (
	InterlaceImages  = "INTERLACE_IMAGES"
	OrderedComposite = "ORDERED_COMPOSITE"
)

// Registry is the read interface the compositing core consumes.
type Registry interface {
	Int(name string) int
	Enabled(name string) bool
	IntArray(name string) []int
	BoolMatrix(name string) [][]bool
}

// InMemoryRegistry is a plain map-backed Registry, modeled on
// internal/store's interface-plus-concrete-implementation split: callers
// build one with New() and populate it with the Set* methods before
// handing it to the core as a Registry.
type InMemoryRegistry struct {
	ints    map[string]int
	flags   map[string]bool
	arrays  map[string][]int
	masks   map[string][][]bool
}

// New returns an empty InMemoryRegistry.
func New() *InMemoryRegistry {
	return &InMemoryRegistry{
		ints:   make(map[string]int),
		flags:  make(map[string]bool),
		arrays: make(map[string][]int),
		masks:  make(map[string][][]bool),
	}
}

func (r *InMemoryRegistry) Int(name string) int             { return r.ints[name] }
func (r *InMemoryRegistry) Enabled(name string) bool        { return r.flags[name] }
func (r *InMemoryRegistry) IntArray(name string) []int      { return r.arrays[name] }
func (r *InMemoryRegistry) BoolMatrix(name string) [][]bool { return r.masks[name] }

func (r *InMemoryRegistry) SetInt(name string, v int)          { r.ints[name] = v }
func (r *InMemoryRegistry) SetEnabled(name string, v bool)     { r.flags[name] = v }
func (r *InMemoryRegistry) SetIntArray(name string, v []int)   { r.arrays[name] = v }
func (r *InMemoryRegistry) SetBoolMatrix(name string, v [][]bool) { r.masks[name] = v }
