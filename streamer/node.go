package streamer

import "github.com/IvanBrykalov/tilestream/tier"

// node is a resident cache entry and an intrusive doubly linked list element.
// The list is ordered by last use: head is MRU, tail is LRU.
type node struct {
	key tier.Key
	tex *Texture

	prev *node
	next *node

	// refs counts entities currently displaying this texture.
	refs int
	// lastUsed is the UnixNano time of the last adopt/release/insert.
	lastUsed int64
	// bytes is the size recorded at insertion; removal subtracts exactly this.
	bytes int64
}
