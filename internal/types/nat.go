package types

// Node Address Table Objects
// The NAT maps node ids to block addresses. Every NAT block exists twice,
// in a pair of segments; the checkpoint's NAT version bitmap selects which
// copy of a block is current.

const (
	// NATEntrySize is the packed size of struct f2fs_nat_entry.
	NATEntrySize = 9

	// NATEntriesPerBlock is the number of NAT entries in one block.
	NATEntriesPerBlock = BlockSize / NATEntrySize

	// NATBitsHeaderSize is the size of the cp_ver/crc word that precedes
	// the full and empty NAT block bitmaps at the end of a checkpoint pack.
	NATBitsHeaderSize = 8
)

// NATEntry represents struct f2fs_nat_entry.
type NATEntry struct {
	// Version is the node version, bumped on each reuse of the node id.
	Version uint8

	// Ino is the inode that owns the node.
	Ino NodeID

	// BlockAddr is where the node block is stored.
	BlockAddr BlockAddr
}
