package store

// Declare database key prefix for objects
const (
	PrefixBlock     = "blocks:"
	PrefixBlockMeta = "meta:"
	PrefixTxSlot    = "tx_slot:"

	BlockMetaKeyLatestSlot = "latest_slot"
)
