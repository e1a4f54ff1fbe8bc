// Package chainpack's Packer/Unpacker operate item-by-item and never
// materialize an entire message: PackValue/UnpackValue (tree.go) are a
// convenience layer for small payloads (method directories, login maps)
// built on top of the same primitives. Large BLOB/STRING payloads should
// be produced/consumed by calling Packer.PackItem/Unpacker.NextItem
// directly with a sequence of Chunks instead of going through the tree
// helpers.
package chainpack
