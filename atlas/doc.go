// Package atlas packs animated tile frames into a shared color atlas and
// a parallel material atlas.
//
// Tiles are placed with a pen-based shelf packer in registration order.
// Every relayout bumps a layout version; consumers cache derived tables
// (tile indices, normalized frame rectangles) and rebuild them when the
// version they hold no longer matches.
//
// Malformed input is normalized instead of rejected: frame buffers are
// padded or truncated to width*height*4 bytes and missing material
// frames are filled with the default material texel.
package atlas
