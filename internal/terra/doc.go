// Package terra holds the TERRA-REF conventions the stereo extractor relies
// on: output naming, LemnaTec capture metadata, gantry to GPS footprints,
// Bayer decoding with JPEG/GeoTIFF output, and Clowder metadata envelopes.
package terra
