// Package vectorstore provides uniform vector collection operations over
// Qdrant (gRPC) and chromem-go (embedded) backends.
//
// Collections hold vectors of one fixed dimensionality under cosine
// similarity. The adapter is deliberately vector-level: the caller owns
// embedding, because text-space and image-space vectors are incompatible and
// must never be compared against each other.
//
// Payloads are flat maps of string, integer, float and bool values. Malformed
// payloads are rejected at this boundary rather than surfacing as missing
// keys deeper in the pipeline.
package vectorstore
