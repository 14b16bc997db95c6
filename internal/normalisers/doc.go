// Package normalisers turns files into plain text for document ingest.
// Each sub-package handles one family of formats; Registry picks the
// highest-priority normaliser for a file's MIME type.
package normalisers
