// Package storage defines the blob container interface used by exchange.
//
// Two backends implement Store:
//   - azureblob: Azure Blob Storage with shared-key credentials
//   - objectstore: NATS JetStream ObjectStore, one bucket per container
//
// The helpers in this package carry the command semantics on top of any
// backend. PutEnsuringContainer creates a missing container before uploading,
// and GetNonEmpty treats an empty download as an error so a consumer of the
// blob never silently processes nothing.
//
// Container names follow the Azure rules (see ValidateContainerName). They
// are also valid NATS bucket names, so the same name works with both
// backends.
package storage
