// Package objectstore implements storage.Store on NATS JetStream
// ObjectStore.
//
// Containers map to buckets and blobs to objects. The blob content type is
// kept in the object's Content-Type header. A Put over an existing name
// replaces it; the previous chunks are purged by the server.
//
// List has no server side filtering, so the whole bucket is listed and
// filtered by prefix on the client. Deleted objects are skipped.
//
// Buckets are opened through a BucketManager, normally a connected
// *natsclient.Client:
//
//	client, _ := natsclient.NewFromConfig(cfg)
//	_ = client.ConnectWithRetry(ctx)
//	store, err := objectstore.NewStore(client, objectstore.WithRegistry(registry))
//
// With a registry the store records the shared blob counters plus
// exchange_objectstore_* series for call counts, latency, errors and the
// object count seen by the last list.
package objectstore
