// Package natsclient wraps a NATS connection for the ObjectStore blob
// backend.
//
// A Client holds one connection and its JetStream context. Connection
// attempts go through a circuit breaker: after a threshold of consecutive
// failures (default 5) the circuit opens and Connect fails fast with
// ErrCircuitOpen until the backoff elapses. ConnectWithRetry layers the
// pkg/retry connect schedule on top and stops as soon as the circuit opens.
//
// Object store buckets are managed through CreateObjectStore (get or
// create), ObjectStore, DeleteObjectStore and ObjectStoreNames.
//
//	client, err := natsclient.NewFromConfig(cfg, natsclient.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	if err := client.ConnectWithRetry(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
// TestClient starts a NATS server in a container via testcontainers-go for
// integration tests.
package natsclient
