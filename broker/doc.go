// Package broker produces to and consumes from a Kafka compatible broker
// using segmentio/kafka-go.
//
// Producer writes one message per call, keyed by a random UUID, and retries
// transient broker errors such as leader elections:
//
//	p, err := broker.NewProducer(kafkaCfg, broker.WithLogger(logger))
//	res, err := p.Produce(ctx, "orders", payload)
//
// Consumer drains a topic as a member of the configured group. Each poll
// waits at most ttl; a poll that returns nothing (or fails) uses up one idle
// retry and the loop pauses before polling again. A received message resets
// the budget and is committed before the next poll. The loop ends after more
// than MaxIdleRetries consecutive idle polls:
//
//	c, err := broker.NewConsumer(kafkaCfg, "orders")
//	res, err := c.Consume(ctx, 2*time.Second)
//	body, _ := res.JSON() // {"1": "...", "2": "..."}
package broker
