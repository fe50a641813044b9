// Package redis implements the durable vote queue on a Redis list.
//
// The producer appends JSON-encoded vote events with RPUSH; the consumer
// drains them with BLPOP using a short poll timeout so the worker can observe
// shutdown promptly. The list is FIFO and at-least-once from the producers'
// point of view: an unconsumed item is never dropped.
package redis
