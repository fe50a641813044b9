// Package domain defines the core types, ports, and error taxonomy of the
// voting pipeline. It has no dependencies on transport, queue, or storage
// implementations.
package domain
