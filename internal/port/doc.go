// Package port checks whether a TCP endpoint accepts connections.
//
// quizctl uses it to wait for the database server before the bootstrap
// steps run. A freshly started PostgreSQL container reports "running" well
// before it listens on 5432, so the container state alone is not enough.
package port
