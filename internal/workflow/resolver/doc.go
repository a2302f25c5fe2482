// Package resolver contains the dependency resolver for task graphs. It
// inspects a workflow definition, links every task to the tasks whose output
// it consumes, and evaluates readiness for the workflow engine.
package resolver
