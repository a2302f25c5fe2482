// Package engine runs task graphs. It pairs the dependency resolver with the
// scheduler, dispatches each runnable batch to an Executor, and joins the
// batch before anything downstream is scheduled, so every task observes the
// complete outputs of the tasks it depends on.
package engine
