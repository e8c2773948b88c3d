// Package pipeline provides a framework for executing scan steps in sequence.
//
// Every scan point goes through the same three stages: building the solver
// input from the scan parameters, running the solver, and extracting the
// tally from its artifact. Each stage is implemented as a Step that receives
// the point's ScanReport and fills in its products.
//
// Design decision: We use a pipeline pattern instead of direct function calls
// because:
// 1. It provides consistent error handling and logging across steps
// 2. It supports cancellation via context for long-running solver runs
// 3. Steps can be replaced by fakes in tests without touching the scan loop
//
// The BatchProcessor runs many points concurrently, each in its own working
// directory, with concurrency control using errgroup.
package pipeline
