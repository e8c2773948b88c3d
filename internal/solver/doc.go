// Package solver runs the external Monte Carlo transport solver as a
// subprocess, once per scan point.
//
// The interface to the solver is deliberately narrow: a set of input files
// written into a working directory, the solver binary started with that
// directory as its working directory, captured output, an exit code, and a
// statepoint artifact the solver leaves behind.
//
//	materials.xml geometry.xml settings.xml tallies.xml  ->  solver  ->  statepoint.<batches>.<ext>
//
// The runner never removes the working directory. Callers decide whether to
// keep it for inspection or clean it up.
package solver
