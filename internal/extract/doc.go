// Package extract reduces a solver statepoint artifact to scalar tally
// values and writes the result file.
//
// A statepoint lists the tallies of a run. Each tally carries one result row
// per filter bin, nuclide and score:
//
//	{
//	  "batches": 10,
//	  "tallies": [
//	    {"id": 1, "name": "TBR", "scores": ["(n,Xt)"], "nuclides": ["Li6", "Li7"],
//	     "results": [
//	       {"filter": 3, "nuclide": "Li6", "score": "(n,Xt)", "mean": 0.75, "std_dev": 0.002},
//	       {"filter": 3, "nuclide": "Li7", "score": "(n,Xt)", "mean": 0.3, "std_dev": 0.001}
//	     ]}
//	  ]
//	}
//
// The same document may be written as YAML. Aggregation sums the mean column
// and, separately, the standard deviation column. The summed deviation is a
// naive approximation, not a propagated uncertainty.
package extract
