// Package simulation implements Monte Carlo simulation of future daily
// log-returns under a fitted EGARCH volatility model.
//
// The simulator takes fitted model parameters and the most recent
// conditional volatility, and produces an ensemble of independent return
// paths over a fixed horizon by recursively applying the EGARCH
// log-variance update with fresh standard-normal shocks at each step.
// Paths have no data dependency on each other and are computed in
// parallel; steps within a path are strictly sequential.
//
// Randomness is an explicit capability. Each path draws from its own
// independently seeded generator derived from the simulator's base seed
// and the path index, so results are reproducible for a fixed seed and
// independent of scheduling order.
package simulation
