package miner

import (
	"github.com/ethereum/go-ethereum/metrics"
)

var (
	buildTimer = metrics.NewRegisteredTimer("builder/build", nil)

	commitMeter        = metrics.NewRegisteredMeter("builder/order/committed", nil)
	staleDropMeter     = metrics.NewRegisteredMeter("builder/order/stale", nil)
	rejectionDropMeter = metrics.NewRegisteredMeter("builder/order/rejected", nil)
	capacitySkipMeter  = metrics.NewRegisteredMeter("builder/order/skipped", nil)
	deferredMeter      = metrics.NewRegisteredMeter("builder/order/deferred", nil)
	deferredDropMeter  = metrics.NewRegisteredMeter("builder/order/deferred/dropped", nil)
	retryMeter         = metrics.NewRegisteredMeter("builder/order/retried", nil)

	simulationMeter           = metrics.NewRegisteredMeter("builder/simulation", nil)
	speculativeHitMeter       = metrics.NewRegisteredMeter("builder/simulation/speculative/hit", nil)
	speculativeStaleMeter     = metrics.NewRegisteredMeter("builder/simulation/speculative/stale", nil)
	successfulSimulationTimer = metrics.NewRegisteredTimer("builder/simulation/success", nil)
	failedSimulationTimer     = metrics.NewRegisteredTimer("builder/simulation/failed", nil)

	profitGauge    = metrics.NewRegisteredGauge("builder/profit", nil)
	gasUsedGauge   = metrics.NewRegisteredGauge("builder/gasused", nil)
	committedGauge = metrics.NewRegisteredGauge("builder/ordernum", nil)
)
