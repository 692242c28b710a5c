package world

// Ledger tracks what the current tick may still spend. Requested amounts
// are standing reservations (construction already dispatched) and persist
// across ticks; allocations are per-tick production commitments and reset
// on every ingest.
type Ledger struct {
	resource     int
	requested    int
	allocated    int
	popUse       int
	popProvide   int
	popAllocated int
}

func (l *Ledger) reset(resource, popUse, popProvide int) {
	l.resource = resource
	l.popUse = popUse
	l.popProvide = popProvide
	l.allocated = 0
	l.popAllocated = 0
}

// Available is the resource not yet promised to anything.
func (l *Ledger) Available() int { return l.resource - l.requested - l.allocated }

func (l *Ledger) Requested() int { return l.requested }

func (l *Ledger) Allocated() int { return l.allocated }

func (l *Ledger) PopulationUse() int { return l.popUse }

func (l *Ledger) PopulationProvide() int { return l.popProvide }

// FreePopulation is the unit capacity left once pending production is
// counted.
func (l *Ledger) FreePopulation() int { return l.popProvide - l.popUse - l.popAllocated }

// TryRequest earmarks cost as a standing reservation. Fails without
// mutating when the available balance is short.
func (l *Ledger) TryRequest(cost int) bool {
	if l.Available() < cost {
		return false
	}
	l.requested += cost
	return true
}

// ReleaseRequested returns a standing reservation to the pool.
func (l *Ledger) ReleaseRequested(cost int) {
	l.requested -= cost
	if l.requested < 0 {
		l.requested = 0
	}
}

// TryAllocate commits cost for this tick only.
func (l *Ledger) TryAllocate(cost int) bool {
	if l.Available() < cost {
		return false
	}
	l.allocated += cost
	return true
}

// TryAllocatePopulation commits unit capacity for this tick only.
func (l *Ledger) TryAllocatePopulation(n int) bool {
	if l.FreePopulation() < n {
		return false
	}
	l.popAllocated += n
	return true
}

// TryAllocateProduction commits resource and population together, all or
// nothing. Production orders go through here.
func (l *Ledger) TryAllocateProduction(cost, population int) bool {
	if l.Available() < cost || l.FreePopulation() < population {
		return false
	}
	l.allocated += cost
	l.popAllocated += population
	return true
}
