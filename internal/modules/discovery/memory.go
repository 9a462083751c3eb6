// README: In-process mechanic index for local runs and tests; same contract as the Mongo store.
package discovery

import (
	"context"
	"sync"

	"roadside/internal/types"
)

type MemoryIndex struct {
	mu        sync.RWMutex
	mechanics map[types.ID]Mechanic
}

func NewMemoryIndex(mechanics ...Mechanic) *MemoryIndex {
	idx := &MemoryIndex{mechanics: make(map[types.ID]Mechanic, len(mechanics))}
	for _, m := range mechanics {
		idx.mechanics[m.ID] = m
	}
	return idx
}

func (idx *MemoryIndex) Upsert(_ context.Context, m *Mechanic) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.mechanics[m.ID] = *m
	return nil
}

// Nearby mirrors the $geoNear pipeline: approved only, optional type filter,
// within MaxDistanceMeters, closest first, at most Limit results.
func (idx *MemoryIndex) Nearby(_ context.Context, q NearbyQuery) ([]Candidate, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	origin := [2]float64{q.Point.Lat, q.Point.Lng}
	out := make([]Candidate, 0)
	for _, m := range idx.mechanics {
		if !m.Approved {
			continue
		}
		if q.ServiceType != "" && !m.Supports(q.ServiceType) {
			continue
		}
		p := m.Location.Point()
		d := haversineMeters(origin, [2]float64{p.Lat, p.Lng})
		if q.MaxDistanceMeters > 0 && d > q.MaxDistanceMeters {
			continue
		}
		out = append(out, Candidate{Mechanic: m, DistanceMeters: d})
	}
	// map order is random; ties resolve by id so results are repeatable
	sortByID(out)
	sortByDistance(out, func(c Candidate) float64 { return c.DistanceMeters })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (idx *MemoryIndex) Get(_ context.Context, id types.ID) (*Mechanic, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	m, ok := idx.mechanics[id]
	if !ok {
		return nil, ErrMechanicNotFound
	}
	return &m, nil
}

func (idx *MemoryIndex) GetMany(_ context.Context, ids []types.ID) (map[types.ID]*Mechanic, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[types.ID]*Mechanic, len(ids))
	for _, id := range ids {
		if m, ok := idx.mechanics[id]; ok {
			m := m
			out[id] = &m
		}
	}
	return out, nil
}

func sortByID(cs []Candidate) {
	for i := 1; i < len(cs); i++ {
		key := cs[i]
		j := i - 1
		for j >= 0 && cs[j].Mechanic.ID > key.Mechanic.ID {
			cs[j+1] = cs[j]
			j--
		}
		cs[j+1] = key
	}
}
