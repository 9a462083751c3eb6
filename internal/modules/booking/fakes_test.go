package booking

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"roadside/internal/modules/discovery"
	"roadside/internal/modules/notify"
	"roadside/internal/modules/pricing"
	"roadside/internal/modules/routing"
	"roadside/internal/types"
)

type memRepo struct {
	mu            sync.Mutex
	requests      map[types.ID]*ServiceRequest
	confirmations []*Confirmation
	chats         []Chat
	ratings       map[types.ID][]int
	insertErr     error
}

func newMemRepo() *memRepo {
	return &memRepo{requests: map[types.ID]*ServiceRequest{}, ratings: map[types.ID][]int{}}
}

func (r *memRepo) CreateRequest(_ context.Context, req *ServiceRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *req
	r.requests[req.ID] = &cp
	return nil
}

func (r *memRepo) GetRequest(_ context.Context, id types.ID) (*ServiceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (r *memRepo) UpdateRequestStatus(_ context.Context, id types.ID, from, to RequestStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.Status != from {
		return false, nil
	}
	req.Status = to
	return true, nil
}

func (r *memRepo) InsertConfirmations(_ context.Context, cs []Confirmation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	for i := range cs {
		c := cs[i]
		r.confirmations = append(r.confirmations, &c)
	}
	return nil
}

func (r *memRepo) find(requestID, mechanicID types.ID) *Confirmation {
	for _, c := range r.confirmations {
		if c.ServiceRequestID == requestID && c.MechanicID == mechanicID {
			return c
		}
	}
	return nil
}

func (r *memRepo) GetConfirmation(_ context.Context, requestID, mechanicID types.ID) (*Confirmation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.find(requestID, mechanicID)
	if c == nil {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memRepo) RespondConfirmation(_ context.Context, requestID, mechanicID types.ID, to ConfirmationStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.find(requestID, mechanicID)
	if c == nil || c.Status != ConfirmationPending {
		return false, nil
	}
	c.Status = to
	c.RespondedAt = &at
	return true, nil
}

func (r *memRepo) ListConfirmations(_ context.Context, requestID types.ID) ([]Confirmation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Confirmation
	for _, c := range r.confirmations {
		if c.ServiceRequestID == requestID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memRepo) AverageRatings(_ context.Context, ids []types.ID) (map[types.ID]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[types.ID]float64{}
	for _, id := range ids {
		rs := r.ratings[id]
		if len(rs) == 0 {
			continue
		}
		sum := 0
		for _, v := range rs {
			sum += v
		}
		out[id] = float64(sum) / float64(len(rs))
	}
	return out, nil
}

func (r *memRepo) ConfirmWithChat(_ context.Context, requestID, mechanicID types.ID, chat Chat) (*ServiceRequest, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[requestID]
	if !ok || req.Status != StatusRequested {
		return nil, false, nil
	}
	req.Status = StatusConfirmed
	m := mechanicID
	req.MechanicID = &m
	r.chats = append(r.chats, chat)
	cp := *req
	return &cp, true, nil
}

func (r *memRepo) confirmationCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.confirmations)
}

func (r *memRepo) setConfirmationStatus(requestID, mechanicID types.ID, s ConfirmationStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.find(requestID, mechanicID).Status = s
}

type fakeFinder struct {
	candidates []discovery.Candidate
	err        error
}

func (f *fakeFinder) FindNearby(context.Context, discovery.NearbyQuery) ([]discovery.Candidate, error) {
	return f.candidates, f.err
}

func (f *fakeFinder) GetMany(_ context.Context, ids []types.ID) (map[types.ID]*discovery.Mechanic, error) {
	out := map[types.ID]*discovery.Mechanic{}
	for _, id := range ids {
		for i := range f.candidates {
			if f.candidates[i].Mechanic.ID == id {
				m := f.candidates[i].Mechanic
				out[id] = &m
			}
		}
	}
	return out, nil
}

// fakeRoutes answers by destination; delay lets tests force out-of-order completion.
type fakeRoutes struct {
	byDest map[types.Point]routing.Estimate
	fail   map[types.Point]error
	delay  map[types.Point]time.Duration
	calls  atomic.Int32
}

func (f *fakeRoutes) DistanceAndDuration(ctx context.Context, _, dest types.Point) (routing.Estimate, error) {
	f.calls.Add(1)
	if d, ok := f.delay[dest]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return routing.Estimate{}, ctx.Err()
		}
	}
	if err, ok := f.fail[dest]; ok {
		return routing.Estimate{}, err
	}
	return f.byDest[dest], nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
	errs []error
	gate chan struct{}
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, msg notify.Message) error {
	if n.gate != nil {
		<-n.gate
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	n.errs = append(n.errs, ctx.Err())
	return n.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func mechanicAt(id types.ID, name string, p types.Point, meters float64) discovery.Candidate {
	return discovery.Candidate{
		Mechanic: discovery.Mechanic{
			ID:           id,
			Name:         name,
			Approved:     true,
			ServiceTypes: []types.ServiceType{types.ServiceTow},
			Location:     discovery.NewGeoPoint(p),
			PushToken:    "token-" + string(id),
		},
		DistanceMeters: meters,
	}
}

var (
	origin = types.Point{Lat: 12.9716, Lng: 77.5946}
	pNear  = types.Point{Lat: 12.9750, Lng: 77.5946}
	pMid   = types.Point{Lat: 12.9900, Lng: 77.5946}
	pFar   = types.Point{Lat: 13.0100, Lng: 77.5946}
)

type fixture struct {
	repo     *memRepo
	finder   *fakeFinder
	routes   *fakeRoutes
	notifier *recordingNotifier
	svc      *Service
}

func newFixture(concurrency int) *fixture {
	f := &fixture{
		repo: newMemRepo(),
		finder: &fakeFinder{candidates: []discovery.Candidate{
			mechanicAt("m-near", "Near Garage", pNear, 380),
			mechanicAt("m-mid", "Mid Motors", pMid, 2050),
			mechanicAt("m-far", "Far Fixers", pFar, 4270),
		}},
		routes: &fakeRoutes{
			byDest: map[types.Point]routing.Estimate{
				pNear: {Meters: 850, Seconds: 180, DistanceText: "850 m", DurationText: "3 mins"},
				pMid:  {Meters: 10000, Seconds: 1200, DistanceText: "10.0 km", DurationText: "20 mins"},
				pFar:  {Meters: 15500, Seconds: 1800, DistanceText: "15.5 km", DurationText: "30 mins"},
			},
			fail:  map[types.Point]error{},
			delay: map[types.Point]time.Duration{},
		},
		notifier: &recordingNotifier{},
	}
	f.svc = NewService(f.repo, f.finder, f.routes, pricing.NewService(pricing.DefaultTable(), "INR"), quietLogger(), Options{
		RouteConcurrency: concurrency,
		Notifier:         f.notifier,
		NotifyTimeout:    time.Second,
	})
	return f
}

func towCommand() InitiateCommand {
	return InitiateCommand{
		UserID:      "u1",
		ServiceType: types.ServiceTow,
		Origin:      origin,
		Description: "flat battery on the ring road",
	}
}
