package allocation

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vtransit/shuttle-booking/internal/model"
)

// memStore is an in-memory Store with real transaction semantics: each
// RunInTx works on a deep copy of the state and the copy replaces the
// live state only when fn succeeds, so a failed operation leaves nothing
// behind. A monotonic fake clock stamps bookings so FIFO ordering is
// deterministic even when inserts land "at the same time".
type memStore struct {
	mu    sync.Mutex
	state *memState
	clock time.Time
}

type cancellationRow struct {
	userID     uint64
	scheduleID uint64
}

type memState struct {
	schedules     map[uint64]*model.Schedule
	routes        map[uint64]*model.Route
	buses         map[uint64]*model.Bus
	users         map[uint64]*model.User
	tickets       map[uint64]*model.Ticket
	bookings      map[uint64]*model.Booking
	cancellations []cancellationRow
	nextBookingID uint64
}

func newMemStore() *memStore {
	return &memStore{
		state: &memState{
			schedules:     map[uint64]*model.Schedule{},
			routes:        map[uint64]*model.Route{},
			buses:         map[uint64]*model.Bus{},
			users:         map[uint64]*model.User{},
			tickets:       map[uint64]*model.Ticket{},
			bookings:      map[uint64]*model.Booking{},
			nextBookingID: 1,
		},
		clock: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		schedules:     make(map[uint64]*model.Schedule, len(s.schedules)),
		routes:        make(map[uint64]*model.Route, len(s.routes)),
		buses:         make(map[uint64]*model.Bus, len(s.buses)),
		users:         make(map[uint64]*model.User, len(s.users)),
		tickets:       make(map[uint64]*model.Ticket, len(s.tickets)),
		bookings:      make(map[uint64]*model.Booking, len(s.bookings)),
		cancellations: append([]cancellationRow(nil), s.cancellations...),
		nextBookingID: s.nextBookingID,
	}
	for k, v := range s.schedules {
		cp := *v
		c.schedules[k] = &cp
	}
	for k, v := range s.routes {
		cp := *v
		c.routes[k] = &cp
	}
	for k, v := range s.buses {
		cp := *v
		c.buses[k] = &cp
	}
	for k, v := range s.users {
		cp := *v
		c.users[k] = &cp
	}
	for k, v := range s.tickets {
		cp := *v
		c.tickets[k] = &cp
	}
	for k, v := range s.bookings {
		cp := *v
		c.bookings[k] = &cp
	}
	return c
}

func (m *memStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.state.clone()
	if err := fn(&memTx{store: m, state: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

// racyStore wraps a memStore but, unlike it, takes no lock and sleeps
// between running fn and publishing its state, so two overlapping
// transactions would interleave their read-decide-write sequences and
// the later commit would silently drop the earlier one's rows. Any test
// that stays consistent against this store proves the caller serialized
// its transactions; maxInflight records how many ever overlapped.
type racyStore struct {
	inner       *memStore
	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func (r *racyStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	cur := r.inflight.Add(1)
	defer r.inflight.Add(-1)
	for {
		max := r.maxInflight.Load()
		if cur <= max || r.maxInflight.CompareAndSwap(max, cur) {
			break
		}
	}

	work := r.inner.state.clone()
	err := fn(&memTx{store: r.inner, state: work})
	// Hold the decided-but-uncommitted state long enough for an
	// unserialized caller to start its own transaction from the stale
	// snapshot.
	time.Sleep(time.Millisecond)
	if err != nil {
		return err
	}
	r.inner.state = work
	return nil
}

// tick advances the fake clock so consecutive inserts get strictly
// increasing timestamps.
func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

// ----- fixture helpers -----

func (m *memStore) addUser(id uint64, email string, remaining, inHand int) {
	m.state.users[id] = &model.User{ID: id, Email: email, Username: email, Role: model.RolePassenger, IsActive: true}
	m.state.tickets[id] = &model.Ticket{UserID: id, Remaining: remaining, InHand: inHand}
}

func (m *memStore) addRoute(id uint64, origin, destination, departure string) {
	m.state.routes[id] = &model.Route{ID: id, Origin: origin, Destination: destination, DepartureTime: departure}
}

func (m *memStore) addBus(id uint64, seats int) {
	m.state.buses[id] = &model.Bus{ID: id, NumOfSeat: seats, Enabled: true}
}

func (m *memStore) addSchedule(id, routeID uint64, seats *int, busID *uint64) {
	m.state.schedules[id] = &model.Schedule{
		ID:            id,
		RouteID:       routeID,
		Date:          time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		AvailableSeat: seats,
		Enabled:       true,
		BusID:         busID,
	}
}

func (m *memStore) ticket(userID uint64) model.Ticket {
	return *m.state.tickets[userID]
}

func (m *memStore) booking(id uint64) *model.Booking {
	b, ok := m.state.bookings[id]
	if !ok {
		return nil
	}
	cp := *b
	return &cp
}

// ----- transaction view -----

type memTx struct {
	store *memStore
	state *memState
}

func (t *memTx) ScheduleByID(_ context.Context, id uint64) (*model.Schedule, error) {
	s, ok := t.state.schedules[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (t *memTx) SetScheduleEnabled(_ context.Context, id uint64, enabled bool) error {
	if s, ok := t.state.schedules[id]; ok {
		s.Enabled = enabled
	}
	return nil
}

func (t *memTx) RouteByID(_ context.Context, id uint64) (*model.Route, error) {
	r, ok := t.state.routes[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (t *memTx) BusByID(_ context.Context, id uint64) (*model.Bus, error) {
	b, ok := t.state.buses[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (t *memTx) SetBusEnabled(_ context.Context, id uint64, enabled bool) error {
	if b, ok := t.state.buses[id]; ok {
		b.Enabled = enabled
	}
	return nil
}

func (t *memTx) UserByID(_ context.Context, id uint64) (*model.User, error) {
	u, ok := t.state.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (t *memTx) SetUserOnCampus(_ context.Context, id uint64, onCampus bool) error {
	if u, ok := t.state.users[id]; ok {
		u.OnCampus = onCampus
	}
	return nil
}

func (t *memTx) TicketByUser(_ context.Context, userID uint64) (*model.Ticket, error) {
	tk, ok := t.state.tickets[userID]
	if !ok {
		return nil, nil
	}
	cp := *tk
	return &cp, nil
}

func (t *memTx) UpdateTicket(_ context.Context, userID uint64, remaining, inHand int) error {
	if tk, ok := t.state.tickets[userID]; ok {
		tk.Remaining = remaining
		tk.InHand = inHand
	}
	return nil
}

func (t *memTx) BookingByID(_ context.Context, id uint64) (*model.Booking, error) {
	b, ok := t.state.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (t *memTx) ActiveBookingByUserAndSchedule(_ context.Context, userID, scheduleID uint64) (*model.Booking, error) {
	for _, b := range t.state.bookings {
		if b.UserID == userID && b.ScheduleID == scheduleID &&
			(b.Status == model.BookingBooked || b.Status == model.BookingWaiting) {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *memTx) CountSeated(_ context.Context, scheduleID uint64) (int, error) {
	n := 0
	for _, b := range t.state.bookings {
		if b.ScheduleID == scheduleID && (b.Status == model.BookingBooked || b.Status == model.BookingUsed) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) BookingsBySchedule(_ context.Context, scheduleID uint64, status model.BookingStatus) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range t.state.bookings {
		if b.ScheduleID == scheduleID && b.Status == status {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) FirstWaiting(ctx context.Context, scheduleID uint64) (*model.Booking, error) {
	waiting, err := t.BookingsBySchedule(ctx, scheduleID, model.BookingWaiting)
	if err != nil {
		return nil, err
	}
	if len(waiting) == 0 {
		return nil, nil
	}
	return &waiting[0], nil
}

func (t *memTx) InsertBooking(_ context.Context, b *model.Booking) error {
	b.ID = t.state.nextBookingID
	t.state.nextBookingID++
	b.CreatedAt = t.store.tick()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	t.state.bookings[b.ID] = &cp
	return nil
}

func (t *memTx) UpdateBookingStatus(_ context.Context, id uint64, status model.BookingStatus, payStatus bool) error {
	if b, ok := t.state.bookings[id]; ok {
		b.Status = status
		b.PayStatus = payStatus
	}
	return nil
}

func (t *memTx) DeleteBooking(_ context.Context, id uint64) error {
	delete(t.state.bookings, id)
	return nil
}

func (t *memTx) InsertCancellation(_ context.Context, userID, scheduleID uint64) error {
	t.state.cancellations = append(t.state.cancellations, cancellationRow{userID: userID, scheduleID: scheduleID})
	return nil
}
