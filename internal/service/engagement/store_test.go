package engagement

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"gigmarket/internal/model"
)

type sentNotification struct {
	UserID  int64
	Type    string
	Payload map[string]any
}

type sentMessage struct {
	SenderID, RecipientID, ProjectID int64
	Body                             string
}

// memState is one snapshot of the fake database.
type memState struct {
	nextID        int64
	clock         int64
	projects      map[int64]model.Project
	bids          map[int64]model.Bid
	assignments   map[int64]model.Assignment
	milestones    map[int64]model.Milestone
	reviews       map[int64]model.Review
	users         map[int64]model.User
	notifications map[int64]model.Notification
	sent          []sentNotification
	messages      []sentMessage
}

func newMemState() *memState {
	return &memState{
		projects:      map[int64]model.Project{},
		bids:          map[int64]model.Bid{},
		assignments:   map[int64]model.Assignment{},
		milestones:    map[int64]model.Milestone{},
		reviews:       map[int64]model.Review{},
		users:         map[int64]model.User{},
		notifications: map[int64]model.Notification{},
	}
}

func (s *memState) clone() *memState {
	return &memState{
		nextID:        s.nextID,
		clock:         s.clock,
		projects:      maps.Clone(s.projects),
		bids:          maps.Clone(s.bids),
		assignments:   maps.Clone(s.assignments),
		milestones:    maps.Clone(s.milestones),
		reviews:       maps.Clone(s.reviews),
		users:         maps.Clone(s.users),
		notifications: maps.Clone(s.notifications),
		sent:          slices.Clone(s.sent),
		messages:      slices.Clone(s.messages),
	}
}

func (s *memState) id() int64 {
	s.nextID++
	return s.nextID
}

// now is a logical clock; every call is one second after the last.
func (s *memState) now() time.Time {
	s.clock++
	return time.Unix(1_760_000_000+s.clock, 0).UTC()
}

// memStore serializes transactions and applies a transaction's snapshot only
// when fn succeeds, so rollbacks are observable.
type memStore struct {
	mu        sync.Mutex
	state     *memState
	notifyErr error
	// failOn makes the named repository call fail, e.g. "milestones.create".
	failOn map[string]error
}

func newMemStore() *memStore {
	return &memStore{state: newMemState(), failOn: map[string]error{}}
}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(ctx, &memTx{st: work, store: m}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *memStore) snapshot() *memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

type memTx struct {
	st    *memState
	store *memStore
}

func (t *memTx) fail(op string) error { return t.store.failOn[op] }

func (t *memTx) Projects() ProjectRepository           { return memProjects{t} }
func (t *memTx) Bids() BidRepository                   { return memBids{t} }
func (t *memTx) Assignments() AssignmentRepository     { return memAssignments{t} }
func (t *memTx) Milestones() MilestoneRepository       { return memMilestones{t} }
func (t *memTx) Reviews() ReviewRepository             { return memReviews{t} }
func (t *memTx) Users() UserRepository                 { return memUsers{t} }
func (t *memTx) Notifications() NotificationRepository { return memNotifications{t} }
func (t *memTx) Notifier() Notifier                    { return memNotifier{t} }

type memProjects struct{ *memTx }

func (r memProjects) Create(_ context.Context, p *model.Project) error {
	if err := r.fail("projects.create"); err != nil {
		return err
	}
	p.ID = r.st.id()
	p.CreatedAt, p.UpdatedAt = time.Now(), time.Now()
	r.st.projects[p.ID] = *p
	return nil
}

func (r memProjects) GetByID(_ context.Context, id int64) (*model.Project, error) {
	p, ok := r.st.projects[id]
	if !ok {
		return nil, ErrNoRecord
	}
	return &p, nil
}

func (r memProjects) GetForUpdate(ctx context.Context, id int64) (*model.Project, error) {
	return r.GetByID(ctx, id)
}

func (r memProjects) List(_ context.Context, f ProjectFilter) ([]*model.Project, error) {
	var out []*model.Project
	for _, id := range sortedKeys(r.st.projects) {
		p := r.st.projects[id]
		if (f.ClientID == 0 || p.ClientID == f.ClientID) && (f.Status == "" || p.Status == f.Status) {
			out = append(out, &p)
		}
	}
	return out, nil
}

func (r memProjects) UpdateStatus(_ context.Context, id int64, status string) error {
	if err := r.fail("projects.update_status"); err != nil {
		return err
	}
	p, ok := r.st.projects[id]
	if !ok {
		return ErrNoRecord
	}
	p.Status = status
	r.st.projects[id] = p
	return nil
}

type memBids struct{ *memTx }

func (r memBids) Create(_ context.Context, b *model.Bid) error {
	for _, other := range r.st.bids {
		if other.ProjectID == b.ProjectID && other.ContributorID == b.ContributorID {
			return ErrDuplicateRecord
		}
	}
	b.ID = r.st.id()
	b.CreatedAt = r.st.now()
	b.UpdatedAt = b.CreatedAt
	r.st.bids[b.ID] = *b
	return nil
}

func (r memBids) GetByID(_ context.Context, id int64) (*model.Bid, error) {
	b, ok := r.st.bids[id]
	if !ok {
		return nil, ErrNoRecord
	}
	return &b, nil
}

func (r memBids) GetForUpdate(ctx context.Context, id int64) (*model.Bid, error) {
	return r.GetByID(ctx, id)
}

func (r memBids) GetByProjectAndContributor(_ context.Context, projectID, contributorID int64) (*model.Bid, error) {
	for _, b := range r.st.bids {
		if b.ProjectID == projectID && b.ContributorID == contributorID {
			return &b, nil
		}
	}
	return nil, ErrNoRecord
}

func (r memBids) List(_ context.Context, q BidQuery) ([]*model.Bid, error) {
	var out []*model.Bid
	for _, id := range sortedKeys(r.st.bids) {
		b := r.st.bids[id]
		switch {
		case q.ProjectID != 0 && b.ProjectID != q.ProjectID,
			q.ContributorID != 0 && b.ContributorID != q.ContributorID,
			q.Status != "" && b.Status != q.Status,
			q.ExcludeRejected && b.Status == model.BidStatusRejected:
			continue
		}
		out = append(out, &b)
	}
	slices.SortStableFunc(out, func(a, b *model.Bid) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (r memBids) Accepted(_ context.Context, projectID int64) (*model.Bid, error) {
	for _, b := range r.st.bids {
		if b.ProjectID == projectID && b.Status == model.BidStatusAccepted {
			return &b, nil
		}
	}
	return nil, ErrNoRecord
}

func (r memBids) Update(_ context.Context, b *model.Bid) error {
	if _, ok := r.st.bids[b.ID]; !ok {
		return ErrNoRecord
	}
	b.UpdatedAt = r.st.now()
	r.st.bids[b.ID] = *b
	return nil
}

func (r memBids) Reopen(_ context.Context, b *model.Bid) error {
	cur, ok := r.st.bids[b.ID]
	if !ok || cur.Status != model.BidStatusRejected {
		return ErrNoRecord
	}
	b.Status = model.BidStatusPending
	b.CreatedAt = r.st.now()
	b.UpdatedAt = b.CreatedAt
	r.st.bids[b.ID] = *b
	return nil
}

func (r memBids) UpdateStatus(_ context.Context, id int64, status string) error {
	b, ok := r.st.bids[id]
	if !ok {
		return ErrNoRecord
	}
	if status == model.BidStatusAccepted {
		// mirrors the partial unique index on accepted bids
		for _, other := range r.st.bids {
			if other.ProjectID == b.ProjectID && other.ID != id && other.Status == model.BidStatusAccepted {
				return ErrDuplicateRecord
			}
		}
	}
	b.Status = status
	r.st.bids[id] = b
	return nil
}

type memAssignments struct{ *memTx }

func (r memAssignments) Create(_ context.Context, a *model.Assignment) error {
	for _, other := range r.st.assignments {
		if other.ProjectID == a.ProjectID {
			return ErrDuplicateRecord
		}
	}
	a.ID = r.st.id()
	r.st.assignments[a.ID] = *a
	return nil
}

func (r memAssignments) GetByID(_ context.Context, id int64) (*model.Assignment, error) {
	a, ok := r.st.assignments[id]
	if !ok {
		return nil, ErrNoRecord
	}
	return &a, nil
}

func (r memAssignments) GetByProject(_ context.Context, projectID int64) (*model.Assignment, error) {
	for _, a := range r.st.assignments {
		if a.ProjectID == projectID {
			return &a, nil
		}
	}
	return nil, ErrNoRecord
}

type memMilestones struct{ *memTx }

func (r memMilestones) Create(ctx context.Context, m *model.Milestone) error {
	if err := r.fail("milestones.create"); err != nil {
		return err
	}
	if exists, _ := r.Exists(ctx, m.AssignmentID, m.Title, m.DueDate); exists {
		return ErrDuplicateRecord
	}
	m.ID = r.st.id()
	r.st.milestones[m.ID] = *m
	return nil
}

func (r memMilestones) GetByID(_ context.Context, id int64) (*model.Milestone, error) {
	m, ok := r.st.milestones[id]
	if !ok {
		return nil, ErrNoRecord
	}
	return &m, nil
}

func (r memMilestones) GetForUpdate(ctx context.Context, id int64) (*model.Milestone, error) {
	return r.GetByID(ctx, id)
}

func (r memMilestones) Exists(_ context.Context, assignmentID int64, title, dueDate string) (bool, error) {
	for _, m := range r.st.milestones {
		if m.AssignmentID == assignmentID && m.Title == title && m.DueDate == dueDate {
			return true, nil
		}
	}
	return false, nil
}

func (r memMilestones) ListByAssignment(_ context.Context, assignmentID int64) ([]*model.Milestone, error) {
	var out []*model.Milestone
	for _, id := range sortedKeys(r.st.milestones) {
		m := r.st.milestones[id]
		if m.AssignmentID == assignmentID {
			out = append(out, &m)
		}
	}
	return out, nil
}

func (r memMilestones) Update(_ context.Context, m *model.Milestone) error {
	if _, ok := r.st.milestones[m.ID]; !ok {
		return ErrNoRecord
	}
	r.st.milestones[m.ID] = *m
	return nil
}

type memReviews struct{ *memTx }

func (r memReviews) Create(ctx context.Context, rv *model.Review) error {
	if exists, _ := r.Exists(ctx, rv.ProjectID, rv.ReviewerID, rv.RevieweeID); exists {
		return ErrDuplicateRecord
	}
	rv.ID = r.st.id()
	r.st.reviews[rv.ID] = *rv
	return nil
}

func (r memReviews) Exists(_ context.Context, projectID, reviewerID, revieweeID int64) (bool, error) {
	for _, rv := range r.st.reviews {
		if rv.ProjectID == projectID && rv.ReviewerID == reviewerID && rv.RevieweeID == revieweeID {
			return true, nil
		}
	}
	return false, nil
}

func (r memReviews) ListByReviewee(_ context.Context, revieweeID int64) ([]*model.Review, error) {
	var out []*model.Review
	for _, id := range sortedKeys(r.st.reviews) {
		rv := r.st.reviews[id]
		if rv.RevieweeID == revieweeID {
			out = append(out, &rv)
		}
	}
	return out, nil
}

func (r memReviews) RatingFor(_ context.Context, revieweeID int64) (float64, int, error) {
	sum, n := 0, 0
	for _, rv := range r.st.reviews {
		if rv.RevieweeID == revieweeID {
			sum += rv.Stars
			n++
		}
	}
	if n == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(n), n, nil
}

type memUsers struct{ *memTx }

func (r memUsers) Create(_ context.Context, u *model.User) error {
	for _, other := range r.st.users {
		if strings.EqualFold(other.Email, u.Email) {
			return ErrDuplicateRecord
		}
	}
	u.ID = r.st.id()
	r.st.users[u.ID] = *u
	return nil
}

func (r memUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := r.st.users[id]
	if !ok {
		return nil, ErrNoRecord
	}
	return &u, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range r.st.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, ErrNoRecord
}

func (r memUsers) UpdateRating(_ context.Context, userID int64, rating float64, count int) error {
	u, ok := r.st.users[userID]
	if !ok {
		return ErrNoRecord
	}
	u.Rating, u.RatingCount = rating, count
	r.st.users[userID] = u
	return nil
}

type memNotifications struct{ *memTx }

func (r memNotifications) ListByUser(_ context.Context, userID int64, unreadOnly bool, limit int) ([]*model.Notification, error) {
	var out []*model.Notification
	for _, id := range sortedKeys(r.st.notifications) {
		n := r.st.notifications[id]
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, &n)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r memNotifications) MarkRead(_ context.Context, id, userID int64) error {
	n, ok := r.st.notifications[id]
	if !ok || n.UserID != userID {
		return ErrNoRecord
	}
	n.IsRead = true
	r.st.notifications[id] = n
	return nil
}

// memNotifier records what would be written to the outbox.
type memNotifier struct{ *memTx }

func (r memNotifier) Notify(_ context.Context, userID int64, kind string, payload any) error {
	if r.store.notifyErr != nil {
		return r.store.notifyErr
	}
	// round-trip so tests see what consumers would see
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var decoded map[string]any
	_ = json.Unmarshal(raw, &decoded)
	r.st.sent = append(r.st.sent, sentNotification{UserID: userID, Type: kind, Payload: decoded})
	return nil
}

func (r memNotifier) Message(_ context.Context, senderID, recipientID, projectID int64, body string) error {
	if r.store.notifyErr != nil {
		return r.store.notifyErr
	}
	r.st.messages = append(r.st.messages, sentMessage{senderID, recipientID, projectID, body})
	return nil
}

func sortedKeys[V any](m map[int64]V) []int64 {
	return slices.Sorted(maps.Keys(m))
}
