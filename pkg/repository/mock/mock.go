package mock

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/garnizeh/skillswap/pkg/models"
	"github.com/garnizeh/skillswap/pkg/repository"
)

// Test helpers and mocks
type Mocks struct {
	UserRepo         *mockUserRepo
	RatingRepo       *mockRatingRepo
	NotificationRepo *mockNotificationRepo
}

func NewMocks() *Mocks {
	return &Mocks{
		UserRepo:         &mockUserRepo{Users: map[int64]*models.User{}},
		RatingRepo:       &mockRatingRepo{Ratings: map[int64][]int{}, Updated: map[int64]models.Rating{}},
		NotificationRepo: &mockNotificationRepo{},
	}
}

var (
	_ repository.UserRepo         = (*mockUserRepo)(nil)
	_ repository.RatingRepo       = (*mockRatingRepo)(nil)
	_ repository.NotificationRepo = (*mockNotificationRepo)(nil)
)

type mockUserRepo struct {
	mu        sync.Mutex
	Users     map[int64]*models.User
	nextID    int64
	CreateErr error
	GetErr    error
	// Touched counts TouchLastActive calls per user.
	Touched map[int64]int
}

// Add stores u and returns its id.
func (m *mockUserRepo) Add(u *models.User) int64 {
	id, _ := m.CreateUser(context.Background(), u)
	return id
}

func (m *mockUserRepo) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	if m.CreateErr != nil {
		return 0, m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	cp := *u
	cp.ID = m.nextID
	cp.Email = strings.ToLower(strings.TrimSpace(u.Email))
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	cp.LastActive = cp.CreatedAt
	m.Users[cp.ID] = &cp
	return cp.ID, nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.Users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.Users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, id int64, p repository.ProfileUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.Users[id]
	if !ok {
		return nil
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Location != nil {
		u.Location = *p.Location
	}
	if p.Bio != nil {
		u.Bio = *p.Bio
	}
	if p.ProfilePhoto != nil {
		u.ProfilePhoto = p.ProfilePhoto
	}
	if p.SkillsOffered != nil {
		u.SkillsOffered = *p.SkillsOffered
	}
	if p.SkillsWanted != nil {
		u.SkillsWanted = *p.SkillsWanted
	}
	if p.Availability != nil {
		u.Availability = *p.Availability
	}
	if p.AvailabilityDetails != nil {
		u.AvailabilityDetails = *p.AvailabilityDetails
	}
	if p.IsPublic != nil {
		u.IsPublic = *p.IsPublic
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *mockUserRepo) TouchLastActive(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Touched == nil {
		m.Touched = map[int64]int{}
	}
	m.Touched[id]++
	if u, ok := m.Users[id]; ok {
		u.LastActive = time.Now().UTC()
	}
	return nil
}

// ListUsers honors PublicOnly, Search on names and Status; enough for
// handler tests.
func (m *mockUserRepo) ListUsers(ctx context.Context, f repository.UserFilter) ([]models.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(m.Users))
	for id := range m.Users {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var out []models.User
	for _, id := range ids {
		u := m.Users[id]
		if f.PublicOnly && (!u.IsPublic || u.IsBanned) {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(u.Name), strings.ToLower(f.Search)) {
			continue
		}
		if (f.Status == "banned" && !u.IsBanned) || (f.Status == "active" && u.IsBanned) {
			continue
		}
		out = append(out, *u)
	}

	total := int64(len(out))
	if f.Offset >= len(out) {
		return []models.User{}, total, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (m *mockUserRepo) SetBanned(ctx context.Context, id int64, banned bool, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.Users[id]; ok {
		u.IsBanned = banned
		u.BanReason = nil
		if banned && reason != "" {
			u.BanReason = &reason
		}
	}
	return nil
}

func (m *mockUserRepo) SetVerified(ctx context.Context, id int64, verified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.Users[id]; ok {
		u.IsVerified = verified
	}
	return nil
}

type mockRatingRepo struct {
	Ratings   map[int64][]int
	Updated   map[int64]models.Rating
	ListErr   error
	UpdateErr error
}

func (m *mockRatingRepo) ReceivedRatings(ctx context.Context, userID int64) ([]int, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Ratings[userID], nil
}

func (m *mockRatingRepo) UpdateRating(ctx context.Context, userID int64, r models.Rating) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.Updated[userID] = r
	return nil
}

type mockNotificationRepo struct {
	mu    sync.Mutex
	Items []models.Notification
	Err   error
}

// Add appends n with the next id.
func (m *mockNotificationRepo) Add(n models.Notification) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	n.ID = int64(len(m.Items) + 1)
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	m.Items = append(m.Items, n)
	return n.ID
}

func (m *mockNotificationRepo) ListNotifications(ctx context.Context, f repository.NotificationFilter) ([]models.Notification, int64, error) {
	if m.Err != nil {
		return nil, 0, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.Notification{}
	for i := len(m.Items) - 1; i >= 0; i-- {
		n := m.Items[i]
		if n.RecipientID != f.RecipientID || n.IsDeleted || (f.UnreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}

	total := int64(len(out))
	if f.Offset >= len(out) {
		return []models.Notification{}, total, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, recipientID int64) (int64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, it := range m.Items {
		if it.RecipientID == recipientID && !it.IsRead && !it.IsDeleted {
			n++
		}
	}
	return n, nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, recipientID int64, ids []int64, all bool) (int64, error) {
	return m.update(recipientID, ids, all, func(n *models.Notification) bool {
		if n.IsRead {
			return false
		}
		n.IsRead = true
		return true
	})
}

func (m *mockNotificationRepo) SoftDelete(ctx context.Context, recipientID int64, ids []int64, all bool) (int64, error) {
	return m.update(recipientID, ids, all, func(n *models.Notification) bool {
		n.IsDeleted = true
		return true
	})
}

func (m *mockNotificationRepo) update(recipientID int64, ids []int64, all bool, apply func(*models.Notification) bool) (int64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var changed int64
	for i := range m.Items {
		n := &m.Items[i]
		if n.RecipientID != recipientID || n.IsDeleted {
			continue
		}
		if !all && !slices.Contains(ids, n.ID) {
			continue
		}
		if apply(n) {
			changed++
		}
	}
	return changed, nil
}
