package swap_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	dbfs "github.com/garnizeh/skillswap/db"
	"github.com/garnizeh/skillswap/internal/apperr"
	"github.com/garnizeh/skillswap/internal/db"
	"github.com/garnizeh/skillswap/internal/rating"
	"github.com/garnizeh/skillswap/internal/repository/sqlite"
	"github.com/garnizeh/skillswap/internal/swap"
	"github.com/garnizeh/skillswap/pkg/models"
	"github.com/garnizeh/skillswap/pkg/repository"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
}

type fixture struct {
	db   *db.DB
	repo *sqlite.SQLiteRepo
	svc  *swap.Service

	alice, bob, carol int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_").Replace(t.Name()))
	d, err := db.New(ctx, dsn, slog.Default())
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := db.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	repo := sqlite.New(d, slog.Default())
	f := &fixture{db: d, repo: repo, svc: swap.NewService(repo, slog.Default())}
	f.alice = f.user(t, "Alice", "alice@example.com")
	f.bob = f.user(t, "Bob", "bob@example.com")
	f.carol = f.user(t, "Carol", "carol@example.com")
	return f
}

func (f *fixture) user(t *testing.T, name, email string) int64 {
	t.Helper()
	id, err := f.repo.CreateUser(context.Background(), models.NewUser(name, email, "hash"))
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return id
}

func (f *fixture) counters(t *testing.T, id int64) models.SwapCounters {
	t.Helper()
	u, err := f.repo.GetByID(context.Background(), id)
	if err != nil || u == nil {
		t.Fatalf("get user %d: %v", id, err)
	}
	return u.TotalSwaps
}

func (f *fixture) notifications(t *testing.T, id int64) []models.Notification {
	t.Helper()
	list, _, err := f.repo.ListNotifications(context.Background(), repository.NotificationFilter{RecipientID: id, Limit: 100})
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	return list
}

func (f *fixture) jobCount(t *testing.T, typ string) int {
	t.Helper()
	var n int
	if err := f.db.QueryRow(context.Background(), `SELECT COUNT(1) FROM jobs WHERE type = ?`, typ).Scan(&n); err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	return n
}

func (f *fixture) request(t *testing.T) *models.Swap {
	t.Helper()
	sw, err := f.svc.Create(context.Background(), swap.CreateInput{
		RequesterID:    f.alice,
		RecipientID:    f.bob,
		RequestedSkill: models.Skill{Name: "Guitar"},
		OfferedSkill:   models.Skill{Name: "Cooking", Description: "Italian basics"},
		Message:        "Weekends work for me",
	})
	if err != nil {
		t.Fatalf("create swap: %v", err)
	}
	return sw
}

func wantKind(t *testing.T, err error, kind apperr.Kind) *apperr.Error {
	t.Helper()
	ae, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected *apperr.Error of kind %s, got %v", kind, err)
	}
	if ae.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%s)", kind, ae.Kind, ae.Message)
	}
	return ae
}

func TestCreateSwap(t *testing.T) {
	f := newFixture(t)
	sw := f.request(t)

	if sw.Status != models.StatusPending {
		t.Fatalf("expected pending, got %s", sw.Status)
	}
	if !sw.IsRead.Requester || sw.IsRead.Recipient {
		t.Fatalf("unexpected read flags %+v", sw.IsRead)
	}
	if sw.Requester == nil || sw.Requester.Name != "Alice" || sw.Recipient.Name != "Bob" {
		t.Fatalf("parties not populated: %+v %+v", sw.Requester, sw.Recipient)
	}

	if c := f.counters(t, f.alice); c.Pending != 1 || c.Completed != 0 {
		t.Fatalf("requester counters %+v", c)
	}
	if c := f.counters(t, f.bob); c.Pending != 0 {
		t.Fatalf("recipient counters %+v", c)
	}

	notes := f.notifications(t, f.bob)
	if len(notes) != 1 {
		t.Fatalf("expected 1 notification for recipient, got %d", len(notes))
	}
	n := notes[0]
	if n.Type != models.NotifSwapRequest || n.IsRead {
		t.Fatalf("unexpected notification %+v", n)
	}
	if n.Message != "Alice wants to swap Cooking for Guitar" {
		t.Fatalf("unexpected message %q", n.Message)
	}
	if n.SenderID == nil || *n.SenderID != f.alice || n.RelatedSwapID == nil || *n.RelatedSwapID != sw.ID {
		t.Fatalf("notification links wrong: %+v", n)
	}
	if len(f.notifications(t, f.alice)) != 0 {
		t.Fatal("requester should not be notified")
	}
}

func TestCreateSwapRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	banned := f.user(t, "Mallory", "mallory@example.com")
	if err := f.repo.SetBanned(ctx, banned, true, "spam"); err != nil {
		t.Fatalf("ban: %v", err)
	}

	skill := models.Skill{Name: "Guitar"}
	tests := []struct {
		name string
		in   swap.CreateInput
		kind apperr.Kind
	}{
		{"self", swap.CreateInput{RequesterID: f.alice, RecipientID: f.alice, RequestedSkill: skill, OfferedSkill: skill}, apperr.InvalidRequest},
		{"blank skill", swap.CreateInput{RequesterID: f.alice, RecipientID: f.bob, RequestedSkill: models.Skill{Name: "  "}, OfferedSkill: skill}, apperr.InvalidRequest},
		{"unknown recipient", swap.CreateInput{RequesterID: f.alice, RecipientID: 9999, RequestedSkill: skill, OfferedSkill: skill}, apperr.InvalidRequest},
		{"banned recipient", swap.CreateInput{RequesterID: f.alice, RecipientID: banned, RequestedSkill: skill, OfferedSkill: skill}, apperr.InvalidRequest},
		{"banned requester", swap.CreateInput{RequesterID: banned, RecipientID: f.bob, RequestedSkill: skill, OfferedSkill: skill}, apperr.Forbidden},
		{"unknown requester", swap.CreateInput{RequesterID: 9999, RecipientID: f.bob, RequestedSkill: skill, OfferedSkill: skill}, apperr.Unauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.in)
			wantKind(t, err, tt.kind)
		})
	}

	if c := f.counters(t, f.alice); c.Pending != 0 {
		t.Fatalf("failed creates changed counters: %+v", c)
	}
	if len(f.notifications(t, f.bob)) != 0 {
		t.Fatal("failed creates produced notifications")
	}
}

func TestAcceptThenComplete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sw := f.request(t)

	accepted, err := f.svc.Transition(ctx, sw.ID, f.bob, models.StatusAccepted, nil)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != models.StatusAccepted {
		t.Fatalf("expected accepted, got %s", accepted.Status)
	}
	if c := f.counters(t, f.alice); c.Pending != 0 {
		t.Fatalf("requester pending after accept: %+v", c)
	}
	if c := f.counters(t, f.bob); c.Pending != 0 {
		t.Fatalf("recipient pending after accept: %+v", c)
	}
	notes := f.notifications(t, f.alice)
	if len(notes) != 1 || notes[0].Type != models.NotifSwapAccepted {
		t.Fatalf("expected swap_accepted for requester, got %+v", notes)
	}
	if notes[0].Message != "Bob accepted your swap request for Guitar" {
		t.Fatalf("unexpected message %q", notes[0].Message)
	}

	five, four := 5, 4
	fb := &models.Feedback{RequesterRating: &five, RequesterComment: "Great teacher", RecipientRating: &four}
	completed, err := f.svc.Transition(ctx, sw.ID, f.bob, models.StatusCompleted, fb)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.CompletedDate == nil {
		t.Fatal("completed date not set")
	}
	if completed.Feedback == nil || completed.Feedback.RequesterRating == nil || *completed.Feedback.RequesterRating != 5 {
		t.Fatalf("feedback not stored: %+v", completed.Feedback)
	}
	for _, id := range []int64{f.alice, f.bob} {
		if c := f.counters(t, id); c.Completed != 1 || c.Pending != 0 {
			t.Fatalf("user %d counters after complete: %+v", id, c)
		}
	}

	notes = f.notifications(t, f.alice)
	if len(notes) != 2 || notes[0].Type != models.NotifSwapCompleted {
		t.Fatalf("expected swap_completed first, got %+v", notes)
	}
	if got := f.jobCount(t, rating.JobType); got != 2 {
		t.Fatalf("expected 2 rating jobs, got %d", got)
	}

	// the queued jobs fold the feedback into the stored ratings
	if _, err := rating.Recompute(ctx, f.repo, f.bob); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	bob, _ := f.repo.GetByID(ctx, f.bob)
	if bob.Rating.Average != 5 || bob.Rating.Count != 1 {
		t.Fatalf("unexpected rating %+v", bob.Rating)
	}
}

func TestRejectReleasesPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sw := f.request(t)

	if _, err := f.svc.Transition(ctx, sw.ID, f.bob, models.StatusRejected, nil); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if c := f.counters(t, f.alice); c.Pending != 0 {
		t.Fatalf("pending after reject: %+v", c)
	}
	notes := f.notifications(t, f.alice)
	if len(notes) != 1 || notes[0].Type != models.NotifSwapRejected {
		t.Fatalf("expected swap_rejected, got %+v", notes)
	}

	_, err := f.svc.Transition(ctx, sw.ID, f.bob, models.StatusAccepted, nil)
	wantKind(t, err, apperr.InvalidTransition)
}

func TestCancelNotifiesCounterparty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sw := f.request(t)

	if _, err := f.svc.Transition(ctx, sw.ID, f.bob, models.StatusAccepted, nil); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.svc.Transition(ctx, sw.ID, f.alice, models.StatusCancelled, nil); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	notes := f.notifications(t, f.bob)
	if len(notes) != 2 || notes[0].Type != models.NotifSwapCancelled {
		t.Fatalf("expected swap_cancelled for recipient, got %+v", notes)
	}
	if notes[0].Message != "Alice cancelled the swap for Guitar" {
		t.Fatalf("unexpected message %q", notes[0].Message)
	}
	for _, id := range []int64{f.alice, f.bob} {
		if c := f.counters(t, id); c.Pending != 0 || c.Completed != 0 {
			t.Fatalf("user %d counters after cancel: %+v", id, c)
		}
	}

	_, err := f.svc.Transition(ctx, sw.ID, f.bob, models.StatusCompleted, nil)
	wantKind(t, err, apperr.InvalidTransition)
}

func TestInvalidTransitionChangesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sw := f.request(t)

	_, err := f.svc.Transition(ctx, sw.ID, f.bob, models.StatusCompleted, nil)
	ae := wantKind(t, err, apperr.InvalidTransition)
	if ae.Message != "Cannot change status from pending to completed" {
		t.Fatalf("unexpected message %q", ae.Message)
	}
	if len(ae.Effects) != 0 {
		t.Fatalf("no effects expected, got %v", ae.Effects)
	}

	got, err := f.repo.GetSwap(ctx, sw.ID)
	if err != nil || got.Status != models.StatusPending {
		t.Fatalf("swap mutated: %+v %v", got, err)
	}
	if c := f.counters(t, f.alice); c.Pending != 1 {
		t.Fatalf("counters mutated: %+v", c)
	}
	if len(f.notifications(t, f.alice)) != 0 {
		t.Fatal("notification created for invalid transition")
	}

	_, err = f.svc.Transition(ctx, sw.ID, f.bob, models.SwapStatus("archived"), nil)
	wantKind(t, err, apperr.InvalidRequest)

	_, err = f.svc.Transition(ctx, 9999, f.bob, models.StatusAccepted, nil)
	wantKind(t, err, apperr.NotFound)
}

func TestThirdPartyIsForbidden(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sw := f.request(t)

	_, err := f.svc.Transition(ctx, sw.ID, f.carol, models.StatusAccepted, nil)
	wantKind(t, err, apperr.Forbidden)

	_, err = f.svc.Get(ctx, sw.ID, f.carol)
	wantKind(t, err, apperr.Forbidden)

	err = f.svc.Delete(ctx, sw.ID, f.carol)
	wantKind(t, err, apperr.Forbidden)
}

func TestFeedbackRatingsAreBounded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sw := f.request(t)
	if _, err := f.svc.Transition(ctx, sw.ID, f.bob, models.StatusAccepted, nil); err != nil {
		t.Fatalf("accept: %v", err)
	}

	six := 6
	_, err := f.svc.Transition(ctx, sw.ID, f.bob, models.StatusCompleted, &models.Feedback{RecipientRating: &six})
	wantKind(t, err, apperr.InvalidRequest)

	got, _ := f.repo.GetSwap(ctx, sw.ID)
	if got.Status != models.StatusAccepted {
		t.Fatalf("swap mutated by rejected feedback: %s", got.Status)
	}
}

func TestDeleteSwap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sw := f.request(t)

	err := f.svc.Delete(ctx, sw.ID, f.bob)
	ae := wantKind(t, err, apperr.Forbidden)
	if ae.Message != "Only the requester can delete this swap" {
		t.Fatalf("unexpected message %q", ae.Message)
	}

	if err := f.svc.Delete(ctx, sw.ID, f.alice); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if c := f.counters(t, f.alice); c.Pending != 0 {
		t.Fatalf("pending after delete: %+v", c)
	}
	_, err = f.svc.Get(ctx, sw.ID, f.alice)
	wantKind(t, err, apperr.NotFound)

	other := f.request(t)
	if _, err := f.svc.Transition(ctx, other.ID, f.bob, models.StatusAccepted, nil); err != nil {
		t.Fatalf("accept: %v", err)
	}
	err = f.svc.Delete(ctx, other.ID, f.alice)
	ae = wantKind(t, err, apperr.InvalidTransition)
	if ae.Message != "Only pending swaps can be deleted" {
		t.Fatalf("unexpected message %q", ae.Message)
	}
}

func TestGetMarksRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sw := f.request(t)

	got, err := f.svc.Get(ctx, sw.ID, f.bob)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsRead.Recipient {
		t.Fatal("returned swap not marked read")
	}
	stored, _ := f.repo.GetSwap(ctx, sw.ID)
	if !stored.IsRead.Recipient || !stored.IsRead.Requester {
		t.Fatalf("stored flags %+v", stored.IsRead)
	}
}

func TestListSwaps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var ids []int64
	for i := 0; i < 3; i++ {
		ids = append(ids, f.request(t).ID)
	}
	if _, err := f.svc.Transition(ctx, ids[0], f.bob, models.StatusAccepted, nil); err != nil {
		t.Fatalf("accept: %v", err)
	}

	all, page, err := f.svc.List(ctx, swap.ListInput{UserID: f.bob})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || page.Total != 3 || page.Limit != swap.DefaultPageSize || page.Pages != 1 {
		t.Fatalf("unexpected listing %d %+v", len(all), page)
	}
	if all[0].ID != ids[2] {
		t.Fatalf("expected newest first, got %d", all[0].ID)
	}

	pending, page, err := f.svc.List(ctx, swap.ListInput{UserID: f.alice, Status: models.StatusPending, Page: 2, Limit: 1})
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || page.Total != 2 || page.Pages != 2 || page.Page != 2 {
		t.Fatalf("unexpected pending page %d %+v", len(pending), page)
	}

	none, _, err := f.svc.List(ctx, swap.ListInput{UserID: f.carol})
	if err != nil || len(none) != 0 {
		t.Fatalf("third party sees swaps: %v %v", none, err)
	}

	_, _, err = f.svc.List(ctx, swap.ListInput{UserID: f.alice, Status: "bogus"})
	wantKind(t, err, apperr.InvalidRequest)
}

func TestConcurrentAcceptAppliesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sw := f.request(t)

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Transition(ctx, sw.ID, f.bob, models.StatusAccepted, nil); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if success != 1 {
		t.Fatalf("expected exactly one accept, got %d", success)
	}
	if notes := f.notifications(t, f.alice); len(notes) != 1 {
		t.Fatalf("expected one notification, got %d", len(notes))
	}
}

// failingRepo wraps a SwapRepo so that one kind of write inside InTx fails
// after the earlier writes of the same transaction went through.
type failingRepo struct {
	repository.SwapRepo
	failOn string
}

var errInjected = errors.New("injected failure")

func (r *failingRepo) InTx(ctx context.Context, fn func(tx repository.SwapTx) error) error {
	return r.SwapRepo.InTx(ctx, func(tx repository.SwapTx) error {
		return fn(&failingTx{SwapTx: tx, failOn: r.failOn})
	})
}

type failingTx struct {
	repository.SwapTx
	failOn string
}

func (t *failingTx) InsertNotification(ctx context.Context, n *models.Notification) (int64, error) {
	if t.failOn == "notification" {
		return 0, errInjected
	}
	return t.SwapTx.InsertNotification(ctx, n)
}

func (t *failingTx) AdjustCounters(ctx context.Context, userID int64, pending, completed int) error {
	if t.failOn == "counters" {
		return errInjected
	}
	return t.SwapTx.AdjustCounters(ctx, userID, pending, completed)
}

func (t *failingTx) EnqueueJob(ctx context.Context, typ string, payload []byte) (int64, error) {
	if t.failOn == "job" {
		return 0, errInjected
	}
	return t.SwapTx.EnqueueJob(ctx, typ, payload)
}

func TestFailedAcceptRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sw := f.request(t)

	broken := swap.NewService(&failingRepo{SwapRepo: f.repo, failOn: "notification"}, slog.Default())
	_, err := broken.Transition(ctx, sw.ID, f.bob, models.StatusAccepted, nil)
	ae := wantKind(t, err, apperr.Internal)
	if !errors.Is(err, errInjected) {
		t.Fatalf("cause lost: %v", err)
	}
	if !ae.RolledBack {
		t.Fatal("expected RolledBack")
	}
	if len(ae.Effects) != 1 || !strings.Contains(ae.Effects[0], "pending -> accepted") {
		t.Fatalf("unexpected effects %v", ae.Effects)
	}

	got, _ := f.repo.GetSwap(ctx, sw.ID)
	if got.Status != models.StatusPending {
		t.Fatalf("status change survived rollback: %s", got.Status)
	}
	if c := f.counters(t, f.alice); c.Pending != 1 {
		t.Fatalf("counters changed: %+v", c)
	}
}

func TestFailedCompleteRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sw := f.request(t)
	if _, err := f.svc.Transition(ctx, sw.ID, f.bob, models.StatusAccepted, nil); err != nil {
		t.Fatalf("accept: %v", err)
	}

	broken := swap.NewService(&failingRepo{SwapRepo: f.repo, failOn: "job"}, slog.Default())
	_, err := broken.Transition(ctx, sw.ID, f.alice, models.StatusCompleted, nil)
	ae := wantKind(t, err, apperr.Internal)
	// status, notification and both counter updates ran before the job insert
	if !ae.RolledBack || len(ae.Effects) != 4 {
		t.Fatalf("unexpected effects %v (rolled back %v)", ae.Effects, ae.RolledBack)
	}

	got, _ := f.repo.GetSwap(ctx, sw.ID)
	if got.Status != models.StatusAccepted || got.CompletedDate != nil {
		t.Fatalf("swap changed: %+v", got)
	}
	for _, id := range []int64{f.alice, f.bob} {
		if c := f.counters(t, id); c.Completed != 0 {
			t.Fatalf("user %d counters changed: %+v", id, c)
		}
	}
	if notes := f.notifications(t, f.alice); len(notes) != 1 {
		t.Fatalf("completion notification survived rollback: %+v", notes)
	}
	if got := f.jobCount(t, rating.JobType); got != 0 {
		t.Fatalf("jobs survived rollback: %d", got)
	}
}

func TestFailedCreateRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	broken := swap.NewService(&failingRepo{SwapRepo: f.repo, failOn: "counters"}, slog.Default())
	_, err := broken.Create(ctx, swap.CreateInput{
		RequesterID:    f.alice,
		RecipientID:    f.bob,
		RequestedSkill: models.Skill{Name: "Guitar"},
		OfferedSkill:   models.Skill{Name: "Cooking"},
	})
	ae := wantKind(t, err, apperr.Internal)
	if len(ae.Effects) != 2 {
		t.Fatalf("expected insert and notification effects, got %v", ae.Effects)
	}

	list, total, err := f.repo.ListSwaps(ctx, repository.SwapFilter{UserID: f.alice})
	if err != nil || total != 0 || len(list) != 0 {
		t.Fatalf("swap survived rollback: %d %v", total, err)
	}
	if len(f.notifications(t, f.bob)) != 0 {
		t.Fatal("notification survived rollback")
	}
}
