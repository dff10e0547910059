package swap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/garnizeh/skillswap/internal/apperr"
	"github.com/garnizeh/skillswap/internal/metrics"
	"github.com/garnizeh/skillswap/internal/rating"
	"github.com/garnizeh/skillswap/pkg/models"
	"github.com/garnizeh/skillswap/pkg/repository"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Service runs the swap lifecycle. Every operation that writes executes its
// status change, counter updates, notifications and jobs in one transaction.
type Service struct {
	repo   repository.SwapRepo
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo repository.SwapRepo, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

type CreateInput struct {
	RequesterID    int64
	RecipientID    int64
	RequestedSkill models.Skill
	OfferedSkill   models.Skill
	Message        string
	ScheduledDate  *time.Time
}

// effects records the writes applied inside a transaction so a failure can
// report them.
type effects []string

func (e *effects) add(format string, args ...any) {
	*e = append(*e, fmt.Sprintf(format, args...))
}

// fail attaches the applied steps to err. The transaction has been rolled
// back by the time this runs.
func (s *Service) fail(op string, err error, applied effects) error {
	ae, ok := apperr.As(err)
	if !ok {
		ae = apperr.Wrap(apperr.Internal, op+" failed", err)
	}
	ae.Effects = append([]string(nil), applied...)
	ae.RolledBack = true

	if ae.Kind == apperr.Internal || ae.Kind == apperr.Conflict {
		s.logger.Error("swap operation rolled back",
			slog.String("op", op),
			slog.String("kind", string(ae.Kind)),
			slog.Any("effects", ae.Effects),
			slog.Any("err", err),
		)
	}
	return ae
}

// Create inserts a pending swap, notifies the recipient and counts the swap
// as pending for the requester.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Swap, error) {
	in.RequestedSkill.Name = strings.TrimSpace(in.RequestedSkill.Name)
	in.OfferedSkill.Name = strings.TrimSpace(in.OfferedSkill.Name)

	if in.RequesterID == in.RecipientID {
		return nil, apperr.New(apperr.InvalidRequest, "Cannot send swap request to yourself")
	}
	if in.RecipientID <= 0 || in.RequestedSkill.Name == "" || in.OfferedSkill.Name == "" {
		return nil, apperr.New(apperr.InvalidRequest, "Recipient, requested skill, and offered skill are required")
	}

	var (
		applied effects
		created *models.Swap
	)
	err := s.repo.InTx(ctx, func(tx repository.SwapTx) error {
		requester, err := tx.GetUser(ctx, in.RequesterID)
		if err != nil {
			return err
		}
		if requester == nil {
			return apperr.New(apperr.Unauthenticated, "User not found")
		}
		if requester.IsBanned {
			return apperr.New(apperr.Forbidden, "Account is banned")
		}

		recipient, err := tx.GetUser(ctx, in.RecipientID)
		if err != nil {
			return err
		}
		if recipient == nil || recipient.IsBanned {
			return apperr.New(apperr.InvalidRequest, "Recipient not found or unavailable")
		}

		id, err := tx.InsertSwap(ctx, &models.Swap{
			RequesterID:    in.RequesterID,
			RecipientID:    in.RecipientID,
			RequestedSkill: in.RequestedSkill,
			OfferedSkill:   in.OfferedSkill,
			Status:         models.StatusPending,
			Message:        in.Message,
			ScheduledDate:  in.ScheduledDate,
		})
		if err != nil {
			return err
		}
		applied.add("swap %d inserted", id)

		if err := s.notify(ctx, tx, &applied, &models.Notification{
			RecipientID:   in.RecipientID,
			SenderID:      &in.RequesterID,
			Type:          models.NotifSwapRequest,
			Title:         "New Swap Request",
			Message:       fmt.Sprintf("%s wants to swap %s for %s", requester.Name, in.OfferedSkill.Name, in.RequestedSkill.Name),
			RelatedSwapID: &id,
		}); err != nil {
			return err
		}

		if err := tx.AdjustCounters(ctx, in.RequesterID, 1, 0); err != nil {
			return err
		}
		applied.add("user %d pending +1", in.RequesterID)

		created, err = tx.GetSwap(ctx, id)
		return err
	})
	if err != nil {
		metrics.RecordSwapTransition(string(models.StatusPending), string(apperr.KindOf(err)))
		return nil, s.fail("create swap", err, applied)
	}

	metrics.RecordSwapTransition(string(models.StatusPending), "ok")
	metrics.RecordNotification(string(models.NotifSwapRequest))
	s.logger.Info("swap created", "swap_id", created.ID, "requester_id", in.RequesterID, "recipient_id", in.RecipientID)

	return created, nil
}

// Transition moves the swap to status to on behalf of callerID. Feedback is
// only stored when completing.
func (s *Service) Transition(ctx context.Context, swapID, callerID int64, to models.SwapStatus, fb *models.Feedback) (*models.Swap, error) {
	if !to.Valid() {
		return nil, apperr.Newf(apperr.InvalidRequest, "Invalid status %q", to)
	}
	if to == models.StatusCompleted && fb != nil {
		if err := checkFeedback(fb); err != nil {
			return nil, err
		}
	} else {
		fb = nil
	}

	var (
		applied effects
		updated *models.Swap
		notif   models.NotificationType
	)
	err := s.repo.InTx(ctx, func(tx repository.SwapTx) error {
		sw, err := tx.GetSwap(ctx, swapID)
		if err != nil {
			return err
		}
		if sw == nil {
			return apperr.New(apperr.NotFound, "Swap not found")
		}
		if !sw.IsParty(callerID) {
			return apperr.New(apperr.Forbidden, "Not authorized to update this swap")
		}
		if !CanTransition(sw.Status, to) {
			return apperr.Newf(apperr.InvalidTransition, "Cannot change status from %s to %s", sw.Status, to)
		}

		var completedAt *time.Time
		if to == models.StatusCompleted {
			now := s.now().UTC()
			completedAt = &now
		}
		ok, err := tx.UpdateSwapStatus(ctx, swapID, sw.Status, to, completedAt, fb)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Newf(apperr.Conflict, "Swap %d changed concurrently", swapID)
		}
		applied.add("swap %d status %s -> %s", swapID, sw.Status, to)

		n, err := s.applyEffects(ctx, tx, &applied, sw, callerID, to)
		if err != nil {
			return err
		}
		notif = n

		updated, err = tx.GetSwap(ctx, swapID)
		return err
	})
	if err != nil {
		metrics.RecordSwapTransition(string(to), string(apperr.KindOf(err)))
		return nil, s.fail("transition swap", err, applied)
	}

	metrics.RecordSwapTransition(string(to), "ok")
	if notif != "" {
		metrics.RecordNotification(string(notif))
	}
	s.logger.Info("swap transitioned", "swap_id", swapID, "caller_id", callerID, "status", to)

	return updated, nil
}

// applyEffects performs the counter, notification and job writes of a
// transition that has already flipped the status.
func (s *Service) applyEffects(ctx context.Context, tx repository.SwapTx, applied *effects, sw *models.Swap, callerID int64, to models.SwapStatus) (models.NotificationType, error) {
	recipientName := sw.Recipient.Name
	requested := sw.RequestedSkill.Name

	switch to {
	case models.StatusAccepted, models.StatusRejected:
		n := &models.Notification{
			RecipientID:   sw.RequesterID,
			SenderID:      &sw.RecipientID,
			RelatedSwapID: &sw.ID,
		}
		if to == models.StatusAccepted {
			n.Type = models.NotifSwapAccepted
			n.Title = "Swap Accepted"
			n.Message = fmt.Sprintf("%s accepted your swap request for %s", recipientName, requested)
		} else {
			n.Type = models.NotifSwapRejected
			n.Title = "Swap Rejected"
			n.Message = fmt.Sprintf("%s rejected your swap request for %s", recipientName, requested)
		}
		if err := s.notify(ctx, tx, applied, n); err != nil {
			return "", err
		}
		for _, uid := range []int64{sw.RequesterID, sw.RecipientID} {
			if err := tx.AdjustCounters(ctx, uid, -1, 0); err != nil {
				return "", err
			}
			applied.add("user %d pending -1", uid)
		}
		return n.Type, nil

	case models.StatusCompleted:
		n := &models.Notification{
			RecipientID:   sw.RequesterID,
			SenderID:      &sw.RecipientID,
			Type:          models.NotifSwapCompleted,
			Title:         "Swap Completed",
			Message:       fmt.Sprintf("Your swap with %s has been completed successfully", recipientName),
			RelatedSwapID: &sw.ID,
		}
		if err := s.notify(ctx, tx, applied, n); err != nil {
			return "", err
		}
		for _, uid := range []int64{sw.RequesterID, sw.RecipientID} {
			if err := tx.AdjustCounters(ctx, uid, 0, 1); err != nil {
				return "", err
			}
			applied.add("user %d completed +1", uid)
		}
		for _, uid := range []int64{sw.RequesterID, sw.RecipientID} {
			payload, err := rating.NewPayload(uid)
			if err != nil {
				return "", err
			}
			if _, err := tx.EnqueueJob(ctx, rating.JobType, payload); err != nil {
				return "", err
			}
			applied.add("job %s queued for user %d", rating.JobType, uid)
		}
		return n.Type, nil

	case models.StatusCancelled:
		// pending counters were released on accept; only the other party
		// is told.
		callerName := sw.Requester.Name
		if callerID == sw.RecipientID {
			callerName = recipientName
		}
		n := &models.Notification{
			RecipientID:   sw.Counterparty(callerID),
			SenderID:      &callerID,
			Type:          models.NotifSwapCancelled,
			Title:         "Swap Cancelled",
			Message:       fmt.Sprintf("%s cancelled the swap for %s", callerName, requested),
			RelatedSwapID: &sw.ID,
		}
		if err := s.notify(ctx, tx, applied, n); err != nil {
			return "", err
		}
		return n.Type, nil
	}

	return "", nil
}

func (s *Service) notify(ctx context.Context, tx repository.SwapTx, applied *effects, n *models.Notification) error {
	id, err := tx.InsertNotification(ctx, n)
	if err != nil {
		return err
	}
	applied.add("notification %d (%s) to user %d", id, n.Type, n.RecipientID)
	return nil
}

func checkFeedback(fb *models.Feedback) error {
	for _, r := range []*int{fb.RequesterRating, fb.RecipientRating} {
		if r != nil && (*r < 1 || *r > 5) {
			return apperr.New(apperr.InvalidRequest, "Ratings must be between 1 and 5")
		}
	}
	if len(fb.RequesterComment) > 500 || len(fb.RecipientComment) > 500 {
		return apperr.New(apperr.InvalidRequest, "Feedback comments cannot exceed 500 characters")
	}
	return nil
}

// Delete removes a pending swap owned by callerID.
func (s *Service) Delete(ctx context.Context, swapID, callerID int64) error {
	var applied effects
	err := s.repo.InTx(ctx, func(tx repository.SwapTx) error {
		sw, err := tx.GetSwap(ctx, swapID)
		if err != nil {
			return err
		}
		if sw == nil {
			return apperr.New(apperr.NotFound, "Swap not found")
		}
		if sw.RequesterID != callerID {
			return apperr.New(apperr.Forbidden, "Only the requester can delete this swap")
		}
		if sw.Status != models.StatusPending {
			return apperr.New(apperr.InvalidTransition, "Only pending swaps can be deleted")
		}

		ok, err := tx.DeletePendingSwap(ctx, swapID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Newf(apperr.Conflict, "Swap %d changed concurrently", swapID)
		}
		applied.add("swap %d deleted", swapID)

		if err := tx.AdjustCounters(ctx, callerID, -1, 0); err != nil {
			return err
		}
		applied.add("user %d pending -1", callerID)
		return nil
	})
	if err != nil {
		return s.fail("delete swap", err, applied)
	}

	s.logger.Info("swap deleted", "swap_id", swapID, "caller_id", callerID)
	return nil
}

// Get returns the swap if callerID is a party and marks it read for them.
func (s *Service) Get(ctx context.Context, swapID, callerID int64) (*models.Swap, error) {
	sw, err := s.repo.GetSwap(ctx, swapID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "load swap", err)
	}
	if sw == nil {
		return nil, apperr.New(apperr.NotFound, "Swap not found")
	}
	if !sw.IsParty(callerID) {
		return nil, apperr.New(apperr.Forbidden, "Not authorized to view this swap")
	}

	if err := s.repo.MarkSwapRead(ctx, swapID, callerID); err != nil {
		s.logger.Warn("mark swap read", "swap_id", swapID, "err", err)
	} else if callerID == sw.RequesterID {
		sw.IsRead.Requester = true
	} else {
		sw.IsRead.Recipient = true
	}

	return sw, nil
}

type ListInput struct {
	UserID int64
	Status models.SwapStatus
	Page   int
	Limit  int
}

// List returns the caller's swaps, newest first.
func (s *Service) List(ctx context.Context, in ListInput) ([]models.Swap, models.Pagination, error) {
	if in.Status != "" && !in.Status.Valid() {
		return nil, models.Pagination{}, apperr.Newf(apperr.InvalidRequest, "Invalid status %q", in.Status)
	}
	page, limit := normalizePage(in.Page, in.Limit)

	swaps, total, err := s.repo.ListSwaps(ctx, repository.SwapFilter{
		UserID: in.UserID,
		Status: in.Status,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return nil, models.Pagination{}, apperr.Wrap(apperr.Internal, "list swaps", err)
	}

	return swaps, models.NewPagination(page, limit, total), nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}
