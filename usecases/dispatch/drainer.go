package dispatch

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"use60backend/models"
)

const (
	// drainBatchSize caps how many due rows one drain tick leases.
	drainBatchSize = 50

	// retryDelayStep spaces retries of transiently failed deliveries.
	retryDelayStep = 5 * time.Minute
)

// DrainResult aggregates the outcome counts of one drain tick.
type DrainResult struct {
	Delivered int `json:"delivered"`
	Cancelled int `json:"cancelled"`
	Requeued  int `json:"requeued"`
	Failed    int `json:"failed"`
}

// DrainDueNotifications leases a batch of due queued notifications and
// re-enters each one through the dispatch pipeline. Delivery attempts are
// counted at lease time, so a crash mid-batch still consumes retry budget.
func (u *DispatchUseCase) DrainDueNotifications(ctx context.Context) (DrainResult, error) {
	log.Printf("📋 Starting to drain due queued notifications")

	var result DrainResult
	leased, err := u.notificationsService.LeaseDueBatch(ctx, u.clk.Now(), drainBatchSize)
	if err != nil {
		return result, err
	}
	if len(leased) == 0 {
		log.Printf("📋 No due queued notifications")
		return result, nil
	}

	for _, item := range leased {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		u.settleQueued(ctx, item, &result)
	}

	log.Printf("📋 Completed successfully - drained %d queued notifications (%d delivered, %d requeued, %d cancelled, %d failed)",
		len(leased), result.Delivered, result.Requeued, result.Cancelled, result.Failed)
	return result, nil
}

// settleQueued dispatches one leased row and settles it according to the
// outcome. Transient delivery failures leave the row scheduled; the next
// lease retries it until the attempt budget runs out.
func (u *DispatchUseCase) settleQueued(ctx context.Context, item *models.QueuedNotification, result *DrainResult) {
	var payload queuedPayload
	if err := json.Unmarshal(item.Payload, &payload); err != nil || payload.Model == nil {
		reason := "malformed queued payload"
		log.Printf("❌ Dropping queued notification %s: %s", item.ID, reason)
		u.settle(ctx, item, models.QueuedStatusFailed, &reason)
		result.Failed++
		return
	}

	model := payload.Model
	req := Request{
		Feature:      item.Feature,
		OrgID:        item.OrgID,
		UserID:       item.UserID,
		EntityID:     payload.EntityID,
		Priority:     item.Priority,
		Manual:       payload.Manual,
		NoDefer:      true,
		queuedID:     item.ID,
		BuildContext: func(context.Context) (*models.MessageModel, error) { return model, nil },
	}

	outcome, err := u.Dispatch(ctx, req)
	if err != nil {
		// Infrastructure error: leave the row scheduled, the lease already
		// burned one attempt.
		log.Printf("❌ Failed to dispatch queued notification %s: %v", item.ID, err)
		result.Requeued++
		return
	}

	switch outcome.Outcome {
	case models.DispatchDelivered:
		u.settle(ctx, item, models.QueuedStatusSent, nil)
		result.Delivered++

	case models.DispatchSkipped:
		switch outcome.Reason {
		case models.SkipReasonDeduped,
			models.SkipReasonFeatureDisabled,
			models.SkipReasonCategoryDisabled,
			models.SkipReasonNoMapping,
			models.SkipReasonNoContent:
			reason := outcome.Reason
			u.settle(ctx, item, models.QueuedStatusCancelled, &reason)
			result.Cancelled++
		default:
			// Policy denial: push the row to the next allowed instant.
			u.reschedule(ctx, item, outcome.NextAllowedAt)
			result.Requeued++
		}

	case models.DispatchFailed:
		if outcome.Retryable {
			next := u.clk.Now().Add(time.Duration(item.Attempts) * retryDelayStep)
			if err := u.notificationsService.RescheduleNotification(ctx, item.OrgID, item.ID, next); err != nil {
				log.Printf("⚠️ Failed to reschedule queued notification %s: %v", item.ID, err)
			}
			result.Requeued++
			return
		}
		reason := outcome.Reason
		u.settle(ctx, item, models.QueuedStatusFailed, &reason)
		result.Failed++
	}
}

func (u *DispatchUseCase) settle(
	ctx context.Context,
	item *models.QueuedNotification,
	status models.QueuedNotificationStatus,
	lastError *string,
) {
	if err := u.notificationsService.SettleNotification(ctx, item.OrgID, item.ID, status, lastError); err != nil {
		log.Printf("⚠️ Failed to settle queued notification %s as %s: %v", item.ID, status, err)
	}
}

func (u *DispatchUseCase) reschedule(ctx context.Context, item *models.QueuedNotification, nextAllowedAt *string) {
	next := u.clk.Now().Add(time.Hour)
	if nextAllowedAt != nil {
		if parsed, err := time.Parse(time.RFC3339, *nextAllowedAt); err == nil {
			next = parsed
		}
	}
	if err := u.notificationsService.RescheduleNotification(ctx, item.OrgID, item.ID, next); err != nil {
		log.Printf("⚠️ Failed to reschedule queued notification %s: %v", item.ID, err)
	}
}
