package transcripts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"use60backend/clients"
	"use60backend/clients/anthropic"
	"use60backend/clock"
	"use60backend/models"
	"use60backend/services"
	"use60backend/usecases/dispatch"
)

const (
	// tickBatchSize bounds how many queue items one cron tick drains.
	tickBatchSize = 50

	// minTranscriptChars is the readiness threshold. Providers return stub
	// text while transcription is still running.
	minTranscriptChars = 20
)

// Dispatcher is the slice of the dispatch pipeline the worker needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (models.DispatchResult, error)
}

// TickResult summarizes one worker pass for the cron response body.
type TickResult struct {
	Stored     int `json:"stored"`
	Dispatched int `json:"dispatched"`
	Retried    int `json:"retried"`
	Abandoned  int `json:"abandoned"`
}

// WorkerUseCase drains the transcript fetch queue: pull the provider
// transcript, store it, and fire the debrief notification downstream.
type WorkerUseCase struct {
	transcriptsService services.TranscriptsService
	transcriptClient   clients.TranscriptClient
	insightClient      clients.InsightClient
	dispatcher         Dispatcher
	clk                clock.Clock
	siteURL            string
}

// NewWorkerUseCase creates the transcript worker. insightClient may be nil;
// the heuristic summarizer covers that deployment.
func NewWorkerUseCase(
	transcriptsService services.TranscriptsService,
	transcriptClient clients.TranscriptClient,
	insightClient clients.InsightClient,
	dispatcher Dispatcher,
	clk clock.Clock,
	siteURL string,
) *WorkerUseCase {
	return &WorkerUseCase{
		transcriptsService: transcriptsService,
		transcriptClient:   transcriptClient,
		insightClient:      insightClient,
		dispatcher:         dispatcher,
		clk:                clk,
		siteURL:            siteURL,
	}
}

// RunTick leases up to tickBatchSize due items and processes each one. The
// lease keeps concurrent ticks off the same item; a second pass over an
// already-ready call is a no-op.
func (u *WorkerUseCase) RunTick(ctx context.Context) (TickResult, error) {
	var result TickResult

	items, err := u.transcriptsService.LeaseTranscriptBatch(ctx, u.clk.Now(), tickBatchSize)
	if err != nil {
		return result, err
	}
	if len(items) == 0 {
		return result, nil
	}
	log.Printf("📋 Processing %d transcript queue items", len(items))

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		u.processItem(ctx, item, &result)
	}

	log.Printf("📋 Completed successfully - transcripts: %d stored, %d debriefs, %d retried, %d abandoned",
		result.Stored, result.Dispatched, result.Retried, result.Abandoned)
	return result, nil
}

func (u *WorkerUseCase) processItem(ctx context.Context, item *models.TranscriptQueueItem, result *TickResult) {
	maybeCall, err := u.transcriptsService.GetCallByID(ctx, item.OrgID, item.CallID)
	if err != nil {
		log.Printf("❌ Failed to load call %s: %v", item.CallID, err)
		result.Retried++
		return
	}
	call, ok := maybeCall.Get()
	if !ok {
		u.recordFailure(ctx, item, "call_not_found")
		result.Retried++
		return
	}

	// Already transcribed, usually by an inline webhook transcript that
	// raced the queue. Re-storing the same content just clears the item.
	if call.HasTranscript() {
		if err := u.transcriptsService.StoreTranscript(
			ctx, item.OrgID, call.ID, *call.TranscriptText, call.TranscriptJSON,
		); err != nil {
			log.Printf("⚠️ Failed to clear queue item for transcribed call %s: %v", call.ID, err)
		}
		result.Stored++
		return
	}

	if item.Attempts >= item.MaxAttempts {
		if err := u.transcriptsService.AbandonTranscriptFetch(ctx, item.OrgID, call.ID); err != nil {
			log.Printf("❌ Failed to abandon transcript fetch for call %s: %v", call.ID, err)
		}
		result.Abandoned++
		return
	}

	fetched, err := u.transcriptClient.FetchTranscript(ctx, call.ExternalID)
	if err != nil {
		u.recordFailure(ctx, item, fetchFailureReason(err))
		result.Retried++
		return
	}

	text := strings.TrimSpace(fetched.Text)
	if len(text) < minTranscriptChars {
		u.recordFailure(ctx, item, "transcript_not_ready")
		result.Retried++
		return
	}

	if err := u.transcriptsService.StoreTranscript(ctx, item.OrgID, call.ID, text, fetched.Raw); err != nil {
		log.Printf("❌ Failed to store transcript for call %s: %v", call.ID, err)
		result.Retried++
		return
	}
	result.Stored++

	if u.dispatchDebrief(ctx, call, text) {
		result.Dispatched++
	}
}

func (u *WorkerUseCase) recordFailure(ctx context.Context, item *models.TranscriptQueueItem, reason string) {
	if err := u.transcriptsService.RecordFetchFailure(ctx, item.OrgID, item.CallID, reason); err != nil {
		log.Printf("❌ Failed to record fetch failure for call %s: %v", item.CallID, err)
	}
}

// fetchFailureReason folds provider errors into stable retry-record codes.
func fetchFailureReason(err error) string {
	var statusErr *clients.TranscriptFetchStatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("transcription_fetch_failed_%d", statusErr.StatusCode)
	}
	return "transcript_fetch_error"
}

// dispatchDebrief sends the meeting debrief to the call owner. Calls without
// a resolved owner have nobody to notify.
func (u *WorkerUseCase) dispatchDebrief(ctx context.Context, call *models.Call, transcript string) bool {
	if call.OwnerUserID == nil || *call.OwnerUserID == "" {
		log.Printf("📋 Call %s has no owner, skipping debrief", call.ID)
		return false
	}

	insights := u.summarize(ctx, call, transcript)

	outcome, err := u.dispatcher.Dispatch(ctx, dispatch.Request{
		Feature:      models.FeatureMeetingDebrief,
		OrgID:        call.OrgID,
		UserID:       *call.OwnerUserID,
		EntityID:     call.ID,
		NoDefer:      true,
		BuildContext: u.debriefContext(call, insights),
	})
	if err != nil {
		log.Printf("❌ Failed to dispatch debrief for call %s: %v", call.ID, err)
		return false
	}
	return outcome.Outcome == models.DispatchDelivered
}

func (u *WorkerUseCase) summarize(ctx context.Context, call *models.Call, transcript string) *models.CallInsights {
	req := models.InsightRequest{
		CallID:         call.ID,
		Title:          callTitle(call),
		Direction:      call.Direction,
		TranscriptText: transcript,
	}
	if call.DurationSeconds != nil {
		req.DurationSeconds = *call.DurationSeconds
	}

	if u.insightClient == nil {
		return anthropic.HeuristicInsights(req)
	}
	insights, err := u.insightClient.SummarizeTranscript(ctx, req)
	if err != nil {
		log.Printf("⚠️ Insight provider failed for call %s, using heuristic: %v", call.ID, err)
		return anthropic.HeuristicInsights(req)
	}
	return insights
}

func (u *WorkerUseCase) debriefContext(call *models.Call, insights *models.CallInsights) dispatch.ContextBuilder {
	return func(ctx context.Context) (*models.MessageModel, error) {
		body := insights.Summary
		if len(insights.KeyPoints) > 0 {
			body += "\n\n*Key points*"
			for _, point := range insights.KeyPoints {
				body += "\n• " + point
			}
		}
		if len(insights.ActionItems) > 0 {
			body += "\n\n*Action items*"
			for _, item := range insights.ActionItems {
				body += "\n• " + item
			}
		}

		fields := []models.MessageField{
			{Label: "Direction", Value: string(call.Direction)},
		}
		if call.DurationSeconds != nil {
			fields = append(fields, models.MessageField{
				Label: "Duration",
				Value: fmt.Sprintf("%dm %ds", *call.DurationSeconds/60, *call.DurationSeconds%60),
			})
		}
		if insights.Sentiment != "" {
			fields = append(fields, models.MessageField{Label: "Sentiment", Value: insights.Sentiment})
		}

		model := &models.MessageModel{
			Feature:   models.FeatureMeetingDebrief,
			Category:  "meetings",
			Type:      "meeting_debrief",
			Title:     fmt.Sprintf("Debrief: %s", callTitle(call)),
			Body:      body,
			Fields:    fields,
			ActionURL: u.siteURL + "/calls/" + call.ID,
			Footer:    "Use60 call debrief",
			Metadata:  map[string]any{"insight_source": insights.Source},
		}
		return model, nil
	}
}

// callTitle names the call by the counterparty number.
func callTitle(call *models.Call) string {
	switch {
	case call.Direction == models.CallDirectionOutbound && call.ToNumber != nil:
		return "Call with " + *call.ToNumber
	case call.FromNumber != nil:
		return "Call with " + *call.FromNumber
	default:
		return "Sales call"
	}
}
