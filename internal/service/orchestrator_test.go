package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clubops/notify-engine/internal/domain"
	"github.com/clubops/notify-engine/internal/provider"
	"github.com/clubops/notify-engine/internal/queue"
	"github.com/clubops/notify-engine/internal/repository"
)

func routedBinding() *domain.TemplateBinding {
	return &domain.TemplateBinding{
		ID:           "binding-1",
		Trigger:      "event.reminder",
		Enabled:      true,
		Channel:      domain.ChannelRouted,
		RoutingRules: []string{"rule-a", "rule-b"},
		TemplateCode: "TPL-100",
		Params: []domain.ParamBinding{
			{Name: "memberName", DefaultValue: "member", SourceTable: "members", SourceColumn: "full_name"},
			{Name: "eventName", DefaultValue: "our event"},
			{Name: "note"},
		},
	}
}

func TestCreateCampaignExpandsImmediately(t *testing.T) {
	t.Parallel()

	bindings := &fakeBindingRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.TemplateBinding, error) {
			return routedBinding(), nil
		},
	}

	var stored domain.CampaignBatch
	markedRunning := false
	campaigns := &fakeCampaignRepo{
		createFn: func(ctx context.Context, b *domain.CampaignBatch) error {
			stored = *b
			return nil
		},
		getByIDFn: func(ctx context.Context, id string) (*domain.CampaignBatch, error) {
			copied := stored
			if markedRunning {
				copied.Status = domain.CampaignRunning
			}
			return &copied, nil
		},
		markRunningFn: func(ctx context.Context, id string) (bool, error) {
			markedRunning = true
			return true, nil
		},
	}

	var created []*domain.DeliveryRecord
	deliveries := &fakeDeliveryRepo{
		createBatchFn: func(ctx context.Context, records []*domain.DeliveryRecord) error {
			created = records
			return nil
		},
		listByBatchFn: func(ctx context.Context, batchID string) ([]domain.DeliveryRecord, error) {
			out := make([]domain.DeliveryRecord, 0, len(created))
			for i := range created {
				out = append(out, *created[i])
			}
			return out, nil
		},
	}

	var published []queue.DispatchMessage
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.DispatchMessage) error {
			if queueName != "dispatch.routed" {
				t.Fatalf("queue name = %s, want dispatch.routed", queueName)
			}
			published = append(published, msg)
			return nil
		},
	}

	resolver := &fakeResolver{
		resolveFn: func(ctx context.Context, table, column string, filters map[string]string) (string, bool, error) {
			if table == "members" && column == "full_name" {
				return "Jordan " + filters["recipient"], true, nil
			}
			return "", false, nil
		},
	}

	svc, err := NewDispatchOrchestrator(bindings, campaigns, deliveries, resolver, publisher, 5, nil)
	if err != nil {
		t.Fatalf("NewDispatchOrchestrator() error = %v", err)
	}

	batch, err := svc.CreateCampaign(context.Background(), &domain.CampaignBatch{
		Name:       "spring reminder",
		BindingID:  "binding-1",
		Recipients: []string{"+84901", "+84902", "+84903"},
	})
	if err != nil {
		t.Fatalf("CreateCampaign() error = %v", err)
	}

	if batch.Total != 3 {
		t.Fatalf("total = %d, want 3", batch.Total)
	}
	if !markedRunning {
		t.Fatal("expected campaign to be marked running")
	}
	if len(created) != 3 {
		t.Fatalf("created %d records, want 3", len(created))
	}
	if len(published) != 3 {
		t.Fatalf("published %d messages, want 3", len(published))
	}

	for _, record := range created {
		if record.Status != domain.DeliveryQueued {
			t.Fatalf("record status = %s, want queued", record.Status)
		}
		for _, key := range []string{"memberName", "eventName", "note"} {
			if _, ok := record.Params[key]; !ok {
				t.Fatalf("payload missing declared parameter %q", key)
			}
		}
		if record.Params["memberName"] != "Jordan "+record.Recipient {
			t.Fatalf("memberName = %q, want resolved value", record.Params["memberName"])
		}
		if record.Params["eventName"] != "our event" {
			t.Fatalf("eventName = %q, want default value", record.Params["eventName"])
		}
		if record.Params["note"] != "" {
			t.Fatalf("note = %q, want empty string", record.Params["note"])
		}
	}
}

func TestCreateCampaignScheduledInFutureStaysPending(t *testing.T) {
	t.Parallel()

	bindings := &fakeBindingRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.TemplateBinding, error) {
			return routedBinding(), nil
		},
	}

	campaigns := &fakeCampaignRepo{
		markRunningFn: func(ctx context.Context, id string) (bool, error) {
			t.Fatal("future campaign should not be expanded at create time")
			return false, nil
		},
	}

	svc, err := NewDispatchOrchestrator(bindings, campaigns, &fakeDeliveryRepo{}, &fakeResolver{}, &fakePublisher{}, 5, nil)
	if err != nil {
		t.Fatalf("NewDispatchOrchestrator() error = %v", err)
	}

	future := time.Now().Add(2 * time.Hour)
	batch, err := svc.CreateCampaign(context.Background(), &domain.CampaignBatch{
		Name:        "later",
		BindingID:   "binding-1",
		Recipients:  []string{"+84901"},
		ScheduledAt: &future,
	})
	if err != nil {
		t.Fatalf("CreateCampaign() error = %v", err)
	}
	if batch.Status != domain.CampaignPending {
		t.Fatalf("status = %s, want PENDING", batch.Status)
	}
}

func TestCreateCampaignRejectsDisabledBinding(t *testing.T) {
	t.Parallel()

	bindings := &fakeBindingRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.TemplateBinding, error) {
			binding := routedBinding()
			binding.Enabled = false
			return binding, nil
		},
	}

	svc, err := NewDispatchOrchestrator(bindings, &fakeCampaignRepo{}, &fakeDeliveryRepo{}, &fakeResolver{}, &fakePublisher{}, 5, nil)
	if err != nil {
		t.Fatalf("NewDispatchOrchestrator() error = %v", err)
	}

	_, err = svc.CreateCampaign(context.Background(), &domain.CampaignBatch{
		Name:       "blocked",
		BindingID:  "binding-1",
		Recipients: []string{"+84901"},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("CreateCampaign() error = %v, want ErrValidation", err)
	}
}

func TestCreateCampaignDedupesRecipients(t *testing.T) {
	t.Parallel()

	bindings := &fakeBindingRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.TemplateBinding, error) {
			return routedBinding(), nil
		},
	}

	var stored domain.CampaignBatch
	campaigns := &fakeCampaignRepo{
		createFn: func(ctx context.Context, b *domain.CampaignBatch) error {
			stored = *b
			return nil
		},
	}

	future := time.Now().Add(time.Hour)
	svc, err := NewDispatchOrchestrator(bindings, campaigns, &fakeDeliveryRepo{}, &fakeResolver{}, &fakePublisher{}, 5, nil)
	if err != nil {
		t.Fatalf("NewDispatchOrchestrator() error = %v", err)
	}

	batch, err := svc.CreateCampaign(context.Background(), &domain.CampaignBatch{
		Name:        "dedupe",
		BindingID:   "binding-1",
		Recipients:  []string{"+84901", " +84901 ", "+84902", ""},
		ScheduledAt: &future,
	})
	if err != nil {
		t.Fatalf("CreateCampaign() error = %v", err)
	}

	if batch.Total != 2 {
		t.Fatalf("total = %d, want 2", batch.Total)
	}
	if len(stored.Recipients) != 2 {
		t.Fatalf("stored %d recipients, want 2", len(stored.Recipients))
	}
}

func TestExpandSkipsTerminalCampaign(t *testing.T) {
	t.Parallel()

	campaigns := &fakeCampaignRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.CampaignBatch, error) {
			return &domain.CampaignBatch{ID: id, Status: domain.CampaignCancelled}, nil
		},
		markRunningFn: func(ctx context.Context, id string) (bool, error) {
			t.Fatal("terminal campaign should not be claimed")
			return false, nil
		},
	}

	svc, err := NewDispatchOrchestrator(&fakeBindingRepo{}, campaigns, &fakeDeliveryRepo{}, &fakeResolver{}, &fakePublisher{}, 5, nil)
	if err != nil {
		t.Fatalf("NewDispatchOrchestrator() error = %v", err)
	}

	if err := svc.Expand(context.Background(), "batch-1"); err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
}

func TestExpandLostClaimStops(t *testing.T) {
	t.Parallel()

	reloads := 0
	campaigns := &fakeCampaignRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.CampaignBatch, error) {
			reloads++
			if reloads == 1 {
				return &domain.CampaignBatch{ID: id, BindingID: "binding-1", Status: domain.CampaignPending}, nil
			}
			return &domain.CampaignBatch{ID: id, BindingID: "binding-1", Status: domain.CampaignCancelled}, nil
		},
		markRunningFn: func(ctx context.Context, id string) (bool, error) {
			return false, nil
		},
	}

	bindings := &fakeBindingRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.TemplateBinding, error) {
			t.Fatal("binding should not be loaded after a lost claim on a cancelled campaign")
			return nil, nil
		},
	}

	svc, err := NewDispatchOrchestrator(bindings, campaigns, &fakeDeliveryRepo{}, &fakeResolver{}, &fakePublisher{}, 5, nil)
	if err != nil {
		t.Fatalf("NewDispatchOrchestrator() error = %v", err)
	}

	if err := svc.Expand(context.Background(), "batch-1"); err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
}

func TestExpandPublishFailureSchedulesRepublish(t *testing.T) {
	t.Parallel()

	bindings := &fakeBindingRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.TemplateBinding, error) {
			return routedBinding(), nil
		},
	}

	campaigns := &fakeCampaignRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.CampaignBatch, error) {
			return &domain.CampaignBatch{
				ID:         id,
				BindingID:  "binding-1",
				Status:     domain.CampaignPending,
				Recipients: []string{"+84901"},
			}, nil
		},
		markRunningFn: func(ctx context.Context, id string) (bool, error) {
			return true, nil
		},
	}

	var created []*domain.DeliveryRecord
	republished := 0
	budgetConsumed := 0
	deliveries := &fakeDeliveryRepo{
		createBatchFn: func(ctx context.Context, records []*domain.DeliveryRecord) error {
			created = records
			return nil
		},
		listByBatchFn: func(ctx context.Context, batchID string) ([]domain.DeliveryRecord, error) {
			out := make([]domain.DeliveryRecord, 0, len(created))
			for i := range created {
				out = append(out, *created[i])
			}
			return out, nil
		},
		scheduleRepublishFn: func(ctx context.Context, id string, nextRetryAt time.Time) error {
			republished++
			return nil
		},
		updateForRetryFn: func(ctx context.Context, id string, nextRetryAt time.Time) error {
			budgetConsumed++
			return nil
		},
	}

	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.DispatchMessage) error {
			return errors.New("broker unavailable")
		},
	}

	svc, err := NewDispatchOrchestrator(bindings, campaigns, deliveries, &fakeResolver{}, publisher, 5, nil)
	if err != nil {
		t.Fatalf("NewDispatchOrchestrator() error = %v", err)
	}

	if err := svc.Expand(context.Background(), "batch-1"); err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if republished != 1 {
		t.Fatalf("scheduled %d records for re-publish, want 1", republished)
	}
	if budgetConsumed != 0 {
		t.Fatalf("consumed retry budget %d times on a broker failure, want 0", budgetConsumed)
	}
}

func TestBuildParameterPayloadStoreErrorAborts(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{
		resolveFn: func(ctx context.Context, table, column string, filters map[string]string) (string, bool, error) {
			return "", false, errors.New("store unavailable")
		},
	}

	svc, err := NewDispatchOrchestrator(&fakeBindingRepo{}, &fakeCampaignRepo{}, &fakeDeliveryRepo{}, resolver, &fakePublisher{}, 5, nil)
	if err != nil {
		t.Fatalf("NewDispatchOrchestrator() error = %v", err)
	}

	if _, err := svc.BuildParameterPayload(context.Background(), routedBinding(), map[string]string{"recipient": "+84901"}); err == nil {
		t.Fatal("BuildParameterPayload() expected error, got nil")
	}
}

func TestRefreshCompletionWaitsForNonTerminalRecords(t *testing.T) {
	t.Parallel()

	deliveries := &fakeDeliveryRepo{
		getBatchStatusCountsFn: func(ctx context.Context, batchID string) ([]repository.StatusCount, error) {
			return []repository.StatusCount{
				{Status: domain.DeliverySent, Count: 1},
				{Status: domain.DeliveryDelivered, Count: 2},
			}, nil
		},
	}

	campaigns := &fakeCampaignRepo{
		markDoneFn: func(ctx context.Context, id string, totalSuccess int) (bool, error) {
			t.Fatal("campaign with sent records should not be marked done")
			return false, nil
		},
	}

	svc, err := NewDispatchOrchestrator(&fakeBindingRepo{}, campaigns, deliveries, &fakeResolver{}, &fakePublisher{}, 5, nil)
	if err != nil {
		t.Fatalf("NewDispatchOrchestrator() error = %v", err)
	}

	if err := svc.RefreshCompletion(context.Background(), "batch-1"); err != nil {
		t.Fatalf("RefreshCompletion() error = %v", err)
	}
}

func TestRefreshCompletionMarksDoneWithDeliveredCount(t *testing.T) {
	t.Parallel()

	deliveries := &fakeDeliveryRepo{
		getBatchStatusCountsFn: func(ctx context.Context, batchID string) ([]repository.StatusCount, error) {
			return []repository.StatusCount{
				{Status: domain.DeliveryDelivered, Count: 2},
				{Status: domain.DeliveryFailed, Count: 1},
			}, nil
		},
	}

	doneWith := -1
	campaigns := &fakeCampaignRepo{
		markDoneFn: func(ctx context.Context, id string, totalSuccess int) (bool, error) {
			doneWith = totalSuccess
			return true, nil
		},
	}

	svc, err := NewDispatchOrchestrator(&fakeBindingRepo{}, campaigns, deliveries, &fakeResolver{}, &fakePublisher{}, 5, nil)
	if err != nil {
		t.Fatalf("NewDispatchOrchestrator() error = %v", err)
	}

	if err := svc.RefreshCompletion(context.Background(), "batch-1"); err != nil {
		t.Fatalf("RefreshCompletion() error = %v", err)
	}
	if doneWith != 2 {
		t.Fatalf("totalSuccess = %d, want 2", doneWith)
	}
}

func TestCancelSuppressesQueuedRecordsOnly(t *testing.T) {
	t.Parallel()

	cancelled := false
	campaigns := &fakeCampaignRepo{
		cancelFn: func(ctx context.Context, id string) error {
			cancelled = true
			return nil
		},
	}

	suppressed := false
	deliveries := &fakeDeliveryRepo{
		cancelQueuedByBatchFn: func(ctx context.Context, batchID string) (int64, error) {
			suppressed = true
			return 4, nil
		},
	}

	svc, err := NewDispatchOrchestrator(&fakeBindingRepo{}, campaigns, deliveries, &fakeResolver{}, &fakePublisher{}, 5, nil)
	if err != nil {
		t.Fatalf("NewDispatchOrchestrator() error = %v", err)
	}

	if err := svc.Cancel(context.Background(), "batch-1"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if !cancelled || !suppressed {
		t.Fatalf("cancelled=%v suppressed=%v, want both true", cancelled, suppressed)
	}
}

func TestCancelTerminalCampaignPropagatesConflict(t *testing.T) {
	t.Parallel()

	campaigns := &fakeCampaignRepo{
		cancelFn: func(ctx context.Context, id string) error {
			return domain.ErrConflict
		},
	}

	deliveries := &fakeDeliveryRepo{
		cancelQueuedByBatchFn: func(ctx context.Context, batchID string) (int64, error) {
			t.Fatal("records must not be touched when the campaign cancel is rejected")
			return 0, nil
		},
	}

	svc, err := NewDispatchOrchestrator(&fakeBindingRepo{}, campaigns, deliveries, &fakeResolver{}, &fakePublisher{}, 5, nil)
	if err != nil {
		t.Fatalf("NewDispatchOrchestrator() error = %v", err)
	}

	if err := svc.Cancel(context.Background(), "batch-1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Cancel() error = %v, want ErrConflict", err)
	}
}

type fakeBindingRepo struct {
	createFn              func(ctx context.Context, b *domain.TemplateBinding) error
	getByIDFn             func(ctx context.Context, id string) (*domain.TemplateBinding, error)
	getEnabledByTriggerFn func(ctx context.Context, trigger string) (*domain.TemplateBinding, error)
	listFn                func(ctx context.Context) ([]domain.TemplateBinding, error)
	updateFn              func(ctx context.Context, b *domain.TemplateBinding) error
	deleteFn              func(ctx context.Context, id string) error
}

func (f *fakeBindingRepo) Create(ctx context.Context, b *domain.TemplateBinding) error {
	if f.createFn != nil {
		return f.createFn(ctx, b)
	}
	return nil
}

func (f *fakeBindingRepo) GetByID(ctx context.Context, id string) (*domain.TemplateBinding, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeBindingRepo) GetEnabledByTrigger(ctx context.Context, trigger string) (*domain.TemplateBinding, error) {
	if f.getEnabledByTriggerFn != nil {
		return f.getEnabledByTriggerFn(ctx, trigger)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeBindingRepo) List(ctx context.Context) ([]domain.TemplateBinding, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return nil, nil
}

func (f *fakeBindingRepo) Update(ctx context.Context, b *domain.TemplateBinding) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, b)
	}
	return nil
}

func (f *fakeBindingRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

type fakeCampaignRepo struct {
	createFn        func(ctx context.Context, b *domain.CampaignBatch) error
	getByIDFn       func(ctx context.Context, id string) (*domain.CampaignBatch, error)
	listFn          func(ctx context.Context, status *domain.CampaignStatus) ([]domain.CampaignBatch, error)
	getDuePendingFn func(ctx context.Context, now time.Time, limit int) ([]domain.CampaignBatch, error)
	markRunningFn   func(ctx context.Context, id string) (bool, error)
	markDoneFn      func(ctx context.Context, id string, totalSuccess int) (bool, error)
	cancelFn        func(ctx context.Context, id string) error
	rescheduleFn    func(ctx context.Context, id string, at time.Time) error
}

func (f *fakeCampaignRepo) Create(ctx context.Context, b *domain.CampaignBatch) error {
	if f.createFn != nil {
		return f.createFn(ctx, b)
	}
	return nil
}

func (f *fakeCampaignRepo) GetByID(ctx context.Context, id string) (*domain.CampaignBatch, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCampaignRepo) List(ctx context.Context, status *domain.CampaignStatus) ([]domain.CampaignBatch, error) {
	if f.listFn != nil {
		return f.listFn(ctx, status)
	}
	return nil, nil
}

func (f *fakeCampaignRepo) GetDuePending(ctx context.Context, now time.Time, limit int) ([]domain.CampaignBatch, error) {
	if f.getDuePendingFn != nil {
		return f.getDuePendingFn(ctx, now, limit)
	}
	return nil, nil
}

func (f *fakeCampaignRepo) MarkRunning(ctx context.Context, id string) (bool, error) {
	if f.markRunningFn != nil {
		return f.markRunningFn(ctx, id)
	}
	return true, nil
}

func (f *fakeCampaignRepo) MarkDone(ctx context.Context, id string, totalSuccess int) (bool, error) {
	if f.markDoneFn != nil {
		return f.markDoneFn(ctx, id, totalSuccess)
	}
	return true, nil
}

func (f *fakeCampaignRepo) Cancel(ctx context.Context, id string) error {
	if f.cancelFn != nil {
		return f.cancelFn(ctx, id)
	}
	return nil
}

func (f *fakeCampaignRepo) Reschedule(ctx context.Context, id string, at time.Time) error {
	if f.rescheduleFn != nil {
		return f.rescheduleFn(ctx, id, at)
	}
	return nil
}

type fakeDeliveryRepo struct {
	createBatchFn               func(ctx context.Context, records []*domain.DeliveryRecord) error
	getByIDFn                   func(ctx context.Context, id string) (*domain.DeliveryRecord, error)
	getByProviderMessageIDFn    func(ctx context.Context, providerMsgID string) (*domain.DeliveryRecord, error)
	getLatestByBatchRecipientFn func(ctx context.Context, batchID, recipient string) (*domain.DeliveryRecord, error)
	listByBatchFn               func(ctx context.Context, batchID string) ([]domain.DeliveryRecord, error)
	lockForSendingFn            func(ctx context.Context, id string) (*domain.DeliveryRecord, error)
	markSentFn                  func(ctx context.Context, id string, info repository.SentInfo) error
	markFailedFn                func(ctx context.Context, id string) error
	markCancelledFn             func(ctx context.Context, id string) error
	updateForRetryFn            func(ctx context.Context, id string, nextRetryAt time.Time) error
	scheduleRepublishFn         func(ctx context.Context, id string, nextRetryAt time.Time) error
	clearNextRetryAtFn          func(ctx context.Context, id string) error
	getDueForRetryFn            func(ctx context.Context, now time.Time, limit int) ([]domain.DeliveryRecord, error)
	cancelQueuedByBatchFn       func(ctx context.Context, batchID string) (int64, error)
	getBatchStatusCountsFn      func(ctx context.Context, batchID string) ([]repository.StatusCount, error)
	applyReceiptFn              func(ctx context.Context, recordID string, receipt domain.Receipt) (bool, error)
}

func (f *fakeDeliveryRepo) CreateBatch(ctx context.Context, records []*domain.DeliveryRecord) error {
	if f.createBatchFn != nil {
		return f.createBatchFn(ctx, records)
	}
	return nil
}

func (f *fakeDeliveryRepo) GetByID(ctx context.Context, id string) (*domain.DeliveryRecord, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDeliveryRepo) GetByProviderMessageID(ctx context.Context, providerMsgID string) (*domain.DeliveryRecord, error) {
	if f.getByProviderMessageIDFn != nil {
		return f.getByProviderMessageIDFn(ctx, providerMsgID)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDeliveryRepo) GetLatestByBatchRecipient(ctx context.Context, batchID, recipient string) (*domain.DeliveryRecord, error) {
	if f.getLatestByBatchRecipientFn != nil {
		return f.getLatestByBatchRecipientFn(ctx, batchID, recipient)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDeliveryRepo) ListByBatch(ctx context.Context, batchID string) ([]domain.DeliveryRecord, error) {
	if f.listByBatchFn != nil {
		return f.listByBatchFn(ctx, batchID)
	}
	return nil, nil
}

func (f *fakeDeliveryRepo) LockForSending(ctx context.Context, id string) (*domain.DeliveryRecord, error) {
	if f.lockForSendingFn != nil {
		return f.lockForSendingFn(ctx, id)
	}
	return nil, nil
}

func (f *fakeDeliveryRepo) MarkSent(ctx context.Context, id string, info repository.SentInfo) error {
	if f.markSentFn != nil {
		return f.markSentFn(ctx, id, info)
	}
	return nil
}

func (f *fakeDeliveryRepo) MarkFailed(ctx context.Context, id string) error {
	if f.markFailedFn != nil {
		return f.markFailedFn(ctx, id)
	}
	return nil
}

func (f *fakeDeliveryRepo) MarkCancelled(ctx context.Context, id string) error {
	if f.markCancelledFn != nil {
		return f.markCancelledFn(ctx, id)
	}
	return nil
}

func (f *fakeDeliveryRepo) UpdateForRetry(ctx context.Context, id string, nextRetryAt time.Time) error {
	if f.updateForRetryFn != nil {
		return f.updateForRetryFn(ctx, id, nextRetryAt)
	}
	return nil
}

func (f *fakeDeliveryRepo) ScheduleRepublish(ctx context.Context, id string, nextRetryAt time.Time) error {
	if f.scheduleRepublishFn != nil {
		return f.scheduleRepublishFn(ctx, id, nextRetryAt)
	}
	return nil
}

func (f *fakeDeliveryRepo) ClearNextRetryAt(ctx context.Context, id string) error {
	if f.clearNextRetryAtFn != nil {
		return f.clearNextRetryAtFn(ctx, id)
	}
	return nil
}

func (f *fakeDeliveryRepo) GetDueForRetry(ctx context.Context, now time.Time, limit int) ([]domain.DeliveryRecord, error) {
	if f.getDueForRetryFn != nil {
		return f.getDueForRetryFn(ctx, now, limit)
	}
	return nil, nil
}

func (f *fakeDeliveryRepo) CancelQueuedByBatch(ctx context.Context, batchID string) (int64, error) {
	if f.cancelQueuedByBatchFn != nil {
		return f.cancelQueuedByBatchFn(ctx, batchID)
	}
	return 0, nil
}

func (f *fakeDeliveryRepo) GetBatchStatusCounts(ctx context.Context, batchID string) ([]repository.StatusCount, error) {
	if f.getBatchStatusCountsFn != nil {
		return f.getBatchStatusCountsFn(ctx, batchID)
	}
	return nil, nil
}

func (f *fakeDeliveryRepo) ApplyReceipt(ctx context.Context, recordID string, receipt domain.Receipt) (bool, error) {
	if f.applyReceiptFn != nil {
		return f.applyReceiptFn(ctx, recordID, receipt)
	}
	return true, nil
}

type fakePublisher struct {
	publishFn func(ctx context.Context, queueName string, msg queue.DispatchMessage) error
	closeFn   func() error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.DispatchMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queueName string, handler queue.MessageHandler) error
	closeFn   func() error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	<-ctx.Done()
	return nil
}

func (f *fakeConsumer) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type fakeResolver struct {
	resolveFn func(ctx context.Context, table, column string, filters map[string]string) (string, bool, error)
}

func (f *fakeResolver) Resolve(ctx context.Context, table, column string, filters map[string]string) (string, bool, error) {
	if f.resolveFn != nil {
		return f.resolveFn(ctx, table, column, filters)
	}
	return "", false, nil
}

type fakeRateLimiter struct {
	allowFn func(ctx context.Context, channel string) (bool, error)
	waitFn  func(ctx context.Context, channel string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, channel string) (bool, error) {
	if f.allowFn != nil {
		return f.allowFn(ctx, channel)
	}
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, channel string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, channel)
	}
	return nil
}

type fakeProviderClient struct {
	sendFn    func(ctx context.Context, req provider.SendRequest) (*provider.SendResponse, error)
	refreshFn func(ctx context.Context, appID, secret, refreshToken string) (*provider.TokenPair, error)
}

func (f *fakeProviderClient) Send(ctx context.Context, req provider.SendRequest) (*provider.SendResponse, error) {
	if f.sendFn != nil {
		return f.sendFn(ctx, req)
	}
	return &provider.SendResponse{StatusCode: 200, MessageID: "msg-1"}, nil
}

func (f *fakeProviderClient) RefreshToken(ctx context.Context, appID, secret, refreshToken string) (*provider.TokenPair, error) {
	if f.refreshFn != nil {
		return f.refreshFn(ctx, appID, secret, refreshToken)
	}
	return &provider.TokenPair{AccessToken: "access", RefreshToken: "refresh"}, nil
}

type fakeCompletionRefresher struct {
	refreshFn func(ctx context.Context, batchID string) error
	calls     int
}

func (f *fakeCompletionRefresher) RefreshCompletion(ctx context.Context, batchID string) error {
	f.calls++
	if f.refreshFn != nil {
		return f.refreshFn(ctx, batchID)
	}
	return nil
}
