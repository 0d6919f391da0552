package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/dbx"
)

// IngestResult is the webhook handler's outcome, including the
// "unknown shop domain" no-mutation acceptance case from spec.md section 6.
type IngestResult struct {
	Accepted    bool
	Mutated     bool
	UnknownShop bool
}

// Pipeline is the billing webhook ingestion and reconciliation authority
// (spec.md section 4.6).
type Pipeline struct {
	Pool        *pgxpool.Pool
	Store       Store
	Entitlement EntitlementInvalidator
	Audit       AuditSink
	now         func() time.Time
}

// NewPipeline constructs a Pipeline.
func NewPipeline(pool *pgxpool.Pool, store Store, entitlement EntitlementInvalidator, audit AuditSink) *Pipeline {
	return &Pipeline{Pool: pool, Store: store, Entitlement: entitlement, Audit: audit, now: time.Now}
}

// Ingest applies a signature-verified, already-parsed webhook event.
// Callers MUST call VerifySignature before Ingest; this function assumes
// that has already happened and never re-derives it.
func (p *Pipeline) Ingest(ctx context.Context, shopDomain string, ev Event) (IngestResult, error) {
	var result IngestResult

	err := dbx.WithTx(ctx, p.Pool, func(tx pgx.Tx) error {
		tenantID, ok, err := p.Store.TenantForShopDomain(ctx, tx, shopDomain)
		if err != nil {
			return fmt.Errorf("resolving shop domain: %w", err)
		}
		if !ok {
			// Unknown shop domain -> accept with no mutation (spec.md 6).
			result = IngestResult{Accepted: true, UnknownShop: true}
			return nil
		}

		sub, found, err := p.Store.LockByExternalSubID(ctx, tx, ev.ExternalSubID)
		if err != nil {
			return fmt.Errorf("locking subscription: %w", err)
		}
		if !found {
			result = IngestResult{Accepted: true}
			return nil
		}

		applied, err := p.Store.EventApplied(ctx, tx, sub.ID, ev.ExternalEventID)
		if err != nil {
			return fmt.Errorf("checking event idempotency: %w", err)
		}
		if applied {
			// Replay of the same external event id is a no-op (spec.md 4.6).
			result = IngestResult{Accepted: true}
			return nil
		}

		updated, changed, err := Apply(sub, ev, p.now().UTC())
		if err != nil {
			return fmt.Errorf("applying transition: %w", err)
		}

		if err := p.Store.RecordEvent(ctx, tx, sub.ID, ev.ExternalEventID, "webhook"); err != nil {
			return fmt.Errorf("recording billing event: %w", err)
		}

		if changed {
			if err := p.Store.Update(ctx, tx, updated); err != nil {
				return fmt.Errorf("updating subscription: %w", err)
			}
		}

		result = IngestResult{Accepted: true, Mutated: changed}
		p.Entitlement.Invalidate(ctx, tenantID, "billing_webhook")
		return nil
	})
	if err != nil {
		return IngestResult{}, err
	}
	return result, nil
}

// Reconcile compares local subscription status to a provider-supplied
// status for every active/frozen subscription, correcting drift. Intended
// to run as a periodic worker — the backstop for missed webhooks.
func (p *Pipeline) Reconcile(ctx context.Context, providerStatus func(externalSubID string) (Status, bool)) (corrected int, err error) {
	subs, err := p.Store.ActiveOrFrozenSubscriptions(ctx, p.Pool)
	if err != nil {
		return 0, fmt.Errorf("listing subscriptions for reconciliation: %w", err)
	}

	for _, sub := range subs {
		providerSub, ok := providerStatus(sub.ExternalSubID)
		if !ok || providerSub == sub.Status {
			continue
		}

		from := sub.Status
		sub.Status = providerSub
		if err := p.Store.Update(ctx, p.Pool, sub); err != nil {
			return corrected, fmt.Errorf("correcting drift for %s: %w", sub.ExternalSubID, err)
		}

		p.Audit.LogReconciliationDrift(ctx, sub.TenantID, sub.ExternalSubID, from, providerSub)
		p.Entitlement.Invalidate(ctx, sub.TenantID, "reconciliation")
		corrected++
	}
	return corrected, nil
}
