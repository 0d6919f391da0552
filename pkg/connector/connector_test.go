package connector

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/dbx"
)

func TestNormalizeShopDomain_Equates(t *testing.T) {
	want := "store.myshopify.com"
	require.Equal(t, want, NormalizeShopDomain("HTTPS://Store.myshopify.com/"))
	require.Equal(t, want, NormalizeShopDomain("http://store.myshopify.com"))
	require.Equal(t, want, NormalizeShopDomain("store.myshopify.com"))
}

type fakeConnectorStore struct {
	externalIDs map[string]bool
	owners      map[string]uuid.UUID
}

func newFakeConnectorStore() *fakeConnectorStore {
	return &fakeConnectorStore{externalIDs: map[string]bool{}, owners: map[string]uuid.UUID{}}
}

func (s *fakeConnectorStore) ExternalIDExists(_ context.Context, _ dbx.DBTX, tenantID uuid.UUID, externalConnectionID string) (bool, error) {
	return s.externalIDs[tenantID.String()+":"+externalConnectionID], nil
}

func (s *fakeConnectorStore) FindActiveShopDomainOwner(_ context.Context, _ dbx.DBTX, normalizedDomain string) (uuid.UUID, bool, error) {
	owner, ok := s.owners[normalizedDomain]
	return owner, ok, nil
}

func (s *fakeConnectorStore) Insert(_ context.Context, _ dbx.DBTX, c Connection) (Connection, error) {
	s.externalIDs[c.TenantID.String()+":"+c.ExternalConnectionID] = true
	return c, nil
}

type fakeConnectorAudit struct {
	calls int
}

func (f *fakeConnectorAudit) LogDuplicateShopDomainBlocked(context.Context, uuid.UUID, uuid.UUID, string) {
	f.calls++
}

func TestRegister_RejectsCrossTenantDuplicateShopDomain(t *testing.T) {
	store := newFakeConnectorStore()
	tenantA := uuid.New()
	tenantB := uuid.New()
	store.owners["store.myshopify.com"] = tenantA

	audit := &fakeConnectorAudit{}
	r := &Registrar{Store: store, Audit: audit}

	_, err := r.Register(context.Background(), tenantB, RegisterInput{
		ExternalConnectionID: "conn-b",
		SourceType:           "shopify",
		Configuration:        map[string]any{"shop_domain": "HTTPS://Store.myshopify.com/"},
	})

	require.Error(t, err)
	require.Equal(t, 1, audit.calls)
	require.NotContains(t, err.Error(), tenantA.String())
}

func TestRegister_SameTenantReuseGetsDisconnectMessage(t *testing.T) {
	store := newFakeConnectorStore()
	tenantA := uuid.New()
	store.owners["store.myshopify.com"] = tenantA

	r := &Registrar{Store: store, Audit: &fakeConnectorAudit{}}

	_, err := r.Register(context.Background(), tenantA, RegisterInput{
		ExternalConnectionID: "conn-a-2",
		SourceType:           "shopify",
		Configuration:        map[string]any{"shop_domain": "store.myshopify.com"},
	})

	require.Error(t, err)
	require.Contains(t, err.Error(), "disconnect")
}

func TestRegister_DuplicateExternalIDRejectedWithoutMutation(t *testing.T) {
	store := newFakeConnectorStore()
	tenantA := uuid.New()
	store.externalIDs[tenantA.String()+":conn-a"] = true

	r := &Registrar{Store: store, Audit: &fakeConnectorAudit{}}

	_, err := r.Register(context.Background(), tenantA, RegisterInput{ExternalConnectionID: "conn-a", SourceType: "google"})
	require.Error(t, err)
}

func TestRegister_Succeeds(t *testing.T) {
	store := newFakeConnectorStore()
	tenantA := uuid.New()
	r := &Registrar{Store: store, Audit: &fakeConnectorAudit{}}

	conn, err := r.Register(context.Background(), tenantA, RegisterInput{
		ExternalConnectionID: "conn-new",
		SourceType:           "shopify",
		Configuration:        map[string]any{"shop_domain": "new-store.myshopify.com"},
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, conn.Status)
}
