package nresults

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Narodni-repozitar/nr-Nresults/internal/archive"
	"github.com/Narodni-repozitar/nr-Nresults/internal/core"
	blobmemory "github.com/Narodni-repozitar/nr-Nresults/internal/infra/blob/memory"
	"github.com/Narodni-repozitar/nr-Nresults/internal/pidstore"
	"github.com/Narodni-repozitar/nr-Nresults/internal/schema"
	"github.com/Narodni-repozitar/nr-Nresults/internal/search"
	"github.com/Narodni-repozitar/nr-Nresults/pkg/domain"
)

func TestMinterAssignsFirstIdentifier(t *testing.T) {
	h := newHarness(t)
	data := fullRecord()
	delete(data, "control_number")

	rec, _, err := h.svc.CreateRecord(context.Background(), RecordTypeName, data)
	require.NoError(t, err)
	require.Equal(t, "1", rec.ControlNumber())

	pids := h.store.ListPIDs()
	require.Len(t, pids, 1)
	require.Equal(t, PIDType, pids[0].PIDType)
	require.Equal(t, "1", pids[0].PIDValue)
	require.Equal(t, rec.ID, pids[0].ObjectUUID)
	require.Equal(t, domain.PIDStatusRegistered, pids[0].Status)
}

func TestFetcherReturnsControlNumber(t *testing.T) {
	h := newHarness(t)
	data := fullRecord()
	data["control_number"] = "1"
	rec, _, err := h.svc.CreateRecord(context.Background(), RecordTypeName, data)
	require.NoError(t, err)

	fetched, err := h.svc.FetchPID(context.Background(), FetcherName, rec.ID, rec.Metadata)
	require.NoError(t, err)
	require.Equal(t, PIDType, fetched.PIDType)
	require.Equal(t, "1", fetched.PIDValue)

	_, ok := h.svc.Fetcher(DraftFetcherName)
	require.True(t, ok)
	_, ok = h.svc.Minter(DraftMinterName)
	require.True(t, ok)
}

func TestCanonicalURL(t *testing.T) {
	h := newHarness(t)
	rec, _, err := h.svc.CreateRecord(context.Background(), RecordTypeName, fullRecord())
	require.NoError(t, err)

	url, err := h.svc.CanonicalURL(rec)
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:5000/nr/nresults/411100", url)
}

func TestCreateSetsSchemaAndSavesReferences(t *testing.T) {
	h := newHarness(t)
	rec, _, err := h.svc.CreateRecord(context.Background(), RecordTypeName, fullRecord())
	require.NoError(t, err)
	require.Equal(t, New().SchemaURL(), rec.Schema)
	require.Equal(t, New().SchemaURL(), rec.Metadata["$schema"])

	refs := h.store.ReferencingRecords(termBase + "mdcr")
	require.Equal(t, []string{rec.ID}, refs)
	require.Equal(t, []string{rec.ID}, h.store.ReferencingRecords(termBase+"61384984"))

	got, err := h.svc.GetRecord(context.Background(), PIDType, "411100")
	require.NoError(t, err)
	require.Equal(t, rec.ID, got.ID)
}

func TestCreateRejectsForeignSchema(t *testing.T) {
	h := newHarness(t)
	data := fullRecord()
	data["$schema"] = "https://nusl.cz/schemas/nr_theses/nr-theses-v1.0.0.json"
	_, _, err := h.svc.CreateRecord(context.Background(), RecordTypeName, data)
	ve, ok := schema.AsValidationError(err)
	require.True(t, ok)
	require.True(t, ve.Has("$schema", schema.ConstraintAllowedSchema))
	require.Empty(t, h.store.ListPIDs())
}

func TestControlNumberIsImmutable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _, err := h.svc.CreateRecord(ctx, RecordTypeName, fullRecord())
	require.NoError(t, err)

	changed := fullRecord()
	changed["control_number"] = "999"
	_, _, err = h.svc.UpdateRecord(ctx, PIDType, "411100", changed)
	var violation domain.RuleViolationError
	require.True(t, errors.As(err, &violation), "expected rule violation, got %v", err)

	same := fullRecord()
	delete(same, "control_number")
	same["N_internalID"] = "N-2021"
	updated, _, err := h.svc.UpdateRecord(ctx, PIDType, "411100", same)
	require.NoError(t, err)
	require.Equal(t, "411100", updated.ControlNumber())
	require.Equal(t, "N-2021", updated.Metadata["N_internalID"])
}

func TestDeleteMarksIdentifierDeleted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _, err := h.svc.CreateRecord(ctx, RecordTypeName, fullRecord())
	require.NoError(t, err)

	_, err = h.svc.DeleteRecord(ctx, PIDType, "411100")
	require.NoError(t, err)
	_, err = h.svc.GetRecord(ctx, PIDType, "411100")
	require.ErrorIs(t, err, pidstore.ErrPIDDeleted)
	require.Empty(t, h.store.ListRecords())
}

func TestDraftLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	invalid := fullRecord()
	delete(invalid, "control_number")
	invalid["N_dateCertified"] = "1995"
	draft, _, err := h.svc.CreateDraft(ctx, RecordTypeName, invalid)
	require.NoError(t, err)
	require.True(t, draft.Draft)
	require.NotNil(t, draft.Validity)
	require.False(t, draft.Validity.Valid)
	require.Contains(t, draft.Validity.Errors, "N_dateCertified")
	cn := draft.ControlNumber()
	require.Equal(t, "1", cn)

	_, _, err = h.svc.PublishDraft(ctx, DraftPIDType, cn)
	require.ErrorIs(t, err, core.ErrDraftInvalid)

	fixed := fullRecord()
	delete(fixed, "control_number")
	draft, _, err = h.svc.UpdateRecord(ctx, DraftPIDType, cn, fixed)
	require.NoError(t, err)
	require.True(t, draft.Validity.Valid)

	doc := core.Document(draft)
	require.Equal(t, true, doc[core.FieldDraft])

	published, _, err := h.svc.PublishDraft(ctx, DraftPIDType, cn)
	require.NoError(t, err)
	require.False(t, published.Draft)
	require.Equal(t, cn, published.ControlNumber())

	pid, ok := h.store.GetPID(DraftPIDType, cn)
	require.True(t, ok)
	require.Equal(t, domain.PIDStatusRedirected, pid.Status)
	_, err = h.svc.GetRecord(ctx, DraftPIDType, cn)
	require.ErrorIs(t, err, pidstore.ErrPIDRedirected)

	got, err := h.svc.GetRecord(ctx, PIDType, cn)
	require.NoError(t, err)
	require.Equal(t, published.ID, got.ID)
}

func TestIndexedRecordsAreSearchable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _, err := h.svc.CreateRecord(ctx, RecordTypeName, fullRecord())
	require.NoError(t, err)

	res, err := h.svc.Search(ctx, EndpointName, search.Request{})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Total)
	require.Equal(t, SortNewest, res.Sort)
	hit := res.Hits[0]
	require.Equal(t, "411100", hit.Source["control_number"])
	require.NotContains(t, hit.Source, "N_internalID")
	require.Contains(t, res.Facets, "N_type")

	res, err = h.svc.Search(ctx, EndpointName, search.Request{Query: "Testovací"})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Total)
	require.Equal(t, SortBestMatch, res.Sort)

	res, err = h.svc.Search(ctx, DraftEndpointName, search.Request{})
	require.NoError(t, err)
	require.EqualValues(t, 0, res.Total)

	_, err = h.svc.Search(ctx, EndpointName, search.Request{Page: MaxResultWindow, Size: 10})
	require.ErrorIs(t, err, search.ErrResultWindow)
}

func TestTermUpdateRefreshesRecords(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rec, _, err := h.svc.CreateRecord(ctx, RecordTypeName, fullRecord())
	require.NoError(t, err)

	_, refreshed, err := h.svc.UpdateTerm(ctx, "test_taxonomy", "mdcr", map[string]any{
		"title": map[string]any{"cs": "Ministerstvo dopravy ČR", "en": "Ministry of Transport"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{rec.ID}, refreshed)

	got, err := h.svc.GetRecordByID(ctx, rec.ID)
	require.NoError(t, err)
	authority := got.Metadata["N_certifyingAuthority"].([]any)[0].(map[string]any)
	require.Equal(t, map[string]any{"cs": "Ministerstvo dopravy ČR", "en": "Ministry of Transport"}, authority["title"])
}

func TestStrictJSONSchemaValidation(t *testing.T) {
	h := newHarness(t, core.WithStrictJSONSchema(true))
	ctx := context.Background()
	rec, _, err := h.svc.CreateRecord(ctx, RecordTypeName, fullRecord())
	require.NoError(t, err)
	require.NoError(t, h.svc.ValidateJSONSchema(ctx, rec))

	rec.Metadata["N_technicalParameters"] = 42
	err = h.svc.ValidateJSONSchema(ctx, rec)
	ve, ok := schema.AsValidationError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	require.NotEmpty(t, ve.Errors)
	require.Equal(t, "N_technicalParameters", ve.Errors[0].Field)
}

func TestRevisionsAreArchived(t *testing.T) {
	ctx := context.Background()
	archiver := archive.New(blobmemory.New())
	h := newHarness(t, core.WithArchiver(archiver))

	rec, _, err := h.svc.CreateRecord(ctx, RecordTypeName, fullRecord())
	require.NoError(t, err)
	update := fullRecord()
	update["N_internalID"] = "N-2021"
	_, _, err = h.svc.UpdateRecord(ctx, PIDType, rec.ControlNumber(), update)
	require.NoError(t, err)

	revs, err := archiver.Revisions(ctx, PIDType, "411100")
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, revs)
	second, err := archiver.Load(ctx, PIDType, "411100", 2)
	require.NoError(t, err)
	require.Equal(t, "N-2021", second.Metadata["N_internalID"])
	require.Equal(t, rec.ID, second.RecordID)
}
