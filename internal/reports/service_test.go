package reports

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	pkgerrors "github.com/griffinshaw/dealbrief-backend/pkg/errors"
	"github.com/griffinshaw/dealbrief-backend/pkg/pagination"
)

func newReportsService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()

	db := setupReportsTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	return svc, db
}

func registerInput(hash string) RegisterReportInput {
	return RegisterReportInput{
		OwnerUserID:     uuid.New(),
		PropertyAddress: "88 Gable Row, Helena MT",
		ContentHash:     hash,
		FileName:        "inspection.pdf",
		FileSizeBytes:   2048,
		StorageKey:      "reports/" + hash + "/inspection.pdf",
		EstimatedCredit: 4500,
		KeyIssueTags:    []string{"roof", "electrical"},
		Battlecard:      json.RawMessage(`{"summary":"aging roof"}`),
	}
}

func TestService_Register(t *testing.T) {
	svc, _ := newReportsService(t)
	ctx := context.Background()

	report, err := svc.Register(ctx, registerInput("svc-hash-1"))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, report.ID)
	require.True(t, report.IsPublic)
	require.Equal(t, 0, report.DownloadCount)
	require.Equal(t, []string{"roof", "electrical"}, []string(report.KeyIssueTags))

	stored, err := svc.FindByHash(ctx, "svc-hash-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, report.ID, stored.ID)
}

func TestService_RegisterDefaultsEmptyTags(t *testing.T) {
	svc, _ := newReportsService(t)

	input := registerInput("svc-hash-tags")
	input.KeyIssueTags = nil
	input.Battlecard = nil

	report, err := svc.Register(context.Background(), input)
	require.NoError(t, err)
	require.NotNil(t, report.KeyIssueTags)
	require.Empty(t, report.KeyIssueTags)
}

func TestService_RegisterDuplicateHash(t *testing.T) {
	svc, _ := newReportsService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerInput("svc-hash-dup"))
	require.NoError(t, err)

	second := registerInput("svc-hash-dup")
	second.PropertyAddress = "totally different address"
	_, err = svc.Register(ctx, second)
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeConflict, appErr.Code())
}

func TestService_RegisterValidation(t *testing.T) {
	svc, _ := newReportsService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*RegisterReportInput)
	}{
		{"missing owner", func(in *RegisterReportInput) { in.OwnerUserID = uuid.Nil }},
		{"blank address", func(in *RegisterReportInput) { in.PropertyAddress = "   " }},
		{"missing hash", func(in *RegisterReportInput) { in.ContentHash = "" }},
		{"missing file name", func(in *RegisterReportInput) { in.FileName = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := registerInput("svc-hash-" + uuid.NewString())
			tc.mutate(&input)

			_, err := svc.Register(ctx, input)
			require.Error(t, err)

			appErr := pkgerrors.As(err)
			require.NotNil(t, appErr)
			require.Equal(t, pkgerrors.CodeValidation, appErr.Code())
		})
	}
}

func TestService_GetByIDNotFound(t *testing.T) {
	svc, _ := newReportsService(t)

	_, err := svc.GetByID(context.Background(), uuid.New())
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}

func TestService_SearchListsOnlyPublic(t *testing.T) {
	svc, db := newReportsService(t)
	ctx := context.Background()

	visible, err := svc.Register(ctx, func() RegisterReportInput {
		in := registerInput("svc-hash-pub")
		in.PropertyAddress = "310 Lantern Hollow Rd, Provo UT"
		return in
	}())
	require.NoError(t, err)

	private, err := svc.Register(ctx, func() RegisterReportInput {
		in := registerInput("svc-hash-priv")
		in.PropertyAddress = "311 Lantern Hollow Rd, Provo UT"
		return in
	}())
	require.NoError(t, err)

	require.NoError(t, db.Model(private).UpdateColumn("is_public", false).Error)

	result, err := svc.Search(ctx, "lantern hollow", pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, result.Reports, 1)
	require.Equal(t, visible.ID, result.Reports[0].ID)

	owned, err := svc.ListByOwner(ctx, private.OwnerUserID, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, owned.Reports, 1, "owner listing still includes private rows")
	require.Equal(t, private.ID, owned.Reports[0].ID)
}

func TestService_IncrementAndDelete(t *testing.T) {
	svc, _ := newReportsService(t)
	ctx := context.Background()

	report, err := svc.Register(ctx, registerInput("svc-hash-lifecycle"))
	require.NoError(t, err)

	require.NoError(t, svc.IncrementDownloadCount(ctx, report.ID))
	reloaded, err := svc.GetByID(ctx, report.ID)
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.DownloadCount)

	require.NoError(t, svc.Delete(ctx, report.ID))
	_, err = svc.GetByID(ctx, report.ID)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
