package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"waybox/internal/integrations/carrier"
)

func TestFakeGateway_SaveAssignsDocument(t *testing.T) {
	f := New()
	res, err := f.SaveDocument(context.Background(), carrier.DocumentParams{RecipientsPhone: "+1"})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.Data, 1)
	require.NotEmpty(t, res.Data[0].Ref)
	require.NotEmpty(t, res.Data[0].IntDocNumber)
	require.NotEmpty(t, res.Data[0].EstimatedDeliveryDate)

	// Повторный save выдаёт другой документ (guard от двойной регистрации живёт выше).
	res2, err := f.SaveDocument(context.Background(), carrier.DocumentParams{RecipientsPhone: "+1"})
	require.NoError(t, err)
	require.NotEqual(t, res.Data[0].Ref, res2.Data[0].Ref)
}

func TestFakeGateway_UpdateRequiresRef(t *testing.T) {
	f := New()
	res, err := f.UpdateDocument(context.Background(), carrier.DocumentParams{})
	require.NoError(t, err)
	require.False(t, res.Success)

	res, err = f.UpdateDocument(context.Background(), carrier.DocumentParams{Ref: "r-1"})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "r-1", res.Data[0].Ref)
}

func TestFakeGateway_TrackingAdvances(t *testing.T) {
	f := New()
	ctx := context.Background()

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		st, err := f.GetStatusDocuments(ctx, []string{"D-1"})
		require.NoError(t, err)
		require.Len(t, st, 1)
		codes = append(codes, st[0].TrackingCode)
	}
	require.Equal(t, []int{1, 5, 7, 9, 9}, codes)
}
