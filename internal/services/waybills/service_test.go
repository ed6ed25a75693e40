package waybills

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"waybox/internal/broker/messages"
	"waybox/internal/filter"
	"waybox/internal/integrations/carrier"
	"waybox/internal/models"
)

type fakeRepo struct {
	byID      map[uint64]*models.Waybill
	saveCalls int
	saveErr   error

	existsOut bool
	existsErr error
	existsIn  *filter.Expr

	listIn  filter.Expr
	listOut []*models.Waybill

	sumIn  filter.Expr
	sumOut float64
}

func (f *fakeRepo) CreateWaybill(_ context.Context, in models.WaybillCreateInput) (*models.Waybill, error) {
	w := &models.Waybill{
		ID:                   uint64(len(f.byID) + 1),
		RecipientTownID:      in.RecipientTownID,
		RecipientWarehouseID: in.RecipientWarehouseID,
		RecipientName:        in.RecipientName,
		RecipientPhone:       in.RecipientPhone,
		SeatsAmount:          in.SeatsAmount,
		StatusCode:           models.StatusNew,
	}
	f.byID[w.ID] = w
	return w, nil
}

func (f *fakeRepo) GetWaybill(_ context.Context, id uint64) (*models.Waybill, error) {
	w, ok := f.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (f *fakeRepo) SaveWaybill(_ context.Context, w *models.Waybill) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saveCalls++
	cp := *w
	f.byID[w.ID] = &cp
	return nil
}

func (f *fakeRepo) ListWaybills(_ context.Context, fl filter.Expr, _, _ int) ([]*models.Waybill, error) {
	f.listIn = fl
	return f.listOut, nil
}

func (f *fakeRepo) ExistsWaybill(_ context.Context, fl filter.Expr) (bool, error) {
	f.existsIn = &fl
	return f.existsOut, f.existsErr
}

func (f *fakeRepo) SumEarnings(_ context.Context, fl filter.Expr) (float64, error) {
	f.sumIn = fl
	return f.sumOut, nil
}

type fakeRef struct {
	towns      map[uint64]*models.Town
	warehouses map[uint64]*models.Warehouse
}

func (f *fakeRef) Town(_ context.Context, id uint64) (*models.Town, error) {
	t, ok := f.towns[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return t, nil
}

func (f *fakeRef) Warehouse(_ context.Context, id uint64) (*models.Warehouse, error) {
	w, ok := f.warehouses[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return w, nil
}

type fakeGateway struct {
	saveIn    []carrier.DocumentParams
	saveOut   carrier.Result
	saveErr   error
	updateIn  []carrier.DocumentParams
	updateOut carrier.Result
	deleteIn  []string
	deleteOut carrier.Result
}

func (g *fakeGateway) SaveDocument(_ context.Context, p carrier.DocumentParams) (carrier.Result, error) {
	g.saveIn = append(g.saveIn, p)
	return g.saveOut, g.saveErr
}

func (g *fakeGateway) UpdateDocument(_ context.Context, p carrier.DocumentParams) (carrier.Result, error) {
	g.updateIn = append(g.updateIn, p)
	return g.updateOut, nil
}

func (g *fakeGateway) DeleteDocument(_ context.Context, ref string) (carrier.Result, error) {
	g.deleteIn = append(g.deleteIn, ref)
	return g.deleteOut, nil
}

func newFixture() (*fakeRepo, *fakeRef, *fakeGateway, *Service) {
	repo := &fakeRepo{byID: map[uint64]*models.Waybill{}}
	ref := &fakeRef{
		towns:      map[uint64]*models.Town{1: {ID: 1, Name: "Kyiv", SettlementType: "city", Area: "Kyivska"}},
		warehouses: map[uint64]*models.Warehouse{2: {ID: 2, TownID: 1, SiteNumber: "14"}},
	}
	gw := &fakeGateway{}
	svc := New(repo, ref, gw, nil).WithClock(func() time.Time {
		return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	})
	return repo, ref, gw, svc
}

func seedWaybill(repo *fakeRepo) *models.Waybill {
	w := &models.Waybill{
		ID:                   1,
		Sender:               "snd",
		SenderContact:        "cnt",
		SenderCity:           "city-ref",
		SenderAddress:        "addr-ref",
		SenderPhone:          "+380501112233",
		RecipientTownID:      1,
		RecipientWarehouseID: 2,
		RecipientName:        "Ivan Petrenko",
		RecipientPhone:       "+380671112233",
		Description:          "Clothes",
		Weight:               1.5,
		SeatsAmount:          1,
		DeclaredCost:         500,
		ShipDate:             time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
		StatusCode:           models.StatusNew,
	}
	repo.byID[1] = w
	return w
}

func TestService_CreateWaybill_Validation(t *testing.T) {
	_, _, _, svc := newFixture()
	ctx := context.Background()

	_, err := svc.CreateWaybill(ctx, models.WaybillCreateInput{})
	require.Error(t, err)

	_, err = svc.CreateWaybill(ctx, models.WaybillCreateInput{
		RecipientTownID: 1, RecipientWarehouseID: 2,
		RecipientName: "Ivan", RecipientPhone: "+380671112233",
		IsRedelivery: true, RedeliverySum: 0,
	})
	require.Error(t, err)

	w, err := svc.CreateWaybill(ctx, models.WaybillCreateInput{
		RecipientTownID: 1, RecipientWarehouseID: 2,
		RecipientName: "Ivan", RecipientPhone: "+380671112233",
	})
	require.NoError(t, err)
	require.Equal(t, 1, w.SeatsAmount)
	require.Equal(t, models.StatusNew, w.StatusCode)
}

func TestService_Issue_Success(t *testing.T) {
	repo, _, gw, svc := newFixture()
	seedWaybill(repo)
	gw.saveOut = carrier.Result{Success: true, Data: []carrier.DocumentData{{
		Ref:                   "X1",
		CostOnSite:            120,
		EstimatedDeliveryDate: "2024-03-15",
		IntDocNumber:          "20450000000001",
	}}}

	res, err := svc.Issue(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, res.Success)

	require.Len(t, gw.saveIn, 1)
	p := gw.saveIn[0]
	require.Equal(t, "Kyiv", p.RecipientCityName)
	require.Equal(t, "14", p.RecipientAddressName)
	require.Equal(t, "11.03.2024", p.DateTime)
	require.Empty(t, p.BackwardDeliveryData)

	got := repo.byID[1]
	require.True(t, got.Issued())
	require.Equal(t, "X1", *got.CarrierRef)
	require.Equal(t, "20450000000001", *got.DocumentNumber)
	require.Equal(t, 120.0, *got.CarrierCost)
	require.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), *got.EstimatedDeliveryDate)
}

func TestService_Issue_SecondCallIsBlocked(t *testing.T) {
	repo, _, gw, svc := newFixture()
	seedWaybill(repo)
	gw.saveOut = carrier.Result{Success: true, Data: []carrier.DocumentData{{Ref: "X1"}}}

	ctx := context.Background()
	res, err := svc.Issue(ctx, 1)
	require.NoError(t, err)
	require.True(t, res.Success)

	res, err = svc.Issue(ctx, 1)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Contains(t, res.Errors[0], "already registered")

	// Перевозчик второй вызов не видел, запись не менялась.
	require.Len(t, gw.saveIn, 1)
	require.Equal(t, "X1", *repo.byID[1].CarrierRef)
}

func TestService_Issue_CarrierFailureKeepsRecord(t *testing.T) {
	repo, _, gw, svc := newFixture()
	seedWaybill(repo)
	gw.saveOut = carrier.Failure("Sender address is invalid")

	res, err := svc.Issue(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, []string{"Sender address is invalid"}, res.Errors)
	require.False(t, repo.byID[1].Issued())
	require.Zero(t, repo.saveCalls)
}

func TestService_Issue_TransportErrorIsHard(t *testing.T) {
	repo, _, gw, svc := newFixture()
	seedWaybill(repo)
	gw.saveErr = errors.New("dial tcp: connection refused")

	_, err := svc.Issue(context.Background(), 1)
	require.Error(t, err)
	require.False(t, repo.byID[1].Issued())
}

func TestService_Issue_UnknownTown(t *testing.T) {
	repo, ref, gw, svc := newFixture()
	w := seedWaybill(repo)
	delete(ref.towns, w.RecipientTownID)

	res, err := svc.Issue(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Contains(t, res.Errors[0], "unknown recipient town")
	require.Empty(t, gw.saveIn)
}

func TestService_Issue_RedeliveryAddsMoneyRecord(t *testing.T) {
	repo, _, gw, svc := newFixture()
	w := seedWaybill(repo)
	w.IsRedelivery = true
	w.RedeliveryPayerType = "Recipient"
	w.RedeliverySum = 250.5
	gw.saveOut = carrier.Result{Success: true, Data: []carrier.DocumentData{{Ref: "X1"}}}

	_, err := svc.Issue(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, gw.saveIn, 1)
	bd := gw.saveIn[0].BackwardDeliveryData
	require.Len(t, bd, 1)
	require.Equal(t, "Money", bd[0].CargoType)
	require.Equal(t, "Recipient", bd[0].PayerType)
	require.Equal(t, "250.5", bd[0].RedeliveryString)
}

func TestService_Amend_RequiresRegistration(t *testing.T) {
	repo, _, gw, svc := newFixture()
	seedWaybill(repo)

	res, err := svc.Amend(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Contains(t, res.Errors[0], "not registered")
	require.Empty(t, gw.updateIn)
}

func TestService_Amend_SendsRefAndAppliesCost(t *testing.T) {
	repo, _, gw, svc := newFixture()
	w := seedWaybill(repo)
	ref := "X1"
	num := "20450000000001"
	w.CarrierRef = &ref
	w.DocumentNumber = &num
	gw.updateOut = carrier.Result{Success: true, Data: []carrier.DocumentData{{
		Ref: "X1", CostOnSite: 140, EstimatedDeliveryDate: "16.03.2024",
	}}}

	res, err := svc.Amend(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "X1", gw.updateIn[0].Ref)

	got := repo.byID[1]
	require.Equal(t, 140.0, *got.CarrierCost)
	require.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), *got.EstimatedDeliveryDate)
	// Регистрация и номер документа правкой не трогаются.
	require.Equal(t, "X1", *got.CarrierRef)
	require.Equal(t, num, *got.DocumentNumber)
}

func TestService_Withdraw_ClearsRegistration(t *testing.T) {
	repo, _, gw, svc := newFixture()
	w := seedWaybill(repo)
	ref := "X1"
	w.CarrierRef = &ref
	gw.deleteOut = carrier.Result{Success: true}

	res, err := svc.Withdraw(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, []string{"X1"}, gw.deleteIn)
	require.False(t, repo.byID[1].Issued())
}

func TestService_Withdraw_CarrierFailureKeepsRef(t *testing.T) {
	repo, _, gw, svc := newFixture()
	w := seedWaybill(repo)
	ref := "X1"
	w.CarrierRef = &ref
	gw.deleteOut = carrier.Failure("document is already in transit")

	res, err := svc.Withdraw(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.True(t, repo.byID[1].Issued())
}

func TestService_ApplyTrackingChange_ClassifiesReceived(t *testing.T) {
	repo, _, _, svc := newFixture()
	seedWaybill(repo)

	code := 9
	at := time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)
	err := svc.ApplyTrackingChange(context.Background(), messages.TrackingStatusChanged{
		WaybillID:    1,
		CheckedAt:    at,
		TrackingCode: &code,
		TrackingAt:   &at,
		NextCheckAt:  at.Add(12 * time.Hour),
	})
	require.NoError(t, err)

	got := repo.byID[1]
	require.Equal(t, models.StatusReceived, got.StatusCode)
	require.Equal(t, 9, *got.TrackingStatusCode)
	require.Equal(t, at, *got.TrackingStatusEditedAt)
	require.Equal(t, at.Add(12*time.Hour), got.NextCheckAt)
	// Таблица покрыла код — существование по предикату не проверялось.
	require.Nil(t, repo.existsIn)
}

func TestService_ApplyTrackingChange_UnknownCodeFallback(t *testing.T) {
	repo, _, _, svc := newFixture()
	seedWaybill(repo)
	repo.existsOut = true

	code := 999
	err := svc.ApplyTrackingChange(context.Background(), messages.TrackingStatusChanged{
		WaybillID:    1,
		CheckedAt:    time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC),
		TrackingCode: &code,
		NextCheckAt:  time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusNotReceived, repo.byID[1].StatusCode)
	require.NotNil(t, repo.existsIn)
}

func TestService_ApplyTrackingChange_UnknownCodeNoChange(t *testing.T) {
	repo, _, _, svc := newFixture()
	w := seedWaybill(repo)
	w.StatusCode = models.StatusInTransit
	repo.existsOut = false

	code := 999
	err := svc.ApplyTrackingChange(context.Background(), messages.TrackingStatusChanged{
		WaybillID:    1,
		CheckedAt:    time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC),
		TrackingCode: &code,
		NextCheckAt:  time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	got := repo.byID[1]
	// Статус остался прежним, но сырой трекинг сохранён.
	require.Equal(t, models.StatusInTransit, got.StatusCode)
	require.Equal(t, 999, *got.TrackingStatusCode)
}

func TestService_ApplyTrackingChange_ErrorCountsFailure(t *testing.T) {
	repo, _, _, svc := newFixture()
	seedWaybill(repo)

	msg := "carrier timeout"
	err := svc.ApplyTrackingChange(context.Background(), messages.TrackingStatusChanged{
		WaybillID:   1,
		CheckedAt:   time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC),
		NextCheckAt: time.Date(2024, 3, 12, 9, 30, 0, 0, time.UTC),
		Error:       &msg,
	})
	require.NoError(t, err)

	got := repo.byID[1]
	require.Equal(t, int32(1), got.CheckFailCount)
	require.Equal(t, "carrier timeout", *got.LastError)
	require.Nil(t, got.TrackingStatusCode)
}

func TestService_Reports_UseWindowPredicates(t *testing.T) {
	repo, _, _, svc := newFixture()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	_, err := svc.NotReceived(context.Background(), "+380671112233", 10, 0)
	require.NoError(t, err)
	sql, args := repo.listIn.SQL(1)
	require.Contains(t, sql, "recipient_phone = $1")
	require.Contains(t, sql, "tracking_status_code IN ($2, $3)")
	require.Contains(t, args, now.Add(-72*time.Hour))

	_, err = svc.AwaitingRedeliverySum(context.Background(), "", 10, 0)
	require.NoError(t, err)
	sql, args = repo.listIn.SQL(1)
	require.Equal(t, "(tracking_status_code = $1 AND tracking_status_edited_at > $2)", sql)
	require.Equal(t, []any{10, now.Add(-96 * time.Hour)}, args)

	repo.sumOut = 35
	sum, err := svc.Earnings(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 35.0, sum)
	sql, args = repo.sumIn.SQL(1)
	require.Equal(t, "status_code = $1", sql)
	require.Equal(t, []any{4}, args)
}
