// Package waybills — менеджер жизненного цикла накладной: регистрация,
// правка и отзыв документа у перевозчика, применение трекинга, отчёты.
package waybills

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"waybox/internal/broker/messages"
	"waybox/internal/filter"
	"waybox/internal/integrations/carrier"
	"waybox/internal/models"
	"waybox/internal/refdata"
	"waybox/internal/status"
)

type Repository interface {
	CreateWaybill(ctx context.Context, in models.WaybillCreateInput) (*models.Waybill, error)
	GetWaybill(ctx context.Context, id uint64) (*models.Waybill, error)
	SaveWaybill(ctx context.Context, w *models.Waybill) error
	ListWaybills(ctx context.Context, f filter.Expr, limit, offset int) ([]*models.Waybill, error)
	ExistsWaybill(ctx context.Context, f filter.Expr) (bool, error)
	SumEarnings(ctx context.Context, f filter.Expr) (float64, error)
}

// Notifier — хук уведомлений о смене статуса (SMS и т.п.). Необязателен.
type Notifier interface {
	StatusChanged(ctx context.Context, w *models.Waybill, old models.StatusCode)
}

type Service struct {
	repo     Repository
	ref      refdata.Resolver
	gateway  carrier.Gateway
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

func New(repo Repository, ref refdata.Resolver, gw carrier.Gateway, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:    repo,
		ref:     ref,
		gateway: gw,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithNotifier подключает уведомления; по умолчанию их нет.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// WithClock подменяет часы (тесты оконных предикатов).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) CreateWaybill(ctx context.Context, in models.WaybillCreateInput) (*models.Waybill, error) {
	if in.RecipientTownID == 0 {
		return nil, errors.New("recipientTownId is required")
	}
	if in.RecipientWarehouseID == 0 {
		return nil, errors.New("recipientWarehouseId is required")
	}
	if in.RecipientName == "" {
		return nil, errors.New("recipientName is required")
	}
	if in.RecipientPhone == "" {
		return nil, errors.New("recipientPhone is required")
	}
	if in.IsRedelivery && in.RedeliverySum <= 0 {
		return nil, errors.New("redeliverySum must be positive for redelivery")
	}
	if in.SeatsAmount <= 0 {
		in.SeatsAmount = 1
	}
	if in.OrderDate.IsZero() {
		in.OrderDate = s.now()
	}
	if in.ShipDate.IsZero() {
		in.ShipDate = in.OrderDate
	}
	return s.repo.CreateWaybill(ctx, in)
}

func (s *Service) GetWaybill(ctx context.Context, id uint64) (*models.Waybill, error) {
	return s.repo.GetWaybill(ctx, id)
}

// Issue регистрирует накладную у перевозчика. Повторная регистрация
// блокируется по CarrierRef: перевозчик второй вызов не увидит.
func (s *Service) Issue(ctx context.Context, id uint64) (carrier.Result, error) {
	w, err := s.repo.GetWaybill(ctx, id)
	if err != nil {
		return carrier.Result{}, err
	}
	if w.Issued() {
		return carrier.Failure("waybill is already registered with the carrier"), nil
	}

	params, res, err := s.buildParams(ctx, w)
	if err != nil || !res.Success {
		return res, err
	}

	res, err = s.gateway.SaveDocument(ctx, params)
	if err != nil {
		return carrier.Result{}, errors.Wrap(err, "save document")
	}
	if !res.Success {
		// Бизнес-отказ перевозчика отдаём как есть, запись не трогаем.
		return res, nil
	}
	if len(res.Data) == 0 {
		return carrier.Result{}, errors.New("carrier returned success without document data")
	}

	doc := res.Data[0]
	w.CarrierRef = &doc.Ref
	if doc.IntDocNumber != "" {
		w.DocumentNumber = &doc.IntDocNumber
	}
	s.applyCostAndDate(w, doc)
	w.NextCheckAt = s.now()

	if err := s.repo.SaveWaybill(ctx, w); err != nil {
		return carrier.Result{}, err
	}
	s.log.Info("waybill issued", "id", w.ID, "ref", doc.Ref, "number", doc.IntDocNumber)
	return res, nil
}

// Amend правит зарегистрированный документ теми же параметрами плюс Ref.
func (s *Service) Amend(ctx context.Context, id uint64) (carrier.Result, error) {
	w, err := s.repo.GetWaybill(ctx, id)
	if err != nil {
		return carrier.Result{}, err
	}
	if !w.Issued() {
		return carrier.Failure("waybill is not registered with the carrier"), nil
	}

	params, res, err := s.buildParams(ctx, w)
	if err != nil || !res.Success {
		return res, err
	}
	params.Ref = *w.CarrierRef

	res, err = s.gateway.UpdateDocument(ctx, params)
	if err != nil {
		return carrier.Result{}, errors.Wrap(err, "update document")
	}
	if !res.Success {
		return res, nil
	}

	// При правке перевозчик пересчитывает только стоимость и дату доставки.
	if len(res.Data) > 0 {
		s.applyCostAndDate(w, res.Data[0])
	}
	if err := s.repo.SaveWaybill(ctx, w); err != nil {
		return carrier.Result{}, err
	}
	s.log.Info("waybill amended", "id", w.ID)
	return res, nil
}

// Withdraw отзывает документ у перевозчика и снимает маркер регистрации,
// чтобы накладную можно было зарегистрировать заново.
func (s *Service) Withdraw(ctx context.Context, id uint64) (carrier.Result, error) {
	w, err := s.repo.GetWaybill(ctx, id)
	if err != nil {
		return carrier.Result{}, err
	}
	if !w.Issued() {
		return carrier.Failure("waybill is not registered with the carrier"), nil
	}

	res, err := s.gateway.DeleteDocument(ctx, *w.CarrierRef)
	if err != nil {
		return carrier.Result{}, errors.Wrap(err, "delete document")
	}
	if !res.Success {
		return res, nil
	}

	w.CarrierRef = nil
	if err := s.repo.SaveWaybill(ctx, w); err != nil {
		return carrier.Result{}, err
	}
	s.log.Info("waybill withdrawn", "id", w.ID)
	return res, nil
}

// buildParams собирает параметры документа из записи и справочников.
// Промах справочника — отказ в конверте перевозчика, не ошибка транспорта.
func (s *Service) buildParams(ctx context.Context, w *models.Waybill) (carrier.DocumentParams, carrier.Result, error) {
	town, err := s.ref.Town(ctx, w.RecipientTownID)
	if errors.Is(err, models.ErrNotFound) {
		return carrier.DocumentParams{}, carrier.Failure(fmt.Sprintf("unknown recipient town %d", w.RecipientTownID)), nil
	}
	if err != nil {
		return carrier.DocumentParams{}, carrier.Result{}, errors.Wrap(err, "resolve town")
	}

	wh, err := s.ref.Warehouse(ctx, w.RecipientWarehouseID)
	if errors.Is(err, models.ErrNotFound) {
		return carrier.DocumentParams{}, carrier.Failure(fmt.Sprintf("unknown recipient warehouse %d", w.RecipientWarehouseID)), nil
	}
	if err != nil {
		return carrier.DocumentParams{}, carrier.Result{}, errors.Wrap(err, "resolve warehouse")
	}

	p := carrier.DocumentParams{
		NewAddress:    1,
		PayerType:     w.PayerType,
		PaymentMethod: w.PaymentMethod,
		CargoType:     w.CargoType,
		VolumeGeneral: w.Volume,
		Weight:        w.Weight,
		ServiceType:   w.ServiceType,
		SeatsAmount:   w.SeatsAmount,
		Description:   w.Description,
		Cost:          w.DeclaredCost,

		CitySender:    w.SenderCity,
		Sender:        w.Sender,
		SenderAddress: w.SenderAddress,
		ContactSender: w.SenderContact,
		SendersPhone:  w.SenderPhone,

		RecipientCityName:    town.Name,
		SettlementType:       town.SettlementType,
		RecipientArea:        town.Area,
		RecipientAreaRegions: town.AreaRegion,
		RecipientAddressName: wh.SiteNumber,
		RecipientHouse:       "",
		RecipientFlat:        "",
		RecipientName:        w.RecipientName,
		RecipientType:        w.RecipientType,
		RecipientsPhone:      w.RecipientPhone,

		DateTime: w.ShipDate.Format("02.01.2006"),
	}

	if w.IsRedelivery {
		p.BackwardDeliveryData = []carrier.BackwardDelivery{{
			PayerType:        w.RedeliveryPayerType,
			CargoType:        "Money",
			RedeliveryString: strconv.FormatFloat(w.RedeliverySum, 'f', -1, 64),
		}}
	}

	return p, carrier.Result{Success: true}, nil
}

func (s *Service) applyCostAndDate(w *models.Waybill, doc carrier.DocumentData) {
	if doc.CostOnSite > 0 {
		cost := doc.CostOnSite
		w.CarrierCost = &cost
	}
	if doc.EstimatedDeliveryDate == "" {
		return
	}
	d, err := carrier.ParseEstimatedDelivery(doc.EstimatedDeliveryDate)
	if err != nil {
		s.log.Warn("unparseable delivery date", "id", w.ID, "value", doc.EstimatedDeliveryDate)
		return
	}
	w.EstimatedDeliveryDate = &d
}

// ApplyTrackingChange применяет результат опроса трекинга: сначала сырые
// поля трекинга, затем пересчёт внутреннего статуса. Поля трекинга
// сохраняются сразу, независимо от исхода классификации.
func (s *Service) ApplyTrackingChange(ctx context.Context, msg messages.TrackingStatusChanged) error {
	if msg.WaybillID == 0 {
		return errors.New("waybill_id is required")
	}

	w, err := s.repo.GetWaybill(ctx, msg.WaybillID)
	if err != nil {
		return err
	}

	if msg.NextCheckAt.IsZero() {
		msg.NextCheckAt = s.now().Add(60 * time.Minute)
	}
	w.NextCheckAt = msg.NextCheckAt

	if msg.Error != nil {
		w.CheckFailCount++
		w.LastError = msg.Error
		return s.repo.SaveWaybill(ctx, w)
	}

	w.CheckFailCount = 0
	w.LastError = nil
	if msg.TrackingCode != nil {
		w.TrackingStatusCode = msg.TrackingCode
		at := msg.CheckedAt
		if msg.TrackingAt != nil {
			at = *msg.TrackingAt
		}
		w.TrackingStatusEditedAt = &at
	}
	if err := s.repo.SaveWaybill(ctx, w); err != nil {
		return err
	}
	if msg.TrackingCode == nil {
		return nil
	}

	stuck := func() (bool, error) {
		return s.repo.ExistsWaybill(ctx, filter.NotReceived(filter.ByID(w.ID), s.now()))
	}
	newCode, changed, err := status.Classify(*msg.TrackingCode, stuck)
	if err != nil {
		return errors.Wrap(err, "classify")
	}
	if !changed || newCode == w.StatusCode {
		return nil
	}

	old := w.StatusCode
	w.StatusCode = newCode
	if err := s.repo.SaveWaybill(ctx, w); err != nil {
		return err
	}
	s.log.Info("waybill status changed", "id", w.ID, "from", old.String(), "to", newCode.String())
	if s.notifier != nil {
		s.notifier.StatusChanged(ctx, w, old)
	}
	return nil
}

// Отчёты. Базовый фильтр — телефон получателя, поверх него предикаты окна.

func (s *Service) NotReceived(ctx context.Context, phone string, limit, offset int) ([]*models.Waybill, error) {
	return s.repo.ListWaybills(ctx, filter.NotReceived(filter.ByPhone(phone), s.now()), limit, offset)
}

func (s *Service) AwaitingRedeliverySum(ctx context.Context, phone string, limit, offset int) ([]*models.Waybill, error) {
	return s.repo.ListWaybills(ctx, filter.AwaitingRedeliverySum(filter.ByPhone(phone), s.now()), limit, offset)
}

func (s *Service) Earnings(ctx context.Context, phone string) (float64, error) {
	return s.repo.SumEarnings(ctx, filter.Earnings(filter.ByPhone(phone)))
}
