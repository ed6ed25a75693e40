package pgwaybill

import (
	"context"
	"fmt"
	"time"

	"waybox/internal/filter"
	"waybox/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const waybillColumns = `
  id, carrier_ref, document_number, carrier_cost, estimated_delivery_date,
  sender, sender_contact, sender_city, sender_address, sender_phone,
  recipient_town_id, recipient_warehouse_id, recipient_name, recipient_phone, recipient_type,
  description, note, weight, volume, seats_amount, declared_cost, cargo_type, service_type,
  payer_type, payment_method, prepaid_sum, order_date, ship_date,
  is_redelivery, redelivery_payer_type, redelivery_sum,
  status_code, tracking_status_code, tracking_status_edited_at,
  next_check_at, check_fail_count, last_error,
  created_at, updated_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanWaybill(row scannable) (*models.Waybill, error) {
	var w models.Waybill
	var statusCode int
	if err := row.Scan(
		&w.ID, &w.CarrierRef, &w.DocumentNumber, &w.CarrierCost, &w.EstimatedDeliveryDate,
		&w.Sender, &w.SenderContact, &w.SenderCity, &w.SenderAddress, &w.SenderPhone,
		&w.RecipientTownID, &w.RecipientWarehouseID, &w.RecipientName, &w.RecipientPhone, &w.RecipientType,
		&w.Description, &w.Note, &w.Weight, &w.Volume, &w.SeatsAmount, &w.DeclaredCost, &w.CargoType, &w.ServiceType,
		&w.PayerType, &w.PaymentMethod, &w.PrepaidSum, &w.OrderDate, &w.ShipDate,
		&w.IsRedelivery, &w.RedeliveryPayerType, &w.RedeliverySum,
		&statusCode, &w.TrackingStatusCode, &w.TrackingStatusEditedAt,
		&w.NextCheckAt, &w.CheckFailCount, &w.LastError,
		&w.CreatedAt, &w.UpdatedAt,
	); err != nil {
		return nil, err
	}
	w.StatusCode = models.StatusCode(statusCode)
	return &w, nil
}

func (s *Storage) CreateWaybill(ctx context.Context, in models.WaybillCreateInput) (*models.Waybill, error) {
	now := time.Now().UTC()

	var id uint64
	err := s.db.QueryRow(ctx, `
INSERT INTO waybills (
  sender, sender_contact, sender_city, sender_address, sender_phone,
  recipient_town_id, recipient_warehouse_id, recipient_name, recipient_phone, recipient_type,
  description, note, weight, volume, seats_amount, declared_cost, cargo_type, service_type,
  payer_type, payment_method, prepaid_sum, order_date, ship_date,
  is_redelivery, redelivery_payer_type, redelivery_sum,
  status_code, next_check_at, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$29)
RETURNING id
`,
		in.Sender, in.SenderContact, in.SenderCity, in.SenderAddress, in.SenderPhone,
		in.RecipientTownID, in.RecipientWarehouseID, in.RecipientName, in.RecipientPhone, in.RecipientType,
		in.Description, in.Note, in.Weight, in.Volume, in.SeatsAmount, in.DeclaredCost, in.CargoType, in.ServiceType,
		in.PayerType, in.PaymentMethod, in.PrepaidSum, in.OrderDate, in.ShipDate,
		in.IsRedelivery, in.RedeliveryPayerType, in.RedeliverySum,
		int(models.StatusNew), now, now,
	).Scan(&id)
	if err != nil {
		return nil, errors.Wrap(err, "insert waybill")
	}

	return s.GetWaybill(ctx, id)
}

func (s *Storage) GetWaybill(ctx context.Context, id uint64) (*models.Waybill, error) {
	row := s.db.QueryRow(ctx, `SELECT`+waybillColumns+` FROM waybills WHERE id = $1`, id)
	w, err := scanWaybill(row)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select waybill")
	}
	return w, nil
}

// SaveWaybill пишет строку целиком: частичных патчей поверх устаревшего
// чтения у нас нет, запись мутируют только менеджер жизненного цикла
// и применение трекинга.
func (s *Storage) SaveWaybill(ctx context.Context, w *models.Waybill) error {
	_, err := s.db.Exec(ctx, `
UPDATE waybills SET
  carrier_ref = $2,
  document_number = $3,
  carrier_cost = $4,
  estimated_delivery_date = $5,
  sender = $6, sender_contact = $7, sender_city = $8, sender_address = $9, sender_phone = $10,
  recipient_town_id = $11, recipient_warehouse_id = $12, recipient_name = $13, recipient_phone = $14, recipient_type = $15,
  description = $16, note = $17, weight = $18, volume = $19, seats_amount = $20,
  declared_cost = $21, cargo_type = $22, service_type = $23,
  payer_type = $24, payment_method = $25, prepaid_sum = $26, order_date = $27, ship_date = $28,
  is_redelivery = $29, redelivery_payer_type = $30, redelivery_sum = $31,
  status_code = $32, tracking_status_code = $33, tracking_status_edited_at = $34,
  next_check_at = $35, check_fail_count = $36, last_error = $37,
  updated_at = now()
WHERE id = $1
`,
		w.ID,
		w.CarrierRef, w.DocumentNumber, w.CarrierCost, w.EstimatedDeliveryDate,
		w.Sender, w.SenderContact, w.SenderCity, w.SenderAddress, w.SenderPhone,
		w.RecipientTownID, w.RecipientWarehouseID, w.RecipientName, w.RecipientPhone, w.RecipientType,
		w.Description, w.Note, w.Weight, w.Volume, w.SeatsAmount,
		w.DeclaredCost, w.CargoType, w.ServiceType,
		w.PayerType, w.PaymentMethod, w.PrepaidSum, w.OrderDate, w.ShipDate,
		w.IsRedelivery, w.RedeliveryPayerType, w.RedeliverySum,
		int(w.StatusCode), w.TrackingStatusCode, w.TrackingStatusEditedAt,
		w.NextCheckAt, w.CheckFailCount, w.LastError,
	)
	return errors.Wrap(err, "update waybill")
}

func (s *Storage) ListWaybills(ctx context.Context, f filter.Expr, limit, offset int) ([]*models.Waybill, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	where, args := f.SQL(1)
	q := fmt.Sprintf(`SELECT%s FROM waybills WHERE %s ORDER BY id LIMIT $%d OFFSET $%d`,
		waybillColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select waybills")
	}
	defer rows.Close()

	out := make([]*models.Waybill, 0, limit)
	for rows.Next() {
		w, err := scanWaybill(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan waybill")
		}
		out = append(out, w)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) ExistsWaybill(ctx context.Context, f filter.Expr) (bool, error) {
	where, args := f.SQL(1)
	var exists bool
	err := s.db.QueryRow(ctx, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM waybills WHERE %s)`, where), args...).
		Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "exists waybill")
	}
	return exists, nil
}

// SumEarnings считает выручку по выборке: предоплата плюс сумма обратной
// доставки. Ограничение по статусу приходит внутри фильтра.
func (s *Storage) SumEarnings(ctx context.Context, f filter.Expr) (float64, error) {
	where, args := f.SQL(1)
	var sum float64
	err := s.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT COALESCE(SUM(prepaid_sum + redelivery_sum), 0) FROM waybills WHERE %s`, where),
		args...).Scan(&sum)
	if err != nil {
		return 0, errors.Wrap(err, "sum earnings")
	}
	return sum, nil
}

// ClaimDueWaybills выбирает зарегистрированные нетерминальные накладные,
// готовые к опросу трекинга, и "бронирует" их через lease, чтобы воркеры
// не обрабатывали одну накладную дважды. SELECT ... FOR UPDATE SKIP LOCKED.
func (s *Storage) ClaimDueWaybills(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Waybill, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT`+waybillColumns+`
FROM waybills
WHERE carrier_ref IS NOT NULL
  AND status_code NOT IN ($1, $2)
  AND next_check_at <= $3
ORDER BY next_check_at ASC
LIMIT $4
FOR UPDATE SKIP LOCKED
`, int(models.StatusReceived), int(models.StatusRefused), now.UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due waybills")
	}
	defer rows.Close()

	var picked []*models.Waybill
	for rows.Next() {
		w, err := scanWaybill(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan due waybill")
		}
		picked = append(picked, w)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	rows.Close()

	leaseUntil := now.UTC().Add(lease)
	for _, w := range picked {
		_, err := tx.Exec(ctx, `UPDATE waybills SET next_check_at = $2, updated_at = now() WHERE id = $1`, w.ID, leaseUntil)
		if err != nil {
			return nil, errors.Wrap(err, "lease waybill")
		}
		w.NextCheckAt = leaseUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}
