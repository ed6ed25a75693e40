package pgwaybill

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS waybills (
  id BIGSERIAL PRIMARY KEY,
  carrier_ref TEXT NULL,
  document_number TEXT NULL,
  carrier_cost DOUBLE PRECISION NULL,
  estimated_delivery_date DATE NULL,
  sender TEXT NOT NULL,
  sender_contact TEXT NOT NULL,
  sender_city TEXT NOT NULL,
  sender_address TEXT NOT NULL,
  sender_phone TEXT NOT NULL,
  recipient_town_id BIGINT NOT NULL,
  recipient_warehouse_id BIGINT NOT NULL,
  recipient_name TEXT NOT NULL,
  recipient_phone TEXT NOT NULL,
  recipient_type TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  note TEXT NOT NULL DEFAULT '',
  weight DOUBLE PRECISION NOT NULL DEFAULT 0,
  volume DOUBLE PRECISION NOT NULL DEFAULT 0,
  seats_amount INT NOT NULL DEFAULT 1,
  declared_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
  cargo_type TEXT NOT NULL DEFAULT '',
  service_type TEXT NOT NULL DEFAULT '',
  payer_type TEXT NOT NULL DEFAULT '',
  payment_method TEXT NOT NULL DEFAULT '',
  prepaid_sum DOUBLE PRECISION NOT NULL DEFAULT 0,
  order_date TIMESTAMPTZ NOT NULL,
  ship_date TIMESTAMPTZ NOT NULL,
  is_redelivery BOOLEAN NOT NULL DEFAULT FALSE,
  redelivery_payer_type TEXT NOT NULL DEFAULT '',
  redelivery_sum DOUBLE PRECISION NOT NULL DEFAULT 0,
  status_code INT NOT NULL,
  tracking_status_code INT NULL,
  tracking_status_edited_at TIMESTAMPTZ NULL,
  next_check_at TIMESTAMPTZ NOT NULL,
  check_fail_count INT NOT NULL DEFAULT 0,
  last_error TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		// Ровно одна локальная запись на зарегистрированный документ.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_waybills_carrier_ref ON waybills(carrier_ref) WHERE carrier_ref IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_waybills_next_check_at ON waybills(next_check_at)`,
		`CREATE INDEX IF NOT EXISTS idx_waybills_recipient_phone ON waybills(recipient_phone)`,
		`CREATE INDEX IF NOT EXISTS idx_waybills_tracking ON waybills(tracking_status_code, tracking_status_edited_at)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
