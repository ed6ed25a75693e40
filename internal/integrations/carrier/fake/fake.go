package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"waybox/internal/integrations/carrier"
)

// FakeGateway — локальная заглушка API перевозчика для демо и тестов.
// Рефы и номера детерминированы по содержимому параметров, трекинг
// "продвигается" по числу опросов документа.
type FakeGateway struct {
	mu    sync.Mutex
	seq   uint64
	polls map[string]int
}

func New() *FakeGateway {
	return &FakeGateway{polls: map[string]int{}}
}

func (f *FakeGateway) SaveDocument(ctx context.Context, p carrier.DocumentParams) (carrier.Result, error) {
	f.mu.Lock()
	f.seq++
	n := f.seq
	f.mu.Unlock()

	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s|%s|%d", p.RecipientsPhone, p.DateTime, n)
	v := h.Sum32()

	return carrier.Result{
		Success: true,
		Data: []carrier.DocumentData{{
			Ref:                   fmt.Sprintf("fake-ref-%08x", v),
			CostOnSite:            60 + float64(v%200),
			EstimatedDeliveryDate: time.Now().UTC().AddDate(0, 0, 2).Format("2006-01-02"),
			IntDocNumber:          fmt.Sprintf("20%010d", v),
		}},
	}, nil
}

func (f *FakeGateway) UpdateDocument(ctx context.Context, p carrier.DocumentParams) (carrier.Result, error) {
	if p.Ref == "" {
		return carrier.Failure("document ref is required"), nil
	}
	return carrier.Result{
		Success: true,
		Data: []carrier.DocumentData{{
			Ref:                   p.Ref,
			CostOnSite:            60 + p.Weight*10,
			EstimatedDeliveryDate: time.Now().UTC().AddDate(0, 0, 2).Format("2006-01-02"),
		}},
	}, nil
}

func (f *FakeGateway) DeleteDocument(ctx context.Context, ref string) (carrier.Result, error) {
	if ref == "" {
		return carrier.Failure("document ref is required"), nil
	}
	return carrier.Result{Success: true}, nil
}

// Стадии, по которым фейковый документ движется от опроса к опросу.
var fakeStages = []int{1, 5, 7, 9}

func (f *FakeGateway) GetStatusDocuments(ctx context.Context, documentNumbers []string) ([]carrier.TrackingState, error) {
	now := time.Now().UTC()

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]carrier.TrackingState, 0, len(documentNumbers))
	for _, num := range documentNumbers {
		i := f.polls[num]
		if i < len(fakeStages)-1 {
			f.polls[num] = i + 1
		}
		at := now
		out = append(out, carrier.TrackingState{
			DocumentNumber: num,
			TrackingCode:   fakeStages[i],
			TrackingAt:     &at,
		})
	}
	return out, nil
}
