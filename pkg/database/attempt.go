package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/model"
)

type AttemptRepository interface {
	Add(context.Context, ...model.ReservationAttempt) error
}

type AttemptDatabase struct {
	DB *sql.DB
}

const attemptColumns = 7

func (ad *AttemptDatabase) Add(ctx context.Context, as ...model.ReservationAttempt) error {
	if len(as) == 0 {
		return nil
	}

	q := buildBatchQuery(len(as))

	args := make([]any, 0, len(as)*attemptColumns)
	for _, a := range as {
		errMsg := sql.NullString{String: a.Error, Valid: a.Error != ""}

		args = append(args, a.ItemID, a.OwnerID, a.Range.Start, a.Range.End, a.Quantity, a.BookingID, errMsg)
	}

	res, err := ad.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't insert reservation attempts: %w", mapError(err))
	}

	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("can't get affected rows: %w", err)
	} else if int(affected) != len(as) {
		return fmt.Errorf("expected %d records to be inserted, got %d", len(as), affected)
	}

	return nil
}

func buildBatchQuery(rows int) string {
	sb := strings.Builder{}
	sb.WriteString("insert into reservation_attempts (item_id, owner_id, start_date, end_date, quantity, booking_id, error) values ")

	phs := make([]string, 0, rows)

	for i := range rows {
		ph := make([]string, attemptColumns)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", i*attemptColumns+j+1)
		}
		phs = append(phs, "("+strings.Join(ph, ", ")+")")
	}

	sb.WriteString(strings.Join(phs, ","))
	return sb.String()
}

// AttemptBatchingDatabase buffers attempts and writes them in batches, either
// when the buffer reaches batchSize or on every flush interval.
type AttemptBatchingDatabase struct {
	buffer    []model.ReservationAttempt
	ticker    *time.Ticker
	batchSize int
	mu        sync.Mutex
	done      chan struct{}
	wg        sync.WaitGroup

	next AttemptRepository
}

func NewAttemptBatchingDatabase(next AttemptRepository, batchSize int, flushInterval time.Duration) *AttemptBatchingDatabase {
	ab := &AttemptBatchingDatabase{
		buffer:    make([]model.ReservationAttempt, 0, batchSize),
		ticker:    time.NewTicker(flushInterval),
		batchSize: batchSize,
		done:      make(chan struct{}),
		next:      next,
	}

	ab.wg.Add(1)
	go ab.flushLoop()

	return ab
}

func (ab *AttemptBatchingDatabase) Add(ctx context.Context, as ...model.ReservationAttempt) error {
	if len(as) == 0 {
		return nil
	}

	ab.mu.Lock()
	ab.buffer = append(ab.buffer, as...)
	shouldFlush := len(ab.buffer) >= ab.batchSize
	ab.mu.Unlock()

	if shouldFlush {
		ab.wg.Add(1)
		go func() {
			defer ab.wg.Done()
			if err := ab.flush(); err != nil {
				slog.Error("can't flush buffer", slog.Any("error", err))
			}
		}()
	}

	return nil
}

func (ab *AttemptBatchingDatabase) flushLoop() {
	defer ab.wg.Done()

	for {
		select {
		case <-ab.ticker.C:
			if err := ab.flush(); err != nil {
				slog.Error("can't flush buffer", slog.Any("error", err))
			}
		case <-ab.done:
			return
		}
	}
}

func (ab *AttemptBatchingDatabase) flush() error {
	ab.mu.Lock()
	if len(ab.buffer) == 0 {
		ab.mu.Unlock()
		return nil
	}

	batch := make([]model.ReservationAttempt, len(ab.buffer))
	copy(batch, ab.buffer)
	ab.buffer = ab.buffer[:0]
	ab.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.TODO(), time.Second*10)
	defer cancel()

	if err := ab.next.Add(ctx, batch...); err != nil {
		return fmt.Errorf("can't insert batch: %w", err)
	}

	return nil
}

// Close stops the background flusher and writes whatever is left in the buffer.
func (ab *AttemptBatchingDatabase) Close() error {
	ab.ticker.Stop()
	close(ab.done)
	ab.wg.Wait()

	return ab.flush()
}
