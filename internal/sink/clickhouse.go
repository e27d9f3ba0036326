package sink

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"NetScope/internal/config"
	"NetScope/internal/model"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS anomaly_alerts (
    Timestamp    DateTime64(3),
    Level        String,
    Message      String,
    WindowStart  DateTime,
    WindowSize   UInt16,
    PacketCount  UInt32,
    ZScore       Float64,
    Threshold    Float64,
    MeanPackets  Float64,
    StdevPackets Float64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY Timestamp;
`

const queueSize = 256

// ClickHouseSink persists emitted alerts for later analysis. Alerts are
// buffered and written in batches off the detection path; packet history is
// never stored.
type ClickHouseSink struct {
	conn     driver.Conn
	interval time.Duration

	in   chan model.AnomalyAlert
	done chan struct{}
	wg   sync.WaitGroup
}

// NewClickHouseSink connects, ensures the alert table exists, and starts the
// background writer.
func NewClickHouseSink(cfg config.ClickHouseConfig) (*ClickHouseSink, error) {
	interval, err := time.ParseDuration(cfg.FlushInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid flush_interval: %w", err)
	}

	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Println("Successfully connected to ClickHouse and ensured alert table exists.")

	s := &ClickHouseSink{
		conn:     conn,
		interval: interval,
		in:       make(chan model.AnomalyAlert, queueSize),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Record enqueues an alert for persistence. It never blocks the caller;
// alerts are dropped with a log line if the buffer is full.
func (s *ClickHouseSink) Record(alert model.AnomalyAlert) {
	select {
	case s.in <- alert:
	default:
		log.Println("ClickHouse sink buffer full, dropping alert")
	}
}

// Stop flushes buffered alerts and closes the connection.
func (s *ClickHouseSink) Stop() {
	close(s.done)
	s.wg.Wait()
	s.conn.Close()
}

func (s *ClickHouseSink) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var pending []model.AnomalyAlert
	for {
		select {
		case alert := <-s.in:
			pending = append(pending, alert)
		case <-ticker.C:
			if err := s.flush(pending); err != nil {
				log.Printf("Error writing alerts to ClickHouse: %v", err)
			} else {
				pending = pending[:0]
			}
		case <-s.done:
			// Drain whatever is still buffered before exiting.
			for {
				select {
				case alert := <-s.in:
					pending = append(pending, alert)
					continue
				default:
				}
				break
			}
			if err := s.flush(pending); err != nil {
				log.Printf("Error writing final alerts to ClickHouse: %v", err)
			}
			return
		}
	}
}

func (s *ClickHouseSink) flush(alerts []model.AnomalyAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(context.Background(), "INSERT INTO anomaly_alerts")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, alert := range alerts {
		err = batch.Append(
			floatToTime(alert.Timestamp),
			alert.Level,
			alert.Message,
			floatToTime(alert.Meta.WindowStart),
			uint16(alert.Meta.WindowSize),
			uint32(alert.Meta.PacketCount),
			alert.Meta.ZScore,
			alert.Meta.Threshold,
			alert.Meta.MeanPackets,
			alert.Meta.StdevPackets,
		)
		if err != nil {
			return fmt.Errorf("failed to append alert to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	log.Printf("Wrote %d alert(s) to ClickHouse", len(alerts))
	return nil
}

func floatToTime(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*float64(time.Second)))
}
