package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ponyclubacheron/site-service/internal/models"
)

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
	flushed int
	closed  bool
}

func (f *fakeProducer) Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {
	f.mu.Lock()
	f.records = append(f.records, r)
	f.mu.Unlock()
	promise(r, f.err)
}

func (f *fakeProducer) Flush(ctx context.Context) error {
	f.flushed++
	return nil
}

func (f *fakeProducer) Close() { f.closed = true }

func testEvent() SnapshotEvent {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	return SnapshotEvent{
		Location:  models.Location{Name: "Glyki, Greece", Latitude: 39.2394, Longitude: 20.4906},
		Snapshot:  models.WeatherSnapshot{Temperature: 23, Condition: "Sunny"},
		FetchedAt: now,
		ExpiresAt: now.Add(3 * time.Hour),
	}
}

// TestKafkaPublisher_Publish verifies the record topic, key and JSON value.
func TestKafkaPublisher_Publish(t *testing.T) {
	fp := &fakeProducer{}
	p := newKafkaPublisher(fp, "weather-snapshots", nil)

	p.Publish(context.Background(), testEvent())

	if len(fp.records) != 1 {
		t.Fatalf("records = %d, want 1", len(fp.records))
	}
	r := fp.records[0]
	if r.Topic != "weather-snapshots" || string(r.Key) != "39.2394,20.4906" {
		t.Errorf("record topic/key = %q/%q", r.Topic, r.Key)
	}
	var got SnapshotEvent
	if err := json.Unmarshal(r.Value, &got); err != nil {
		t.Fatalf("value not JSON: %v", err)
	}
	if got.Snapshot.Temperature != 23 || !got.ExpiresAt.Equal(testEvent().ExpiresAt) {
		t.Errorf("decoded event = %+v", got)
	}
}

// TestKafkaPublisher_DeliveryFailureLogged verifies failed deliveries are logged, not returned.
func TestKafkaPublisher_DeliveryFailureLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	fp := &fakeProducer{err: errors.New("broker unreachable")}
	p := newKafkaPublisher(fp, "weather-snapshots", zap.New(core))

	p.Publish(context.Background(), testEvent())

	if logs.FilterMessage("snapshot event not delivered").Len() != 1 {
		t.Error("expected delivery failure warning")
	}
}

// TestKafkaPublisher_FlushAndClose verifies lifecycle calls reach the producer.
func TestKafkaPublisher_FlushAndClose(t *testing.T) {
	fp := &fakeProducer{}
	p := newKafkaPublisher(fp, "t", nil)
	if err := p.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	p.Close()
	if fp.flushed != 1 || !fp.closed {
		t.Errorf("flushed=%d closed=%v", fp.flushed, fp.closed)
	}
}

// TestNopPublisher verifies the no-op publisher satisfies Publisher and never fails.
func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	p.Publish(context.Background(), testEvent())
	if err := p.Flush(context.Background()); err != nil {
		t.Errorf("Flush() = %v", err)
	}
	p.Close()
}
