package store

import (
	"context"
	"strings"
	"testing"

	"github.com/roach88/persontime/timeline"
)

func TestWriteWindows_RoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	in := []timeline.StudyWindow{
		{ID: "2", Entry: 10, Exit: 200},
		{ID: "1", Entry: 0, Exit: 100},
	}
	if err := s.WriteWindows(ctx, in); err != nil {
		t.Fatalf("WriteWindows() failed: %v", err)
	}

	out, err := s.ReadWindows(ctx, nil)
	if err != nil {
		t.Fatalf("ReadWindows() failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d windows, expected 2", len(out))
	}
	// Reads order by id regardless of write order.
	if out[0].ID != "1" || out[0].Entry != 0 || out[0].Exit != 100 {
		t.Errorf("window 0 = %+v", out[0])
	}
	if out[1].ID != "2" || out[1].Entry != 10 || out[1].Exit != 200 {
		t.Errorf("window 1 = %+v", out[1])
	}
}

func TestWriteWindows_UpsertReplaces(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.WriteWindows(ctx, []timeline.StudyWindow{{ID: "1", Entry: 0, Exit: 100}}); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := s.WriteWindows(ctx, []timeline.StudyWindow{{ID: "1", Entry: 0, Exit: 200}}); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	out, err := s.ReadWindows(ctx, nil)
	if err != nil {
		t.Fatalf("ReadWindows() failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d windows, expected 1", len(out))
	}
	if out[0].Exit != 200 {
		t.Errorf("exit = %d, expected 200 after upsert", out[0].Exit)
	}
}

func TestWriteEpisodes_RoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	in := []timeline.Episode{
		{ID: "1", Start: 0, Stop: 30, Value: timeline.Int(1)},
		{ID: "1", Start: 31, Stop: 60, Value: timeline.String("drug_a"), Priority: 2},
		{ID: "1", Start: 61, Stop: 90, Value: timeline.Float(2.5)},
		{ID: "1", Start: 91, Stop: 120, Value: timeline.Missing{}},
	}
	if err := s.WriteEpisodes(ctx, in); err != nil {
		t.Fatalf("WriteEpisodes() failed: %v", err)
	}

	out, err := s.ReadEpisodes(ctx, nil)
	if err != nil {
		t.Fatalf("ReadEpisodes() failed: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d episodes, expected %d", len(out), len(in))
	}
	for i := range in {
		if out[i].ID != in[i].ID || out[i].Start != in[i].Start || out[i].Stop != in[i].Stop {
			t.Errorf("episode %d = %+v", i, out[i])
		}
		if !timeline.Equal(out[i].Value, in[i].Value) {
			t.Errorf("episode %d value = %v, expected %v", i, out[i].Value, in[i].Value)
		}
		if out[i].Priority != in[i].Priority {
			t.Errorf("episode %d priority = %d, expected %d", i, out[i].Priority, in[i].Priority)
		}
	}
}

func TestWriteEvents_RoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	in := []timeline.EventRecord{
		{ID: "1", Date: timeline.NewDate(50), Competing: []timeline.Date{timeline.NewDate(30), {}}},
		{ID: "2"},
	}
	if err := s.WriteEvents(ctx, in); err != nil {
		t.Fatalf("WriteEvents() failed: %v", err)
	}

	out, err := s.ReadEvents(ctx, nil)
	if err != nil {
		t.Fatalf("ReadEvents() failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d records, expected 2", len(out))
	}

	if !out[0].Date.Valid || out[0].Date.Day != 50 {
		t.Errorf("record 0 date = %+v", out[0].Date)
	}
	if len(out[0].Competing) != 2 {
		t.Fatalf("record 0 competing = %v", out[0].Competing)
	}
	if !out[0].Competing[0].Valid || out[0].Competing[0].Day != 30 {
		t.Errorf("competing 0 = %+v", out[0].Competing[0])
	}
	if out[0].Competing[1].Valid {
		t.Errorf("competing 1 should be absent, got %+v", out[0].Competing[1])
	}

	if out[1].Date.Valid {
		t.Errorf("record 1 date should be absent, got %+v", out[1].Date)
	}
	if out[1].Competing != nil {
		t.Errorf("record 1 competing should be nil, got %v", out[1].Competing)
	}
}

func TestReadWindows_FilterIDs(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	windows := []timeline.StudyWindow{
		{ID: "1", Exit: 10}, {ID: "2", Exit: 10}, {ID: "3", Exit: 10},
	}
	if err := s.WriteWindows(ctx, windows); err != nil {
		t.Fatalf("WriteWindows() failed: %v", err)
	}

	out, err := s.ReadWindows(ctx, &Filter{IDs: []string{"3", "1"}})
	if err != nil {
		t.Fatalf("ReadWindows() failed: %v", err)
	}
	if len(out) != 2 || out[0].ID != "1" || out[1].ID != "3" {
		t.Errorf("filtered windows = %+v", out)
	}
}

func TestReadEpisodes_FilterRange(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	episodes := []timeline.Episode{
		{ID: "1", Stop: 5, Value: timeline.Int(1)},
		{ID: "2", Stop: 5, Value: timeline.Int(1)},
		{ID: "3", Stop: 5, Value: timeline.Int(1)},
	}
	if err := s.WriteEpisodes(ctx, episodes); err != nil {
		t.Fatalf("WriteEpisodes() failed: %v", err)
	}

	out, err := s.ReadEpisodes(ctx, &Filter{IDRange: &[2]string{"2", "3"}})
	if err != nil {
		t.Fatalf("ReadEpisodes() failed: %v", err)
	}
	if len(out) != 2 || out[0].ID != "2" || out[1].ID != "3" {
		t.Errorf("filtered episodes = %+v", out)
	}
}

func TestReadWindows_EmptyResultIsNotNil(t *testing.T) {
	s := testStore(t)

	out, err := s.ReadWindows(context.Background(), &Filter{IDs: []string{"absent"}})
	if err != nil {
		t.Fatalf("ReadWindows() failed: %v", err)
	}
	if out == nil {
		t.Error("expected empty slice, got nil")
	}
	if len(out) != 0 {
		t.Errorf("got %d windows, expected 0", len(out))
	}
}

func TestReadEvents_InvalidFilter(t *testing.T) {
	s := testStore(t)

	_, err := s.ReadEvents(context.Background(), &Filter{
		IDs:     []string{"1"},
		IDRange: &[2]string{"1", "2"},
	})
	if err == nil {
		t.Fatal("expected error for conflicting filter")
	}
	if !timeline.IsConfigError(err) {
		t.Errorf("expected a config error, got %T", err)
	}
	if !strings.Contains(err.Error(), "E401") {
		t.Errorf("error = %v, expected E401", err)
	}
}
