package checkpoint

import (
	"os"
	"slices"
	"testing"

	"github.com/chrissnell/ecocrop/internal/season"
)

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	const key = "Sweet_potato/annual/2020-01-01"

	st, err := store.Load(key)
	if err != nil || st != nil {
		t.Fatalf("empty store: got %v, %v", st, err)
	}

	want := &season.State{
		Crop:       "Sweet_potato",
		Method:     "annual",
		Candidates: []int{60, 70, 80},
		Done:       2,
		Start:      "2020-01-01",
		Steps:      720,
		Cells:      2,
		BestSteps:  3,
		Temp:       []uint8{0, 100, 50, 25, 0, 7},
		Precip:     []uint8{1, 2, 3, 4, 5, 6},
		KillTemp:   []float64{0.5, 0.25},
		KillMax:    []float64{0, 1},
	}
	if err := store.Save(key, want); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(store.Path(key)); err != nil {
		t.Fatalf("checkpoint file missing: %v", err)
	}

	got, err := store.Load(key)
	if err != nil {
		t.Fatal(err)
	}
	if got.Crop != want.Crop || got.Done != want.Done || got.BestSteps != want.BestSteps || got.Start != want.Start {
		t.Errorf("got %+v", got)
	}
	if !slices.Equal(got.Candidates, want.Candidates) || !slices.Equal(got.Temp, want.Temp) ||
		!slices.Equal(got.Precip, want.Precip) || !slices.Equal(got.KillTemp, want.KillTemp) {
		t.Errorf("slices differ: %+v", got)
	}

	if err := store.Remove(key); err != nil {
		t.Fatal(err)
	}
	if st, _ := store.Load(key); st != nil {
		t.Error("state should be gone after Remove")
	}
	if err := store.Remove(key); err != nil {
		t.Errorf("removing twice: %v", err)
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.Path("bad"), []byte{0xc1, 0xff}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load("bad"); err == nil {
		t.Error("expected decode error")
	}
}
