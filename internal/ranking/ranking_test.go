package ranking

import (
	"math/rand"
	"reflect"
	"testing"
)

type item struct {
	name    string
	quality int
	size    float64
}

func (i item) RankQuality() int    { return i.quality }
func (i item) RankSizeMB() float64 { return i.size }

func names(items []item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.name
	}
	return out
}

func TestBandDistance(t *testing.T) {
	tests := []struct {
		quality int
		size    float64
		want    float64
	}{
		{2160, 45000, 0},
		{2160, 5000, 5000},
		{1080, 20000, 4000},
		{1080, 3000, 0},
		{720, 500, 500},
		{480, 4500, 500},
		{0, 999999, 0},
	}
	for _, tc := range tests {
		if got := BandDistance(tc.quality, tc.size); got != tc.want {
			t.Errorf("BandDistance(%d, %v) = %v, want %v", tc.quality, tc.size, got, tc.want)
		}
	}
}

func TestRankQualityIsPrimaryKey(t *testing.T) {
	in := []item{
		{name: "Movie.1080p.mkv", quality: 1080, size: 3000},
		{name: "Movie.2160p.HDR.mkv", quality: 2160, size: 45000},
	}
	got := Rank(in)
	if got[0].name != "Movie.2160p.HDR.mkv" {
		t.Fatalf("expected 2160p first, got %v", names(got))
	}
	if in[0].name != "Movie.1080p.mkv" {
		t.Fatalf("input slice was modified")
	}
}

func TestRankOrder(t *testing.T) {
	in := []item{
		{name: "unknown", quality: 0, size: 1200},
		{name: "1080-huge", quality: 1080, size: 30000},
		{name: "1080-band-small", quality: 1080, size: 2500},
		{name: "1080-band-large", quality: 1080, size: 9000},
		{name: "1080-tiny", quality: 1080, size: 900},
		{name: "720-band", quality: 720, size: 1500},
		{name: "2160-small", quality: 2160, size: 8000},
	}
	want := []string{
		"2160-small",
		"1080-band-large",
		"1080-band-small",
		"1080-tiny",
		"1080-huge",
		"720-band",
		"unknown",
	}
	if got := names(Rank(in)); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestRankIsSortedAndIdempotent(t *testing.T) {
	qualities := []int{0, 480, 720, 1080, 2160}
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 50; round++ {
		in := make([]item, 25)
		for i := range in {
			in[i] = item{
				name:    string(rune('a' + i)),
				quality: qualities[rng.Intn(len(qualities))],
				size:    float64(rng.Intn(90000)),
			}
		}
		once := Rank(in)
		for i := 1; i < len(once); i++ {
			if Less(once[i], once[i-1]) {
				t.Fatalf("round %d: %v ranked after %v", round, once[i], once[i-1])
			}
		}
		if twice := Rank(once); !reflect.DeepEqual(once, twice) {
			t.Fatalf("round %d: rank is not idempotent", round)
		}
	}
}
