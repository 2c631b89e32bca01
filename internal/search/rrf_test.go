package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuseSingleList(t *testing.T) {
	fused := Fuse([]string{"open slack", "open mail", "open notes"})

	require.Len(t, fused, 3)
	assert.Equal(t, "open slack", fused[0].Text, "rank 0 stays first")
	assert.Equal(t, "open mail", fused[1].Text)
	assert.Equal(t, "open notes", fused[2].Text)

	// rank 0: 2/61 + 0.05, rank 1: 2/62 + 0.02, rank 2: 2/63 + 0.02
	assert.InDelta(t, 2.0/61.0+0.05, fused[0].Score, 1e-9)
	assert.InDelta(t, 2.0/62.0+0.02, fused[1].Score, 1e-9)
	assert.InDelta(t, 2.0/63.0+0.02, fused[2].Score, 1e-9)
}

func TestFuseFirstTwoListsWeighted(t *testing.T) {
	// Same entry at the same rank in a weighted and an unweighted list.
	fused := Fuse(
		[]string{"search for docs"},
		[]string{"open mail"},
		[]string{"play music"},
	)

	require.Len(t, fused, 3)
	byText := map[string]float64{}
	for _, c := range fused {
		byText[c.Text] = c.Score
	}

	weighted := 2.0/61.0 + 0.05
	unweighted := 1.0/61.0 + 0.05
	assert.InDelta(t, weighted, byText["search for docs"], 1e-9)
	assert.InDelta(t, weighted, byText["open mail"], 1e-9, "second list also gets 2x weight")
	assert.InDelta(t, unweighted, byText["play music"], 1e-9, "third list does not")
}

func TestFuseAccumulatesDuplicates(t *testing.T) {
	fused := Fuse(
		[]string{"open slack", "open mail"},
		[]string{"open notes"},
		[]string{"open slack"},
	)

	require.Len(t, fused, 3)
	assert.Equal(t, "open slack", fused[0].Text, "appearing in two lists accumulates score")

	expected := (2.0/61.0 + 0.05) + (1.0/61.0 + 0.05)
	assert.InDelta(t, expected, fused[0].Score, 1e-9)
}

func TestFuseDedupeIsCaseInsensitive(t *testing.T) {
	fused := Fuse(
		[]string{"Open Slack"},
		[]string{"open slack "},
	)

	require.Len(t, fused, 1)
	assert.Equal(t, "Open Slack", fused[0].Text, "first-seen spelling wins")
	assert.InDelta(t, 2*(2.0/61.0+0.05), fused[0].Score, 1e-9)
}

func TestFuseSkipsEmptyEntries(t *testing.T) {
	fused := Fuse([]string{"", "  ", "open mail"})
	require.Len(t, fused, 1)
	assert.Equal(t, "open mail", fused[0].Text)
}

func TestFuseEmptyInput(t *testing.T) {
	assert.Empty(t, Fuse())
	assert.Empty(t, Fuse(nil, []string{}))
}

func TestTexts(t *testing.T) {
	fused := Fuse([]string{"a", "b"})
	assert.Equal(t, []string{"a", "b"}, Texts(fused))
	assert.Empty(t, Texts(nil))
}

func TestBM25Normalize(t *testing.T) {
	cases := []struct {
		name  string
		score float64
		want  float64
	}{
		{"zero", 0, 0},
		{"positive", 1, 0.5},
		{"negative uses magnitude", -1, 0.5},
		{"large negative", -9, 0.9},
		{"fraction", 0.25, 0.2},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := BM25Normalize(c.score)
			assert.InDelta(t, c.want, got, 1e-9)
			assert.True(t, got >= 0 && got < 1, "normalized score stays in [0,1)")
		})
	}

	// Monotonic in magnitude
	assert.True(t, BM25Normalize(-5) > BM25Normalize(-2))
}
