package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path     string
		wantColl string
		wantID   string
		wantErr  bool
	}{
		{"users/u1", "users", "u1", false},
		{"users/u1/playbooks/p1", "users/u1/playbooks", "p1", false},
		{"users", "", "", true},
		{"users/u1/playbooks", "", "", true},
		{"users//x/y", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			c, id, err := Split(tt.path)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantColl, c)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestQuery_Matches(t *testing.T) {
	t.Parallel()
	q := Collection("campaigns").Eq("uid", "u1").Eq("radius", 10)

	assert.True(t, q.Matches("campaigns/c1", Data{"uid": "u1", "radius": float64(10)}))
	assert.False(t, q.Matches("campaigns/c1", Data{"uid": "u2", "radius": float64(10)}))
	assert.False(t, q.Matches("campaigns/c1", Data{"uid": "u1"}))
	assert.False(t, q.Matches("other/c1", Data{"uid": "u1", "radius": 10}))
}

func TestQuery_Builders_DoNotAlias(t *testing.T) {
	t.Parallel()
	base := Collection("c").Eq("a", 1)
	x := base.Eq("b", 2)
	y := base.Eq("c", 3)
	assert.Len(t, base.Where, 1)
	assert.Equal(t, "b", x.Where[1].Field)
	assert.Equal(t, "c", y.Where[1].Field)
}

func TestQuery_Validate(t *testing.T) {
	t.Parallel()
	require.NoError(t, Collection("users").Validate())
	require.NoError(t, Collection("users/u1/playbooks").Validate())
	require.Error(t, Collection("").Validate())
	require.Error(t, Collection("users/u1").Validate())
	require.Error(t, Collection("users").Take(-1).Validate())
}

func TestCompare(t *testing.T) {
	t.Parallel()
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(500 * time.Millisecond)

	assert.Equal(t, -1, Compare(nil, "a"))
	assert.Equal(t, 1, Compare("a", nil))
	assert.Equal(t, 0, Compare(nil, nil))
	assert.Equal(t, -1, Compare(float64(2), 10))
	// RFC 3339 strings compare as instants even when lexical order disagrees.
	assert.Equal(t, -1, Compare(t1.Format(time.RFC3339Nano), t2.Format(time.RFC3339Nano)))
	assert.Equal(t, -1, Compare("apple", "banana"))
}

func TestQuery_ApplyOrdersAndLimits(t *testing.T) {
	t.Parallel()
	docs := []Doc{
		{Path: "c/1", Data: Data{"n": float64(2)}},
		{Path: "c/2", Data: Data{"n": float64(3)}},
		{Path: "c/3", Data: Data{"n": float64(1)}},
	}
	got := Collection("c").Order("n", true).Take(2).Apply(docs)
	require.Len(t, got, 2)
	assert.Equal(t, "c/2", got[0].Path)
	assert.Equal(t, "c/1", got[1].Path)
}

func TestBatch_Validate(t *testing.T) {
	t.Parallel()
	b := NewBatch().Set("a/1", Data{}).Delete("a/2")
	require.NoError(t, b.Validate())
	assert.Equal(t, 2, b.Len())
	require.ErrorIs(t, b.Update("a", Data{}).Validate(), ErrInvalidPath)
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()
	type profile struct {
		Email  string  `json:"email"`
		Region *string `json:"homeRegion"`
	}
	d, err := Encode(profile{Email: "x@y.test"})
	require.NoError(t, err)
	assert.Equal(t, Data{"email": "x@y.test", "homeRegion": nil}, d)

	var p profile
	require.NoError(t, Decode(d, &p))
	assert.Equal(t, "x@y.test", p.Email)
	assert.Nil(t, p.Region)
}

func TestNewID_Unique(t *testing.T) {
	t.Parallel()
	seen := make(map[string]bool)
	for range 100 {
		id := NewID()
		assert.Len(t, id, 26)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
