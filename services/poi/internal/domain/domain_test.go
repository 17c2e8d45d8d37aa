package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestNewTarget(t *testing.T) {
	tests := []struct {
		name    string
		kind    TargetKind
		id      string
		wantErr bool
	}{
		{"poi", TargetPoi, "p-1", false},
		{"blog", TargetBlog, "b-1", false},
		{"podcast", TargetPodcast, "pc-1", false},
		{"unknown kind", TargetKind("video"), "v-1", true},
		{"empty id", TargetPoi, "", true},
		{"empty kind", "", "x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := NewTarget(tt.kind, tt.id)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTarget)
				assert.True(t, target.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, target.Kind())
			assert.Equal(t, tt.id, target.ID())
		})
	}
}

func TestTarget_PoiID(t *testing.T) {
	id, ok := PoiTarget("p-1").PoiID()
	assert.True(t, ok)
	assert.Equal(t, "p-1", id)

	blog, _ := NewTarget(TargetBlog, "b-1")
	_, ok = blog.PoiID()
	assert.False(t, ok)
}

func TestTarget_JSON(t *testing.T) {
	raw, err := json.Marshal(Review{ID: "r-1", Target: PoiTarget("p-1"), Rating: 4})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"target":{"kind":"poi","id":"p-1"}`)

	var back Review
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, PoiTarget("p-1"), back.Target)

	err = json.Unmarshal([]byte(`{"target":{"kind":"video","id":"x"}}`), &back)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestPoiPatch_Apply(t *testing.T) {
	p := &Poi{Name: "Old Mill", Category: "museum", Description: "keep"}

	changed := PoiPatch{Name: strPtr("Old Mill"), Category: strPtr("heritage")}.Apply(p)
	assert.False(t, changed, "same name is not a change")
	assert.Equal(t, "heritage", p.Category)
	assert.Equal(t, "keep", p.Description)

	changed = PoiPatch{Name: strPtr("Old Mill ")}.Apply(p)
	assert.True(t, changed, "whitespace is significant")
	assert.Equal(t, "Old Mill ", p.Name)

	loc := Location{Lat: 1, Lon: 2}
	PoiPatch{Location: &loc}.Apply(p)
	assert.Equal(t, loc, p.Location)
}

func TestReviewPatch_Apply(t *testing.T) {
	r := &Review{Rating: 2, Body: "meh"}
	rating := 5
	ReviewPatch{Rating: &rating}.Apply(r)
	assert.Equal(t, 5, r.Rating)
	assert.Equal(t, "meh", r.Body)
}

func TestPoi_SubmitterAndVisibility(t *testing.T) {
	p := &Poi{CreatedBy: "u-1", SubmitterEmail: "a@example.com", Status: StatusApproved}
	assert.Equal(t, Recipient{UserID: "u-1", Email: "a@example.com"}, p.Submitter())
	assert.False(t, p.Visible())
	p.Active = true
	assert.True(t, p.Visible())

	assert.True(t, Recipient{UserID: "u-1"}.Empty())
	assert.True(t, StatusSubmitted.Valid())
	assert.False(t, Status("archived").Valid())
}

func TestPoi_RedactedDropsContactDetails(t *testing.T) {
	p := &Poi{ID: "p-1", Name: "Old Mill", SubmitterEmail: "a@example.com", SubmitterPhone: "+31600000000"}

	public := p.Redacted()
	assert.Empty(t, public.SubmitterEmail)
	assert.Empty(t, public.SubmitterPhone)
	assert.Equal(t, "Old Mill", public.Name)
	assert.Equal(t, "a@example.com", p.SubmitterEmail, "original left intact")

	evt := NewPoiEvent(p, "mod-1")
	raw, err := json.Marshal(evt)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "a@example.com")
	assert.NotContains(t, string(raw), "+31600000000")
	assert.Equal(t, "mod-1", evt.Actor)
}
