package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TargetKind names what a review is about.
type TargetKind string

const (
	TargetPoi     TargetKind = "poi"
	TargetBlog    TargetKind = "blog"
	TargetPodcast TargetKind = "podcast"
)

// ErrInvalidTarget is returned for a review target that is not exactly one
// of poi, blog or podcast with a non-empty id.
var ErrInvalidTarget = errors.New("review target must be one of poi, blog or podcast with an id")

// Target identifies the subject of a review. The zero value is invalid; build
// targets with NewTarget or PoiTarget.
type Target struct {
	kind TargetKind
	id   string
}

// NewTarget validates kind and id.
func NewTarget(kind TargetKind, id string) (Target, error) {
	switch kind {
	case TargetPoi, TargetBlog, TargetPodcast:
	default:
		return Target{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidTarget, kind)
	}
	if id == "" {
		return Target{}, fmt.Errorf("%w: empty %s id", ErrInvalidTarget, kind)
	}
	return Target{kind: kind, id: id}, nil
}

// PoiTarget returns the target for Poi id.
func PoiTarget(id string) Target {
	return Target{kind: TargetPoi, id: id}
}

// Kind returns the target kind.
func (t Target) Kind() TargetKind { return t.kind }

// ID returns the id of the reviewed entity.
func (t Target) ID() string { return t.id }

// PoiID returns the Poi id when t targets a Poi.
func (t Target) PoiID() (string, bool) {
	if t.kind == TargetPoi {
		return t.id, true
	}
	return "", false
}

// IsZero reports whether t was never set.
func (t Target) IsZero() bool { return t.kind == "" }

func (t Target) String() string { return string(t.kind) + ":" + t.id }

type targetJSON struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id"`
}

// MarshalJSON encodes t as {"kind": ..., "id": ...}.
func (t Target) MarshalJSON() ([]byte, error) {
	return json.Marshal(targetJSON{Kind: t.kind, ID: t.id})
}

// UnmarshalJSON decodes and validates a target.
func (t *Target) UnmarshalJSON(b []byte) error {
	var raw targetJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v, err := NewTarget(raw.Kind, raw.ID)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Review is a rating plus text left by a user on a Poi, blog or podcast.
type Review struct {
	ID        string    `json:"id"`
	Target    Target    `json:"target"`
	AuthorID  string    `json:"author_id"`
	Platform  string    `json:"platform"`
	Rating    int       `json:"rating"`
	Body      string    `json:"body"`
	Likes     int64     `json:"likes"`
	Dislikes  int64     `json:"dislikes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// CreateReviewInput is the data needed to post a review.
type CreateReviewInput struct {
	Target   Target `json:"-"`
	AuthorID string `json:"-"`
	Platform string `json:"platform" validate:"omitempty,oneof=web ios android"`
	Rating   int    `json:"rating" validate:"required,gte=1,lte=5"`
	Body     string `json:"body" validate:"max=4000"`
}

// ReviewPatch edits a review. Nil fields are left unchanged.
type ReviewPatch struct {
	Rating *int    `json:"rating" validate:"omitempty,gte=1,lte=5"`
	Body   *string `json:"body" validate:"omitempty,max=4000"`
}

// Apply copies the non-nil fields of patch onto r.
func (patch ReviewPatch) Apply(r *Review) {
	if patch.Rating != nil {
		r.Rating = *patch.Rating
	}
	if patch.Body != nil {
		r.Body = *patch.Body
	}
}

// Reaction is a like or dislike on a review.
type Reaction string

const (
	ReactionLike    Reaction = "like"
	ReactionDislike Reaction = "dislike"
)
