package domain

// Domain event types published on every successful mutation.
const (
	EventPoiCreated     = "poi.created"
	EventPoiUpdated     = "poi.updated"
	EventPoiActivated   = "poi.activated"
	EventPoiDeactivated = "poi.deactivated"
	EventPoiApproved    = "poi.approved"
	EventPoiRejected    = "poi.rejected"
	EventPoiDeleted     = "poi.deleted"
	EventPoiRescored    = "poi.rescored"

	EventReviewCreated = "review.created"
	EventReviewUpdated = "review.updated"
	EventReviewDeleted = "review.deleted"
)

// PoiEvent is the payload of poi.* events. Poi is the state after the
// mutation, or the last known state for deletions and rejections.
type PoiEvent struct {
	Poi   *Poi   `json:"poi"`
	Actor string `json:"actor,omitempty"`
}

// NewPoiEvent builds a poi.* payload from p with contact details removed.
func NewPoiEvent(p *Poi, actor string) PoiEvent {
	public := p.Redacted()
	return PoiEvent{Poi: &public, Actor: actor}
}

// ScoreEvent is the payload of poi.rescored.
type ScoreEvent struct {
	PoiID   string  `json:"poi_id"`
	Score   float64 `json:"score"`
	Trigger string  `json:"trigger"`
}

// ReviewEvent is the payload of review.* events.
type ReviewEvent struct {
	Review *Review `json:"review"`
}
