package models

// TimeSlot is a part of the day a recommendation fits.
type TimeSlot string

const (
	SlotMorning   TimeSlot = "morning"
	SlotAfternoon TimeSlot = "afternoon"
	SlotEvening   TimeSlot = "evening"
	SlotNight     TimeSlot = "night"
)

// Recommendation wraps a venue with its rank and presentation hints.
type Recommendation struct {
	Venue        *Venue     `json:"venue"`
	Score        float64    `json:"score"`
	Reasons      []string   `json:"reasons"`
	Tags         []string   `json:"tags"`
	TimeSlots    []TimeSlot `json:"time_slots"` // empty means any slot
	Alternatives []*Venue   `json:"alternatives,omitempty"`
}

// AddTag adds t if not already present.
func (r *Recommendation) AddTag(t string) {
	if t == "" || r.HasTag(t) {
		return
	}
	r.Tags = append(r.Tags, t)
}

func (r *Recommendation) HasTag(t string) bool {
	for _, x := range r.Tags {
		if x == t {
			return true
		}
	}
	return false
}

// AddReason appends a reason, skipping exact repeats.
func (r *Recommendation) AddReason(reason string) {
	for _, x := range r.Reasons {
		if x == reason {
			return
		}
	}
	r.Reasons = append(r.Reasons, reason)
}

// FitsSlot reports whether the recommendation can be scheduled in s.
func (r *Recommendation) FitsSlot(s TimeSlot) bool {
	if len(r.TimeSlots) == 0 {
		return true
	}
	for _, x := range r.TimeSlots {
		if x == s {
			return true
		}
	}
	return false
}

// Clone deep-copies the recommendation and its venues.
func (r Recommendation) Clone() Recommendation {
	c := r
	c.Venue = r.Venue.Clone()
	c.Reasons = append([]string(nil), r.Reasons...)
	c.Tags = append([]string(nil), r.Tags...)
	c.TimeSlots = append([]TimeSlot(nil), r.TimeSlots...)
	c.Alternatives = CloneVenues(r.Alternatives)
	return c
}
