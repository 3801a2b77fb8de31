package postgres

import (
	"time"

	"github.com/ppiankov/poldna/internal/model"
)

type legislatorModel struct {
	ID     string `gorm:"column:id;primaryKey"`
	Name   string `gorm:"column:name"`
	Party  string `gorm:"column:party;index"`
	Active bool   `gorm:"column:active"`
}

func (legislatorModel) TableName() string { return "legislators" }

func legislatorModelFromEntity(l model.Legislator) legislatorModel {
	return legislatorModel{ID: l.ID, Name: l.Name, Party: l.Party, Active: l.Active}
}

func (m legislatorModel) toEntity() model.Legislator {
	return model.Legislator{ID: m.ID, Name: m.Name, Party: m.Party, Active: m.Active}
}

type eventModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	Title       string    `gorm:"column:title"`
	Category    string    `gorm:"column:category;default:Other"`
	Weight      *float64  `gorm:"column:weight"`
	Categorized bool      `gorm:"column:categorized"`
	AyeCount    int       `gorm:"column:aye_count"`
	NayCount    int       `gorm:"column:nay_count"`
	HeldAt      time.Time `gorm:"column:held_at"`
}

func (eventModel) TableName() string { return "voting_events" }

func eventModelFromEntity(e model.VotingEvent) eventModel {
	category := e.Category
	if category == "" {
		category = model.CategoryOther
	}
	return eventModel{
		ID:          e.ID,
		Title:       e.Title,
		Category:    string(category),
		Weight:      e.Weight,
		Categorized: e.Categorized,
		AyeCount:    e.AyeCount,
		NayCount:    e.NayCount,
		HeldAt:      e.HeldAt.UTC(),
	}
}

func (m eventModel) toEntity() model.VotingEvent {
	return model.VotingEvent{
		ID:          m.ID,
		Title:       m.Title,
		Category:    model.Category(m.Category),
		Weight:      m.Weight,
		Categorized: m.Categorized,
		AyeCount:    m.AyeCount,
		NayCount:    m.NayCount,
		HeldAt:      m.HeldAt.UTC(),
	}
}

type voteModel struct {
	Seq          int64  `gorm:"column:seq;primaryKey;autoIncrement"`
	LegislatorID string `gorm:"column:legislator_id;uniqueIndex:idx_vote_pair"`
	EventID      string `gorm:"column:event_id;uniqueIndex:idx_vote_pair;index"`
	VoteType     string `gorm:"column:vote_type"`
}

func (voteModel) TableName() string { return "vote_casts" }

func (m voteModel) toEntity() model.VoteCast {
	return model.VoteCast{LegislatorID: m.LegislatorID, EventID: m.EventID, Type: model.VoteType(m.VoteType)}
}

type profileModel struct {
	LegislatorID       string               `gorm:"column:legislator_id;primaryKey"`
	Party              string               `gorm:"column:party"`
	Axes               model.Vector         `gorm:"column:axes;serializer:json"`
	AxisVotes          [model.AxisCount]int `gorm:"column:axis_votes;serializer:json"`
	TotalVotesAnalyzed int                  `gorm:"column:total_votes_analyzed"`
	Source             string               `gorm:"column:source"`
	LastUpdated        time.Time            `gorm:"column:last_updated"`
}

func (profileModel) TableName() string { return "profiles" }

func profileModelFromEntity(p model.Profile) profileModel {
	return profileModel{
		LegislatorID:       p.LegislatorID,
		Party:              p.Party,
		Axes:               p.Axes,
		AxisVotes:          p.AxisVotes,
		TotalVotesAnalyzed: p.TotalVotesAnalyzed,
		Source:             string(p.Source),
		LastUpdated:        p.LastUpdated.UTC(),
	}
}

func (m profileModel) toEntity() model.Profile {
	return model.Profile{
		LegislatorID:       m.LegislatorID,
		Party:              m.Party,
		Axes:               m.Axes,
		AxisVotes:          m.AxisVotes,
		TotalVotesAnalyzed: m.TotalVotesAnalyzed,
		Source:             model.ProfileSource(m.Source),
		LastUpdated:        m.LastUpdated.UTC(),
	}
}

type partyModel struct {
	Party              string                 `gorm:"column:party;primaryKey"`
	Cohesion           float64                `gorm:"column:cohesion"`
	CohesionEvents     int                    `gorm:"column:cohesion_events"`
	Polarization       float64                `gorm:"column:polarization"`
	PolarizationVector model.Vector           `gorm:"column:polarization_vector;serializer:json"`
	Pivot              float64                `gorm:"column:pivot"`
	TopicOwnership     []model.TopicIntensity `gorm:"column:topic_ownership;serializer:json"`
	OwnedCategory      string                 `gorm:"column:owned_category"`
	MPCount            int                    `gorm:"column:mp_count"`
}

func (partyModel) TableName() string { return "party_aggregates" }

func partyModelFromEntity(a model.PartyAggregate) partyModel {
	return partyModel{
		Party:              a.Party,
		Cohesion:           a.Cohesion,
		CohesionEvents:     a.CohesionEvents,
		Polarization:       a.Polarization,
		PolarizationVector: a.PolarizationVector,
		Pivot:              a.Pivot,
		TopicOwnership:     a.TopicOwnership,
		OwnedCategory:      string(a.OwnedCategory),
		MPCount:            a.MPCount,
	}
}

func (m partyModel) toEntity() model.PartyAggregate {
	return model.PartyAggregate{
		Party:              m.Party,
		Cohesion:           m.Cohesion,
		CohesionEvents:     m.CohesionEvents,
		Polarization:       m.Polarization,
		PolarizationVector: m.PolarizationVector,
		Pivot:              m.Pivot,
		TopicOwnership:     m.TopicOwnership,
		OwnedCategory:      model.Category(m.OwnedCategory),
		MPCount:            m.MPCount,
	}
}

type responseModel struct {
	LegislatorID string  `gorm:"column:legislator_id;primaryKey"`
	Question     string  `gorm:"column:question;primaryKey"`
	Value        int     `gorm:"column:response_value"`
	Category     string  `gorm:"column:category"`
	Weight       float64 `gorm:"column:weight"`
}

func (responseModel) TableName() string { return "candidate_responses" }

func responseModelFromEntity(r model.CandidateResponse) responseModel {
	return responseModel{
		LegislatorID: r.LegislatorID,
		Question:     r.Question,
		Value:        r.Value,
		Category:     string(r.Category),
		Weight:       r.Weight,
	}
}

func (m responseModel) toEntity() model.CandidateResponse {
	return model.CandidateResponse{
		LegislatorID: m.LegislatorID,
		Question:     m.Question,
		Value:        m.Value,
		Category:     model.Category(m.Category),
		Weight:       m.Weight,
	}
}

type alertModel struct {
	LegislatorID string    `gorm:"column:legislator_id;primaryKey"`
	EventID      string    `gorm:"column:event_id;primaryKey"`
	ID           string    `gorm:"column:id;uniqueIndex"`
	Category     string    `gorm:"column:category"`
	PromiseValue float64   `gorm:"column:promise_value"`
	VoteValue    float64   `gorm:"column:vote_value"`
	Deviation    float64   `gorm:"column:deviation"`
	Severity     string    `gorm:"column:severity"`
	DetectedAt   time.Time `gorm:"column:detected_at"`
}

func (alertModel) TableName() string { return "alerts" }

func alertModelFromEntity(a model.Alert) alertModel {
	return alertModel{
		LegislatorID: a.LegislatorID,
		EventID:      a.EventID,
		ID:           a.ID,
		Category:     string(a.Category),
		PromiseValue: a.PromiseValue,
		VoteValue:    a.VoteValue,
		Deviation:    a.Deviation,
		Severity:     string(a.Severity),
		DetectedAt:   a.DetectedAt.UTC(),
	}
}

func (m alertModel) toEntity() model.Alert {
	return model.Alert{
		ID:           m.ID,
		LegislatorID: m.LegislatorID,
		EventID:      m.EventID,
		Category:     model.Category(m.Category),
		PromiseValue: m.PromiseValue,
		VoteValue:    m.VoteValue,
		Deviation:    m.Deviation,
		Severity:     model.Severity(m.Severity),
		DetectedAt:   m.DetectedAt.UTC(),
	}
}
