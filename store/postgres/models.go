package postgres

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/history"
	"github.com/xraph/entitle/id"
	"github.com/xraph/entitle/plan"
	"github.com/xraph/entitle/types"
)

// ==================== Plan models ====================

type planModel struct {
	grove.BaseModel `grove:"table:entitle_plans"`

	ID                string          `grove:"id,pk"`
	Name              string          `grove:"name"`
	MaxChars          int             `grove:"max_chars"`
	MaxRequests       int             `grove:"max_requests"`
	AISettingsEnabled bool            `grove:"ai_settings_enabled"`
	PriceAmount       int64           `grove:"price_amount"`
	PriceCurrency     string          `grove:"price_currency"`
	Term              string          `grove:"term"`
	Modes             json.RawMessage `grove:"modes,type:jsonb"`
	UpdatedAt         time.Time       `grove:"updated_at"`
}

func toPlanModel(p plan.Plan, now time.Time) planModel {
	modes := p.Modes
	if modes == nil {
		modes = []plan.Mode{}
	}
	raw, _ := json.Marshal(modes) //nolint:errcheck // []Mode always marshals
	return planModel{
		ID:                p.ID,
		Name:              p.Name,
		MaxChars:          p.MaxChars,
		MaxRequests:       p.MaxRequests,
		AISettingsEnabled: p.AISettingsEnabled,
		PriceAmount:       p.Price.Amount,
		PriceCurrency:     p.Price.Currency,
		Term:              string(p.Term),
		Modes:             raw,
		UpdatedAt:         now,
	}
}

func fromPlanModel(m *planModel) (plan.Plan, error) {
	var modes []plan.Mode
	if len(m.Modes) > 0 && string(m.Modes) != "null" {
		if err := json.Unmarshal(m.Modes, &modes); err != nil {
			return plan.Plan{}, err
		}
	}
	if len(modes) == 0 {
		modes = nil
	}
	return plan.Plan{
		ID:                m.ID,
		Name:              m.Name,
		MaxChars:          m.MaxChars,
		MaxRequests:       m.MaxRequests,
		AISettingsEnabled: m.AISettingsEnabled,
		Price:             types.Money{Amount: m.PriceAmount, Currency: m.PriceCurrency},
		Term:              plan.Term(m.Term),
		Modes:             modes,
	}, nil
}

// ==================== Subject models ====================

type subjectModel struct {
	grove.BaseModel `grove:"table:entitle_subjects"`

	SubjectID           string     `grove:"subject_id,pk"`
	Email               *string    `grove:"email"`
	PlanID              string     `grove:"plan_id"`
	RequestsUsed        int        `grove:"requests_used"`
	CycleAnchor         string     `grove:"cycle_anchor"`
	LastActionAt        *time.Time `grove:"last_action_at"`
	SubscriptionExpires *time.Time `grove:"subscription_expires"`
	SimplifyLevel       int        `grove:"simplify_level"`
	ShortenLevel        int        `grove:"shorten_level"`
	BulletCount         int        `grove:"bullet_count"`
	ExampleCount        int        `grove:"example_count"`
	CreatedAt           time.Time  `grove:"created_at"`
	UpdatedAt           time.Time  `grove:"updated_at"`
}

func toSubjectModel(r *entitlement.Record) *subjectModel {
	m := &subjectModel{
		SubjectID:           r.SubjectID,
		PlanID:              r.PlanID,
		RequestsUsed:        r.RequestsUsed,
		CycleAnchor:         r.CycleAnchor,
		LastActionAt:        r.LastActionAt,
		SubscriptionExpires: r.SubscriptionExpires,
		SimplifyLevel:       r.Settings.SimplifyLevel,
		ShortenLevel:        r.Settings.ShortenLevel,
		BulletCount:         r.Settings.BulletCount,
		ExampleCount:        r.Settings.ExampleCount,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
	if r.Email != "" {
		email := r.Email
		m.Email = &email
	}
	return m
}

func fromSubjectModel(m *subjectModel) *entitlement.Record {
	r := &entitlement.Record{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		SubjectID:           m.SubjectID,
		PlanID:              m.PlanID,
		RequestsUsed:        m.RequestsUsed,
		CycleAnchor:         m.CycleAnchor,
		LastActionAt:        utcPtr(m.LastActionAt),
		SubscriptionExpires: utcPtr(m.SubscriptionExpires),
		Settings: entitlement.Settings{
			SimplifyLevel: m.SimplifyLevel,
			ShortenLevel:  m.ShortenLevel,
			BulletCount:   m.BulletCount,
			ExampleCount:  m.ExampleCount,
		},
	}
	if m.Email != nil {
		r.Email = *m.Email
	}
	if r.PlanID == "" {
		r.PlanID = plan.FreeID
	}
	return r
}

// ==================== History models ====================

type historyModel struct {
	grove.BaseModel `grove:"table:entitle_history"`

	ID         string    `grove:"id,pk"`
	SubjectID  string    `grove:"subject_id"`
	InputText  string    `grove:"input_text"`
	OutputText string    `grove:"output_text"`
	Mode       string    `grove:"mode"`
	SourceURL  string    `grove:"source_url"`
	CreatedAt  time.Time `grove:"created_at"`
}

func toHistoryModel(item *history.Item) historyModel {
	return historyModel{
		ID:         item.ID.String(),
		SubjectID:  item.SubjectID,
		InputText:  item.InputText,
		OutputText: item.OutputText,
		Mode:       item.Mode,
		SourceURL:  item.SourceURL,
		CreatedAt:  item.CreatedAt,
	}
}

func fromHistoryModel(m *historyModel) (*history.Item, error) {
	itemID, err := id.ParseHistoryID(m.ID)
	if err != nil {
		return nil, err
	}
	return &history.Item{
		ID:         itemID,
		SubjectID:  m.SubjectID,
		InputText:  m.InputText,
		OutputText: m.OutputText,
		Mode:       m.Mode,
		SourceURL:  m.SourceURL,
		CreatedAt:  m.CreatedAt.UTC(),
	}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
