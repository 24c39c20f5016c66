package mongo

import (
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

	ID                string    `grove:"id,pk"               bson:"_id"`
	Name              string    `grove:"name"                bson:"name"`
	MaxChars          int       `grove:"max_chars"           bson:"max_chars"`
	MaxRequests       int       `grove:"max_requests"        bson:"max_requests"`
	AISettingsEnabled bool      `grove:"ai_settings_enabled" bson:"ai_settings_enabled"`
	PriceAmount       int64     `grove:"price_amount"        bson:"price_amount"`
	PriceCurrency     string    `grove:"price_currency"      bson:"price_currency"`
	Term              string    `grove:"term"                bson:"term"`
	Modes             []string  `grove:"modes"               bson:"modes,omitempty"`
	UpdatedAt         time.Time `grove:"updated_at"          bson:"updated_at"`
}

func toPlanModel(p plan.Plan, now time.Time) *planModel {
	modes := make([]string, len(p.Modes))
	for i, m := range p.Modes {
		modes[i] = string(m)
	}
	return &planModel{
		ID:                p.ID,
		Name:              p.Name,
		MaxChars:          p.MaxChars,
		MaxRequests:       p.MaxRequests,
		AISettingsEnabled: p.AISettingsEnabled,
		PriceAmount:       p.Price.Amount,
		PriceCurrency:     p.Price.Currency,
		Term:              string(p.Term),
		Modes:             modes,
		UpdatedAt:         now,
	}
}

func fromPlanModel(m *planModel) plan.Plan {
	var modes []plan.Mode
	for _, s := range m.Modes {
		modes = append(modes, plan.Mode(s))
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
	}
}

// ==================== Subject models ====================

type settingsModel struct {
	SimplifyLevel int `bson:"simplify_level"`
	ShortenLevel  int `bson:"shorten_level"`
	BulletCount   int `bson:"bullet_count"`
	ExampleCount  int `bson:"example_count"`
}

type subjectModel struct {
	grove.BaseModel `grove:"table:entitle_subjects"`

	SubjectID           string        `grove:"subject_id,pk"        bson:"_id"`
	Email               *string       `grove:"email"                bson:"email"`
	PlanID              string        `grove:"plan_id"              bson:"plan_id"`
	RequestsUsed        int           `grove:"requests_used"        bson:"requests_used"`
	CycleAnchor         string        `grove:"cycle_anchor"         bson:"cycle_anchor"`
	LastActionAt        *time.Time    `grove:"last_action_at"       bson:"last_action_at"`
	SubscriptionExpires *time.Time    `grove:"subscription_expires" bson:"subscription_expires"`
	Settings            settingsModel `grove:"settings"             bson:"settings"`
	CreatedAt           time.Time     `grove:"created_at"           bson:"created_at"`
	UpdatedAt           time.Time     `grove:"updated_at"           bson:"updated_at"`
}

func toSettingsModel(s entitlement.Settings) settingsModel {
	return settingsModel{
		SimplifyLevel: s.SimplifyLevel,
		ShortenLevel:  s.ShortenLevel,
		BulletCount:   s.BulletCount,
		ExampleCount:  s.ExampleCount,
	}
}

func toSubjectModel(r *entitlement.Record) *subjectModel {
	m := &subjectModel{
		SubjectID:           r.SubjectID,
		PlanID:              r.PlanID,
		RequestsUsed:        r.RequestsUsed,
		CycleAnchor:         r.CycleAnchor,
		LastActionAt:        r.LastActionAt,
		SubscriptionExpires: r.SubscriptionExpires,
		Settings:            toSettingsModel(r.Settings),
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
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		SubjectID:           m.SubjectID,
		PlanID:              m.PlanID,
		RequestsUsed:        m.RequestsUsed,
		CycleAnchor:         m.CycleAnchor,
		LastActionAt:        utcPtr(m.LastActionAt),
		SubscriptionExpires: utcPtr(m.SubscriptionExpires),
		Settings: entitlement.Settings{
			SimplifyLevel: m.Settings.SimplifyLevel,
			ShortenLevel:  m.Settings.ShortenLevel,
			BulletCount:   m.Settings.BulletCount,
			ExampleCount:  m.Settings.ExampleCount,
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

	ID         string    `grove:"id,pk"       bson:"_id"`
	SubjectID  string    `grove:"subject_id"  bson:"subject_id"`
	InputText  string    `grove:"input_text"  bson:"input_text"`
	OutputText string    `grove:"output_text" bson:"output_text"`
	Mode       string    `grove:"mode"        bson:"mode"`
	SourceURL  string    `grove:"source_url"  bson:"source_url,omitempty"`
	CreatedAt  time.Time `grove:"created_at"  bson:"created_at"`
}

func toHistoryModel(item *history.Item) *historyModel {
	return &historyModel{
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
