package learning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ssfxx0923/Learning-Studio/internal/entitystore"
)

type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Priority    int    `json:"priority"`
	Completed   bool   `json:"completed"`
	DueDate     string `json:"dueDate,omitempty"`
	CreatedAt   string `json:"createdAt"`
	CompletedAt string `json:"completedAt,omitempty"`
}

type Plan struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Priority     int       `json:"priority"`
	Tasks        []Task    `json:"tasks"`
	Progress     float64   `json:"progress"`
	DueDate      string    `json:"dueDate,omitempty"`
	CreatedAt    string    `json:"createdAt"`
	UpdatedAt    string    `json:"updatedAt,omitempty"`
	AISuggestion string    `json:"aiSuggestion,omitempty"`
	ChatHistory  []Message `json:"chatHistory,omitempty"`
}

func (p Plan) DocumentID() string {
	return p.ID
}

type PlanOptions struct {
	BaseDir string
	Logger  *log.Logger
	Now     func() time.Time
}

// Plans are stored flat as <base>/<id>.json.
type Plans struct {
	store *entitystore.Store[Plan]
	now   func() time.Time
}

func NewPlans(opts PlanOptions) (*Plans, error) {
	store, err := entitystore.New(entitystore.Options[Plan]{
		BaseDir:    opts.BaseDir,
		Collection: "plans",
		Layout:     entitystore.FlatLayout{Suffix: ".json"},
		Placement:  entitystore.Append,
		SortOrder:  entitystore.Ascending,
		Validator:  planValidator,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Plans{store: store, now: clock(opts.Now)}, nil
}

func (p *Plans) Name() string {
	return "plans"
}

func (p *Plans) Base() string {
	return p.store.Base()
}

func (p *Plans) List(ctx context.Context) ([]Plan, error) {
	return p.store.List(ctx)
}

func (p *Plans) Get(ctx context.Context, id string) (Plan, error) {
	return p.store.Get(ctx, id)
}

// Create stores input under a fresh id. Title and createdAt are required.
func (p *Plans) Create(ctx context.Context, input Plan) (Plan, error) {
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.CreatedAt) == "" {
		return Plan{}, fmt.Errorf("%w: missing required fields: title, createdAt", entitystore.ErrInvalidInput)
	}
	return p.store.Create(ctx, func(id string) (Plan, error) {
		plan := input
		plan.ID = id
		if plan.Tasks == nil {
			plan.Tasks = []Task{}
		}
		return plan, nil
	})
}

// Update overwrites the plan. The embedded chat history is carried over
// when the caller omits it.
func (p *Plans) Update(ctx context.Context, id string, plan Plan) (Plan, error) {
	if plan.ID != id {
		return Plan{}, &entitystore.MismatchError{PathID: id, DocumentID: plan.ID}
	}
	return p.store.Mutate(ctx, id, func(current Plan) (Plan, error) {
		if plan.ChatHistory == nil {
			plan.ChatHistory = current.ChatHistory
		}
		if plan.Tasks == nil {
			plan.Tasks = []Task{}
		}
		plan.UpdatedAt = formatTime(p.now())
		return plan, nil
	})
}

func (p *Plans) Delete(ctx context.Context, id string) error {
	return p.store.Delete(ctx, id)
}

func (p *Plans) ChatHistory(ctx context.Context, id string) ([]Message, error) {
	plan, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.ChatHistory == nil {
		return []Message{}, nil
	}
	return plan.ChatHistory, nil
}

func (p *Plans) AppendMessage(ctx context.Context, id string, msg Message) (Plan, error) {
	now := p.now()
	msg, err := normalizeMessage(msg, now)
	if err != nil {
		return Plan{}, err
	}
	return p.store.Mutate(ctx, id, func(plan Plan) (Plan, error) {
		plan.ChatHistory = append(plan.ChatHistory, msg)
		plan.UpdatedAt = formatTime(now)
		return plan, nil
	})
}

func (p *Plans) SyncIndex(ctx context.Context) (entitystore.Report, error) {
	return p.store.SyncIndex(ctx)
}
