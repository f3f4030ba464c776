package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("missing database dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{db: db}, nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type UserProfile struct {
	ID           string
	Email        string
	FullName     *string
	BusinessName *string
	Industry     *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Chatbot struct {
	ID                 string
	UserID             string
	Name               string
	Description        *string
	Industry           *string
	Status             string
	KnowledgeBaseSize  int
	TotalConversations int
	DeploymentURL      *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type KnowledgeItem struct {
	ID        string
	ChatbotID string
	Content   string
	Source    *string
	Category  *string
	CreatedAt time.Time
}

type Conversation struct {
	ID             string
	ChatbotID      string
	UserMessage    string
	BotResponse    string
	Sentiment      *string
	Confidence     *float64
	IsHoaxDetected *bool
	Tier           string
	Provider       string
	CreatedAt      time.Time
}

// CreateUserProfile writes the profile row for an externally-verified
// identity. The identity provider may replay the call, so an existing row
// is updated rather than rejected.
func (s *Store) CreateUserProfile(ctx context.Context, p UserProfile) (UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO user_profiles (id, email, full_name, business_name, industry)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			full_name = EXCLUDED.full_name,
			business_name = EXCLUDED.business_name,
			industry = EXCLUDED.industry,
			updated_at = now()
		RETURNING created_at, updated_at`,
		p.ID, p.Email, p.FullName, p.BusinessName, p.Industry)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return UserProfile{}, err
	}
	return p, nil
}

func (s *Store) GetUserProfile(ctx context.Context, id string) (UserProfile, error) {
	var p UserProfile
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, business_name, industry, created_at, updated_at
		FROM user_profiles WHERE id = $1`, id)
	err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.BusinessName, &p.Industry, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return UserProfile{}, ErrNotFound
	}
	return p, err
}

const chatbotColumns = `id, user_id, name, description, industry, status,
	knowledge_base_size, total_conversations, deployment_url, created_at, updated_at`

func scanChatbot(row interface{ Scan(...any) error }) (Chatbot, error) {
	var b Chatbot
	err := row.Scan(&b.ID, &b.UserID, &b.Name, &b.Description, &b.Industry, &b.Status,
		&b.KnowledgeBaseSize, &b.TotalConversations, &b.DeploymentURL, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (s *Store) CreateChatbot(ctx context.Context, userID, name string, description, industry *string) (Chatbot, error) {
	id := uuid.NewString()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO chatbots (id, user_id, name, description, industry, status)
		VALUES ($1, $2, $3, $4, $5, 'draft')
		RETURNING `+chatbotColumns, id, userID, name, description, industry)
	return scanChatbot(row)
}

func (s *Store) ListChatbots(ctx context.Context, userID string) ([]Chatbot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+chatbotColumns+` FROM chatbots
		WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bots []Chatbot
	for rows.Next() {
		b, err := scanChatbot(rows)
		if err != nil {
			return nil, err
		}
		bots = append(bots, b)
	}
	return bots, rows.Err()
}

func (s *Store) GetChatbot(ctx context.Context, id, userID string) (Chatbot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+chatbotColumns+` FROM chatbots
		WHERE id = $1 AND user_id = $2`, id, userID)
	b, err := scanChatbot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Chatbot{}, ErrNotFound
	}
	return b, err
}

type ChatbotUpdate struct {
	Name          *string
	Description   *string
	Industry      *string
	Status        *string
	DeploymentURL *string
}

func (s *Store) UpdateChatbot(ctx context.Context, id, userID string, upd ChatbotUpdate) (Chatbot, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE chatbots SET
			name = COALESCE($3, name),
			description = COALESCE($4, description),
			industry = COALESCE($5, industry),
			status = COALESCE($6, status),
			deployment_url = COALESCE($7, deployment_url),
			updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+chatbotColumns,
		id, userID, upd.Name, upd.Description, upd.Industry, upd.Status, upd.DeploymentURL)
	b, err := scanChatbot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Chatbot{}, ErrNotFound
	}
	return b, err
}

func (s *Store) AddKnowledgeItem(ctx context.Context, chatbotID, content string, source, category *string) (KnowledgeItem, error) {
	item := KnowledgeItem{
		ID:        uuid.NewString(),
		ChatbotID: chatbotID,
		Content:   content,
		Source:    source,
		Category:  category,
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO knowledge_base (id, chatbot_id, content, source, category)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		item.ID, item.ChatbotID, item.Content, item.Source, item.Category)
	if err := row.Scan(&item.CreatedAt); err != nil {
		return KnowledgeItem{}, err
	}

	// Keep the denormalized counter in step with the table.
	_, err := s.db.ExecContext(ctx, `
		UPDATE chatbots SET knowledge_base_size = (
			SELECT count(*) FROM knowledge_base WHERE chatbot_id = $1
		), updated_at = now() WHERE id = $1`, chatbotID)
	return item, err
}

func (s *Store) ListKnowledge(ctx context.Context, chatbotID string) ([]KnowledgeItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chatbot_id, content, source, category, created_at
		FROM knowledge_base WHERE chatbot_id = $1
		ORDER BY created_at ASC`, chatbotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []KnowledgeItem
	for rows.Next() {
		var it KnowledgeItem
		if err := rows.Scan(&it.ID, &it.ChatbotID, &it.Content, &it.Source, &it.Category, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) LogConversation(ctx context.Context, conv Conversation) (Conversation, error) {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO conversations
			(id, chatbot_id, user_message, bot_response, sentiment, confidence, is_hoax_detected, ai_tier, ai_provider)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		conv.ID, conv.ChatbotID, conv.UserMessage, conv.BotResponse,
		conv.Sentiment, conv.Confidence, conv.IsHoaxDetected, conv.Tier, conv.Provider)
	if err := row.Scan(&conv.CreatedAt); err != nil {
		return Conversation{}, err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE chatbots SET total_conversations = total_conversations + 1
		WHERE id = $1`, conv.ChatbotID)
	return conv, err
}

type Analytics struct {
	TotalConversations    int
	SentimentDistribution map[string]float64
	PeriodDays            int
}

// SentimentAnalytics aggregates the conversation log over the trailing
// period into a percentage distribution of sentiment labels.
func (s *Store) SentimentAnalytics(ctx context.Context, chatbotID string, days int) (Analytics, error) {
	if days <= 0 {
		days = 30
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(sentiment, 'neutral'), count(*)
		FROM conversations
		WHERE chatbot_id = $1 AND created_at >= now() - make_interval(days => $2)
		GROUP BY 1`, chatbotID, days)
	if err != nil {
		return Analytics{}, err
	}
	defer rows.Close()

	counts := map[string]int{"positive": 0, "negative": 0, "neutral": 0}
	total := 0
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return Analytics{}, err
		}
		counts[label] += n
		total += n
	}
	if err := rows.Err(); err != nil {
		return Analytics{}, err
	}

	dist := map[string]float64{"positive": 0, "negative": 0, "neutral": 0}
	if total > 0 {
		for label, n := range counts {
			dist[label] = float64(n) / float64(total) * 100
		}
	}
	return Analytics{
		TotalConversations:    total,
		SentimentDistribution: dist,
		PeriodDays:            days,
	}, nil
}
