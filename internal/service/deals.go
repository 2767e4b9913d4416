package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vkarpekin/mebelbot/internal/config"
	"github.com/vkarpekin/mebelbot/internal/domain"
	"github.com/vkarpekin/mebelbot/internal/nlp"
)

// DealService is the deal side of the CRM, backed by Postgres.
type DealService struct {
	db *pgxpool.Pool
}

func NewDealService(db *pgxpool.Pool) *DealService {
	return &DealService{db: db}
}

const dealColumns = `id, client_name, client_phone, client_email, product, quantity,
	amount::text, stage_key, deadline, tags, note, created_at, updated_at`

func scanDeal(row pgx.Row) (*domain.Deal, error) {
	var d domain.Deal
	var amount string
	err := row.Scan(&d.ID, &d.ClientName, &d.ClientPhone, &d.ClientEmail,
		&d.Product, &d.Quantity, &amount, &d.StageKey, &d.Deadline,
		&d.Tags, &d.Note, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	return &d, nil
}

// SearchDeals matches the query against client name and product,
// case-insensitively, and returns one page plus the total count.
func (s *DealService) SearchDeals(ctx context.Context, query string, page, pageSize int, filter *domain.DealFilter) ([]domain.Deal, int, error) {
	where := `(lower(client_name) LIKE '%' || lower($1) || '%' OR lower(product) LIKE '%' || lower($1) || '%')`
	args := []any{strings.TrimSpace(query)}
	if filter != nil && filter.StageKey != "" {
		args = append(args, filter.StageKey)
		where += fmt.Sprintf(" AND stage_key = $%d", len(args))
	}
	if filter != nil && filter.ClientName != "" {
		args = append(args, filter.ClientName)
		where += fmt.Sprintf(" AND lower(client_name) = lower($%d)", len(args))
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM deals WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count deals: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	args = append(args, pageSize, page*pageSize)
	rows, err := s.db.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM deals WHERE %s ORDER BY id LIMIT $%d OFFSET $%d`,
			dealColumns, where, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search deals: %w", err)
	}
	defer rows.Close()

	var deals []domain.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan deal: %w", err)
		}
		deals = append(deals, *d)
	}
	return deals, total, rows.Err()
}

func (s *DealService) GetDealByID(ctx context.Context, id int64) (*domain.Deal, error) {
	d, err := scanDeal(s.db.QueryRow(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrDealNotFound
		}
		return nil, fmt.Errorf("get deal: %w", err)
	}
	return d, nil
}

// CreateDeal inserts the deal and upserts the client card in one
// transaction. The stage falls back to 'new' when the draft left it
// empty.
func (s *DealService) CreateDeal(ctx context.Context, draft domain.DealDraft) (*domain.Deal, error) {
	stage := draft.StageKey
	if stage == "" {
		stage = config.DefaultStageKey
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if draft.ClientName != "" {
		_, err = tx.Exec(ctx, `
			INSERT INTO clients (name, phone) VALUES ($1, $2)
			ON CONFLICT ((lower(name))) DO UPDATE
			SET phone = COALESCE(NULLIF(EXCLUDED.phone, ''), clients.phone)`,
			draft.ClientName, draft.ClientPhone)
		if err != nil {
			return nil, fmt.Errorf("upsert client: %w", err)
		}
	}

	deal, err := scanDeal(tx.QueryRow(ctx, `
		INSERT INTO deals (client_name, client_phone, product, quantity, stage_key, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+dealColumns,
		draft.ClientName, draft.ClientPhone, draft.Product, draft.Quantity, stage, draft.Note))
	if err != nil {
		return nil, fmt.Errorf("insert deal: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return deal, nil
}

// dealUpdateColumns whitelists what UpdateDeal may touch; the keys are
// the dialog field keys.
var dealUpdateColumns = map[string]string{
	"client_name":  "client_name",
	"client_phone": "client_phone",
	"client_email": "client_email",
	"product":      "product",
	"quantity":     "quantity",
	"amount":       "amount",
	"stage_key":    "stage_key",
	"deadline":     "deadline",
	"tags":         "tags",
	"note":         "note",
}

func (s *DealService) UpdateDeal(ctx context.Context, id int64, fields map[string]any) (*domain.Deal, error) {
	if len(fields) == 0 {
		return s.GetDealByID(ctx, id)
	}

	set := make([]string, 0, len(fields)+1)
	args := []any{id}
	for key, value := range fields {
		col, ok := dealUpdateColumns[key]
		if !ok {
			return nil, fmt.Errorf("%w: поле %q", domain.ErrInvalidValue, key)
		}
		if key == "stage_key" {
			var exists bool
			if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stages WHERE key = $1)`, value).Scan(&exists); err != nil {
				return nil, fmt.Errorf("check stage: %w", err)
			}
			if !exists {
				return nil, domain.ErrStageNotFound
			}
		}
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	set = append(set, "updated_at = now()")

	deal, err := scanDeal(s.db.QueryRow(ctx,
		fmt.Sprintf(`UPDATE deals SET %s WHERE id = $1 RETURNING %s`,
			strings.Join(set, ", "), dealColumns),
		args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrDealNotFound
		}
		return nil, fmt.Errorf("update deal: %w", err)
	}
	return deal, nil
}

func (s *DealService) DeleteDeal(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM deals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete deal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDealNotFound
	}
	return nil
}

// SearchClients finds clients whose name resembles the query: substring
// matches first, then a fuzzy pass over the card index so typos and
// case variants ("иванов" vs "Иванофф") still land.
func (s *DealService) SearchClients(ctx context.Context, name string) ([]domain.Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, name, phone, email FROM clients ORDER BY id DESC LIMIT 500`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	type scored struct {
		client domain.Client
		score  int
	}
	var matches []scored
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		if score := nlp.MatchClient(name, c.Name); score >= config.ClientMatchThreshold {
			matches = append(matches, scored{client: c, score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	out := make([]domain.Client, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.client)
	}
	return out, nil
}

func (s *DealService) CountDealsNotInStage(ctx context.Context, stageKey string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM deals WHERE stage_key <> $1`, stageKey).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count deals not in stage: %w", err)
	}
	return n, nil
}

func (s *DealService) MoveAllToStage(ctx context.Context, stageKey string) (int, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stages WHERE key = $1)`, stageKey).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check stage: %w", err)
	}
	if !exists {
		return 0, domain.ErrStageNotFound
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE deals SET stage_key = $1, updated_at = now() WHERE stage_key <> $1`, stageKey)
	if err != nil {
		return 0, fmt.Errorf("bulk move: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *DealService) StageCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.Query(ctx, `SELECT stage_key, count(*) FROM deals GROUP BY stage_key`)
	if err != nil {
		return nil, fmt.Errorf("stage counts: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan stage count: %w", err)
		}
		out[key] = n
	}
	return out, rows.Err()
}
