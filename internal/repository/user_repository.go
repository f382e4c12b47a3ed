package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/auction-backend/internal/models"
)

// ErrUserNotFound возвращается, когда запись пользователя не найдена.
var ErrUserNotFound = errors.New("user not found")

// ErrLocationNotFound возвращается, когда у пользователя нет основного адреса.
var ErrLocationNotFound = errors.New("main location not found")

// UserRepository отвечает за работу с таблицами users и locations.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create создаёт нового пользователя.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, username, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		user.Email, user.Username, user.PasswordHash, user.Role,
	).Scan(&user.ID, &user.CreatedAt); err != nil {
		return fmt.Errorf("user repository: create %w", err)
	}

	return nil
}

// GetByEmail возвращает пользователя по email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := `SELECT * FROM users WHERE email = $1`
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by email %w", err)
	}
	return &user, nil
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	query := `SELECT * FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by id %w", err)
	}
	return &user, nil
}

// SetStripeCustomerID сохраняет идентификатор клиента в шлюзе по принципу
// first-write-wins: выигрывает первая записанная привязка, повторная запись
// не перетирает существующую.
func (r *UserRepository) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) (string, error) {
	query := `
		UPDATE users
		SET stripe_customer_id = $2
		WHERE id = $1 AND stripe_customer_id IS NULL
	`
	if _, err := r.db.ExecContext(ctx, query, userID, customerID); err != nil {
		return "", fmt.Errorf("user repository: set stripe customer id %w", err)
	}

	// Перечитываем: при гонке могла победить чужая запись.
	var stored string
	if err := r.db.GetContext(ctx, &stored,
		`SELECT stripe_customer_id FROM users WHERE id = $1`, userID); err != nil {
		return "", fmt.Errorf("user repository: reload stripe customer id %w", err)
	}
	return stored, nil
}

// GetMainLocation возвращает основной адрес пользователя.
func (r *UserRepository) GetMainLocation(ctx context.Context, userID uuid.UUID) (*models.Location, error) {
	var location models.Location
	query := `SELECT * FROM locations WHERE user_id = $1 AND is_main = TRUE LIMIT 1`
	if err := r.db.GetContext(ctx, &location, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLocationNotFound
		}
		return nil, fmt.Errorf("user repository: get main location %w", err)
	}
	return &location, nil
}

// CreateLocation добавляет адрес пользователя.
func (r *UserRepository) CreateLocation(ctx context.Context, location *models.Location) error {
	query := `
		INSERT INTO locations (user_id, address, country, currency, is_main)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		location.UserID, location.Address, location.Country, location.Currency, location.IsMain,
	).Scan(&location.ID); err != nil {
		return fmt.Errorf("user repository: create location %w", err)
	}
	return nil
}
