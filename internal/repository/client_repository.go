package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/intervention-service/internal/domain"
)

// ContractFilter narrows contract listings.
type ContractFilter struct {
	ClientCode *string
	// SerialNumber matches any contract whose serial contains it, ignoring case.
	SerialNumber *string
}

// ClientRepository persists clients and their service contracts.
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) error
	Get(ctx context.Context, code string) (*domain.Client, error)
	List(ctx context.Context, search *string) ([]domain.Client, error)
	CreateContract(ctx context.Context, contract *domain.Contract) error
	GetContract(ctx context.Context, id string) (*domain.Contract, error)
	ListContracts(ctx context.Context, filter ContractFilter) ([]domain.Contract, error)
}

type clientRepository struct {
	db DBTX
}

const clientColumns = `code, company_name, contact, phone, email, created_at,
        (SELECT COUNT(*) FROM contracts k WHERE k.client_code = clients.code),
        (SELECT COUNT(*) FROM tickets t WHERE t.client_code = clients.code)`

const contractColumns = `id, client_code, contract_type, serial_number, created_at,
        (SELECT COUNT(*) FROM tickets t WHERE t.contract_id = contracts.id)`

func (r *clientRepository) Create(ctx context.Context, client *domain.Client) error {
	const query = `
        INSERT INTO clients (code, company_name, contact, phone, email)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at`
	err := r.db.QueryRow(ctx, query,
		client.Code,
		client.CompanyName,
		client.Contact,
		client.Phone,
		client.Email,
	).Scan(&client.CreatedAt)
	return translate(err)
}

func (r *clientRepository) Get(ctx context.Context, code string) (*domain.Client, error) {
	return scanClient(r.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE code=$1`, code))
}

// List returns clients by company name. search matches the code or the name.
func (r *clientRepository) List(ctx context.Context, search *string) ([]domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients`
	var args []any
	if search != nil && strings.TrimSpace(*search) != "" {
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(*search))+"%")
		query += ` WHERE LOWER(code) LIKE $1 OR LOWER(company_name) LIKE $1`
	}
	rows, err := r.db.Query(ctx, query+` ORDER BY company_name, code`, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *client)
	}
	return result, rows.Err()
}

func (r *clientRepository) CreateContract(ctx context.Context, contract *domain.Contract) error {
	const query = `
        INSERT INTO contracts (id, client_code, contract_type, serial_number)
        VALUES ($1,$2,$3,$4)
        RETURNING created_at`
	err := r.db.QueryRow(ctx, query,
		contract.ID,
		contract.ClientCode,
		contract.ContractType,
		contract.SerialNumber,
	).Scan(&contract.CreatedAt)
	return translate(err)
}

func (r *clientRepository) GetContract(ctx context.Context, id string) (*domain.Contract, error) {
	return scanContract(r.db.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id=$1`, id))
}

// ListContracts returns contracts newest first.
func (r *clientRepository) ListContracts(ctx context.Context, filter ContractFilter) ([]domain.Contract, error) {
	clauses := []string{"1=1"}
	var args []any
	if filter.ClientCode != nil {
		args = append(args, *filter.ClientCode)
		clauses = append(clauses, fmt.Sprintf("client_code=$%d", len(args)))
	}
	if filter.SerialNumber != nil && strings.TrimSpace(*filter.SerialNumber) != "" {
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(*filter.SerialNumber))+"%")
		clauses = append(clauses, fmt.Sprintf("LOWER(COALESCE(serial_number,'')) LIKE $%d", len(args)))
	}
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE ` + strings.Join(clauses, " AND ") +
		` ORDER BY created_at DESC, id`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.Contract
	for rows.Next() {
		contract, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *contract)
	}
	return result, rows.Err()
}

func scanClient(row pgx.Row) (*domain.Client, error) {
	var client domain.Client
	if err := row.Scan(
		&client.Code,
		&client.CompanyName,
		&client.Contact,
		&client.Phone,
		&client.Email,
		&client.CreatedAt,
		&client.ContractCount,
		&client.TicketCount,
	); err != nil {
		return nil, translate(err)
	}
	return &client, nil
}

func scanContract(row pgx.Row) (*domain.Contract, error) {
	var contract domain.Contract
	if err := row.Scan(
		&contract.ID,
		&contract.ClientCode,
		&contract.ContractType,
		&contract.SerialNumber,
		&contract.CreatedAt,
		&contract.TicketCount,
	); err != nil {
		return nil, translate(err)
	}
	return &contract, nil
}
