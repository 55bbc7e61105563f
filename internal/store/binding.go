package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Binding maps a punching side to a plugin action.
type Binding struct {
	ID         string          `json:"id"`
	Side       string          `json:"side"`
	PluginName string          `json:"plugin"`
	ActionName string          `json:"action"`
	Params     json.RawMessage `json:"params"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  time.Time       `json:"created_at"`
}

// BindingRepository provides CRUD operations for bindings.
type BindingRepository struct {
	db *sql.DB
}

// Bindings returns the binding repository for this store.
func (s *Store) Bindings() *BindingRepository {
	return &BindingRepository{db: s.db}
}

const bindingColumns = `id, side, plugin_name, action_name, params, enabled, created_at`

// Create inserts a new binding into the database.
func (r *BindingRepository) Create(b *Binding) error {
	b.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO bindings (`+bindingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Side, b.PluginName, b.ActionName, string(params(b.Params)), boolInt(b.Enabled), b.CreatedAt,
	)
	return err
}

// GetByID retrieves a binding by its ID.
func (r *BindingRepository) GetByID(id string) (*Binding, error) {
	row := r.db.QueryRow(`SELECT `+bindingColumns+` FROM bindings WHERE id = ?`, id)

	b, err := scanBinding(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// ListEnabled returns the enabled bindings of a side, oldest first.
func (r *BindingRepository) ListEnabled(side string) ([]*Binding, error) {
	return r.query(`SELECT `+bindingColumns+` FROM bindings
		 WHERE side = ? AND enabled = 1 ORDER BY created_at ASC`, side)
}

// List retrieves all bindings.
func (r *BindingRepository) List() ([]*Binding, error) {
	return r.query(`SELECT ` + bindingColumns + ` FROM bindings ORDER BY created_at DESC`)
}

func (r *BindingRepository) query(q string, args ...any) ([]*Binding, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []*Binding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bindings, nil
}

// Update updates an existing binding.
func (r *BindingRepository) Update(b *Binding) error {
	result, err := r.db.Exec(
		`UPDATE bindings SET side = ?, plugin_name = ?, action_name = ?, params = ?, enabled = ?
		 WHERE id = ?`,
		b.Side, b.PluginName, b.ActionName, string(params(b.Params)), boolInt(b.Enabled), b.ID,
	)
	if err != nil {
		return err
	}
	return affected(result)
}

// Delete removes a binding by its ID.
func (r *BindingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM bindings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(result)
}

func scanBinding(row scanner) (*Binding, error) {
	b := &Binding{}
	var p string
	var enabled int

	if err := row.Scan(&b.ID, &b.Side, &b.PluginName, &b.ActionName, &p, &enabled, &b.CreatedAt); err != nil {
		return nil, err
	}

	b.Params = json.RawMessage(p)
	b.Enabled = enabled != 0
	return b, nil
}

func params(p json.RawMessage) json.RawMessage {
	if len(p) == 0 {
		return json.RawMessage("{}")
	}
	return p
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
