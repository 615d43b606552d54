package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"tableside/internal/domain"
)

func scanMenuItem(doc string) (domain.MenuItem, error) {
	var item domain.MenuItem
	if err := json.Unmarshal([]byte(doc), &item); err != nil {
		return item, fmt.Errorf("decode menu item: %w", err)
	}
	return item, nil
}

// ListMenuItems returns the menu in display order. An empty category matches all.
func (r Repo) ListMenuItems(ctx context.Context, category string, availableOnly bool) ([]domain.MenuItem, error) {
	query := `SELECT doc FROM menu_items WHERE (?='' OR category=?)`
	if availableOnly {
		query += ` AND available=1`
	}
	query += ` ORDER BY position ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, category, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.MenuItem
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		item, err := scanMenuItem(doc)
		if err != nil {
			return nil, err
		}
		res = append(res, item)
	}
	return res, rows.Err()
}

func (r Repo) GetMenuItem(ctx context.Context, id string) (domain.MenuItem, error) {
	var doc string
	err := r.DB.QueryRowContext(ctx, `SELECT doc FROM menu_items WHERE id=?`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return domain.MenuItem{}, ErrNotFound
	}
	if err != nil {
		return domain.MenuItem{}, err
	}
	return scanMenuItem(doc)
}

// ReplaceMenuTx swaps the whole catalog inside tx, keeping the slice order as display order.
func (r Repo) ReplaceMenuTx(ctx context.Context, tx *sql.Tx, items []domain.MenuItem) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM menu_items`); err != nil {
		return fmt.Errorf("clear menu: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for i, item := range items {
		doc, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encode menu item %s: %w", item.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO menu_items(id,position,category,available,doc,updated_at) VALUES (?,?,?,?,?,?)`,
			item.ID, i, item.Category, item.Available, string(doc), now); err != nil {
			return fmt.Errorf("insert menu item %s: %w", item.ID, err)
		}
	}
	return nil
}

// SetMenuItemAvailable toggles availability without touching the rest of the item.
func (r Repo) SetMenuItemAvailable(ctx context.Context, id string, available bool) error {
	item, err := r.GetMenuItem(ctx, id)
	if err != nil {
		return err
	}
	item.Available = available
	doc, err := json.Marshal(item)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `UPDATE menu_items SET available=?, doc=?, updated_at=? WHERE id=?`,
		available, string(doc), time.Now().UTC().Format(time.RFC3339), id)
	return err
}
