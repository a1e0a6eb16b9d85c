package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flashbots/auctioneer/auction"
	_ "github.com/lib/pq"
)

// PostgresStore implements auction.Ledger with PostgreSQL persistence.
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`

	// DSN, when set, is used verbatim instead of the fields above.
	DSN string `yaml:"dsn"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	if c.DSN != "" {
		return c.DSN
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

const queryTimeout = 5 * time.Second

// NewPostgresStore connects, pings and migrates the schema.
func NewPostgresStore(config *PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS bidders (
		id BIGSERIAL PRIMARY KEY,
		username VARCHAR(128) NOT NULL UNIQUE,
		role VARCHAR(16) NOT NULL CHECK (role IN ('admin', 'bidder')),
		wallet_balance BIGINT NOT NULL CHECK (wallet_balance >= 0)
	);

	CREATE TABLE IF NOT EXISTS lots (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(256) NOT NULL,
		image VARCHAR(1024) NOT NULL DEFAULT '',
		base_price BIGINT NOT NULL CHECK (base_price >= 0),
		current_bid BIGINT NOT NULL,
		winner_id BIGINT REFERENCES bidders(id),
		auction_index INTEGER NOT NULL UNIQUE,
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		timer_end TIMESTAMP WITH TIME ZONE,
		category VARCHAR(16) NOT NULL CHECK (category IN ('product', 'technology')),
		status VARCHAR(16) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'active', 'sold', 'unsold')),
		bid_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_lots_single_active ON lots(status) WHERE status = 'active';

	CREATE TABLE IF NOT EXISTS bids (
		id BIGSERIAL PRIMARY KEY,
		lot_id BIGINT NOT NULL REFERENCES lots(id) ON DELETE CASCADE,
		bidder_id BIGINT NOT NULL REFERENCES bidders(id),
		amount BIGINT NOT NULL CHECK (amount > 0),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_bids_lot_amount ON bids(lot_id, amount DESC);

	CREATE TABLE IF NOT EXISTS audit_log (
		id BIGSERIAL PRIMARY KEY,
		action VARCHAR(32) NOT NULL,
		actor_id BIGINT,
		details JSONB,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log(created_at);
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const lotColumns = `id, name, image, base_price, current_bid, winner_id, auction_index, is_active, timer_end, category, status, bid_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLot(row rowScanner) (*auction.Lot, error) {
	var (
		l        auction.Lot
		winnerID sql.NullInt64
		timerEnd sql.NullTime
		category string
		status   string
	)
	err := row.Scan(&l.ID, &l.Name, &l.Image, &l.BasePrice, &l.CurrentBid, &winnerID,
		&l.AuctionIndex, &l.IsActive, &timerEnd, &category, &status, &l.BidCount)
	if err != nil {
		return nil, err
	}
	if winnerID.Valid {
		l.WinnerID = winnerID.Int64
	}
	if timerEnd.Valid {
		t := timerEnd.Time
		l.TimerEnd = &t
	}
	l.Category = auction.Category(category)
	l.Status = auction.LotStatus(status)
	return &l, nil
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

// AddLot seeds a lot. A zero ID is assigned by the database.
func (s *PostgresStore) AddLot(ctx context.Context, lot *auction.Lot) (*auction.Lot, error) {
	if err := validateLot(lot); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	l := normalizeLot(lot)
	var timerEnd sql.NullTime
	if l.TimerEnd != nil {
		timerEnd = sql.NullTime{Time: *l.TimerEnd, Valid: true}
	}

	args := []any{l.Name, l.Image, l.BasePrice, l.CurrentBid, nullInt64(l.WinnerID),
		l.AuctionIndex, l.IsActive, timerEnd, string(l.Category), string(l.Status), l.BidCount}

	var row *sql.Row
	if l.ID == 0 {
		row = s.db.QueryRowContext(ctx, `
		INSERT INTO lots (name, image, base_price, current_bid, winner_id, auction_index, is_active, timer_end, category, status, bid_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+lotColumns, args...)
	} else {
		row = s.db.QueryRowContext(ctx, `
		INSERT INTO lots (name, image, base_price, current_bid, winner_id, auction_index, is_active, timer_end, category, status, bid_count, id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+lotColumns, append(args, l.ID)...)
	}

	created, err := scanLot(row)
	if err != nil {
		return nil, fmt.Errorf("inserting lot %q: %w", l.Name, err)
	}
	if l.ID != 0 {
		if err := s.syncSequence(ctx, "lots"); err != nil {
			return nil, err
		}
	}
	return created, nil
}

// AddBidder seeds a bidder. A zero ID is assigned by the database.
func (s *PostgresStore) AddBidder(ctx context.Context, bidder *auction.Bidder) (*auction.Bidder, error) {
	if err := validateBidder(bidder); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	b := *bidder
	var err error
	if b.ID == 0 {
		err = s.db.QueryRowContext(ctx, `
		INSERT INTO bidders (username, role, wallet_balance) VALUES ($1, $2, $3) RETURNING id`,
			b.Username, string(b.Role), b.WalletBalance).Scan(&b.ID)
	} else {
		_, err = s.db.ExecContext(ctx, `
		INSERT INTO bidders (id, username, role, wallet_balance) VALUES ($1, $2, $3, $4)`,
			b.ID, b.Username, string(b.Role), b.WalletBalance)
	}
	if err != nil {
		return nil, fmt.Errorf("inserting bidder %q: %w", b.Username, err)
	}
	if bidder.ID != 0 {
		if err := s.syncSequence(ctx, "bidders"); err != nil {
			return nil, err
		}
	}
	return &b, nil
}

// syncSequence moves the id sequence past rows inserted with explicit ids.
func (s *PostgresStore) syncSequence(ctx context.Context, table string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), GREATEST((SELECT MAX(id) FROM %[1]s), 1))`, table))
	if err != nil {
		return fmt.Errorf("syncing %s id sequence: %w", table, err)
	}
	return nil
}

func (s *PostgresStore) Lot(ctx context.Context, id int64) (*auction.Lot, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	l, err := scanLot(s.db.QueryRowContext(ctx, `SELECT `+lotColumns+` FROM lots WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lot %d: %w", id, auction.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading lot %d: %w", id, err)
	}
	return l, nil
}

func (s *PostgresStore) LotWithBids(ctx context.Context, id int64) (*auction.Lot, []auction.BidEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	l, err := scanLot(tx.QueryRowContext(ctx, `SELECT `+lotColumns+` FROM lots WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("lot %d: %w", id, auction.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading lot %d: %w", id, err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT b.id, b.lot_id, b.bidder_id, b.amount, b.created_at, u.username
		FROM bids b JOIN bidders u ON u.id = b.bidder_id
		WHERE b.lot_id = $1
		ORDER BY b.amount DESC, b.id DESC
	`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("loading bids for lot %d: %w", id, err)
	}
	defer rows.Close()

	var entries []auction.BidEntry
	for rows.Next() {
		var e auction.BidEntry
		if err := rows.Scan(&e.ID, &e.LotID, &e.BidderID, &e.Amount, &e.CreatedAt, &e.BidderName); err != nil {
			return nil, nil, fmt.Errorf("scanning bid: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return l, entries, tx.Commit()
}

func (s *PostgresStore) Lots(ctx context.Context) ([]*auction.Lot, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT `+lotColumns+` FROM lots ORDER BY auction_index`)
	if err != nil {
		return nil, fmt.Errorf("loading lots: %w", err)
	}
	defer rows.Close()

	var lots []*auction.Lot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning lot: %w", err)
		}
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

func (s *PostgresStore) Bidder(ctx context.Context, id int64) (*auction.Bidder, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var (
		b    auction.Bidder
		role string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, username, role, wallet_balance FROM bidders WHERE id = $1`, id).
		Scan(&b.ID, &b.Username, &role, &b.WalletBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bidder %d: %w", id, auction.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading bidder %d: %w", id, err)
	}
	b.Role = auction.Role(role)
	return &b, nil
}

func (s *PostgresStore) QueuePendingLots(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `UPDATE lots SET is_active = TRUE WHERE status = 'pending' AND NOT is_active`)
	if err != nil {
		return 0, fmt.Errorf("queueing pending lots: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *PostgresStore) OpenLot(ctx context.Context, id int64, timerEnd time.Time, actorID int64) (*auction.Lot, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE lots SET status = 'pending', timer_end = NULL
		WHERE status = 'active' AND id <> $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("parking active lots: %w", err)
	}

	l, err := scanLot(tx.QueryRowContext(ctx, `
		UPDATE lots SET status = 'active', is_active = TRUE, timer_end = $2
		WHERE id = $1 AND status <> 'sold'
		RETURNING `+lotColumns, id, timerEnd))
	if errors.Is(err, sql.ErrNoRows) {
		if _, lookupErr := s.lotInTx(ctx, tx, id, false); lookupErr != nil {
			return nil, lookupErr
		}
		return nil, fmt.Errorf("lot %d is sold: %w", id, auction.ErrLotClosed)
	}
	if err != nil {
		return nil, fmt.Errorf("opening lot %d: %w", id, err)
	}

	if err := insertAudit(ctx, tx, auction.ActionLotOpened, actorID, map[string]any{
		"lotId":    id,
		"timerEnd": timerEnd,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing lot open: %w", err)
	}
	return l, nil
}

func (s *PostgresStore) CommitBid(ctx context.Context, c auction.BidCommit) (*auction.BidResult, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	l, err := scanLot(tx.QueryRowContext(ctx, `
		UPDATE lots SET current_bid = $1, winner_id = $2, bid_count = bid_count + 1
		WHERE id = $3 AND status = 'active' AND current_bid = $4 AND timer_end > $5
		RETURNING `+lotColumns, c.Amount, c.BidderID, c.LotID, c.ExpectedBid, c.At))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.classifyLotConflict(ctx, tx, c)
	}
	if err != nil {
		return nil, fmt.Errorf("advancing lot %d: %w", c.LotID, err)
	}

	var (
		name    string
		balance int64
	)
	err = tx.QueryRowContext(ctx, `
		UPDATE bidders SET wallet_balance = wallet_balance - $1
		WHERE id = $2 AND wallet_balance >= $1
		RETURNING username, wallet_balance
	`, c.Amount, c.BidderID).Scan(&name, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM bidders WHERE id = $1)`, c.BidderID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("checking bidder %d: %w", c.BidderID, err)
		}
		if !exists {
			return nil, fmt.Errorf("bidder %d: %w", c.BidderID, auction.ErrNotFound)
		}
		return nil, fmt.Errorf("bidder %d: %w", c.BidderID, auction.ErrInsufficientFunds)
	}
	if err != nil {
		return nil, fmt.Errorf("debiting bidder %d: %w", c.BidderID, err)
	}

	bid := auction.Bid{LotID: c.LotID, BidderID: c.BidderID, Amount: c.Amount, CreatedAt: c.At}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO bids (lot_id, bidder_id, amount, created_at) VALUES ($1, $2, $3, $4) RETURNING id
	`, c.LotID, c.BidderID, c.Amount, c.At).Scan(&bid.ID)
	if err != nil {
		return nil, fmt.Errorf("inserting bid: %w", err)
	}

	if err := insertAudit(ctx, tx, auction.ActionPlaceBid, c.BidderID, map[string]any{
		"lotId":  c.LotID,
		"bidId":  bid.ID,
		"amount": c.Amount,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing bid: %w", err)
	}

	return &auction.BidResult{Bid: bid, BidderName: name, WalletBalance: balance, Lot: l}, nil
}

// classifyLotConflict explains why the conditional lot update matched no row.
func (s *PostgresStore) classifyLotConflict(ctx context.Context, tx *sql.Tx, c auction.BidCommit) error {
	l, err := s.lotInTx(ctx, tx, c.LotID, false)
	if err != nil {
		return err
	}
	if l.Status != auction.StatusActive || l.TimerEnd == nil || !l.TimerEnd.After(c.At) {
		return fmt.Errorf("lot %d: %w", c.LotID, auction.ErrLotClosed)
	}
	return fmt.Errorf("lot %d at %d, expected %d: %w", c.LotID, l.CurrentBid, c.ExpectedBid, auction.ErrBidConflict)
}

func (s *PostgresStore) MarkSold(ctx context.Context, rec auction.SaleRecord) (*auction.Lot, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	l, err := s.lotInTx(ctx, tx, rec.LotID, true)
	if err != nil {
		return nil, err
	}
	if l.Status == auction.StatusSold || l.Status == auction.StatusUnsold {
		return nil, fmt.Errorf("lot %d is %s: %w", rec.LotID, l.Status, auction.ErrLotClosed)
	}
	if l.BidCount == 0 {
		return nil, fmt.Errorf("lot %d: %w", rec.LotID, auction.ErrNoBids)
	}
	if l.WinnerID != rec.WinnerID || l.CurrentBid != rec.Amount {
		return nil, fmt.Errorf("lot %d led by %d at %d: %w", rec.LotID, l.WinnerID, l.CurrentBid, auction.ErrBidConflict)
	}

	sold, err := scanLot(tx.QueryRowContext(ctx, `
		UPDATE lots SET status = 'sold', is_active = FALSE, timer_end = NULL
		WHERE id = $1
		RETURNING `+lotColumns, rec.LotID))
	if err != nil {
		return nil, fmt.Errorf("marking lot %d sold: %w", rec.LotID, err)
	}

	if err := insertAudit(ctx, tx, auction.ActionItemSold, rec.AdminID, map[string]any{
		"lotId":    rec.LotID,
		"winnerId": rec.WinnerID,
		"amount":   rec.Amount,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing sale: %w", err)
	}
	return sold, nil
}

func (s *PostgresStore) ReverseLot(ctx context.Context, lotID, actorID int64) (*auction.Reversal, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	l, err := s.lotInTx(ctx, tx, lotID, true)
	if err != nil {
		return nil, err
	}
	switch l.Status {
	case auction.StatusUnsold:
		return &auction.Reversal{Lot: l, AlreadyUnsold: true}, nil
	case auction.StatusSold:
		return nil, fmt.Errorf("lot %d is sold: %w", lotID, auction.ErrLotClosed)
	}

	rows, err := tx.QueryContext(ctx, `SELECT bidder_id, amount FROM bids WHERE lot_id = $1 ORDER BY id`, lotID)
	if err != nil {
		return nil, fmt.Errorf("loading bids for lot %d: %w", lotID, err)
	}
	var refunds []auction.Refund
	for rows.Next() {
		var r auction.Refund
		if err := rows.Scan(&r.BidderID, &r.Amount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning bid: %w", err)
		}
		refunds = append(refunds, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, r := range refunds {
		if _, err := tx.ExecContext(ctx, `UPDATE bidders SET wallet_balance = wallet_balance + $1 WHERE id = $2`, r.Amount, r.BidderID); err != nil {
			return nil, fmt.Errorf("refunding bidder %d: %w", r.BidderID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM bids WHERE lot_id = $1`, lotID); err != nil {
		return nil, fmt.Errorf("deleting bids for lot %d: %w", lotID, err)
	}

	reset, err := scanLot(tx.QueryRowContext(ctx, `
		UPDATE lots SET status = 'unsold', is_active = FALSE, current_bid = base_price,
			winner_id = NULL, timer_end = NULL, bid_count = 0
		WHERE id = $1
		RETURNING `+lotColumns, lotID))
	if err != nil {
		return nil, fmt.Errorf("resetting lot %d: %w", lotID, err)
	}

	if err := insertAudit(ctx, tx, auction.ActionItemUnsold, actorID, map[string]any{
		"lotId":   lotID,
		"refunds": refunds,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing reversal: %w", err)
	}
	return &auction.Reversal{Lot: reset, Refunds: refunds}, nil
}

func (s *PostgresStore) RequeueUnsold(ctx context.Context, actorID int64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE lots SET status = 'pending', is_active = TRUE, current_bid = base_price,
			winner_id = NULL, timer_end = NULL, bid_count = 0
		WHERE status = 'unsold'
	`)
	if err != nil {
		return 0, fmt.Errorf("requeueing unsold lots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if n > 0 {
		if err := insertAudit(ctx, tx, auction.ActionUnsoldRequeued, actorID, map[string]any{"count": n}); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing requeue: %w", err)
	}
	return int(n), nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) lotInTx(ctx context.Context, tx *sql.Tx, id int64, forUpdate bool) (*auction.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM lots WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	l, err := scanLot(tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lot %d: %w", id, auction.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading lot %d: %w", id, err)
	}
	return l, nil
}

func insertAudit(ctx context.Context, tx *sql.Tx, action string, actorID int64, details map[string]any) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encoding audit details: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_log (action, actor_id, details) VALUES ($1, $2, $3::jsonb)
	`, action, nullInt64(actorID), string(payload))
	if err != nil {
		return fmt.Errorf("writing %s audit entry: %w", action, err)
	}
	return nil
}
