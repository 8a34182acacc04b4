package store

import (
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite"

	"betmarket-backend/internal/engine"
	"betmarket-backend/internal/market"
	"betmarket-backend/internal/settlement"
)

const schema = `
CREATE TABLE IF NOT EXISTS markets (
    seq              INTEGER PRIMARY KEY AUTOINCREMENT,
    id               TEXT UNIQUE NOT NULL,
    pair             TEXT NOT NULL,
    collateral       TEXT NOT NULL,
    target_price     INTEGER NOT NULL,
    resolution_time  DATETIME NOT NULL,
    state            INTEGER NOT NULL DEFAULT 0,
    resolved         INTEGER NOT NULL DEFAULT 0,
    final_price      INTEGER NOT NULL DEFAULT 0,
    total_long       INTEGER NOT NULL DEFAULT 0,
    total_short      INTEGER NOT NULL DEFAULT 0,
    total_collateral INTEGER NOT NULL DEFAULT 0,
    paid_out         INTEGER NOT NULL DEFAULT 0,
    synth_long       INTEGER NOT NULL DEFAULT 0,
    synth_short      INTEGER NOT NULL DEFAULT 0,
    synth_total      INTEGER NOT NULL DEFAULT 0,
    synth_prob       REAL NOT NULL DEFAULT 0,
    created_at       DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_markets_pair ON markets(pair, seq);

CREATE TABLE IF NOT EXISTS positions (
    market_id  TEXT NOT NULL,
    user       TEXT NOT NULL,
    side       TEXT NOT NULL,
    amount     INTEGER NOT NULL DEFAULT 0,
    claimed    INTEGER NOT NULL DEFAULT 0,
    withdrawn  INTEGER NOT NULL DEFAULT 0,
    seq        INTEGER,
    PRIMARY KEY (market_id, user)
);

CREATE TABLE IF NOT EXISTS settlements (
    seq          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id   TEXT UNIQUE NOT NULL,
    user         TEXT NOT NULL,
    market_id    TEXT NOT NULL,
    amount       INTEGER NOT NULL,
    finalized    INTEGER NOT NULL DEFAULT 0,
    payout       INTEGER NOT NULL DEFAULT 0,
    attestation  BLOB,
    closed       INTEGER NOT NULL DEFAULT 0,
    created_at   DATETIME NOT NULL,
    finalized_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_settlements_user ON settlements(user, closed, seq);
`

// SQLite is the durable store. Pure Go, single writer; all serialization of
// concurrent mutations is done above it by the ledger's per-market locks and
// the reconciler's mutex.
type SQLite struct {
	db          *sql.DB
	markets     *sqliteMarkets
	positions   *sqlitePositions
	settlements *sqliteSettlements
}

// NewSQLite opens (or creates) the database at the given path and applies
// the schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store.NewSQLite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store.NewSQLite: apply schema: %w", err)
	}

	return &SQLite{
		db:          db,
		markets:     &sqliteMarkets{db: db},
		positions:   &sqlitePositions{db: db},
		settlements: &sqliteSettlements{db: db},
	}, nil
}

// Markets returns the market repository
func (s *SQLite) Markets() market.Store { return s.markets }

// Positions returns the position repository
func (s *SQLite) Positions() engine.PositionStore { return s.positions }

// Settlements returns the settlement-record repository
func (s *SQLite) Settlements() settlement.Store { return s.settlements }

// Close closes the database
func (s *SQLite) Close() error { return s.db.Close() }

type sqliteMarkets struct {
	db *sql.DB
}

func (s *sqliteMarkets) Put(m *market.Market) error {
	_, err := s.db.Exec(`
		INSERT INTO markets (
			id, pair, collateral, target_price, resolution_time, state,
			resolved, final_price, total_long, total_short, total_collateral,
			paid_out, synth_long, synth_short, synth_total, synth_prob, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state            = excluded.state,
			resolved         = excluded.resolved,
			final_price      = excluded.final_price,
			total_long       = excluded.total_long,
			total_short      = excluded.total_short,
			total_collateral = excluded.total_collateral,
			paid_out         = excluded.paid_out`,
		m.ID, m.Pair, m.Collateral, m.TargetPrice, m.ResolutionTime.UTC(), int(m.State),
		m.Resolved, m.FinalPrice, int64(m.TotalLong), int64(m.TotalShort), int64(m.TotalCollateral),
		int64(m.PaidOut), int64(m.Synthetic.LongAmount), int64(m.Synthetic.ShortAmount),
		int64(m.Synthetic.TotalAmount), m.Synthetic.ProbabilityLong, m.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("store: put market %s: %w", m.ID, err)
	}
	return nil
}

const marketColumns = `
	id, pair, collateral, target_price, resolution_time, state,
	resolved, final_price, total_long, total_short, total_collateral,
	paid_out, synth_long, synth_short, synth_total, synth_prob, created_at`

func scanMarket(row interface{ Scan(...any) error }) (*market.Market, error) {
	var (
		m     market.Market
		state int
		long, short, collateral, paid,
		synthLong, synthShort, synthTotal int64
	)
	err := row.Scan(
		&m.ID, &m.Pair, &m.Collateral, &m.TargetPrice, &m.ResolutionTime, &state,
		&m.Resolved, &m.FinalPrice, &long, &short, &collateral,
		&paid, &synthLong, &synthShort, &synthTotal, &m.Synthetic.ProbabilityLong, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.State = market.State(state)
	m.TotalLong = uint64(long)
	m.TotalShort = uint64(short)
	m.TotalCollateral = uint64(collateral)
	m.PaidOut = uint64(paid)
	m.Synthetic.LongAmount = uint64(synthLong)
	m.Synthetic.ShortAmount = uint64(synthShort)
	m.Synthetic.TotalAmount = uint64(synthTotal)
	return &m, nil
}

func (s *sqliteMarkets) Get(id string) (*market.Market, bool) {
	row := s.db.QueryRow(`SELECT`+marketColumns+` FROM markets WHERE id = ?`, id)
	m, err := scanMarket(row)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("store: get market %s: %v", id, err)
		}
		return nil, false
	}
	return m, true
}

func (s *sqliteMarkets) list(query string, args ...any) []*market.Market {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.Printf("store: list markets: %v", err)
		return nil
	}
	defer rows.Close()

	var markets []*market.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			log.Printf("store: scan market: %v", err)
			continue
		}
		markets = append(markets, m)
	}
	return markets
}

func (s *sqliteMarkets) List() []*market.Market {
	return s.list(`SELECT` + marketColumns + ` FROM markets ORDER BY seq`)
}

func (s *sqliteMarkets) ListByPair(pair string) []*market.Market {
	return s.list(`SELECT`+marketColumns+` FROM markets WHERE pair = ? ORDER BY seq`, pair)
}

func (s *sqliteMarkets) Count() int {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM markets`).Scan(&n); err != nil {
		log.Printf("store: count markets: %v", err)
		return 0
	}
	return n
}

type sqlitePositions struct {
	db *sql.DB
}

func (s *sqlitePositions) Put(p *engine.Position) error {
	_, err := s.db.Exec(`
		INSERT INTO positions (market_id, user, side, amount, claimed, withdrawn, seq)
		VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM positions))
		ON CONFLICT(market_id, user) DO UPDATE SET
			amount    = excluded.amount,
			claimed   = excluded.claimed,
			withdrawn = excluded.withdrawn`,
		p.MarketID, p.User, string(p.Side), int64(p.Amount), p.Claimed, p.Withdrawn,
	)
	if err != nil {
		return fmt.Errorf("store: put position %s/%s: %w", p.MarketID, p.User, err)
	}
	return nil
}

func (s *sqlitePositions) Get(marketID, user string) (*engine.Position, bool) {
	row := s.db.QueryRow(`
		SELECT market_id, user, side, amount, claimed, withdrawn
		FROM positions WHERE market_id = ? AND user = ?`, marketID, user)

	p, err := scanPosition(row)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("store: get position %s/%s: %v", marketID, user, err)
		}
		return nil, false
	}
	return p, true
}

func scanPosition(row interface{ Scan(...any) error }) (*engine.Position, error) {
	var (
		p      engine.Position
		side   string
		amount int64
	)
	if err := row.Scan(&p.MarketID, &p.User, &side, &amount, &p.Claimed, &p.Withdrawn); err != nil {
		return nil, err
	}
	p.Side = engine.Side(side)
	p.Amount = uint64(amount)
	return &p, nil
}

func (s *sqlitePositions) ListByMarket(marketID string) []*engine.Position {
	rows, err := s.db.Query(`
		SELECT market_id, user, side, amount, claimed, withdrawn
		FROM positions WHERE market_id = ? ORDER BY seq`, marketID)
	if err != nil {
		log.Printf("store: list positions %s: %v", marketID, err)
		return nil
	}
	defer rows.Close()

	var positions []*engine.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			log.Printf("store: scan position: %v", err)
			continue
		}
		positions = append(positions, p)
	}
	return positions
}

type sqliteSettlements struct {
	db *sql.DB
}

func (s *sqliteSettlements) Put(r *settlement.Record) error {
	var finalizedAt sql.NullTime
	if r.Finalized {
		finalizedAt = sql.NullTime{Time: r.FinalizedAt.UTC(), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO settlements (
			session_id, user, market_id, amount, finalized, payout,
			attestation, closed, created_at, finalized_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			finalized    = excluded.finalized,
			payout       = excluded.payout,
			attestation  = excluded.attestation,
			closed       = excluded.closed,
			finalized_at = excluded.finalized_at`,
		r.SessionID, r.User, r.MarketID, int64(r.Amount), r.Finalized, int64(r.Payout),
		r.Attestation, r.Closed, r.CreatedAt.UTC(), finalizedAt,
	)
	if err != nil {
		return fmt.Errorf("store: put settlement %s: %w", r.SessionID, err)
	}
	return nil
}

func (s *sqliteSettlements) Get(sessionID string) (*settlement.Record, bool) {
	row := s.db.QueryRow(`
		SELECT session_id, user, market_id, amount, finalized, payout,
		       attestation, closed, created_at, finalized_at
		FROM settlements WHERE session_id = ?`, sessionID)

	var (
		r           settlement.Record
		amount      int64
		payout      int64
		finalizedAt sql.NullTime
	)
	err := row.Scan(
		&r.SessionID, &r.User, &r.MarketID, &amount, &r.Finalized, &payout,
		&r.Attestation, &r.Closed, &r.CreatedAt, &finalizedAt,
	)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("store: get settlement %s: %v", sessionID, err)
		}
		return nil, false
	}
	r.Amount = uint64(amount)
	r.Payout = uint64(payout)
	if finalizedAt.Valid {
		r.FinalizedAt = finalizedAt.Time
	}
	return &r, true
}

func (s *sqliteSettlements) UserSessions(user string) []string {
	rows, err := s.db.Query(`
		SELECT session_id FROM settlements
		WHERE user = ? AND closed = 0 ORDER BY seq`, user)
	if err != nil {
		log.Printf("store: user sessions %s: %v", user, err)
		return nil
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
