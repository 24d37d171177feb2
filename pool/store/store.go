// Package store persists CorePool and PositionTokenManager state to a
// sqlite database via gorm, mirroring the teacher's CorePool.Flush and
// TokenPositionManager's GormDataType/Scan/Value JSON-blob pattern.
//
// This package, not the pool package itself, carries the gorm dependency:
// the teacher embeds gorm.Model directly into CorePool, but doing that here
// would force every caller of pool.CorePool (including in-memory unit
// tests) to drag a database schema along for the ride. Keeping persistence
// a layer above the pool package lets pool stay usable standalone while still
// reusing the teacher's exact JSON-blob technique for the actual storage.
package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/coinsummer/clpool/pool"
	"github.com/coinsummer/clpool/pool/sync"
)

// SnapshotBlob adapts pool.Snapshot to GORM's JSON-blob column pattern,
// grounded on the teacher's TokenPositionManager.GormDataType/Scan/Value.
type SnapshotBlob pool.Snapshot

// GormDataType reports the column type GORM should use for this blob.
func (SnapshotBlob) GormDataType() string { return "LONGTEXT" }

// Scan unmarshals a stored JSON blob back into the snapshot.
func (b *SnapshotBlob) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, b)
	case string:
		return json.Unmarshal([]byte(v), b)
	case nil:
		return nil
	default:
		return errors.New(fmt.Sprint("store: cannot scan SnapshotBlob from ", value))
	}
}

// Value marshals the snapshot to JSON for storage.
func (b SnapshotBlob) Value() (driver.Value, error) {
	bs, err := json.Marshal(pool.Snapshot(b))
	if err != nil {
		return nil, err
	}
	return string(bs), nil
}

// PoolRecord is one row per pool address.
type PoolRecord struct {
	gorm.Model
	Address string `gorm:"uniqueIndex"`
	State   SnapshotBlob `gorm:"type:LONGTEXT"`
}

// PositionTokensBlob adapts a slice of mirrored NFT positions to the same
// JSON-blob pattern as SnapshotBlob.
type PositionTokensBlob []*sync.PositionToken

// GormDataType reports the column type GORM should use for this blob.
func (PositionTokensBlob) GormDataType() string { return "LONGTEXT" }

// Scan unmarshals a stored JSON blob back into the token slice.
func (b *PositionTokensBlob) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, b)
	case string:
		return json.Unmarshal([]byte(v), b)
	case nil:
		return nil
	default:
		return errors.New(fmt.Sprint("store: cannot scan PositionTokensBlob from ", value))
	}
}

// Value marshals the token slice to JSON for storage.
func (b PositionTokensBlob) Value() (driver.Value, error) {
	bs, err := json.Marshal([]*sync.PositionToken(b))
	if err != nil {
		return nil, err
	}
	return string(bs), nil
}

// PositionTokensRecord is one row per NFT manager instance (one per
// ingestor, keyed by the NonfungiblePositionManager address it watches).
type PositionTokensRecord struct {
	gorm.Model
	Address string `gorm:"uniqueIndex"`
	Tokens  PositionTokensBlob `gorm:"type:LONGTEXT"`
}

// Store wraps a gorm.DB configured for pool/position persistence.
type Store struct {
	db *gorm.DB
}

// New wraps db, auto-migrating the pool and position-token tables.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&PoolRecord{}, &PositionTokensRecord{}); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	return &Store{db: db}, nil
}

// SavePool upserts p's current snapshot under address.
func (s *Store) SavePool(address string, p *pool.CorePool) error {
	snap := p.Snapshot()
	rec := PoolRecord{Address: address, State: SnapshotBlob(snap)}
	return s.db.Where(PoolRecord{Address: address}).
		Assign(PoolRecord{State: SnapshotBlob(snap)}).
		FirstOrCreate(&rec).Error
}

// LoadPool reconstructs the pool last saved under address.
func (s *Store) LoadPool(address string, ledger pool.Ledger) (*pool.CorePool, error) {
	var rec PoolRecord
	if err := s.db.Where("address = ?", address).First(&rec).Error; err != nil {
		return nil, fmt.Errorf("load pool %s: %w", address, err)
	}
	return pool.LoadCorePool(pool.Snapshot(rec.State), ledger)
}

// SavePositionTokens upserts the ingestor's mirrored NFT positions under
// address (the NonfungiblePositionManager contract address it watches).
func (s *Store) SavePositionTokens(address string, manager *sync.PositionTokenManager) error {
	tokens := PositionTokensBlob(manager.Snapshot())
	rec := PositionTokensRecord{Address: address, Tokens: tokens}
	return s.db.Where(PositionTokensRecord{Address: address}).
		Assign(PositionTokensRecord{Tokens: tokens}).
		FirstOrCreate(&rec).Error
}

// LoadPositionTokens restores a PositionTokenManager's contents from the row
// saved under address.
func (s *Store) LoadPositionTokens(address string) (*sync.PositionTokenManager, error) {
	var rec PositionTokensRecord
	if err := s.db.Where("address = ?", address).First(&rec).Error; err != nil {
		return nil, fmt.Errorf("load position tokens %s: %w", address, err)
	}
	manager := sync.NewPositionTokenManager()
	manager.LoadSnapshot(rec.Tokens)
	return manager, nil
}

// Summary is a human-decimal rendering of a saved pool row, for reporting
// and SQL-side inspection: the same role decimal.Decimal played throughout
// the teacher's TokenPositionManager, kept here rather than in pool (whose
// uint256 fields must stay exact, never decimal-rounded).
type Summary struct {
	Address              string
	SqrtPriceX96         decimal.Decimal
	Liquidity            decimal.Decimal
	FeeGrowthGlobal0X128 decimal.Decimal
	FeeGrowthGlobal1X128 decimal.Decimal
}

// Describe renders the pool row saved under address as decimal-strings,
// suitable for logging or a dashboard query without re-parsing uint256
// arithmetic.
func (s *Store) Describe(address string) (Summary, error) {
	var rec PoolRecord
	if err := s.db.Where("address = ?", address).First(&rec).Error; err != nil {
		return Summary{}, fmt.Errorf("describe pool %s: %w", address, err)
	}
	snap := pool.Snapshot(rec.State)

	sqrtPrice, err := decimal.NewFromString(snap.SqrtPriceX96)
	if err != nil {
		return Summary{}, fmt.Errorf("parse sqrt price: %w", err)
	}
	liquidity, err := decimal.NewFromString(snap.Liquidity)
	if err != nil {
		return Summary{}, fmt.Errorf("parse liquidity: %w", err)
	}
	fg0, err := decimal.NewFromString(snap.FeeGrowthGlobal0X128)
	if err != nil {
		return Summary{}, fmt.Errorf("parse fee growth global0: %w", err)
	}
	fg1, err := decimal.NewFromString(snap.FeeGrowthGlobal1X128)
	if err != nil {
		return Summary{}, fmt.Errorf("parse fee growth global1: %w", err)
	}

	return Summary{
		Address:              address,
		SqrtPriceX96:         sqrtPrice,
		Liquidity:            liquidity,
		FeeGrowthGlobal0X128: fg0,
		FeeGrowthGlobal1X128: fg1,
	}, nil
}
