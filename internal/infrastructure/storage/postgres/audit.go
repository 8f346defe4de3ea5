package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"bakery/internal/core/id"
	"bakery/internal/domain/audit"
)

// CompressionAlgo specifies how a stored snapshot is encoded.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultAuditCompressThreshold is the snapshot size above which zstd is used.
const DefaultAuditCompressThreshold = 4 * 1024

// AuditStore writes audit entries to sys_audit. It implements audit.Sink.
type AuditStore struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ audit.Sink = (*AuditStore)(nil)

// NewAuditStore creates an audit store. threshold <= 0 selects the default.
func NewAuditStore(txManager *TxManager, threshold int) (*AuditStore, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = DefaultAuditCompressThreshold
	}
	return &AuditStore{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: threshold,
	}, nil
}

// Close releases the zstd decoder.
func (s *AuditStore) Close() {
	s.decoder.Close()
}

// Record inserts one entry, compressing large snapshots.
func (s *AuditStore) Record(ctx context.Context, e audit.Entry) error {
	if id.IsNil(e.ID) {
		e.ID = id.New()
	}
	plain, compressed, algo := s.pack(e.Snapshot)

	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, user_id,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.EntityType, e.EntityID, e.Action, e.UserID,
		plain, compressed, algo, e.CreatedAt)
	if err != nil {
		return MapError(fmt.Errorf("insert audit: %w", err), "audit", e.ID)
	}
	return nil
}

// History returns the newest entries of an entity, snapshots decompressed.
func (s *AuditStore) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, `
		SELECT id, entity_type, entity_id, action, user_id,
		       changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, entityType, entityID, limit)
	if err != nil {
		return nil, MapError(fmt.Errorf("query audit: %w", err), "audit", entityID)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			e          audit.Entry
			plain      []byte
			compressed []byte
			algo       CompressionAlgo
		)
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.UserID,
			&plain, &compressed, &algo, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		e.Snapshot, err = s.unpack(plain, compressed, algo)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *AuditStore) pack(snapshot json.RawMessage) (json.RawMessage, []byte, CompressionAlgo) {
	if len(snapshot) <= s.compressThreshold {
		return snapshot, nil, CompressionNone
	}
	return nil, s.encoder.EncodeAll(snapshot, nil), CompressionZstd
}

func (s *AuditStore) unpack(plain, compressed []byte, algo CompressionAlgo) (json.RawMessage, error) {
	if algo != CompressionZstd {
		return plain, nil
	}
	out, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress audit snapshot: %w", err)
	}
	return out, nil
}
