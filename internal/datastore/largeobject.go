package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/gorm"

	"github.com/MrGangrene/bgg-flashcards/internal/errors"
)

// chunkSize is the large object read and write granularity.
const chunkSize = 8192

// orphanCleanupTimeout bounds the cleanup after a failed replace.
const orphanCleanupTimeout = 5 * time.Second

// LargeObjectStore keeps game images in PostgreSQL large objects and their
// metadata (oid, mime type, size) on the games row.
type LargeObjectStore struct {
	db *gorm.DB
}

// NewLargeObjectStore creates a store on the gorm pool of a Postgres database.
func NewLargeObjectStore(db *gorm.DB) *LargeObjectStore {
	return &LargeObjectStore{db: db}
}

// withTx runs fn in a pgx transaction on a connection borrowed from the pool.
// The transaction commits when fn returns nil and rolls back otherwise.
func (s *LargeObjectStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, sql.ErrConnDone) {
			logger.Warn("Failed to release database connection", "error", cerr)
		}
	}()

	return conn.Raw(func(driverConn any) error {
		stdConn, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("large objects need a pgx connection, got %T", driverConn)
		}

		tx, err := stdConn.Conn().Begin(ctx)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			// Roll back even when ctx is already cancelled
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				logger.Warn("Failed to roll back image transaction", "error", rbErr)
			}
			return err
		}
		return tx.Commit(ctx)
	})
}

// currentOID locks the games row and returns its image oid, if any.
func currentOID(ctx context.Context, tx pgx.Tx, gameID int) (*int64, error) {
	var oid *int64
	err := tx.QueryRow(ctx, `SELECT image_oid FROM games WHERE id = $1 FOR UPDATE`, gameID).Scan(&oid)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFoundError("game", gameID)
	}
	return oid, err
}

// ReplaceImage stores data as the image of a game, unlinking the previous
// image in the same transaction.
func (s *LargeObjectStore) ReplaceImage(ctx context.Context, gameID int, data []byte, mimeType string) (StoredImage, error) {
	var newOID uint32

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		oldOID, err := currentOID(ctx, tx, gameID)
		if err != nil {
			return err
		}

		los := tx.LargeObjects()
		if oldOID != nil {
			if err := los.Unlink(ctx, uint32(*oldOID)); err != nil {
				return fmt.Errorf("unlink previous large object %d: %w", *oldOID, err)
			}
		}

		newOID, err = los.Create(ctx, 0)
		if err != nil {
			return fmt.Errorf("create large object: %w", err)
		}

		obj, err := los.Open(ctx, newOID, pgx.LargeObjectModeWrite)
		if err != nil {
			return fmt.Errorf("open large object %d: %w", newOID, err)
		}
		if err := writeLargeObject(obj, data); err != nil {
			_ = obj.Close()
			return fmt.Errorf("write large object %d: %w", newOID, err)
		}
		if err := obj.Close(); err != nil {
			return fmt.Errorf("close large object %d: %w", newOID, err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE games SET image_oid = $1, image_mimetype = $2, image_size = $3 WHERE id = $4`,
			int64(newOID), mimeType, len(data), gameID)
		return err
	})
	if err != nil {
		if newOID != 0 {
			s.unlinkOrphan(ctx, newOID)
		}
		if errors.IsNotFound(err) {
			return StoredImage{}, err
		}
		return StoredImage{}, storageError(err, "replace_image", gameID)
	}

	logger.Debug("Stored image", "game_id", gameID, "oid", newOID, "bytes", len(data), "mime_type", mimeType)
	return StoredImage{OID: newOID, MimeType: mimeType, Size: len(data)}, nil
}

// unlinkOrphan makes a best effort to drop a large object left behind by a
// failed replace. Objects created inside a rolled back transaction are already gone.
func (s *LargeObjectStore) unlinkOrphan(ctx context.Context, oid uint32) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), orphanCleanupTimeout)
	defer cancel()

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM pg_largeobject_metadata WHERE oid = $1)`, int64(oid)).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return nil
		}
		los := tx.LargeObjects()
		return los.Unlink(ctx, oid)
	})
	if err != nil {
		logger.Warn("Failed to unlink orphaned large object", "oid", oid, "error", err)
	}
}

// ReadImage returns the stored image bytes and mime type of a game, or a
// not-found error when it has none.
func (s *LargeObjectStore) ReadImage(ctx context.Context, gameID int) ([]byte, string, error) {
	var (
		data     []byte
		mimeType string
	)

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var (
			oid  *int64
			mime *string
			size *int64
		)
		err := tx.QueryRow(ctx,
			`SELECT image_oid, image_mimetype, image_size FROM games WHERE id = $1`, gameID).Scan(&oid, &mime, &size)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && oid == nil) {
			return notFoundError("image", gameID)
		}
		if err != nil {
			return err
		}

		los := tx.LargeObjects()
		obj, err := los.Open(ctx, uint32(*oid), pgx.LargeObjectModeRead)
		if err != nil {
			return fmt.Errorf("open large object %d: %w", *oid, err)
		}
		defer func() { _ = obj.Close() }()

		capacity := 0
		if size != nil {
			capacity = int(*size)
		}
		data, err = readChunks(obj, capacity)
		if err != nil {
			return fmt.Errorf("read large object %d: %w", *oid, err)
		}
		if mime != nil {
			mimeType = *mime
		}
		return nil
	})
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, "", err
		}
		return nil, "", storageError(err, "read_image", gameID)
	}
	return data, mimeType, nil
}

// ClearImage unlinks the stored image of a game and nulls its metadata.
func (s *LargeObjectStore) ClearImage(ctx context.Context, gameID int) error {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		oid, err := currentOID(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if oid != nil {
			los := tx.LargeObjects()
			if err := los.Unlink(ctx, uint32(*oid)); err != nil {
				return fmt.Errorf("unlink large object %d: %w", *oid, err)
			}
		}
		_, err = tx.Exec(ctx,
			`UPDATE games SET image_oid = NULL, image_mimetype = NULL, image_size = NULL WHERE id = $1`, gameID)
		return err
	})
	if err != nil {
		if errors.IsNotFound(err) {
			return err
		}
		return storageError(err, "clear_image", gameID)
	}
	return nil
}

// HasImage reports whether a game has a stored image.
func (s *LargeObjectStore) HasImage(ctx context.Context, gameID int) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Game{}).
		Where("id = ? AND image_oid IS NOT NULL", gameID).
		Count(&count).Error
	if err != nil {
		return false, dbError(err, "has_image", "game_id", gameID)
	}
	return count > 0, nil
}

// writeLargeObject writes image bytes into an open large object. Tests
// replace it to fail a store midway.
var writeLargeObject = writeChunks

func writeChunks(w io.Writer, data []byte) error {
	for off := 0; off < len(data); off += chunkSize {
		end := min(off+chunkSize, len(data))
		if _, err := w.Write(data[off:end]); err != nil {
			return err
		}
	}
	return nil
}

func readChunks(r io.Reader, capacity int) ([]byte, error) {
	data := make([]byte, 0, capacity)
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		data = append(data, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return data, nil
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return data, nil
		}
	}
}
