package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrDocumentNotFound is returned when a document row does not exist.
var ErrDocumentNotFound = errors.New("enquiry document not found")

// Document is one uploaded file attached to an enquiry. FileKey is the
// object-storage key; the bytes themselves live in MinIO.
type Document struct {
	ID         uuid.UUID
	EnquiryID  uuid.UUID
	DocumentID int64
	FileName   string
	FileKey    string
	IsVerified bool
	IsDeleted  bool
	UploadedBy uuid.UUID
	CreatedAt  time.Time
}

type AddDocumentParams struct {
	EnquiryID  uuid.UUID
	DocumentID int64
	FileName   string
	FileKey    string
	UploadedBy uuid.UUID
}

func (r *Repository) AddDocument(ctx context.Context, params AddDocumentParams) (Document, error) {
	var doc Document
	err := r.pool.QueryRow(ctx, `
		INSERT INTO enquiry_documents (enquiry_id, document_id, file_name, file_key, uploaded_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, enquiry_id, document_id, file_name, file_key, is_verified, is_deleted, uploaded_by, created_at`,
		params.EnquiryID, params.DocumentID, params.FileName, params.FileKey, params.UploadedBy,
	).Scan(&doc.ID, &doc.EnquiryID, &doc.DocumentID, &doc.FileName, &doc.FileKey,
		&doc.IsVerified, &doc.IsDeleted, &doc.UploadedBy, &doc.CreatedAt)
	return doc, err
}

// ListDocuments returns the enquiry's live documents in upload order.
func (r *Repository) ListDocuments(ctx context.Context, enquiryID uuid.UUID) ([]Document, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, enquiry_id, document_id, file_name, file_key, is_verified, is_deleted, uploaded_by, created_at
		FROM enquiry_documents
		WHERE enquiry_id = $1 AND is_deleted = false
		ORDER BY created_at ASC`, enquiryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.EnquiryID, &doc.DocumentID, &doc.FileName, &doc.FileKey,
			&doc.IsVerified, &doc.IsDeleted, &doc.UploadedBy, &doc.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *Repository) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	var doc Document
	err := r.pool.QueryRow(ctx, `
		SELECT id, enquiry_id, document_id, file_name, file_key, is_verified, is_deleted, uploaded_by, created_at
		FROM enquiry_documents
		WHERE id = $1`, id,
	).Scan(&doc.ID, &doc.EnquiryID, &doc.DocumentID, &doc.FileName, &doc.FileKey,
		&doc.IsVerified, &doc.IsDeleted, &doc.UploadedBy, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrDocumentNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

func (r *Repository) SetDocumentVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE enquiry_documents SET is_verified = $1 WHERE id = $2 AND is_deleted = false", verified, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// SoftDeleteDocument hides a document. The object-storage file is retained.
func (r *Repository) SoftDeleteDocument(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE enquiry_documents SET is_deleted = true WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// ReassignDocuments moves a merged enquiry's documents onto the survivor.
func (r *Repository) ReassignDocuments(ctx context.Context, fromID, toID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		"UPDATE enquiry_documents SET enquiry_id = $1 WHERE enquiry_id = $2", toID, fromID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
