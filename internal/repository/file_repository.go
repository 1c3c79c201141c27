package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-chat/internal/domain"
)

// FileRepository persists uploaded file records shared in a conversation.
type FileRepository interface {
	Create(ctx context.Context, file *domain.FileAttachment) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.FileAttachment, error)
}

type fileRepository struct {
	pool *pgxpool.Pool
}

// NewFileRepository constructs repository.
func NewFileRepository(pool *pgxpool.Pool) FileRepository {
	return &fileRepository{pool: pool}
}

func (r *fileRepository) Create(ctx context.Context, file *domain.FileAttachment) error {
	const query = `
        INSERT INTO ticket_files (ticket_id, file_name, url, uploader_id, uploader_name, uploader_role, kind, uploaded_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		file.TicketID,
		file.FileName,
		file.URL,
		file.UploaderID,
		file.UploaderName,
		file.UploaderRole,
		file.Kind,
		file.UploadedAt,
	).Scan(&file.ID)
}

func (r *fileRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.FileAttachment, error) {
	const query = `
        SELECT id, ticket_id, file_name, url, uploader_id, uploader_name, COALESCE(uploader_role, ''), COALESCE(kind, ''), uploaded_at
        FROM ticket_files WHERE ticket_id=$1 ORDER BY uploaded_at ASC, seq ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, lookupError(err)
	}
	defer rows.Close()

	var result []domain.FileAttachment
	for rows.Next() {
		var file domain.FileAttachment
		if err := rows.Scan(
			&file.ID,
			&file.TicketID,
			&file.FileName,
			&file.URL,
			&file.UploaderID,
			&file.UploaderName,
			&file.UploaderRole,
			&file.Kind,
			&file.UploadedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, file)
	}
	return result, lookupError(rows.Err())
}
