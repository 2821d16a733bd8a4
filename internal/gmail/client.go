package gmail

import "context"

// Client is the narrow Gmail surface required by labelcast.
type Client interface {
	ListLabels(ctx context.Context) ([]Label, error)
	List(ctx context.Context, label LabelID, pageToken string, pageSize int) (ListPage, error)
	GetHeaders(ctx context.Context, id MessageID) (MessageDetail, error)
	Send(ctx context.Context, raw string) (MessageID, error)
	BatchDelete(ctx context.Context, ids []MessageID) error
	Trash(ctx context.Context, id MessageID) error
}
