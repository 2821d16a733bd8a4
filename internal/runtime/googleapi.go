// internal/runtime/googleapi.go: adapts *gmail.Service to the gmail.Client interface
package runtime

import (
	"context"

	"google.golang.org/api/gmail/v1"

	gc "github.com/joshsymonds/labelcast/internal/gmail"
)

const me = "me"

type googleClient struct{ svc *gmail.Service }

func NewGoogleAPIClient(svc *gmail.Service) gc.Client { return &googleClient{svc} }

func (g *googleClient) ListLabels(ctx context.Context) ([]gc.Label, error) {
	lr, err := g.svc.Users.Labels.List(me).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	labels := make([]gc.Label, 0, len(lr.Labels))
	for _, l := range lr.Labels {
		labels = append(labels, gc.Label{ID: gc.LabelID(l.Id), Name: l.Name})
	}
	return labels, nil
}

func (g *googleClient) List(ctx context.Context, label gc.LabelID, pageToken string, pageSize int) (gc.ListPage, error) {
	call := g.svc.Users.Messages.List(me).LabelIds(string(label))
	if pageSize > 0 {
		call = call.MaxResults(int64(pageSize))
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	res, err := call.Context(ctx).Do()
	if err != nil {
		return gc.ListPage{}, err
	}
	ids := make([]gc.MessageID, 0, len(res.Messages))
	for _, m := range res.Messages {
		ids = append(ids, gc.MessageID(m.Id))
	}
	return gc.ListPage{IDs: ids, NextPageToken: res.NextPageToken}, nil
}

// GetHeaders fetches every header of a message. The metadata format skips
// the body but keeps header order and duplicates.
func (g *googleClient) GetHeaders(ctx context.Context, id gc.MessageID) (gc.MessageDetail, error) {
	msg, err := g.svc.Users.Messages.Get(me, string(id)).Format("metadata").Context(ctx).Do()
	if err != nil {
		return gc.MessageDetail{}, err
	}
	detail := gc.MessageDetail{ID: id}
	if msg.Payload == nil {
		return detail, nil
	}
	detail.Headers = make([]gc.Header, 0, len(msg.Payload.Headers))
	for _, hd := range msg.Payload.Headers {
		detail.Headers = append(detail.Headers, gc.Header{Name: hd.Name, Value: hd.Value})
	}
	return detail, nil
}

func (g *googleClient) Send(ctx context.Context, raw string) (gc.MessageID, error) {
	sent, err := g.svc.Users.Messages.Send(me, &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return gc.MessageID(sent.Id), nil
}

func (g *googleClient) BatchDelete(ctx context.Context, ids []gc.MessageID) error {
	req := &gmail.BatchDeleteMessagesRequest{Ids: toStrings(ids)}
	return g.svc.Users.Messages.BatchDelete(me, req).Context(ctx).Do()
}

func (g *googleClient) Trash(ctx context.Context, id gc.MessageID) error {
	_, err := g.svc.Users.Messages.Trash(me, string(id)).Context(ctx).Do()
	return err
}

func toStrings(ids []gc.MessageID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
