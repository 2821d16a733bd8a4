// internal/gmail/types.go
package gmail

type MessageID string
type LabelID string

// Label is a provider-side tag as returned by the labels list call.
type Label struct {
	ID   LabelID
	Name string
}

type Header struct {
	Name  string
	Value string
}

// MessageDetail carries a message's headers in the order the provider
// returned them. Header names may repeat.
type MessageDetail struct {
	ID      MessageID
	Headers []Header
}

// Header returns the value of the first header named exactly name.
func (m MessageDetail) Header(name string) (string, bool) {
	for _, h := range m.Headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

// ListPage is one page of a label-scoped message listing. An empty
// NextPageToken marks the last page.
type ListPage struct {
	IDs           []MessageID
	NextPageToken string
}
