package media

// Dimensions of a media resource in pixels.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type edge[T any] struct {
	Node T `json:"node"`
}

type captionNode struct {
	Text string `json:"text"`
}

type captionEdges struct {
	Edges []edge[captionNode] `json:"edges"`
}

// Node is a timeline entry as returned by the remote API.
type Node struct {
	Shortcode  string       `json:"shortcode"`
	DisplayURL string       `json:"display_url"`
	Dimensions Dimensions   `json:"dimensions"`
	Captions   captionEdges `json:"edge_media_to_caption"`
}

// Item flattens the node into an Item. The first caption edge wins.
func (n Node) Item() Item {
	item := Item{
		ID:     n.Shortcode,
		URL:    n.DisplayURL,
		Width:  n.Dimensions.Width,
		Height: n.Dimensions.Height,
	}
	if len(n.Captions.Edges) > 0 {
		item.Caption = n.Captions.Edges[0].Node.Text
	}
	return item
}

// Timeline is the paginated media connection of a user.
type Timeline struct {
	Count    int          `json:"count"`
	PageInfo PageInfo     `json:"page_info"`
	Edges    []edge[Node] `json:"edges"`
}

// Page converts the connection into a Page, keeping edge order.
func (t Timeline) Page() Page {
	items := make([]Item, 0, len(t.Edges))
	for _, e := range t.Edges {
		items = append(items, e.Node.Item())
	}
	return Page{Items: items, PageInfo: t.PageInfo}
}
