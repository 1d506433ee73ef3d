package scrape

// Kind tells the consumer of the message queue what to do with a Message.
type Kind int

const (
	// KindRefresh asks the display to reload its rows from the store.
	KindRefresh Kind = iota
	// KindAlert carries a price alert.
	KindAlert
)

func (k Kind) String() string {
	switch k {
	case KindRefresh:
		return "refresh"
	case KindAlert:
		return "alert"
	default:
		return "unknown"
	}
}

// Message is what the background scraper sends to the display, in order.
type Message struct {
	Kind      Kind
	Text      string
	ProductID int64
	URL       string
	Price     float64
	Threshold float64
}

// RefreshMessage asks the consumer to reload.
func RefreshMessage() Message {
	return Message{Kind: KindRefresh}
}
