package domain

// Product is an opaque catalog record served by the upstream API. Only the
// fields the gateway consumes are declared; unknown fields are dropped on
// decode.
type Product struct {
	ID                 int      `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	Category           string   `json:"category,omitempty"`
	Price              float64  `json:"price"`
	DiscountPercentage float64  `json:"discountPercentage,omitempty"`
	Rating             float64  `json:"rating,omitempty"`
	Stock              int      `json:"stock,omitempty"`
	Thumbnail          string   `json:"thumbnail,omitempty"`
	Reviews            []Review `json:"reviews,omitempty"`
}

// Review is a product review. Upstream products embed anonymous reviews
// (no id, no userId); locally submitted ones carry both.
type Review struct {
	ID            string `json:"id,omitempty"`
	UserID        int    `json:"userId,omitempty"`
	ProductID     int    `json:"productId,omitempty"`
	Rating        int    `json:"rating"`
	Comment       string `json:"comment"`
	Date          string `json:"date"`
	ReviewerName  string `json:"reviewerName"`
	ReviewerEmail string `json:"reviewerEmail,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
}
