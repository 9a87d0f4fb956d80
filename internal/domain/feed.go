package domain

// FeedUser is the author summary joined onto posts and comments.
type FeedUser struct {
	ID        int    `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Image     string `json:"image,omitempty"`
}

// Reactions holds a post's like/dislike counters as served upstream.
type Reactions struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
}

// Post is a social feed entry, decorated with its author and a synthesized
// view count after the feed join.
type Post struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	UserID    int       `json:"userId"`
	Tags      []string  `json:"tags,omitempty"`
	Reactions Reactions `json:"reactions"`
	User      *FeedUser `json:"user,omitempty"`
	Views     int       `json:"views,omitempty"`
}

// Comment is a post comment. Upstream comments embed a partial user; local
// ones are authored by the active identity.
type Comment struct {
	ID        int64    `json:"id"`
	Body      string   `json:"body"`
	PostID    int      `json:"postId"`
	User      FeedUser `json:"user"`
	CreatedAt string   `json:"createdAt"`
}

// FeedBundle is the cached joined snapshot of posts, comments and users.
// It is treated as immutable until its storage entry is cleared externally.
type FeedBundle struct {
	Posts    []Post     `json:"posts"`
	Comments []Comment  `json:"comments"`
	Users    []FeedUser `json:"users"`
}
