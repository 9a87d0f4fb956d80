// Package keyspace owns the persisted key naming convention. Every store
// goes through these helpers so the key space stays consistent and mockable.
package keyspace

import "fmt"

// Survivor is the one key the persistence adapter never evicts when it
// recovers from a quota failure.
const Survivor = "currentUser"

// FeedBundle is the single cache entry holding the joined posts snapshot.
const FeedBundle = "postsData"

func CurrentUser() string { return Survivor }

func UserProfile(userID int) string { return fmt.Sprintf("userProfile_%d", userID) }

func Cart(userID int) string { return fmt.Sprintf("cart_%d", userID) }

func Purchases(userID int) string { return fmt.Sprintf("purchases_%d", userID) }

func ProductReviews(productID int) string { return fmt.Sprintf("product_reviews_%d", productID) }

func UserPosts(userID int) string { return fmt.Sprintf("userPosts_%d", userID) }

func UserComments(userID int) string { return fmt.Sprintf("userComments_%d", userID) }
