// Package authz holds the post ownership rule.
package authz

import "simplesns/internal/models"

// CanMutate reports whether caller may update or delete post: only the
// post's author or an admin may.
func CanMutate(post *models.Post, caller models.Caller) bool {
	if post == nil || !caller.Authenticated() {
		return false
	}
	return caller.UserID == post.UserID || caller.IsAdmin
}
